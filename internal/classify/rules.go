package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/funding-tracker/internal/extract"
	"github.com/sells-group/funding-tracker/internal/model"
)

const (
	ruleMatchConfidence   = 0.6
	ruleNoMatchConfidence = 0.3
	gateConfidence        = 0.7
)

// sectorRule maps keywords to a sector. Rules are evaluated in order and
// the first keyword hit wins, so specific sectors must precede generic
// ones ("electrolyzer" before "renewable").
type sectorRule struct {
	sector   model.Sector
	keywords []string
}

var sectorRules = []sectorRule{
	{model.SectorCarbonCapture, []string{"carbon capture", "direct air capture", "carbon removal", "carbon sequestration"}},
	{model.SectorGreenHydrogen, []string{"green hydrogen", "electrolyzer", "hydrogen fuel cell", "hydrogen production"}},
	{model.SectorAlternativeProtein, []string{"alternative protein", "plant-based meat", "cultivated meat", "precision fermentation", "lab-grown meat"}},
	{model.SectorElectricVehicles, []string{"electric vehicle", "ev charging", "e-mobility", "electric truck", "electric bus"}},
	{model.SectorEnergyStorage, []string{"energy storage", "battery", "grid storage", "long-duration storage"}},
	{model.SectorSmartGrid, []string{"smart grid", "demand response", "virtual power plant", "grid software"}},
	{model.SectorWaterTech, []string{"water treatment", "desalination", "water purification", "water monitoring"}},
	{model.SectorWasteManagement, []string{"waste management", "waste-to-energy", "landfill", "waste collection"}},
	{model.SectorCircularEconomy, []string{"circular economy", "recycling", "resale platform", "refurbished"}},
	{model.SectorGreenBuilding, []string{"green building", "heat pump", "low-carbon cement", "building efficiency", "insulation"}},
	{model.SectorSustainableAg, []string{"regenerative agriculture", "vertical farming", "precision agriculture", "sustainable agriculture", "crop monitoring"}},
	{model.SectorClimateAdaptation, []string{"climate adaptation", "climate resilience", "wildfire detection", "flood protection"}},
	{model.SectorClimateAnalytics, []string{"carbon accounting", "emissions tracking", "climate risk", "climate data", "esg reporting"}},
	{model.SectorCleanEnergy, []string{"solar", "wind power", "wind turbine", "wind farm", "renewable energy", "geothermal", "nuclear", "fusion", "clean energy"}},
}

// RuleClassifier is the deterministic fallback path. Same input always
// yields the same output, so it is safe to re-run over a corpus.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

func (c *RuleClassifier) Classify(_ context.Context, req Request) (Classification, error) {
	text := strings.ToLower(req.Company + " " + req.Title + " " + req.Body)
	for _, rule := range sectorRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return Classification{
					Sector:     rule.sector,
					Confidence: ruleMatchConfidence,
					Source:     SourceRules,
				}, nil
			}
		}
	}
	return Classification{
		Sector:     model.SectorOther,
		Confidence: ruleNoMatchConfidence,
		Source:     SourceRules,
	}, nil
}

func (c *RuleClassifier) IsFundingEvent(_ context.Context, article model.RawArticle) (Verdict, error) {
	return Verdict{
		IsFunding:  extract.HasFundingSignal(article.Text()),
		Confidence: gateConfidence,
	}, nil
}

func (c *RuleClassifier) Summarize(_ context.Context, _ model.RawArticle, cand model.Candidate) (string, error) {
	return templateSummary(cand), nil
}

// templateSummary builds a one-line summary from whatever candidate fields
// are present.
func templateSummary(cand model.Candidate) string {
	company := cand.CompanyRaw
	if company == "" {
		company = "An undisclosed company"
	}

	amt := "an undisclosed amount"
	if cand.Amount != nil && !cand.Amount.Undisclosed {
		amt = humanAmount(cand.Amount.Value)
	}

	var b strings.Builder
	b.WriteString(company)
	b.WriteString(" raised ")
	b.WriteString(amt)
	if cand.Stage != "" && cand.Stage != model.StageUnknown {
		fmt.Fprintf(&b, " in %s funding", cand.Stage)
	}
	for _, inv := range cand.Investors {
		if inv.Role == model.RoleLead {
			fmt.Fprintf(&b, " led by %s", inv.Name)
			break
		}
	}
	b.WriteString(".")
	return b.String()
}

func humanAmount(usd float64) string {
	switch {
	case usd >= 1e9:
		return fmt.Sprintf("$%.1fB", usd/1e9)
	case usd >= 1e6:
		return fmt.Sprintf("$%.1fM", usd/1e6)
	case usd >= 1e3:
		return fmt.Sprintf("$%.0fK", usd/1e3)
	default:
		return fmt.Sprintf("$%.0f", usd)
	}
}
