package extract

import (
	"regexp"
	"strings"

	"github.com/sells-group/funding-tracker/internal/model"
)

const (
	properNoun   = `[A-Z][A-Za-z0-9&.'-]*`
	fundingVerbs = `raises|raised|secures|secured|closes|closed|lands|landed|banks|banked|nets|netted|announces|announced`
)

// companyRule is one pattern in the ordered company extraction engine.
// Rules earlier in the table outrank later ones; within a rule the longest
// match wins.
type companyRule struct {
	name string
	re   *regexp.Regexp
}

var companyRules = []companyRule{
	// "Acme Corp raises ...": proper-noun phrase directly before a funding verb.
	{"verb_subject", regexp.MustCompile(
		`(` + properNoun + `(?:\s+` + properNoun + `){0,4})(?:\s+has|\s+have)?\s+(?:` + fundingVerbs + `)\b`)},
	// "the startup Acme" / "the company Acme".
	{"marker", regexp.MustCompile(
		`(?:startup|company)\s+(` + properNoun + `(?:\s+` + properNoun + `){0,3})`)},
	// Legal or product suffix forms anywhere in the text.
	{"suffix", regexp.MustCompile(
		`\b(` + properNoun + `(?:\s+` + properNoun + `){0,3}\s+(?:Inc|Corp|Ltd|LLC|Labs|Technologies|Systems|Energy)\.?)`)},
}

// sentenceOpeners bind to the verb-subject rule but never begin a company
// name.
var sentenceOpeners = []string{"The ", "A ", "An ", "Today "}

// ambiguousLeadIns open sentences but also open real company names
// ("Climate Robotics"), so they are stripped only when a multi-word name
// remains.
var ambiguousLeadIns = []string{"Climate ", "Startup "}

func extractCompany(text string) string {
	for _, rule := range companyRules {
		best := ""
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			name := cleanCompanyName(m[1])
			if len(name) > len(best) {
				best = name
			}
		}
		if best != "" {
			return best
		}
	}
	return ""
}

func cleanCompanyName(name string) string {
	name = strings.TrimSpace(name)
	for _, lead := range sentenceOpeners {
		if strings.HasPrefix(name, lead) && len(name) > len(lead) {
			name = name[len(lead):]
		}
	}
	for _, lead := range ambiguousLeadIns {
		if strings.HasPrefix(name, lead) && len(strings.Fields(name[len(lead):])) >= 2 {
			name = name[len(lead):]
		}
	}
	return strings.Trim(name, " ,.")
}

// investorRule captures a comma-separated investor list following a
// syndicate phrase. Lead rules run before participant rules so a name
// mentioned in both keeps the lead role.
type investorRule struct {
	re   *regexp.Regexp
	role string
}

var investorRules = []investorRule{
	{regexp.MustCompile(`(?i)\bled by\s+([^.;\n]+)`), model.RoleLead},
	{regexp.MustCompile(`(?i)\bwith participation (?:from|of)\s+([^.;\n]+)`), model.RoleParticipant},
	{regexp.MustCompile(`(?i)\binvestors includ(?:e|ed|ing)\s+([^.;\n]+)`), model.RoleParticipant},
	{regexp.MustCompile(`(?i)\bbacked by\s+([^.;\n]+)`), model.RoleParticipant},
	{regexp.MustCompile(`(?i)\bjoined by\s+([^.;\n]+)`), model.RoleParticipant},
}

// listTerminators cut an investor capture before trailing clauses that the
// sentence-level regex cannot exclude.
var listTerminators = []string{
	" with participation", ", with ", " alongside ", " as well as ",
	" to fund", " to expand", " to accelerate", " for its ",
}

var nameStartRe = regexp.MustCompile(`^[A-Z0-9]`)

func extractInvestors(text string) []model.InvestorMention {
	seen := make(map[string]bool)
	var mentions []model.InvestorMention

	for _, rule := range investorRules {
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			for _, name := range splitInvestorList(m[1]) {
				key := strings.ToLower(name)
				if seen[key] {
					continue
				}
				seen[key] = true
				mentions = append(mentions, model.InvestorMention{Name: name, Role: rule.role})
			}
		}
	}
	return mentions
}

var andSplitRe = regexp.MustCompile(`\s+and\s+`)

func splitInvestorList(capture string) []string {
	lower := strings.ToLower(capture)
	cut := len(capture)
	for _, term := range listTerminators {
		if idx := strings.Index(lower, term); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	capture = capture[:cut]

	var names []string
	for _, part := range strings.Split(capture, ",") {
		for _, name := range andSplitRe.Split(part, -1) {
			name = strings.Trim(name, " .")
			// Firm suffixes (Ventures, Capital, Partners) stay part of the name.
			if len(name) < 2 || !nameStartRe.MatchString(name) {
				continue
			}
			names = append(names, name)
		}
	}
	return names
}

// stagePatterns map round-type phrases to the stage enum. The earliest match
// in document order wins, so "pre-seed" naturally outranks its "seed"
// substring.
var stagePatterns = []struct {
	re    *regexp.Regexp
	stage model.Stage
}{
	{regexp.MustCompile(`(?i)\bpre[- ]seed\b`), model.StagePreSeed},
	{regexp.MustCompile(`(?i)\bseed\b`), model.StageSeed},
	{regexp.MustCompile(`(?i)\bseries a\b`), model.StageSeriesA},
	{regexp.MustCompile(`(?i)\bseries b\b`), model.StageSeriesB},
	{regexp.MustCompile(`(?i)\bseries c\b`), model.StageSeriesC},
	{regexp.MustCompile(`(?i)\bseries [d-f]\b`), model.StageSeriesDUp},
	{regexp.MustCompile(`(?i)\bgrowth (?:round|equity|funding)\b`), model.StageGrowth},
	{regexp.MustCompile(`(?i)\b(?:ipo|initial public offering)\b`), model.StageIPO},
	{regexp.MustCompile(`(?i)\bdebt (?:financing|facility|round)\b`), model.StageDebt},
	{regexp.MustCompile(`(?i)\bgrant\b`), model.StageGrant},
}

func extractStage(text string) (string, model.Stage) {
	bestIdx := -1
	raw := ""
	stage := model.StageUnknown

	for _, p := range stagePatterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestIdx == -1 || loc[0] < bestIdx {
			bestIdx = loc[0]
			raw = text[loc[0]:loc[1]]
			stage = p.stage
		}
	}
	return raw, stage
}
