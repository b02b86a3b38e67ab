package validate

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-tracker/internal/model"
)

// Outlier flags attached to suspicious but plausible events. Flagged events
// are committed and surfaced for review, not rejected.
const (
	FlagStageAmountOutlier = "stage_amount_outlier"
	FlagAmountOutOfRange   = "amount_out_of_range"
	FlagRangeEstimate      = "range_estimate"
)

// Hard bounds outside which a parsed amount is almost certainly an
// extraction error.
const (
	minPlausibleUSD = 1_000
	maxPlausibleUSD = 10_000_000_000
)

// stageCeilings flag rounds implausibly large for their stage. Values in
// USD.
var stageCeilings = map[model.Stage]float64{
	model.StagePreSeed: 50_000_000,
	model.StageSeed:    100_000_000,
	model.StageSeriesA: 500_000_000,
}

// Result is the verdict for one event. OK with flags means commit and
// surface for review. A non-nil Err means the event is dropped; the rest
// of the batch proceeds.
type Result struct {
	OK    bool
	Flags []string
	Err   error
}

// Validate checks completeness and plausibility of an event before commit.
// Resolved maps investor IDs referenced by links to whether resolution
// succeeded.
func Validate(ev *model.FundingEvent, links []model.InvestorLink, resolved map[string]bool) Result {
	if ev.CompanyID == "" {
		return Result{Err: eris.New("validate: event has no company")}
	}
	if ev.AmountValue == nil && (ev.Stage == "" || ev.Stage == model.StageUnknown) {
		return Result{Err: eris.New("validate: event has neither amount nor stage")}
	}

	for _, link := range links {
		if !resolved[link.InvestorID] {
			return Result{Err: eris.Errorf("validate: event references unresolved investor %q", link.InvestorID)}
		}
	}

	var flags []string
	if ev.AmountValue != nil {
		v := *ev.AmountValue
		if v < minPlausibleUSD || v > maxPlausibleUSD {
			flags = append(flags, FlagAmountOutOfRange)
		}
		if ceiling, ok := stageCeilings[ev.Stage]; ok && v >= ceiling {
			flags = append(flags, FlagStageAmountOutlier)
		}
	}
	if ev.RangeEstimate {
		flags = append(flags, FlagRangeEstimate)
	}

	return Result{OK: true, Flags: flags}
}
