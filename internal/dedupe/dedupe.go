package dedupe

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/store"
)

const (
	// DefaultAmountTolerance is the relative difference under which two
	// round sizes count as the same round ($10M vs $10.2M is reporting
	// noise, not a second raise).
	DefaultAmountTolerance = 0.05

	// DefaultDayWindow bounds how far apart two announcements of the same
	// round can land across outlets.
	DefaultDayWindow = 7
)

// amountBucket is the rounding granularity for fingerprints: $100k.
const amountBucket = 100_000

// Outcome is the dedupe verdict for an incoming event.
type Outcome int

const (
	Unique Outcome = iota
	DuplicateKeepExisting
	DuplicateReplace
)

func (o Outcome) String() string {
	switch o {
	case Unique:
		return "unique"
	case DuplicateKeepExisting:
		return "duplicate_keep_existing"
	case DuplicateReplace:
		return "duplicate_replace"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision carries the verdict and, for duplicates, which stored event it
// collided with.
type Decision struct {
	Outcome    Outcome
	ExistingID string
}

// Fingerprint derives the exact-duplicate key for an event: canonical
// company, amount rounded to the nearest $100k, and the ISO week of the
// announcement. Two outlets reporting the same round within a week collide
// here even when their figures differ by rounding.
func Fingerprint(companyID string, amountUSD *float64, announced time.Time) string {
	token := "undisclosed"
	if amountUSD != nil {
		token = fmt.Sprintf("%d", int64(math.Round(*amountUSD/amountBucket)))
	}
	year, week := announced.ISOWeek()
	return fmt.Sprintf("%s|%s|%04d-W%02d", companyID, token, year, week)
}

// Deduper decides whether an incoming event is a new round or another
// report of one already stored.
type Deduper struct {
	gw        store.Gateway
	tolerance float64
	dayWindow int
}

func New(gw store.Gateway, tolerance float64, dayWindow int) *Deduper {
	if tolerance <= 0 {
		tolerance = DefaultAmountTolerance
	}
	if dayWindow <= 0 {
		dayWindow = DefaultDayWindow
	}
	return &Deduper{gw: gw, tolerance: tolerance, dayWindow: dayWindow}
}

// Check runs the fingerprint lookup and then the fuzzy same-company scan.
// The caller holds the commit lock, so the verdict stays valid until the
// event is written.
func (d *Deduper) Check(ctx context.Context, ev *model.FundingEvent) (Decision, error) {
	existing, err := d.gw.FindEventsByFingerprint(ctx, ev.Fingerprint)
	if err != nil {
		return Decision{}, eris.Wrap(err, "dedupe: fingerprint lookup")
	}
	if len(existing) > 0 {
		return d.resolve(ev, &existing[0]), nil
	}

	window := time.Duration(d.dayWindow) * 24 * time.Hour
	since := ev.AnnouncedDate.Add(-window)
	nearby, err := d.gw.ListEventsByCompany(ctx, ev.CompanyID, since)
	if err != nil {
		return Decision{}, eris.Wrap(err, "dedupe: company scan")
	}

	for i := range nearby {
		cand := &nearby[i]
		gap := ev.AnnouncedDate.Sub(cand.AnnouncedDate)
		if gap < 0 {
			gap = -gap
		}
		if gap > window {
			continue
		}
		if !sameAmount(ev.AmountValue, cand.AmountValue, d.tolerance) {
			continue
		}
		return d.resolve(ev, cand), nil
	}

	return Decision{Outcome: Unique}, nil
}

// resolve keeps whichever record carries higher confidence.
func (d *Deduper) resolve(incoming *model.FundingEvent, existing *model.FundingEvent) Decision {
	dec := Decision{Outcome: DuplicateKeepExisting, ExistingID: existing.ID}
	if incoming.Confidence > existing.Confidence {
		dec.Outcome = DuplicateReplace
	}
	zap.L().Debug("duplicate event",
		zap.String("existing_id", existing.ID),
		zap.String("company_id", incoming.CompanyID),
		zap.String("outcome", dec.Outcome.String()),
		zap.Float64("incoming_confidence", incoming.Confidence),
		zap.Float64("existing_confidence", existing.Confidence),
	)
	return dec
}

// sameAmount reports whether two round sizes are within tolerance of each
// other. Two undisclosed amounts match; a disclosed amount never matches an
// undisclosed one.
func sameAmount(a, b *float64, tolerance float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	larger := math.Max(math.Abs(*a), math.Abs(*b))
	if larger == 0 {
		return true
	}
	return math.Abs(*a-*b)/larger <= tolerance
}
