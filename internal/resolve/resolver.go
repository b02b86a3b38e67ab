// Package resolve maps raw entity names from articles onto canonical
// companies and investors in the knowledge base.
package resolve

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/store"
)

// DefaultSimilarityThreshold is the minimum normalized Levenshtein ratio for
// a fuzzy alias match. A false merge corrupts two companies' histories while
// a false split only costs a duplicate row, so the threshold errs high.
const DefaultSimilarityThreshold = 0.90

type companyEntry struct {
	company model.Company
	aliases []string // normalized forms, canonical name included
}

type investorEntry struct {
	investor model.Investor
	aliases  []string
}

// Resolver resolves raw names against an in-memory view of the knowledge
// base, persisting new entities and learned aliases through the gateway.
// All resolution runs under a single writer lock so entities created earlier
// in a run are visible to every later call.
type Resolver struct {
	mu        sync.Mutex
	gw        store.Gateway
	threshold float64
	companies []*companyEntry
	investors []*investorEntry
}

// NewResolver loads existing companies and investors into memory and applies
// the configured investor alias seeds.
func NewResolver(ctx context.Context, gw store.Gateway, threshold float64, seeds map[string][]string) (*Resolver, error) {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	r := &Resolver{gw: gw, threshold: threshold}

	companies, err := gw.ListCompanies(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: load companies")
	}
	for _, c := range companies {
		r.companies = append(r.companies, newCompanyEntry(c))
	}

	investors, err := gw.ListInvestors(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: load investors")
	}
	for _, inv := range investors {
		r.investors = append(r.investors, newInvestorEntry(inv))
	}

	if err := r.seedInvestors(ctx, seeds); err != nil {
		return nil, err
	}
	return r, nil
}

func newCompanyEntry(c model.Company) *companyEntry {
	e := &companyEntry{company: c, aliases: []string{NormalizeName(c.CanonicalName)}}
	for _, a := range c.Aliases {
		e.aliases = append(e.aliases, NormalizeName(a))
	}
	return e
}

func newInvestorEntry(inv model.Investor) *investorEntry {
	e := &investorEntry{investor: inv, aliases: []string{NormalizeName(inv.CanonicalName)}}
	for _, a := range inv.Aliases {
		e.aliases = append(e.aliases, NormalizeName(a))
	}
	return e
}

// seedInvestors ensures well-known firms and their shorthand aliases exist
// before any article resolution runs.
func (r *Resolver) seedInvestors(ctx context.Context, seeds map[string][]string) error {
	for canonical, aliases := range seeds {
		norm := NormalizeName(canonical)
		if r.findInvestorExact(norm) != nil {
			continue
		}
		inv := model.Investor{
			ID:            model.NewID(),
			CanonicalName: canonical,
			Aliases:       aliases,
		}
		if err := r.gw.UpsertInvestor(ctx, inv); err != nil {
			return eris.Wrapf(err, "resolve: seed investor %s", canonical)
		}
		r.investors = append(r.investors, newInvestorEntry(inv))
	}
	return nil
}

// ResolveCompany returns the canonical company ID for a raw name, creating a
// new company when nothing matches. The second return reports creation.
func (r *Resolver) ResolveCompany(ctx context.Context, raw string) (string, bool, error) {
	norm := NormalizeName(raw)
	if norm == "" {
		return "", false, eris.New("resolve: empty company name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.companies {
		for _, alias := range e.aliases {
			if alias == norm {
				return e.company.ID, false, nil
			}
		}
	}

	if e := r.bestCompanyMatch(norm); e != nil {
		e.company.Aliases = append(e.company.Aliases, raw)
		e.aliases = append(e.aliases, norm)
		if err := r.gw.UpsertCompany(ctx, e.company); err != nil {
			return "", false, eris.Wrapf(err, "resolve: learn company alias %s", raw)
		}
		zap.L().Debug("resolve: learned company alias",
			zap.String("alias", raw),
			zap.String("canonical", e.company.CanonicalName),
		)
		return e.company.ID, false, nil
	}

	company := model.Company{
		ID:            model.NewID(),
		CanonicalName: strings.TrimSpace(raw),
		Aliases:       []string{raw},
		Sector:        model.SectorOther,
		FirstSeenAt:   time.Now().UTC(),
	}
	if err := r.gw.UpsertCompany(ctx, company); err != nil {
		return "", false, eris.Wrapf(err, "resolve: create company %s", raw)
	}
	r.companies = append(r.companies, newCompanyEntry(company))
	return company.ID, true, nil
}

// ResolveInvestor returns the canonical investor ID for a raw name, creating
// one with the given type when nothing matches.
func (r *Resolver) ResolveInvestor(ctx context.Context, raw, typ string) (string, bool, error) {
	norm := NormalizeName(raw)
	if norm == "" {
		return "", false, eris.New("resolve: empty investor name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e := r.findInvestorExact(norm); e != nil {
		return e.investor.ID, false, nil
	}

	if e := r.bestInvestorMatch(norm); e != nil {
		e.investor.Aliases = append(e.investor.Aliases, raw)
		e.aliases = append(e.aliases, norm)
		if err := r.gw.UpsertInvestor(ctx, e.investor); err != nil {
			return "", false, eris.Wrapf(err, "resolve: learn investor alias %s", raw)
		}
		return e.investor.ID, false, nil
	}

	investor := model.Investor{
		ID:            model.NewID(),
		CanonicalName: strings.TrimSpace(raw),
		Aliases:       []string{raw},
		Type:          typ,
	}
	if err := r.gw.UpsertInvestor(ctx, investor); err != nil {
		return "", false, eris.Wrapf(err, "resolve: create investor %s", raw)
	}
	r.investors = append(r.investors, newInvestorEntry(investor))
	return investor.ID, true, nil
}

// ShouldReviseSector reports whether a fresh classification is confident
// enough to overwrite the company's stored sector.
func (r *Resolver) ShouldReviseSector(companyID string, confidence float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.companies {
		if e.company.ID == companyID {
			return confidence > e.company.SectorConfidence
		}
	}
	return false
}

// NoteSector records a committed sector update in the in-memory view.
func (r *Resolver) NoteSector(companyID string, sector model.Sector, confidence float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.companies {
		if e.company.ID == companyID {
			e.company.Sector = sector
			e.company.SectorConfidence = confidence
			return
		}
	}
}

func (r *Resolver) findInvestorExact(norm string) *investorEntry {
	for _, e := range r.investors {
		for _, alias := range e.aliases {
			if alias == norm {
				return e
			}
		}
	}
	return nil
}

func (r *Resolver) bestCompanyMatch(norm string) *companyEntry {
	var best *companyEntry
	bestRatio := r.threshold
	for _, e := range r.companies {
		for _, alias := range e.aliases {
			if ratio := Similarity(norm, alias); ratio >= bestRatio {
				best = e
				bestRatio = ratio
			}
		}
	}
	return best
}

func (r *Resolver) bestInvestorMatch(norm string) *investorEntry {
	var best *investorEntry
	bestRatio := r.threshold
	for _, e := range r.investors {
		for _, alias := range e.aliases {
			if ratio := Similarity(norm, alias); ratio >= bestRatio {
				best = e
				bestRatio = ratio
			}
		}
	}
	return best
}

// Similarity returns a normalized Levenshtein ratio in [0, 1]: 1 for equal
// strings, 0 for entirely different ones.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
