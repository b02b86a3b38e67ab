// Package store persists articles, canonical entities, and funding events
// behind a driver-agnostic gateway.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-tracker/internal/model"
)

// ErrDuplicateFingerprint is returned by InsertFundingEvent when an event
// with the same fingerprint already exists.
var ErrDuplicateFingerprint = eris.New("store: duplicate fingerprint")

// EventFilter narrows SearchEvents. Zero-valued fields are not applied.
type EventFilter struct {
	// Query matches company names, aliases, and event summaries as a
	// case-insensitive substring.
	Query  string
	Sector model.Sector
	Since  time.Time
	Until  time.Time
	Limit  int
}

// Gateway defines the persistence interface for the funding pipeline.
type Gateway interface {
	// Articles
	SaveArticle(ctx context.Context, article model.RawArticle) error
	ExistsArticle(ctx context.Context, url, contentHash string) (bool, error)
	MarkArticleProcessed(ctx context.Context, articleID string) error
	ListUnprocessedArticles(ctx context.Context, limit int) ([]model.RawArticle, error)

	// Companies
	UpsertCompany(ctx context.Context, company model.Company) error
	UpdateCompanySector(ctx context.Context, companyID string, sector model.Sector, confidence float64) error
	ListCompanies(ctx context.Context) ([]model.Company, error)

	// Investors
	UpsertInvestor(ctx context.Context, investor model.Investor) error
	ListInvestors(ctx context.Context) ([]model.Investor, error)

	// Funding events. InsertFundingEvent writes the event and its investor
	// links in one transaction and returns ErrDuplicateFingerprint on a
	// fingerprint conflict.
	InsertFundingEvent(ctx context.Context, ev model.FundingEvent, links []model.InvestorLink) (string, error)
	ReplaceFundingEvent(ctx context.Context, existingID string, ev model.FundingEvent, links []model.InvestorLink) error
	FindEventsByFingerprint(ctx context.Context, fingerprint string) ([]model.FundingEvent, error)
	ListEventsByCompany(ctx context.Context, companyID string, since time.Time) ([]model.FundingEvent, error)
	ListRecentEvents(ctx context.Context, limit int) ([]model.FundingEvent, error)
	SearchEvents(ctx context.Context, filter EventFilter) ([]model.FundingEvent, error)

	// Analytics
	FundingBySector(ctx context.Context) ([]model.SectorFunding, error)
	TopInvestors(ctx context.Context, limit int) ([]model.InvestorActivity, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
