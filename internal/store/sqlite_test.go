package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-tracker/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteGateway {
	t.Helper()
	gw, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, gw.Migrate(context.Background()))
	t.Cleanup(func() { gw.Close() })
	return gw
}

func testArticle(url string) model.RawArticle {
	return model.NewRawArticle("feed-1", url, "Acme raises $10M", "Acme Corp raises $10M Series A.", time.Now())
}

func testCompany() model.Company {
	return model.Company{
		ID:            uuid.New().String(),
		CanonicalName: "Acme Corp",
		Aliases:       []string{"Acme Corp"},
		Sector:        model.SectorCleanEnergy,
		FirstSeenAt:   time.Now().UTC(),
	}
}

func testEvent(companyID, articleID, fingerprint string) model.FundingEvent {
	amt := 10_000_000.0
	return model.FundingEvent{
		ID:              uuid.New().String(),
		CompanyID:       companyID,
		AmountValue:     &amt,
		AmountCurrency:  "USD",
		Stage:           model.StageSeriesA,
		AnnouncedDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		SourceArticleID: articleID,
		Confidence:      0.75,
		Fingerprint:     fingerprint,
		CreatedAt:       time.Now().UTC(),
	}
}

func TestSQLiteGateway_ArticleLifecycle(t *testing.T) {
	gw := newTestSQLite(t)
	ctx := context.Background()

	a := testArticle("https://example.com/acme")
	require.NoError(t, gw.SaveArticle(ctx, a))

	exists, err := gw.ExistsArticle(ctx, a.URL, "nope")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = gw.ExistsArticle(ctx, "https://other.example.com", a.ContentHash)
	require.NoError(t, err)
	assert.True(t, exists, "content hash alone should match")

	unprocessed, err := gw.ListUnprocessedArticles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unprocessed, 1)
	assert.Equal(t, a.ID, unprocessed[0].ID)

	require.NoError(t, gw.MarkArticleProcessed(ctx, a.ID))

	unprocessed, err = gw.ListUnprocessedArticles(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestSQLiteGateway_SaveArticle_DuplicateURLIgnored(t *testing.T) {
	gw := newTestSQLite(t)
	ctx := context.Background()

	a := testArticle("https://example.com/acme")
	require.NoError(t, gw.SaveArticle(ctx, a))

	b := testArticle("https://example.com/acme")
	require.NoError(t, gw.SaveArticle(ctx, b))

	unprocessed, err := gw.ListUnprocessedArticles(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unprocessed, 1)
}

func TestSQLiteGateway_MarkArticleProcessed_NotFound(t *testing.T) {
	gw := newTestSQLite(t)
	err := gw.MarkArticleProcessed(context.Background(), "missing-id")
	assert.Error(t, err)
}

func TestSQLiteGateway_CompanyUpsertAndSectorUpdate(t *testing.T) {
	gw := newTestSQLite(t)
	ctx := context.Background()

	c := testCompany()
	require.NoError(t, gw.UpsertCompany(ctx, c))

	c.Aliases = append(c.Aliases, "Acme")
	require.NoError(t, gw.UpsertCompany(ctx, c))

	companies, err := gw.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, []string{"Acme Corp", "Acme"}, companies[0].Aliases)

	require.NoError(t, gw.UpdateCompanySector(ctx, c.ID, model.SectorSmartGrid, 0.9))

	companies, err = gw.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.SectorSmartGrid, companies[0].Sector)
	assert.Equal(t, 0.9, companies[0].SectorConfidence)
}

func TestSQLiteGateway_InsertFundingEvent_DuplicateFingerprint(t *testing.T) {
	gw := newTestSQLite(t)
	ctx := context.Background()

	a := testArticle("https://example.com/acme")
	require.NoError(t, gw.SaveArticle(ctx, a))
	c := testCompany()
	require.NoError(t, gw.UpsertCompany(ctx, c))

	ev := testEvent(c.ID, a.ID, "fp-1")
	_, err := gw.InsertFundingEvent(ctx, ev, nil)
	require.NoError(t, err)

	dup := testEvent(c.ID, a.ID, "fp-1")
	_, err = gw.InsertFundingEvent(ctx, dup, nil)
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)
}

func TestSQLiteGateway_ReplaceFundingEvent(t *testing.T) {
	gw := newTestSQLite(t)
	ctx := context.Background()

	a := testArticle("https://example.com/acme")
	require.NoError(t, gw.SaveArticle(ctx, a))
	c := testCompany()
	require.NoError(t, gw.UpsertCompany(ctx, c))

	inv := model.Investor{ID: uuid.New().String(), CanonicalName: "Greenline Ventures", Aliases: []string{"Greenline Ventures"}}
	require.NoError(t, gw.UpsertInvestor(ctx, inv))

	old := testEvent(c.ID, a.ID, "fp-1")
	old.Confidence = 0.5
	_, err := gw.InsertFundingEvent(ctx, old, nil)
	require.NoError(t, err)

	repl := testEvent(c.ID, a.ID, "fp-1")
	repl.Confidence = 0.9
	links := []model.InvestorLink{{EventID: repl.ID, InvestorID: inv.ID, Role: model.RoleLead}}
	require.NoError(t, gw.ReplaceFundingEvent(ctx, old.ID, repl, links))

	events, err := gw.FindEventsByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, repl.ID, events[0].ID)
	assert.Equal(t, 0.9, events[0].Confidence)

	top, err := gw.TopInvestors(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "Greenline Ventures", top[0].CanonicalName)
	assert.Equal(t, 1, top[0].LeadCount)
}

func TestSQLiteGateway_EventQueriesAndAnalytics(t *testing.T) {
	gw := newTestSQLite(t)
	ctx := context.Background()

	a := testArticle("https://example.com/acme")
	require.NoError(t, gw.SaveArticle(ctx, a))
	c := testCompany()
	require.NoError(t, gw.UpsertCompany(ctx, c))

	ev1 := testEvent(c.ID, a.ID, "fp-1")
	_, err := gw.InsertFundingEvent(ctx, ev1, nil)
	require.NoError(t, err)

	ev2 := testEvent(c.ID, a.ID, "fp-2")
	ev2.AnnouncedDate = ev1.AnnouncedDate.AddDate(0, -6, 0)
	_, err = gw.InsertFundingEvent(ctx, ev2, nil)
	require.NoError(t, err)

	recent, err := gw.ListRecentEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ev1.ID, recent[0].ID, "newest first")

	since := ev1.AnnouncedDate.AddDate(0, 0, -30)
	windowed, err := gw.ListEventsByCompany(ctx, c.ID, since)
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, ev1.ID, windowed[0].ID)

	bySector, err := gw.FundingBySector(ctx)
	require.NoError(t, err)
	require.Len(t, bySector, 1)
	assert.Equal(t, model.SectorCleanEnergy, bySector[0].Sector)
	assert.Equal(t, 2, bySector[0].EventCount)
	assert.Equal(t, 20_000_000.0, bySector[0].TotalUSD)
}

func TestSQLiteGateway_SearchEvents(t *testing.T) {
	gw := newTestSQLite(t)
	ctx := context.Background()

	a := testArticle("https://example.com/acme")
	require.NoError(t, gw.SaveArticle(ctx, a))

	acme := testCompany()
	require.NoError(t, gw.UpsertCompany(ctx, acme))

	volt := model.Company{
		ID:            uuid.New().String(),
		CanonicalName: "Voltaic Systems",
		Aliases:       []string{"Voltaic Systems", "Voltaic"},
		Sector:        model.SectorSmartGrid,
		FirstSeenAt:   time.Now().UTC(),
	}
	require.NoError(t, gw.UpsertCompany(ctx, volt))

	ev1 := testEvent(acme.ID, a.ID, "fp-1")
	ev1.Summary = "Acme Corp raises $10M Series A for battery recycling"
	_, err := gw.InsertFundingEvent(ctx, ev1, nil)
	require.NoError(t, err)

	ev2 := testEvent(volt.ID, a.ID, "fp-2")
	ev2.AnnouncedDate = ev1.AnnouncedDate.AddDate(0, -6, 0)
	ev2.Summary = "Voltaic Systems closes seed round"
	_, err = gw.InsertFundingEvent(ctx, ev2, nil)
	require.NoError(t, err)

	byName, err := gw.SearchEvents(ctx, EventFilter{Query: "voltaic"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, ev2.ID, byName[0].ID)

	bySummary, err := gw.SearchEvents(ctx, EventFilter{Query: "battery recycling"})
	require.NoError(t, err)
	require.Len(t, bySummary, 1)
	assert.Equal(t, ev1.ID, bySummary[0].ID)

	bySector, err := gw.SearchEvents(ctx, EventFilter{Sector: model.SectorSmartGrid})
	require.NoError(t, err)
	require.Len(t, bySector, 1)
	assert.Equal(t, ev2.ID, bySector[0].ID)

	windowed, err := gw.SearchEvents(ctx, EventFilter{
		Since: ev1.AnnouncedDate.AddDate(0, 0, -30),
		Until: ev1.AnnouncedDate.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, ev1.ID, windowed[0].ID)

	all, err := gw.SearchEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ev1.ID, all[0].ID, "newest first")

	limited, err := gw.SearchEvents(ctx, EventFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	none, err := gw.SearchEvents(ctx, EventFilter{Query: "hydrogen"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
