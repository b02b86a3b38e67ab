package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-tracker/internal/model"
	"github.com/sells-group/funding-tracker/internal/store"
)

func newServeGateway(t *testing.T) store.Gateway {
	t.Helper()
	gw, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, gw.Migrate(context.Background()))
	t.Cleanup(func() { gw.Close() })
	return gw
}

func TestRouter_Health(t *testing.T) {
	srv := httptest.NewServer(newRouter(newServeGateway(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_EventsEmpty(t *testing.T) {
	srv := httptest.NewServer(newRouter(newServeGateway(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var events []model.FundingEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	assert.Empty(t, events)
}

func TestRouter_EventsReturnsCommitted(t *testing.T) {
	gw := newServeGateway(t)
	ctx := context.Background()

	company := model.Company{
		ID:            model.NewID(),
		CanonicalName: "Acme Corp",
		Sector:        model.SectorCleanEnergy,
		FirstSeenAt:   time.Now().UTC(),
	}
	require.NoError(t, gw.UpsertCompany(ctx, company))

	amount := 10_000_000.0
	ev := model.FundingEvent{
		ID:             model.NewID(),
		CompanyID:      company.ID,
		AmountValue:    &amount,
		AmountCurrency: "USD",
		Stage:          model.StageSeriesA,
		AnnouncedDate:  time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		Confidence:     1.0,
		Fingerprint:    "acme|100|2026-W10",
		CreatedAt:      time.Now().UTC(),
	}
	_, err := gw.InsertFundingEvent(ctx, ev, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(gw))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()

	var events []model.FundingEvent
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 1)
	assert.Equal(t, ev.ID, events[0].ID)
	assert.Equal(t, model.StageSeriesA, events[0].Stage)
}

func TestRouter_SectorAnalytics(t *testing.T) {
	srv := httptest.NewServer(newRouter(newServeGateway(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/analytics/sectors")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestQueryLimit(t *testing.T) {
	mk := func(q string) *http.Request {
		return httptest.NewRequest(http.MethodGet, "/events"+q, nil)
	}

	assert.Equal(t, 50, queryLimit(mk(""), 50))
	assert.Equal(t, 5, queryLimit(mk("?limit=5"), 50))
	assert.Equal(t, 50, queryLimit(mk("?limit=abc"), 50))
	assert.Equal(t, 50, queryLimit(mk("?limit=-1"), 50))
}

func TestRouter_EventsSearch(t *testing.T) {
	gw := newServeGateway(t)
	ctx := context.Background()

	acme := model.Company{
		ID:            model.NewID(),
		CanonicalName: "Acme Corp",
		Sector:        model.SectorCleanEnergy,
		FirstSeenAt:   time.Now().UTC(),
	}
	require.NoError(t, gw.UpsertCompany(ctx, acme))

	volt := model.Company{
		ID:            model.NewID(),
		CanonicalName: "Voltaic Systems",
		Sector:        model.SectorSmartGrid,
		FirstSeenAt:   time.Now().UTC(),
	}
	require.NoError(t, gw.UpsertCompany(ctx, volt))

	amount := 10_000_000.0
	mkEvent := func(companyID, fingerprint string, announced time.Time) model.FundingEvent {
		return model.FundingEvent{
			ID:             model.NewID(),
			CompanyID:      companyID,
			AmountValue:    &amount,
			AmountCurrency: "USD",
			Stage:          model.StageSeriesA,
			AnnouncedDate:  announced,
			Confidence:     1.0,
			Fingerprint:    fingerprint,
			CreatedAt:      time.Now().UTC(),
		}
	}

	ev1 := mkEvent(acme.ID, "fp-1", time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC))
	_, err := gw.InsertFundingEvent(ctx, ev1, nil)
	require.NoError(t, err)

	ev2 := mkEvent(volt.ID, "fp-2", time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC))
	_, err = gw.InsertFundingEvent(ctx, ev2, nil)
	require.NoError(t, err)

	srv := httptest.NewServer(newRouter(gw))
	defer srv.Close()

	get := func(q string) []model.FundingEvent {
		t.Helper()
		resp, err := http.Get(srv.URL + "/events" + q)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var events []model.FundingEvent
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
		return events
	}

	byQuery := get("?q=voltaic")
	require.Len(t, byQuery, 1)
	assert.Equal(t, ev2.ID, byQuery[0].ID)

	bySector := get("?sector=clean+energy")
	require.Len(t, bySector, 1)
	assert.Equal(t, ev1.ID, bySector[0].ID)

	windowed := get("?since=2026-02-01&until=2026-04-01")
	require.Len(t, windowed, 1)
	assert.Equal(t, ev1.ID, windowed[0].ID)

	all := get("")
	assert.Len(t, all, 2)
}

func TestRouter_EventsSearchRejectsBadParams(t *testing.T) {
	srv := httptest.NewServer(newRouter(newServeGateway(t)))
	defer srv.Close()

	for _, q := range []string{"?sector=blockchain", "?since=March+2026"} {
		resp, err := http.Get(srv.URL + "/events" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}
