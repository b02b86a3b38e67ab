package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funding-tracker/internal/model"
)

// newMockPostgresGateway creates a PostgresGateway backed by pgxmock.
func newMockPostgresGateway(t *testing.T) (*PostgresGateway, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresGateway{pool: mock}
	return s, mock
}

func TestPostgresGateway_ExistsArticle(t *testing.T) {
	s, mock := newMockPostgresGateway(t)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM articles`).
		WithArgs("https://example.com/a", "hash-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := s.ExistsArticle(context.Background(), "https://example.com/a", "hash-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_MarkArticleProcessed_NotFound(t *testing.T) {
	s, mock := newMockPostgresGateway(t)

	mock.ExpectExec(`UPDATE articles SET processed = true`).
		WithArgs("missing-id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkArticleProcessed(context.Background(), "missing-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_InsertFundingEvent_DuplicateFingerprint(t *testing.T) {
	s, mock := newMockPostgresGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO funding_events`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "funding_events_fingerprint_key"})
	mock.ExpectRollback()

	amt := 10_000_000.0
	ev := model.FundingEvent{
		ID:            "ev-1",
		CompanyID:     "co-1",
		AmountValue:   &amt,
		Stage:         model.StageSeriesA,
		AnnouncedDate: time.Now().UTC(),
		Fingerprint:   "fp-1",
		CreatedAt:     time.Now().UTC(),
	}
	_, err := s.InsertFundingEvent(context.Background(), ev, nil)
	assert.ErrorIs(t, err, ErrDuplicateFingerprint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_InsertFundingEvent_CommitsLinks(t *testing.T) {
	s, mock := newMockPostgresGateway(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO funding_events`).
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(),
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO funding_investors`).
		WithArgs("ev-1", "inv-1", model.RoleLead).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ev := model.FundingEvent{
		ID:            "ev-1",
		CompanyID:     "co-1",
		Stage:         model.StageSeed,
		AnnouncedDate: time.Now().UTC(),
		Fingerprint:   "fp-2",
		CreatedAt:     time.Now().UTC(),
	}
	links := []model.InvestorLink{{EventID: "ev-1", InvestorID: "inv-1", Role: model.RoleLead}}

	id, err := s.InsertFundingEvent(context.Background(), ev, links)
	require.NoError(t, err)
	assert.Equal(t, "ev-1", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGateway_UpdateCompanySector(t *testing.T) {
	s, mock := newMockPostgresGateway(t)

	mock.ExpectExec(`UPDATE companies SET sector`).
		WithArgs(string(model.SectorGreenHydrogen), 0.85, "co-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateCompanySector(context.Background(), "co-1", model.SectorGreenHydrogen, 0.85)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
