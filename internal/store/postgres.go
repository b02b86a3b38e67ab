package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-tracker/internal/model"
)

// Pool abstracts the pgx pool operations the gateway uses, so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresGateway implements Gateway using pgxpool.
type PostgresGateway struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// the hottest store operations.
var preparedStatements = map[string]string{
	"exists_article": `SELECT COUNT(1) FROM articles WHERE url = $1 OR content_hash = $2`,
	"mark_processed": `UPDATE articles SET processed = true WHERE id = $1`,
	"find_by_fprint": `SELECT id, company_id, amount_value, amount_currency, range_estimate, stage, announced_date, source_article_id, confidence, fingerprint, flags, summary, created_at FROM funding_events WHERE fingerprint = $1`,
	"insert_link":    `INSERT INTO funding_investors (event_id, investor_id, role) VALUES ($1, $2, $3)`,
	"update_sector":  `UPDATE companies SET sector = $1, sector_confidence = $2 WHERE id = $3`,
}

// NewPostgres creates a PostgresGateway with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresGateway, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresGateway{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL,
	url          TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	published_at TIMESTAMPTZ,
	body_text    TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	processed    BOOLEAN NOT NULL DEFAULT false,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id                TEXT PRIMARY KEY,
	canonical_name    TEXT NOT NULL,
	aliases           JSONB NOT NULL DEFAULT '[]',
	sector            TEXT NOT NULL DEFAULT 'Other',
	sector_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	first_seen_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS investors (
	id             TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	aliases        JSONB NOT NULL DEFAULT '[]',
	type           TEXT
);

CREATE TABLE IF NOT EXISTS funding_events (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL REFERENCES companies(id),
	amount_value      DOUBLE PRECISION,
	amount_currency   TEXT,
	range_estimate    BOOLEAN NOT NULL DEFAULT false,
	stage             TEXT NOT NULL DEFAULT 'Unknown',
	announced_date    TIMESTAMPTZ NOT NULL,
	source_article_id TEXT REFERENCES articles(id),
	confidence        DOUBLE PRECISION NOT NULL DEFAULT 0,
	fingerprint       TEXT NOT NULL UNIQUE,
	flags             JSONB NOT NULL DEFAULT '[]',
	summary           TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS funding_investors (
	event_id    TEXT NOT NULL REFERENCES funding_events(id) ON DELETE CASCADE,
	investor_id TEXT NOT NULL REFERENCES investors(id),
	role        TEXT NOT NULL DEFAULT 'participant',
	PRIMARY KEY (event_id, investor_id)
);

CREATE INDEX IF NOT EXISTS idx_articles_processed ON articles(processed);
CREATE INDEX IF NOT EXISTS idx_events_company ON funding_events(company_id);
CREATE INDEX IF NOT EXISTS idx_events_announced ON funding_events(announced_date);
CREATE INDEX IF NOT EXISTS idx_funding_investors_investor ON funding_investors(investor_id);
`

func (s *PostgresGateway) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresGateway) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresGateway) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresGateway) SaveArticle(ctx context.Context, a model.RawArticle) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO articles (id, source_id, url, title, published_at, body_text, content_hash, processed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (url) DO NOTHING`,
		a.ID, a.SourceID, a.URL, a.Title, a.PublishedAt, a.BodyText, a.ContentHash, a.Processed,
	)
	return eris.Wrap(err, "postgres: save article")
}

func (s *PostgresGateway) ExistsArticle(ctx context.Context, url, contentHash string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(1) FROM articles WHERE url = $1 OR content_hash = $2`,
		url, contentHash,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "postgres: exists article")
	}
	return n > 0, nil
}

func (s *PostgresGateway) MarkArticleProcessed(ctx context.Context, articleID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE articles SET processed = true WHERE id = $1`,
		articleID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark article processed %s", articleID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("article not found: %s", articleID)
	}
	return nil
}

func (s *PostgresGateway) ListUnprocessedArticles(ctx context.Context, limit int) ([]model.RawArticle, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, url, title, published_at, body_text, content_hash, processed
		 FROM articles WHERE processed = false ORDER BY published_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unprocessed articles")
	}
	defer rows.Close()

	var articles []model.RawArticle
	for rows.Next() {
		var a model.RawArticle
		var publishedAt *time.Time
		if err := rows.Scan(&a.ID, &a.SourceID, &a.URL, &a.Title, &publishedAt, &a.BodyText, &a.ContentHash, &a.Processed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan article")
		}
		if publishedAt != nil {
			a.PublishedAt = *publishedAt
		}
		articles = append(articles, a)
	}
	return articles, eris.Wrap(rows.Err(), "postgres: list unprocessed iterate")
}

func (s *PostgresGateway) UpsertCompany(ctx context.Context, c model.Company) error {
	aliasJSON, err := json.Marshal(c.Aliases)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal aliases")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO companies (id, canonical_name, aliases, sector, sector_confidence, first_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   canonical_name = $2, aliases = $3, sector = $4, sector_confidence = $5`,
		c.ID, c.CanonicalName, aliasJSON, string(c.Sector), c.SectorConfidence, c.FirstSeenAt,
	)
	return eris.Wrapf(err, "postgres: upsert company %s", c.ID)
}

func (s *PostgresGateway) UpdateCompanySector(ctx context.Context, companyID string, sector model.Sector, confidence float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE companies SET sector = $1, sector_confidence = $2 WHERE id = $3`,
		string(sector), confidence, companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update company sector %s", companyID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %s", companyID)
	}
	return nil
}

func (s *PostgresGateway) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, canonical_name, aliases, sector, sector_confidence, first_seen_at FROM companies`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var aliasJSON []byte
		if err := rows.Scan(&c.ID, &c.CanonicalName, &aliasJSON, &c.Sector, &c.SectorConfidence, &c.FirstSeenAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		if err := json.Unmarshal(aliasJSON, &c.Aliases); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal aliases")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresGateway) UpsertInvestor(ctx context.Context, inv model.Investor) error {
	aliasJSON, err := json.Marshal(inv.Aliases)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal aliases")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO investors (id, canonical_name, aliases, type)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   canonical_name = $2, aliases = $3, type = $4`,
		inv.ID, inv.CanonicalName, aliasJSON, inv.Type,
	)
	return eris.Wrapf(err, "postgres: upsert investor %s", inv.ID)
}

func (s *PostgresGateway) ListInvestors(ctx context.Context) ([]model.Investor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, canonical_name, aliases, COALESCE(type, '') FROM investors`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list investors")
	}
	defer rows.Close()

	var investors []model.Investor
	for rows.Next() {
		var inv model.Investor
		var aliasJSON []byte
		if err := rows.Scan(&inv.ID, &inv.CanonicalName, &aliasJSON, &inv.Type); err != nil {
			return nil, eris.Wrap(err, "postgres: scan investor")
		}
		if err := json.Unmarshal(aliasJSON, &inv.Aliases); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal aliases")
		}
		investors = append(investors, inv)
	}
	return investors, eris.Wrap(rows.Err(), "postgres: list investors iterate")
}

const pgEventColumns = `id, company_id, amount_value, amount_currency, range_estimate, stage,
	announced_date, source_article_id, confidence, fingerprint, flags, summary, created_at`

func (s *PostgresGateway) InsertFundingEvent(ctx context.Context, ev model.FundingEvent, links []model.InvestorLink) (string, error) {
	flagsJSON, err := json.Marshal(ev.Flags)
	if err != nil {
		return "", eris.Wrap(err, "postgres: marshal flags")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", eris.Wrap(err, "postgres: begin insert event")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO funding_events
		 (id, company_id, amount_value, amount_currency, range_estimate, stage, announced_date,
		  source_article_id, confidence, fingerprint, flags, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.ID, ev.CompanyID, ev.AmountValue, ev.AmountCurrency, ev.RangeEstimate, string(ev.Stage),
		ev.AnnouncedDate, ev.SourceArticleID, ev.Confidence, ev.Fingerprint, flagsJSON,
		ev.Summary, ev.CreatedAt,
	)
	if err != nil {
		if isPgFingerprintConflict(err) {
			return "", ErrDuplicateFingerprint
		}
		return "", eris.Wrap(err, "postgres: insert event")
	}

	for _, link := range links {
		if _, err := tx.Exec(ctx,
			`INSERT INTO funding_investors (event_id, investor_id, role) VALUES ($1, $2, $3)`,
			ev.ID, link.InvestorID, link.Role,
		); err != nil {
			return "", eris.Wrapf(err, "postgres: insert investor link %s", link.InvestorID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", eris.Wrap(err, "postgres: commit insert event")
	}
	return ev.ID, nil
}

func (s *PostgresGateway) ReplaceFundingEvent(ctx context.Context, existingID string, ev model.FundingEvent, links []model.InvestorLink) error {
	flagsJSON, err := json.Marshal(ev.Flags)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal flags")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace event")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM funding_events WHERE id = $1`, existingID,
	); err != nil {
		return eris.Wrapf(err, "postgres: delete event %s", existingID)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO funding_events
		 (id, company_id, amount_value, amount_currency, range_estimate, stage, announced_date,
		  source_article_id, confidence, fingerprint, flags, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.ID, ev.CompanyID, ev.AmountValue, ev.AmountCurrency, ev.RangeEstimate, string(ev.Stage),
		ev.AnnouncedDate, ev.SourceArticleID, ev.Confidence, ev.Fingerprint, flagsJSON,
		ev.Summary, ev.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert replacement event")
	}

	for _, link := range links {
		if _, err := tx.Exec(ctx,
			`INSERT INTO funding_investors (event_id, investor_id, role) VALUES ($1, $2, $3)`,
			ev.ID, link.InvestorID, link.Role,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert investor link %s", link.InvestorID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace event")
}

func (s *PostgresGateway) FindEventsByFingerprint(ctx context.Context, fingerprint string) ([]model.FundingEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM funding_events WHERE fingerprint = $1`,
		fingerprint,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find events by fingerprint")
	}
	return scanPgEvents(rows)
}

func (s *PostgresGateway) ListEventsByCompany(ctx context.Context, companyID string, since time.Time) ([]model.FundingEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM funding_events
		 WHERE company_id = $1 AND announced_date >= $2
		 ORDER BY announced_date DESC`,
		companyID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events by company")
	}
	return scanPgEvents(rows)
}

func (s *PostgresGateway) ListRecentEvents(ctx context.Context, limit int) ([]model.FundingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgEventColumns+` FROM funding_events
		 ORDER BY announced_date DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list recent events")
	}
	return scanPgEvents(rows)
}

func (s *PostgresGateway) SearchEvents(ctx context.Context, f EventFilter) ([]model.FundingEvent, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT e.id, e.company_id, e.amount_value, e.amount_currency, e.range_estimate, e.stage,
		e.announced_date, e.source_article_id, e.confidence, e.fingerprint, e.flags, e.summary, e.created_at
	 FROM funding_events e
	 JOIN companies c ON c.id = e.company_id`

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Query != "" {
		pat := "%" + f.Query + "%"
		p := arg(pat)
		conds = append(conds, `(c.canonical_name ILIKE `+p+` OR c.aliases::text ILIKE `+p+` OR e.summary ILIKE `+p+`)`)
	}
	if f.Sector != "" {
		conds = append(conds, `c.sector = `+arg(string(f.Sector)))
	}
	if !f.Since.IsZero() {
		conds = append(conds, `e.announced_date >= `+arg(f.Since))
	}
	if !f.Until.IsZero() {
		conds = append(conds, `e.announced_date <= `+arg(f.Until))
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY e.announced_date DESC LIMIT ` + arg(limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search events")
	}
	return scanPgEvents(rows)
}

func (s *PostgresGateway) FundingBySector(ctx context.Context) ([]model.SectorFunding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.sector, COUNT(e.id), COALESCE(SUM(e.amount_value), 0)
		 FROM funding_events e
		 JOIN companies c ON c.id = e.company_id
		 GROUP BY c.sector
		 ORDER BY 3 DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: funding by sector")
	}
	defer rows.Close()

	var out []model.SectorFunding
	for rows.Next() {
		var sf model.SectorFunding
		if err := rows.Scan(&sf.Sector, &sf.EventCount, &sf.TotalUSD); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sector funding")
		}
		out = append(out, sf)
	}
	return out, eris.Wrap(rows.Err(), "postgres: funding by sector iterate")
}

func (s *PostgresGateway) TopInvestors(ctx context.Context, limit int) ([]model.InvestorActivity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT i.id, i.canonical_name, COUNT(fi.event_id),
		        SUM(CASE WHEN fi.role = 'lead' THEN 1 ELSE 0 END)
		 FROM investors i
		 JOIN funding_investors fi ON fi.investor_id = i.id
		 GROUP BY i.id, i.canonical_name
		 ORDER BY 3 DESC, 4 DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: top investors")
	}
	defer rows.Close()

	var out []model.InvestorActivity
	for rows.Next() {
		var ia model.InvestorActivity
		if err := rows.Scan(&ia.InvestorID, &ia.CanonicalName, &ia.EventCount, &ia.LeadCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan investor activity")
		}
		out = append(out, ia)
	}
	return out, eris.Wrap(rows.Err(), "postgres: top investors iterate")
}

func isPgFingerprintConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "funding_events_fingerprint_key"
	}
	return false
}

func scanPgEvents(rows pgx.Rows) ([]model.FundingEvent, error) {
	defer rows.Close()

	var events []model.FundingEvent
	for rows.Next() {
		var ev model.FundingEvent
		var currency, summary *string
		var flagsJSON []byte

		err := rows.Scan(&ev.ID, &ev.CompanyID, &ev.AmountValue, &currency, &ev.RangeEstimate, &ev.Stage,
			&ev.AnnouncedDate, &ev.SourceArticleID, &ev.Confidence, &ev.Fingerprint, &flagsJSON,
			&summary, &ev.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		if currency != nil {
			ev.AmountCurrency = *currency
		}
		if summary != nil {
			ev.Summary = *summary
		}
		if err := json.Unmarshal(flagsJSON, &ev.Flags); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal flags")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: iterate events")
}
