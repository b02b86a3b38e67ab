package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/funding-tracker/internal/model"
)

// SQLiteGateway implements Gateway using modernc.org/sqlite.
type SQLiteGateway struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteGateway{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS articles (
	id           TEXT PRIMARY KEY,
	source_id    TEXT NOT NULL,
	url          TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	published_at DATETIME,
	body_text    TEXT NOT NULL,
	content_hash TEXT NOT NULL UNIQUE,
	processed    INTEGER NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id                TEXT PRIMARY KEY,
	canonical_name    TEXT NOT NULL,
	aliases           TEXT NOT NULL DEFAULT '[]',
	sector            TEXT NOT NULL DEFAULT 'Other',
	sector_confidence REAL NOT NULL DEFAULT 0,
	first_seen_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS investors (
	id             TEXT PRIMARY KEY,
	canonical_name TEXT NOT NULL,
	aliases        TEXT NOT NULL DEFAULT '[]',
	type           TEXT
);

CREATE TABLE IF NOT EXISTS funding_events (
	id                TEXT PRIMARY KEY,
	company_id        TEXT NOT NULL REFERENCES companies(id),
	amount_value      REAL,
	amount_currency   TEXT,
	range_estimate    INTEGER NOT NULL DEFAULT 0,
	stage             TEXT NOT NULL DEFAULT 'Unknown',
	announced_date    DATETIME NOT NULL,
	source_article_id TEXT REFERENCES articles(id),
	confidence        REAL NOT NULL DEFAULT 0,
	fingerprint       TEXT NOT NULL UNIQUE,
	flags             TEXT NOT NULL DEFAULT '[]',
	summary           TEXT,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
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

func (s *SQLiteGateway) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteGateway) Close() error {
	return s.db.Close()
}

func (s *SQLiteGateway) SaveArticle(ctx context.Context, a model.RawArticle) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO articles (id, source_id, url, title, published_at, body_text, content_hash, processed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SourceID, a.URL, a.Title, a.PublishedAt, a.BodyText, a.ContentHash, a.Processed,
	)
	return eris.Wrap(err, "sqlite: save article")
}

func (s *SQLiteGateway) ExistsArticle(ctx context.Context, url, contentHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM articles WHERE url = ? OR content_hash = ?`,
		url, contentHash,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: exists article")
	}
	return n > 0, nil
}

func (s *SQLiteGateway) MarkArticleProcessed(ctx context.Context, articleID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE articles SET processed = 1 WHERE id = ?`,
		articleID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark article processed %s", articleID)
	}
	return checkRowsAffected(res, "article", articleID)
}

func (s *SQLiteGateway) ListUnprocessedArticles(ctx context.Context, limit int) ([]model.RawArticle, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, url, title, published_at, body_text, content_hash, processed
		 FROM articles WHERE processed = 0 ORDER BY published_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unprocessed articles")
	}
	defer rows.Close()

	var articles []model.RawArticle
	for rows.Next() {
		var a model.RawArticle
		var publishedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.SourceID, &a.URL, &a.Title, &publishedAt, &a.BodyText, &a.ContentHash, &a.Processed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan article")
		}
		if publishedAt.Valid {
			a.PublishedAt = publishedAt.Time
		}
		articles = append(articles, a)
	}
	return articles, eris.Wrap(rows.Err(), "sqlite: list unprocessed iterate")
}

func (s *SQLiteGateway) UpsertCompany(ctx context.Context, c model.Company) error {
	aliasJSON, err := json.Marshal(c.Aliases)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal aliases")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, canonical_name, aliases, sector, sector_confidence, first_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   canonical_name = excluded.canonical_name,
		   aliases = excluded.aliases,
		   sector = excluded.sector,
		   sector_confidence = excluded.sector_confidence`,
		c.ID, c.CanonicalName, string(aliasJSON), string(c.Sector), c.SectorConfidence, c.FirstSeenAt,
	)
	return eris.Wrapf(err, "sqlite: upsert company %s", c.ID)
}

func (s *SQLiteGateway) UpdateCompanySector(ctx context.Context, companyID string, sector model.Sector, confidence float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE companies SET sector = ?, sector_confidence = ? WHERE id = ?`,
		string(sector), confidence, companyID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update company sector %s", companyID)
	}
	return checkRowsAffected(res, "company", companyID)
}

func (s *SQLiteGateway) ListCompanies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canonical_name, aliases, sector, sector_confidence, first_seen_at FROM companies`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		var c model.Company
		var aliasJSON string
		if err := rows.Scan(&c.ID, &c.CanonicalName, &aliasJSON, &c.Sector, &c.SectorConfidence, &c.FirstSeenAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		if err := json.Unmarshal([]byte(aliasJSON), &c.Aliases); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal aliases")
		}
		companies = append(companies, c)
	}
	return companies, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteGateway) UpsertInvestor(ctx context.Context, inv model.Investor) error {
	aliasJSON, err := json.Marshal(inv.Aliases)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal aliases")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO investors (id, canonical_name, aliases, type)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   canonical_name = excluded.canonical_name,
		   aliases = excluded.aliases,
		   type = excluded.type`,
		inv.ID, inv.CanonicalName, string(aliasJSON), inv.Type,
	)
	return eris.Wrapf(err, "sqlite: upsert investor %s", inv.ID)
}

func (s *SQLiteGateway) ListInvestors(ctx context.Context) ([]model.Investor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, canonical_name, aliases, COALESCE(type, '') FROM investors`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list investors")
	}
	defer rows.Close()

	var investors []model.Investor
	for rows.Next() {
		var inv model.Investor
		var aliasJSON string
		if err := rows.Scan(&inv.ID, &inv.CanonicalName, &aliasJSON, &inv.Type); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan investor")
		}
		if err := json.Unmarshal([]byte(aliasJSON), &inv.Aliases); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal aliases")
		}
		investors = append(investors, inv)
	}
	return investors, eris.Wrap(rows.Err(), "sqlite: list investors iterate")
}

func (s *SQLiteGateway) InsertFundingEvent(ctx context.Context, ev model.FundingEvent, links []model.InvestorLink) (string, error) {
	flagsJSON, err := json.Marshal(ev.Flags)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: marshal flags")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin insert event")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO funding_events
		 (id, company_id, amount_value, amount_currency, range_estimate, stage, announced_date,
		  source_article_id, confidence, fingerprint, flags, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CompanyID, ev.AmountValue, ev.AmountCurrency, ev.RangeEstimate, string(ev.Stage),
		ev.AnnouncedDate, ev.SourceArticleID, ev.Confidence, ev.Fingerprint, string(flagsJSON),
		ev.Summary, ev.CreatedAt,
	)
	if err != nil {
		if isSQLiteFingerprintConflict(err) {
			return "", ErrDuplicateFingerprint
		}
		return "", eris.Wrap(err, "sqlite: insert event")
	}

	for _, link := range links {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO funding_investors (event_id, investor_id, role) VALUES (?, ?, ?)`,
			ev.ID, link.InvestorID, link.Role,
		); err != nil {
			return "", eris.Wrapf(err, "sqlite: insert investor link %s", link.InvestorID)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", eris.Wrap(err, "sqlite: commit insert event")
	}
	return ev.ID, nil
}

func (s *SQLiteGateway) ReplaceFundingEvent(ctx context.Context, existingID string, ev model.FundingEvent, links []model.InvestorLink) error {
	flagsJSON, err := json.Marshal(ev.Flags)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal flags")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace event")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM funding_events WHERE id = ?`, existingID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete event %s", existingID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO funding_events
		 (id, company_id, amount_value, amount_currency, range_estimate, stage, announced_date,
		  source_article_id, confidence, fingerprint, flags, summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.CompanyID, ev.AmountValue, ev.AmountCurrency, ev.RangeEstimate, string(ev.Stage),
		ev.AnnouncedDate, ev.SourceArticleID, ev.Confidence, ev.Fingerprint, string(flagsJSON),
		ev.Summary, ev.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert replacement event")
	}

	for _, link := range links {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO funding_investors (event_id, investor_id, role) VALUES (?, ?, ?)`,
			ev.ID, link.InvestorID, link.Role,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert investor link %s", link.InvestorID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace event")
}

const sqliteEventColumns = `id, company_id, amount_value, amount_currency, range_estimate, stage,
	announced_date, source_article_id, confidence, fingerprint, flags, summary, created_at`

func (s *SQLiteGateway) FindEventsByFingerprint(ctx context.Context, fingerprint string) ([]model.FundingEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEventColumns+` FROM funding_events WHERE fingerprint = ?`,
		fingerprint,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find events by fingerprint")
	}
	return scanEvents(rows)
}

func (s *SQLiteGateway) ListEventsByCompany(ctx context.Context, companyID string, since time.Time) ([]model.FundingEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEventColumns+` FROM funding_events
		 WHERE company_id = ? AND announced_date >= ?
		 ORDER BY announced_date DESC`,
		companyID, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events by company")
	}
	return scanEvents(rows)
}

func (s *SQLiteGateway) ListRecentEvents(ctx context.Context, limit int) ([]model.FundingEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteEventColumns+` FROM funding_events
		 ORDER BY announced_date DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list recent events")
	}
	return scanEvents(rows)
}

func (s *SQLiteGateway) SearchEvents(ctx context.Context, f EventFilter) ([]model.FundingEvent, error) {
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
	if f.Query != "" {
		pat := "%" + f.Query + "%"
		conds = append(conds, `(c.canonical_name LIKE ? OR c.aliases LIKE ? OR e.summary LIKE ?)`)
		args = append(args, pat, pat, pat)
	}
	if f.Sector != "" {
		conds = append(conds, `c.sector = ?`)
		args = append(args, string(f.Sector))
	}
	if !f.Since.IsZero() {
		conds = append(conds, `e.announced_date >= ?`)
		args = append(args, f.Since)
	}
	if !f.Until.IsZero() {
		conds = append(conds, `e.announced_date <= ?`)
		args = append(args, f.Until)
	}
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY e.announced_date DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search events")
	}
	return scanEvents(rows)
}

func (s *SQLiteGateway) FundingBySector(ctx context.Context) ([]model.SectorFunding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.sector, COUNT(e.id), COALESCE(SUM(e.amount_value), 0)
		 FROM funding_events e
		 JOIN companies c ON c.id = e.company_id
		 GROUP BY c.sector
		 ORDER BY 3 DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: funding by sector")
	}
	defer rows.Close()

	var out []model.SectorFunding
	for rows.Next() {
		var sf model.SectorFunding
		if err := rows.Scan(&sf.Sector, &sf.EventCount, &sf.TotalUSD); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sector funding")
		}
		out = append(out, sf)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: funding by sector iterate")
}

func (s *SQLiteGateway) TopInvestors(ctx context.Context, limit int) ([]model.InvestorActivity, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.canonical_name, COUNT(fi.event_id),
		        SUM(CASE WHEN fi.role = 'lead' THEN 1 ELSE 0 END)
		 FROM investors i
		 JOIN funding_investors fi ON fi.investor_id = i.id
		 GROUP BY i.id, i.canonical_name
		 ORDER BY 3 DESC, 4 DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: top investors")
	}
	defer rows.Close()

	var out []model.InvestorActivity
	for rows.Next() {
		var ia model.InvestorActivity
		if err := rows.Scan(&ia.InvestorID, &ia.CanonicalName, &ia.EventCount, &ia.LeadCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan investor activity")
		}
		out = append(out, ia)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: top investors iterate")
}

// helpers

func isSQLiteFingerprintConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "funding_events.fingerprint")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]model.FundingEvent, error) {
	defer rows.Close()

	var events []model.FundingEvent
	for rows.Next() {
		var ev model.FundingEvent
		var amountValue sql.NullFloat64
		var currency, summary sql.NullString
		var flagsJSON string

		err := rows.Scan(&ev.ID, &ev.CompanyID, &amountValue, &currency, &ev.RangeEstimate, &ev.Stage,
			&ev.AnnouncedDate, &ev.SourceArticleID, &ev.Confidence, &ev.Fingerprint, &flagsJSON,
			&summary, &ev.CreatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		if amountValue.Valid {
			v := amountValue.Float64
			ev.AmountValue = &v
		}
		ev.AmountCurrency = currency.String
		ev.Summary = summary.String
		if err := json.Unmarshal([]byte(flagsJSON), &ev.Flags); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal flags")
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate events")
}
