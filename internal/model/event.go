package model

import "time"

// Company is a canonical entity in the knowledge base. Aliases hold every raw
// surface form that has resolved to this company.
type Company struct {
	ID               string    `json:"id"`
	CanonicalName    string    `json:"canonical_name"`
	Aliases          []string  `json:"aliases"`
	Sector           Sector    `json:"sector"`
	SectorConfidence float64   `json:"sector_confidence"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
}

// Investor is a canonical investing entity (VC firm, corporate arm, angel).
type Investor struct {
	ID            string   `json:"id"`
	CanonicalName string   `json:"canonical_name"`
	Aliases       []string `json:"aliases"`
	Type          string   `json:"type,omitempty"`
}

// Investor link roles.
const (
	RoleLead        = "lead"
	RoleParticipant = "participant"
)

// InvestorLink ties an investor to a funding event with a role.
type InvestorLink struct {
	EventID    string `json:"event_id"`
	InvestorID string `json:"investor_id"`
	Role       string `json:"role"`
}

// FundingEvent is the canonical output record. A nil AmountValue means the
// round size was undisclosed.
type FundingEvent struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	AmountValue     *float64  `json:"amount_value"`
	AmountCurrency  string    `json:"amount_currency,omitempty"`
	RangeEstimate   bool      `json:"range_estimate,omitempty"`
	Stage           Stage     `json:"stage"`
	AnnouncedDate   time.Time `json:"announced_date"`
	SourceArticleID string    `json:"source_article_id"`
	Confidence      float64   `json:"confidence"`
	Fingerprint     string    `json:"fingerprint"`
	Flags           []string  `json:"flags,omitempty"`
	Summary         string    `json:"summary,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// BatchSummary tallies per-article outcomes for one pipeline run.
type BatchSummary struct {
	Processed  int `json:"processed"`
	Extracted  int `json:"extracted"`
	NoSignal   int `json:"no_signal"`
	Duplicates int `json:"duplicates"`
	Flagged    int `json:"flagged"`
	Failed     int `json:"failed"`
}

// SectorFunding aggregates committed events for one sector.
type SectorFunding struct {
	Sector     Sector  `json:"sector"`
	EventCount int     `json:"event_count"`
	TotalUSD   float64 `json:"total_usd"`
}

// InvestorActivity counts events an investor participated in.
type InvestorActivity struct {
	InvestorID    string `json:"investor_id"`
	CanonicalName string `json:"canonical_name"`
	EventCount    int    `json:"event_count"`
	LeadCount     int    `json:"lead_count"`
}
