package model

import "github.com/sells-group/funding-tracker/internal/amount"

// InvestorMention is a raw investor name as it appeared in an article,
// before resolution against the knowledge base.
type InvestorMention struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Candidate is the transient extraction result for one article. Field values
// are raw article text; resolution and classification happen downstream.
type Candidate struct {
	CompanyRaw string            `json:"company_raw"`
	Amount     *amount.Amount    `json:"amount,omitempty"`
	AmountRaw  string            `json:"amount_raw,omitempty"`
	Investors  []InvestorMention `json:"investors,omitempty"`
	StageRaw   string            `json:"stage_raw,omitempty"`
	Stage      Stage             `json:"stage"`
	Confidence float64           `json:"confidence"`
}

// Score recomputes extraction confidence as the fraction of the four
// candidate fields (company, amount, investors, stage) that were populated.
func (c *Candidate) Score() float64 {
	fields := 0
	if c.CompanyRaw != "" {
		fields++
	}
	if c.Amount != nil && !c.Amount.Undisclosed {
		fields++
	}
	if len(c.Investors) > 0 {
		fields++
	}
	if c.Stage != StageUnknown && c.Stage != "" {
		fields++
	}
	c.Confidence = float64(fields) / 4.0
	return c.Confidence
}
