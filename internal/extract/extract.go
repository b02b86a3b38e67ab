// Package extract turns raw article text into funding-event candidates via
// a keyword gate and an ordered rule engine.
package extract

import (
	"regexp"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funding-tracker/internal/amount"
	"github.com/sells-group/funding-tracker/internal/model"
)

// ErrNoFundingSignal is returned when the keyword gate rejects an article.
var ErrNoFundingSignal = eris.New("extract: no funding signal")

var verbRe = regexp.MustCompile(`(?i)\b(?:` + fundingVerbs + `)\b`)

// amountWindow is how many characters around a funding verb are scanned for
// an amount before falling back to the whole text.
const amountWindow = 200

// Extract runs the keyword gate and rule engine over one article. Fields the
// rules cannot fill stay zero-valued; candidate confidence reflects how many
// were filled. Returns ErrNoFundingSignal when the gate rejects the article.
func Extract(article model.RawArticle) (model.Candidate, error) {
	text := article.Text()
	if !HasFundingSignal(text) {
		return model.Candidate{}, ErrNoFundingSignal
	}

	cand := model.Candidate{
		CompanyRaw: extractCompany(text),
		Investors:  extractInvestors(text),
	}
	cand.StageRaw, cand.Stage = extractStage(text)

	if amt, raw, ok := extractAmount(text); ok {
		cand.Amount = &amt
		cand.AmountRaw = raw
	}

	cand.Score()
	return cand, nil
}

// extractAmount parses the amount nearest a funding verb, then falls back to
// the first amount anywhere in the text.
func extractAmount(text string) (amount.Amount, string, bool) {
	if loc := verbRe.FindStringIndex(text); loc != nil {
		start := loc[0] - amountWindow
		if start < 0 {
			start = 0
		}
		end := loc[1] + amountWindow
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]
		if amt, err := amount.Parse(window); err == nil {
			return amt, rawAmountText(window), true
		}
	}

	if amt, err := amount.Parse(text); err == nil {
		return amt, rawAmountText(text), true
	}
	return amount.Amount{}, "", false
}

var rawAmountRe = regexp.MustCompile(
	`(?i)(?:[$€£¥]\s*[\d,.]+(?:\s*(?:thousand|million|billion|mn|bn|[kmb]))?` +
		`(?:\s*[-–—]\s*[$€£¥]?\s*[\d,.]+(?:\s*(?:thousand|million|billion|mn|bn|[kmb]))?)?)` +
		`|(?:\b[\d,.]+\s*(?:thousand|million|billion|mn|bn|[kmb])?\s+(?:usd|eur|gbp|jpy|dollars?|euros?|pounds?|yen)\b)` +
		`|\b(?:undisclosed|not\s+disclosed|unspecified)\b`)

func rawAmountText(text string) string {
	return rawAmountRe.FindString(text)
}
