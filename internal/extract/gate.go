package extract

import "strings"

// fundingKeywords gates articles before any rule or model work. An article
// mentioning none of these carries no funding signal.
var fundingKeywords = []string{
	"raise", "raised", "raises", "raising",
	"funding", "investment", "invests", "invested",
	"series a", "series b", "series c", "series d",
	"seed round", "pre-seed", "seed funding",
	"venture capital", "venture round",
	"closes round", "closed a round", "closes a round",
	"secures", "secured", "lands", "banked",
	"led by", "backed by", "valuation", "grant",
	"ipo", "debt financing",
}

// HasFundingSignal reports whether the text mentions any funding keyword.
func HasFundingSignal(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range fundingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
