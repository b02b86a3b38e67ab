// Package amount parses monetary phrases from news text into normalized
// USD values.
package amount

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrNoAmount is returned when the fragment contains nothing parseable as a
// monetary amount.
var ErrNoAmount = eris.New("amount: no amount found")

// Amount is a parsed monetary value. Value is in whole USD unless
// Unconverted is set, in which case it remains in the source currency.
type Amount struct {
	Value         float64 `json:"value"`
	Currency      string  `json:"currency"`
	Undisclosed   bool    `json:"undisclosed,omitempty"`
	RangeEstimate bool    `json:"range_estimate,omitempty"`
	Unconverted   bool    `json:"unconverted,omitempty"`
}

// String renders the amount in a canonical form that Parse round-trips.
func (a Amount) String() string {
	if a.Undisclosed {
		return "undisclosed"
	}
	cur := a.Currency
	if cur == "" {
		cur = "USD"
	}
	return fmt.Sprintf("%.0f %s", a.Value, cur)
}

// usdRates converts supported currencies to USD. Static table; precision
// beyond the reporting unit does not matter for dedup or analytics.
var usdRates = map[string]float64{
	"USD": 1.0,
	"EUR": 1.08,
	"GBP": 1.27,
	"JPY": 0.0067,
}

var symbolCurrency = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

var wordCurrency = map[string]string{
	"usd": "USD", "dollar": "USD", "dollars": "USD",
	"eur": "EUR", "euro": "EUR", "euros": "EUR",
	"gbp": "GBP", "pound": "GBP", "pounds": "GBP",
	"jpy": "JPY", "yen": "JPY",
	"cad": "CAD", "aud": "AUD", "cny": "CNY",
	"inr": "INR", "sgd": "SGD", "chf": "CHF",
}

var magnitudes = map[string]float64{
	"k": 1e3, "thousand": 1e3,
	"m": 1e6, "mn": 1e6, "million": 1e6,
	"b": 1e9, "bn": 1e9, "billion": 1e9,
}

const (
	numPat  = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`
	magPat  = `thousand|million|billion|mn|bn|[kmb]`
	codePat = `usd|eur|gbp|jpy|cad|aud|cny|inr|sgd|chf`
)

var (
	undisclosedRe = regexp.MustCompile(`(?i)\b(undisclosed|not\s+disclosed|unspecified)\b`)

	// "$10M", "€2.5 billion", "$5-10M", "$5M-$10M"
	symbolRe = regexp.MustCompile(`(?i)([$€£¥])\s*(` + numPat + `)\s*(` + magPat + `)?` +
		`(?:\s*[-–—]\s*([$€£¥])?\s*(` + numPat + `)\s*(` + magPat + `)?)?`)

	// "10 million USD", "25 million dollars", "300 million INR"
	wordRe = regexp.MustCompile(`(?i)\b(` + numPat + `)\s*(` + magPat + `)?\s+` +
		`(` + codePat + `|dollars?|euros?|pounds?|yen)\b`)

	// "CHF 12 million", "USD 10 million"
	codeRe = regexp.MustCompile(`(?i)\b(` + codePat + `)\s+(` + numPat + `)\s*(` + magPat + `)?\b`)
)

// Parse extracts the first monetary amount from a text fragment and converts
// it to whole USD. Ranges resolve to the upper bound with RangeEstimate set.
// Phrases like "an undisclosed amount" yield the Undisclosed sentinel.
// Parse is idempotent over its own String output.
func Parse(fragment string) (Amount, error) {
	if strings.TrimSpace(fragment) == "" {
		return Amount{}, ErrNoAmount
	}

	if undisclosedRe.MatchString(fragment) {
		return Amount{Undisclosed: true, Currency: "USD"}, nil
	}

	if m := symbolRe.FindStringSubmatch(fragment); m != nil {
		currency := symbolCurrency[m[1]]
		value := parseNumber(m[2])
		mag := strings.ToLower(m[3])
		isRange := false

		if m[5] != "" {
			// Range: take the upper bound. A magnitude on the upper bound
			// applies to both ends ("$5-10M"); one on the lower bound alone
			// applies when the upper has none ("$5M-10").
			upper := parseNumber(m[5])
			upperMag := strings.ToLower(m[6])
			if upperMag != "" {
				mag = upperMag
			}
			value = math.Max(value, upper)
			isRange = true
		}

		if mult, ok := magnitudes[mag]; ok {
			value *= mult
		}
		return convert(value, currency, isRange), nil
	}

	if m := wordRe.FindStringSubmatch(fragment); m != nil {
		value := parseNumber(m[1])
		if mult, ok := magnitudes[strings.ToLower(m[2])]; ok {
			value *= mult
		}
		currency := wordCurrency[strings.ToLower(m[3])]
		return convert(value, currency, false), nil
	}

	if m := codeRe.FindStringSubmatch(fragment); m != nil {
		value := parseNumber(m[2])
		if mult, ok := magnitudes[strings.ToLower(m[3])]; ok {
			value *= mult
		}
		currency := wordCurrency[strings.ToLower(m[1])]
		return convert(value, currency, false), nil
	}

	return Amount{}, ErrNoAmount
}

func parseNumber(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func convert(value float64, currency string, isRange bool) Amount {
	rate, ok := usdRates[currency]
	if !ok {
		return Amount{
			Value:         value,
			Currency:      currency,
			RangeEstimate: isRange,
			Unconverted:   true,
		}
	}
	return Amount{
		Value:         math.Round(value * rate),
		Currency:      "USD",
		RangeEstimate: isRange,
	}
}
