package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_SymbolForms(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     float64
	}{
		{"compact millions", "raised $10M in new funding", 10_000_000},
		{"spelled out millions", "secured $25 million from investors", 25_000_000},
		{"decimal billions", "a $2.5 billion valuation round", 2_500_000_000},
		{"thousands with k", "a $750K pre-seed round", 750_000},
		{"comma separators", "$1,500,000 in grant money", 1_500_000},
		{"bare dollars", "$500000", 500_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.fragment)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, "USD", got.Currency)
			assert.False(t, got.Undisclosed)
		})
	}
}

func TestParse_WordCurrencies(t *testing.T) {
	got, err := Parse("the company raised 10 million USD last week")
	require.NoError(t, err)
	assert.Equal(t, 10_000_000.0, got.Value)
	assert.Equal(t, "USD", got.Currency)

	got, err = Parse("closed a round of 30 million euros")
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
	assert.InDelta(t, 32_400_000, got.Value, 1)
	assert.False(t, got.Unconverted)
}

func TestParse_ForeignSymbolsConvertToUSD(t *testing.T) {
	got, err := Parse("raised €20M from European funds")
	require.NoError(t, err)
	assert.Equal(t, "USD", got.Currency)
	assert.InDelta(t, 21_600_000, got.Value, 1)

	got, err = Parse("a £5 million seed round")
	require.NoError(t, err)
	assert.InDelta(t, 6_350_000, got.Value, 1)
}

func TestParse_UnknownCurrencyPassthrough(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		value    float64
		currency string
	}{
		{"suffix code", "raised 5 million CAD from local funds", 5_000_000, "CAD"},
		{"prefix code", "a CHF 12 million extension round", 12_000_000, "CHF"},
		{"suffix code with verb", "raises 300 million INR", 300_000_000, "INR"},
		{"singapore dollars", "closed 8 million SGD", 8_000_000, "SGD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.fragment)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got.Value)
			assert.Equal(t, tt.currency, got.Currency)
			assert.True(t, got.Unconverted)
		})
	}
}

func TestParse_UnconvertedRoundTripsOwnOutput(t *testing.T) {
	first, err := Parse("secured 40 million AUD in Series B")
	require.NoError(t, err)
	require.True(t, first.Unconverted)

	second, err := Parse(first.String())
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.Currency, second.Currency)
	assert.True(t, second.Unconverted)
}

func TestParse_Range_TakesUpperBound(t *testing.T) {
	got, err := Parse("a round of $5-10M according to sources")
	require.NoError(t, err)
	assert.Equal(t, 10_000_000.0, got.Value)
	assert.True(t, got.RangeEstimate)

	got, err = Parse("between $5M-$8M in total")
	require.NoError(t, err)
	assert.Equal(t, 8_000_000.0, got.Value)
	assert.True(t, got.RangeEstimate)
}

func TestParse_Undisclosed(t *testing.T) {
	for _, fragment := range []string{
		"raised an undisclosed amount",
		"terms were not disclosed",
	} {
		got, err := Parse(fragment)
		require.NoError(t, err, fragment)
		assert.True(t, got.Undisclosed, fragment)
	}
}

func TestParse_NoAmount(t *testing.T) {
	_, err := Parse("the company announced a new product launch")
	assert.ErrorIs(t, err, ErrNoAmount)

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrNoAmount)
}

func TestParse_IdempotentOnCanonicalOutput(t *testing.T) {
	first, err := Parse("raised $12.5 million in Series B funding")
	require.NoError(t, err)

	second, err := Parse(first.String())
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.Currency, second.Currency)
}
