package pricedb

import (
	"errors"
	"testing"

	"github.com/etnz/pricedb/date"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rate is a test helper building a valid Rate.
func rate(t *testing.T, on, base, price, quote string) Rate {
	t.Helper()
	r, err := NewRate(date.MustParse(on), base, decimal.RequireFromString(price), quote)
	require.NoError(t, err)
	return r
}

func TestNewRate_Validation(t *testing.T) {
	on := date.New(2001, 1, 1)
	one := decimal.NewFromInt(1)

	testCases := []struct {
		name  string
		on    date.Date
		base  string
		price decimal.Decimal
		quote string
	}{
		{"zero date", date.Date{}, "RUB", one, "$"},
		{"empty base", on, "", one, "$"},
		{"empty quote", on, "RUB", one, ""},
		{"spaced symbol", on, "R UB", one, "$"},
		{"form feed in symbol", on, "A\fB", one, "$"},
		{"five digit year", date.New(10000, 1, 1), "RUB", one, "$"},
		{"negative year", date.New(-1, 1, 1), "RUB", one, "$"},
		{"zero price", on, "RUB", decimal.Zero, "$"},
		{"negative price", on, "RUB", decimal.NewFromInt(-3), "$"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRate(tc.on, tc.base, tc.price, tc.quote)
			assert.ErrorIs(t, err, ErrInvalidRate)
		})
	}
}

func TestRate_String(t *testing.T) {
	testCases := []struct {
		price string
		want  string
	}{
		{"30.05", "P 2001/01/01 00:00:00 RUB 30.05 $"},
		{"30", "P 2001/01/01 00:00:00 RUB 30.0 $"},
		{"30.0", "P 2001/01/01 00:00:00 RUB 30.0 $"},
		{"0.94985", "P 2001/01/01 00:00:00 RUB 0.94985 $"},
		{"61.214998", "P 2001/01/01 00:00:00 RUB 61.214998 $"},
	}
	for _, tc := range testCases {
		t.Run(tc.price, func(t *testing.T) {
			assert.Equal(t, tc.want, rate(t, "2001-01-01", "RUB", tc.price, "$").String())
		})
	}
}

func TestParseRate(t *testing.T) {
	testCases := []struct {
		name string
		line string
		want Rate
	}{
		{"canonical", "P 2001/01/01 00:00:00 RUB 30.05 $", rate(t, "2001-01-01", "RUB", "30.05", "$")},
		{"line terminator", "P 2001/01/01 00:00:00 RUB 30.05 $\n", rate(t, "2001-01-01", "RUB", "30.05", "$")},
		{"comma separator", "P 2001/01/02 00:00:00 RUB 31,05 $", rate(t, "2001-01-02", "RUB", "31.05", "$")},
		{"trailing separator", "P 2001/01/02 00:00:00 RUB 31. $", rate(t, "2001-01-02", "RUB", "31", "$")},
		{"time of day is dropped", "P 2004/06/21 02:18:01 RUB 22.49 $", rate(t, "2004-06-21", "RUB", "22.49", "$")},
		{"unicode symbol", "P 2022/12/01 00:00:00 USD 61.214998 ₽", rate(t, "2022-12-01", "USD", "61.214998", "₽")},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRate(tc.line)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "ParseRate(%q) = %v, want %v", tc.line, got, tc.want)
		})
	}
}

func TestParseRate_Malformed(t *testing.T) {
	lines := []string{
		"",
		"hello",
		"P 2001-01-01 00:00:00 RUB 30.05 $",
		"P 2001/01/01 RUB 30.05 $",
		"P 2001/01/01 00:00:00 RUB 30 $",
		"P 2001/01/01 00:00:00 RUB -30.05 $",
		"P 2001/01/01 00:00:00 RUB 0.0 $",
		"P 2001/01/01 00:00:00 RUB 30.05",
		"P 2001/01/01 00:00:00 RUB 30.05 $ extra",
		"P 2001/13/01 00:00:00 RUB 30.05 $",
		"P 2001/02/30 00:00:00 RUB 30.05 $",
		"P 2001/01/01 25:00:00 RUB 30.05 $",
		"X 2001/01/01 00:00:00 RUB 30.05 $",
	}
	for _, line := range lines {
		_, err := ParseRate(line)
		assert.ErrorIs(t, err, ErrMalformedRecord, "ParseRate(%q)", line)
	}
}

func TestRate_RoundTrip(t *testing.T) {
	rates := []Rate{
		rate(t, "2001-01-01", "RUB", "30.05", "$"),
		rate(t, "2001-01-03", "RUB", "34", "$"),
		rate(t, "2022-12-02", "USD", "0.94905", "EUR"),
		rate(t, "2024-02-29", "USD", "123456789.123456789", "₽"),
		rate(t, "9999-12-31", "USD", "1.5", "EUR"),
		rate(t, "0001-01-01", "USD", "1.5", "EUR"),
	}
	for _, r := range rates {
		got, err := ParseRate(r.String())
		require.NoError(t, err)
		assert.True(t, r.Equal(got), "ParseRate(%q) = %v", r.String(), got)
		assert.Equal(t, r.String(), got.String())
	}
}

func TestRate_Text(t *testing.T) {
	r := rate(t, "2001-01-01", "RUB", "30.05", "$")
	text, err := r.MarshalText()
	require.NoError(t, err)

	var got Rate
	require.NoError(t, got.UnmarshalText(text))
	assert.True(t, r.Equal(got))

	err = got.UnmarshalText([]byte("garbage"))
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}
