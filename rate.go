package pricedb

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/etnz/pricedb/date"
	"github.com/shopspring/decimal"
)

// recordTimeFormat is the layout of the timestamp field of a rate record.
const recordTimeFormat = "2006/01/02 15:04:05"

// recordPattern matches the canonical encoding. Both '.' and ',' are accepted
// as decimal separator, but one is mandatory.
var recordPattern = regexp.MustCompile(`^P\s+(\d{4}/\d{2}/\d{2}\s\d{2}:\d{2}:\d{2})\s+(\S+)\s+(\d+[.,]\d*)\s+(\S+)$`)

// symbolPattern is the symbol field of recordPattern.
var symbolPattern = regexp.MustCompile(`^\S+$`)

// Rate is the price of one unit of a base symbol expressed in a quote symbol,
// on a given day.
//
// A Rate is immutable, use NewRate or ParseRate to create one.
type Rate struct {
	on    date.Date
	base  string
	price decimal.Decimal
	quote string
}

// NewRate returns a validated Rate.
//
// The price must be strictly positive, symbols must be non empty and contain no
// white space, and the year must fit in four digits. Every valid Rate parses
// back from its encoding.
func NewRate(on date.Date, base string, price decimal.Decimal, quote string) (Rate, error) {
	if on.IsZero() {
		return Rate{}, fmt.Errorf("%w: missing date", ErrInvalidRate)
	}
	if y := on.Year(); y < 0 || y > 9999 {
		return Rate{}, fmt.Errorf("%w: year %d out of range 0..9999", ErrInvalidRate, y)
	}
	if err := checkSymbol(base); err != nil {
		return Rate{}, fmt.Errorf("%w: base symbol: %w", ErrInvalidRate, err)
	}
	if err := checkSymbol(quote); err != nil {
		return Rate{}, fmt.Errorf("%w: quote symbol: %w", ErrInvalidRate, err)
	}
	if !price.IsPositive() {
		return Rate{}, fmt.Errorf("%w: price %v must be positive", ErrInvalidRate, price)
	}
	return Rate{on: on, base: base, price: price, quote: quote}, nil
}

func checkSymbol(s string) error {
	if s == "" {
		return fmt.Errorf("empty symbol")
	}
	if !symbolPattern.MatchString(s) {
		return fmt.Errorf("symbol %q contains white space", s)
	}
	return nil
}

// Date returns the day the rate applies to.
func (r Rate) Date() date.Date { return r.on }

// Base returns the symbol being priced.
func (r Rate) Base() string { return r.base }

// Price returns the amount of quote for one unit of base.
func (r Rate) Price() decimal.Decimal { return r.price }

// Quote returns the symbol the price is expressed in.
func (r Rate) Quote() string { return r.quote }

// Equal reports whether r and x hold the same values. Prices are compared
// numerically, so 30.0 equals 30.00.
func (r Rate) Equal(x Rate) bool {
	return r.on == x.on && r.base == x.base && r.quote == x.quote && r.price.Equal(x.price)
}

// String returns the canonical encoding of the rate, without line terminator.
//
// The time of day is always midnight. The price always carries a fractional
// part.
func (r Rate) String() string {
	return fmt.Sprintf("P %s %s %s %s", r.on.Time().Format(recordTimeFormat), r.base, formatPrice(r.price), r.quote)
}

// formatPrice writes the shortest exact decimal representation of p, with at
// least one fractional digit.
func formatPrice(p decimal.Decimal) string {
	s := p.String()
	if !strings.Contains(s, ".") {
		s = p.StringFixed(1)
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (r Rate) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Rate) UnmarshalText(text []byte) error {
	x, err := ParseRate(string(text))
	if err != nil {
		return err
	}
	*r = x
	return nil
}

// ParseRate parses a single rate record line.
//
// Surrounding spaces and line terminators are ignored. The timestamp must be a
// valid date and time, but only the day is kept.
func ParseRate(line string) (Rate, error) {
	line = strings.Trim(line, " \r\n")
	m := recordPattern.FindStringSubmatch(line)
	if m == nil {
		return Rate{}, fmt.Errorf("%w: %q does not match \"P YYYY/MM/DD HH:MM:SS BASE PRICE QUOTE\"", ErrMalformedRecord, line)
	}

	ts, err := time.Parse(recordTimeFormat, m[1])
	if err != nil {
		return Rate{}, fmt.Errorf("%w: invalid timestamp %q: %w", ErrMalformedRecord, m[1], err)
	}

	price, err := decimal.NewFromString(strings.Replace(m[3], ",", ".", 1))
	if err != nil {
		return Rate{}, fmt.Errorf("%w: invalid price %q: %w", ErrMalformedRecord, m[3], err)
	}

	r, err := NewRate(date.FromTime(ts), m[2], price, m[4])
	if err != nil {
		return Rate{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return r, nil
}

// earliest returns the first rate with the smallest date.
func earliest(rates []Rate) (Rate, bool) {
	if len(rates) == 0 {
		return Rate{}, false
	}
	first := rates[0]
	for _, r := range rates[1:] {
		if r.on.Before(first.on) {
			first = r
		}
	}
	return first, true
}

// latest returns the first rate with the greatest date.
func latest(rates []Rate) (Rate, bool) {
	if len(rates) == 0 {
		return Rate{}, false
	}
	last := rates[0]
	for _, r := range rates[1:] {
		if r.on.After(last.on) {
			last = r
		}
	}
	return last, true
}
