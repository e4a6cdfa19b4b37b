package date

import "fmt"

// Range represents an inclusive range of dates.
type Range struct{ From, To Date }

// NewRange returns the range [from, to], swapping the bounds if they are reversed.
func NewRange(from, to Date) Range { return Range{From: from, To: to}.Normalize() }

// PeriodRange returns the well known period containing d.
func PeriodRange(d Date, period Period) Range {
	return Range{From: d.StartOf(period), To: d.EndOf(period)}
}

// Normalize returns r with From <= To.
func (r Range) Normalize() Range {
	if r.From.After(r.To) {
		return Range{From: r.To, To: r.From}
	}
	return r
}

// Contains return true date is included in the range (boundaries included)
func (r Range) Contains(date Date) bool { return !date.Before(r.From) && !date.After(r.To) }

// Days returns the number of days in the range, bounds included.
func (r Range) Days() int {
	r = r.Normalize()
	return int(r.To.Time().Sub(r.From.Time()).Hours()/24) + 1
}

// String returns "from..to".
func (r Range) String() string { return fmt.Sprintf("%s..%s", r.From, r.To) }
