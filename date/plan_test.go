package date

import (
	"reflect"
	"testing"
)

func ranges(pairs ...string) []Range {
	var rs []Range
	for i := 0; i+1 < len(pairs); i += 2 {
		rs = append(rs, Range{From: MustParse(pairs[i]), To: MustParse(pairs[i+1])})
	}
	return rs
}

func TestSplitByYear(t *testing.T) {
	testCases := []struct {
		name string
		in   Range
		want []Range
	}{
		{
			name: "two years and a day",
			in:   Range{MustParse("2001-01-01"), MustParse("2003-01-01")},
			want: ranges("2001-01-01", "2001-12-31", "2002-01-01", "2002-12-31", "2003-01-01", "2003-01-01"),
		},
		{
			name: "reversed bounds",
			in:   Range{MustParse("2003-01-01"), MustParse("2001-01-01")},
			want: ranges("2001-01-01", "2001-12-31", "2002-01-01", "2002-12-31", "2003-01-01", "2003-01-01"),
		},
		{
			name: "mid year start",
			in:   Range{MustParse("2001-05-05"), MustParse("2003-08-12")},
			want: ranges("2001-05-05", "2002-05-04", "2002-05-05", "2003-05-04", "2003-05-05", "2003-08-12"),
		},
		{
			name: "exactly one year",
			in:   Range{MustParse("2001-01-01"), MustParse("2001-12-31")},
			want: ranges("2001-01-01", "2001-12-31"),
		},
		{
			name: "single day",
			in:   Range{MustParse("2001-01-01"), MustParse("2001-01-01")},
			want: ranges("2001-01-01", "2001-01-01"),
		},
		{
			name: "leap day start",
			in:   Range{MustParse("2004-02-29"), MustParse("2006-01-01")},
			want: ranges("2004-02-29", "2005-02-27", "2005-02-28", "2006-01-01"),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SplitByYear(tc.in); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("SplitByYear(%v) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

// TestSplitByYear_Coverage checks, over many ranges, that chunks are
// contiguous, non overlapping, no longer than a year, and cover exactly the
// input range.
func TestSplitByYear_Coverage(t *testing.T) {
	origin := New(1999, 12, 25)
	for start := 0; start < 800; start += 37 {
		for length := 0; length < 2000; length += 53 {
			in := Range{From: origin.Add(start), To: origin.Add(start + length)}
			chunks := SplitByYear(in)
			if len(chunks) == 0 {
				t.Fatalf("SplitByYear(%v) returned no chunk", in)
			}
			if chunks[0].From != in.From {
				t.Errorf("SplitByYear(%v) starts at %v", in, chunks[0].From)
			}
			if last := chunks[len(chunks)-1]; last.To != in.To {
				t.Errorf("SplitByYear(%v) ends at %v", in, last.To)
			}
			days := 0
			for i, c := range chunks {
				if c.From.After(c.To) {
					t.Errorf("SplitByYear(%v) chunk %v is reversed", in, c)
				}
				if c.To.After(c.From.AddYears(1).Add(-1)) {
					t.Errorf("SplitByYear(%v) chunk %v is longer than a year", in, c)
				}
				if i > 0 && chunks[i-1].To.Add(1) != c.From {
					t.Errorf("SplitByYear(%v) chunks %v and %v are not contiguous", in, chunks[i-1], c)
				}
				days += c.Days()
			}
			if days != in.Days() {
				t.Errorf("SplitByYear(%v) covers %d days, want %d", in, days, in.Days())
			}

			// reversed input gives the same chunks.
			if rev := SplitByYear(Range{From: in.To, To: in.From}); !reflect.DeepEqual(rev, chunks) {
				t.Errorf("SplitByYear(reversed %v) = %v, want %v", in, rev, chunks)
			}
		}
	}
}

func TestMissingRanges(t *testing.T) {
	start := MustParse("2001-01-01")
	today := MustParse("2003-08-12")

	testCases := []struct {
		name             string
		earliest, latest Date
		want             []Range
	}{
		{
			name: "empty database",
			want: ranges("2001-01-01", "2003-08-12"),
		},
		{
			name:     "both sides",
			earliest: MustParse("2002-01-10"),
			latest:   MustParse("2002-05-10"),
			want:     ranges("2001-01-01", "2002-01-09", "2002-05-11", "2003-08-12"),
		},
		{
			name:     "left side only",
			earliest: MustParse("2002-01-10"),
			latest:   today,
			want:     ranges("2001-01-01", "2002-01-09"),
		},
		{
			name:     "right side only",
			earliest: start,
			latest:   MustParse("2002-05-10"),
			want:     ranges("2002-05-11", "2003-08-12"),
		},
		{
			name:     "earliest before the configured start",
			earliest: MustParse("2000-06-01"),
			latest:   MustParse("2003-08-11"),
			want:     ranges("2003-08-12", "2003-08-12"),
		},
		{
			name:     "up to date",
			earliest: start,
			latest:   today,
			want:     nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := MissingRanges(start, tc.earliest, tc.latest, today)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("MissingRanges() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPlan(t *testing.T) {
	got := Plan(MustParse("2001-01-01"), MustParse("2002-01-10"), MustParse("2002-05-10"), MustParse("2003-08-12"))
	want := ranges(
		"2001-01-01", "2001-12-31",
		"2002-01-01", "2002-01-09",
		"2002-05-11", "2003-05-10",
		"2003-05-11", "2003-08-12",
	)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Plan() = %v, want %v", got, want)
	}
}

// TestPlan_Idempotent simulates fetching every planned chunk and checks that
// planning again does not request any known day, except the days elapsed
// since the first plan.
func TestPlan_Idempotent(t *testing.T) {
	start := MustParse("2001-01-01")
	today := MustParse("2003-08-12")
	bounds := []Range{
		{},
		{From: MustParse("2002-01-10"), To: MustParse("2002-05-10")},
		{From: MustParse("2001-01-01"), To: MustParse("2001-01-01")},
		{From: MustParse("2000-01-01"), To: MustParse("2003-08-12")},
	}
	for _, b := range bounds {
		earliest, latest := b.From, b.To
		for _, c := range Plan(start, earliest, latest, today) {
			if earliest.IsZero() || c.From.Before(earliest) {
				earliest = c.From
			}
			if latest.IsZero() || c.To.After(latest) {
				latest = c.To
			}
		}

		if again := Plan(start, earliest, latest, today); len(again) != 0 {
			t.Errorf("Plan() after sync from %v = %v, want nothing", b, again)
		}

		later := today.Add(3)
		want := []Range{{From: today.Add(1), To: later}}
		if again := Plan(start, earliest, latest, later); !reflect.DeepEqual(again, want) {
			t.Errorf("Plan() three days later from %v = %v, want %v", b, again, want)
		}
	}
}
