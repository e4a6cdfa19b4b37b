package date

// This file contains the planning of price database synchronization: which
// days are missing, and how to chunk them into provider requests.

// MissingRanges returns the ranges of days from start to today that are not
// covered by the known interval [earliest, latest].
//
// A zero earliest or latest means nothing is known yet, and the whole
// [start, today] range is returned. Otherwise there are at most two ranges:
// a left one when earliest is after start, and a right one when latest is
// before today. The known interval is assumed to have no holes.
func MissingRanges(start, earliest, latest, today Date) []Range {
	if earliest.IsZero() || latest.IsZero() {
		return []Range{{From: start, To: today}}
	}

	var ranges []Range
	if earliest.After(start) {
		ranges = append(ranges, Range{From: start, To: earliest.Add(-1)})
	}
	if latest.Before(today) {
		ranges = append(ranges, Range{From: latest.Add(1), To: today})
	}
	return ranges
}

// SplitByYear splits r into consecutive chunks of at most one year.
//
// Reversed bounds are swapped first. Each chunk starts the day after the
// previous one ends, and the last chunk ends on r.To, so the chunks cover
// exactly r with no gap and no overlap.
func SplitByYear(r Range) []Range {
	r = r.Normalize()

	var chunks []Range
	from := r.From
	for end := from.AddYears(1).Add(-1); end.Before(r.To); end = from.AddYears(1).Add(-1) {
		chunks = append(chunks, Range{From: from, To: end})
		from = end.Add(1)
	}
	return append(chunks, Range{From: from, To: r.To})
}

// Plan returns the year chunks of every missing range, in order.
func Plan(start, earliest, latest, today Date) []Range {
	var chunks []Range
	for _, r := range MissingRanges(start, earliest, latest, today) {
		chunks = append(chunks, SplitByYear(r)...)
	}
	return chunks
}
