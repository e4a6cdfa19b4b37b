package pricedb

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/etnz/pricedb/date"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, content string) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.db")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return NewFileStore(path, nil)
}

func TestFileStore_Missing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope", "prices.db"), nil)

	rates, err := s.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, rates)

	_, ok, err := s.First()
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Last()
	require.NoError(t, err)
	assert.False(t, ok)

	first, last, err := Bounds(s)
	require.NoError(t, err)
	assert.True(t, first.IsZero())
	assert.True(t, last.IsZero())
}

func TestFileStore_Append(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "sub", "dir", "prices.db"), nil)

	// appended in reverse order, stored sorted.
	require.NoError(t, s.Append(
		rate(t, "2001-01-03", "RUB", "34.05", "$"),
		rate(t, "2001-01-02", "RUB", "31.05", "$"),
		rate(t, "2001-01-01", "RUB", "30.05", "$"),
	))

	content, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, ""+
		"P 2001/01/01 00:00:00 RUB 30.05 $\n"+
		"P 2001/01/02 00:00:00 RUB 31.05 $\n"+
		"P 2001/01/03 00:00:00 RUB 34.05 $\n", string(content))

	first, ok, err := s.First()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "P 2001/01/01 00:00:00 RUB 30.05 $", first.String())

	last, ok, err := s.Last()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "P 2001/01/03 00:00:00 RUB 34.05 $", last.String())
}

func TestFileStore_AppendKeepsExisting(t *testing.T) {
	s := newTestStore(t, "P 2001/01/01 00:00:00 RUB 30.05 $\n")

	require.NoError(t, s.Append(
		rate(t, "2001-01-03", "RUB", "34.05", "$"),
		rate(t, "2001-01-02", "RUB", "31.05", "$"),
	))
	require.NoError(t, s.Append()) // no-op

	rates, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, rates, 3)
	for i, want := range []string{"2001-01-01", "2001-01-02", "2001-01-03"} {
		assert.Equal(t, date.MustParse(want), rates[i].Date())
	}
}

func TestFileStore_AppendDoesNotDeduplicate(t *testing.T) {
	s := newTestStore(t, "")
	r := rate(t, "2001-01-01", "RUB", "30.05", "$")
	require.NoError(t, s.Append(r))
	require.NoError(t, s.Append(r))

	rates, err := s.ReadAll()
	require.NoError(t, err)
	assert.Len(t, rates, 2)
}

func TestFileStore_AppendStableWithinDay(t *testing.T) {
	s := newTestStore(t, "")
	require.NoError(t, s.Append(
		rate(t, "2022-12-02", "USD", "0.94905", "EUR"),
		rate(t, "2022-12-01", "USD", "0.94985", "EUR"),
		rate(t, "2022-12-01", "USD", "2.704993", "GEL"),
	))

	rates, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "EUR", rates[0].Quote())
	assert.Equal(t, "GEL", rates[1].Quote())
	assert.Equal(t, date.MustParse("2022-12-02"), rates[2].Date())
}

func TestFileStore_Malformed(t *testing.T) {
	s := newTestStore(t, ""+
		"P 2001/01/01 00:00:00 RUB 30.05 $\n"+
		"P 2001/01/02 RUB 31.05 $\n"+
		"P 2001/01/03 00:00:00 RUB 34.05 $\n")

	rates, err := s.ReadAll()
	assert.Nil(t, rates)
	require.ErrorIs(t, err, ErrMalformedRecord)

	var merr *MalformedRecordError
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, s.Path(), merr.Path)
	assert.Equal(t, 2, merr.Line)
	assert.Equal(t, "P 2001/01/02 RUB 31.05 $", merr.Text)

	_, _, err = Bounds(s)
	assert.ErrorIs(t, err, ErrMalformedRecord)
	_, _, err = s.First()
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

// TestFileStore_BackfillOrder documents that a left gap appended after the
// existing rates leaves the file out of global date order, while the bounds
// remain correct.
func TestFileStore_BackfillOrder(t *testing.T) {
	s := newTestStore(t, "P 2002/01/10 00:00:00 RUB 30.05 $\n")
	require.NoError(t, s.Append(rate(t, "2002-01-09", "RUB", "29.05", "$")))

	rates, err := s.ReadAll()
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.True(t, rates[0].Date().After(rates[1].Date()), "storage order is append order")

	first, last, err := Bounds(s)
	require.NoError(t, err)
	assert.Equal(t, date.MustParse("2002-01-09"), first)
	assert.Equal(t, date.MustParse("2002-01-10"), last)

	first, last = Span(rates)
	assert.Equal(t, date.MustParse("2002-01-09"), first)
	assert.Equal(t, date.MustParse("2002-01-10"), last)
}

func TestExport(t *testing.T) {
	content := "" +
		"P 2001/01/01 00:00:00 RUB 30.05 $\n" +
		"P 2001/01/02 00:00:00 RUB 31,05 $\n"
	s := newTestStore(t, content)

	var buf bytes.Buffer
	n, err := Export(&buf, s)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, ""+
		"P 2001/01/01 00:00:00 RUB 30.05 $\n"+
		"P 2001/01/02 00:00:00 RUB 31.05 $\n", buf.String())
}
