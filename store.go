package pricedb

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/etnz/pricedb/date"
)

// Store is an append-only collection of rates.
//
// Implementations never deduplicate: appending a rate twice stores it twice.
type Store interface {
	// ReadAll returns every stored rate in storage order. A store that does not
	// exist yet reads as empty.
	ReadAll() ([]Rate, error)
	// First returns the rate with the earliest date, false if the store is empty.
	First() (Rate, bool, error)
	// Last returns the rate with the latest date, false if the store is empty.
	Last() (Rate, bool, error)
	// Append sorts rates by date and adds them after the existing ones. The
	// rates are durable when Append returns without error.
	Append(rates ...Rate) error
}

// Bounds returns the earliest and latest dates of the store, reading it once.
// Both are zero if the store is empty.
func Bounds(s Store) (first, last date.Date, err error) {
	rates, err := s.ReadAll()
	if err != nil {
		return date.Date{}, date.Date{}, err
	}
	first, last = Span(rates)
	return first, last, nil
}

// Span returns the earliest and latest dates of rates, zero if rates is empty.
func Span(rates []Rate) (first, last date.Date) {
	if r, ok := earliest(rates); ok {
		first = r.Date()
	}
	if r, ok := latest(rates); ok {
		last = r.Date()
	}
	return first, last
}

// Export writes every rate of the store to w, one canonical line each, and
// returns the number of lines written.
func Export(w io.Writer, s Store) (int, error) {
	rates, err := s.ReadAll()
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(w)
	for _, r := range rates {
		if _, err := fmt.Fprintln(bw, r.String()); err != nil {
			return 0, err
		}
	}
	return len(rates), bw.Flush()
}

// sortByDate sorts rates by date, keeping the relative order of rates on the same day.
func sortByDate(rates []Rate) []Rate {
	sorted := slices.Clone(rates)
	slices.SortStableFunc(sorted, func(a, b Rate) int { return a.Date().Compare(b.Date()) })
	return sorted
}

// FileStore is a Store backed by a plain text file in the ledger price history
// format, one rate per line.
//
// A FileStore is safe for concurrent use within a process. Concurrent writers
// in different processes are not coordinated.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu sync.Mutex
}

// NewFileStore returns a store on the file at path. The file is created on the
// first Append. A nil logger means slog.Default().
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string { return s.path }

// ReadAll implements Store.
//
// Any line that is not a valid rate record fails the whole read with a
// *MalformedRecordError.
func (s *FileStore) ReadAll() ([]Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open price database %q: %w", s.path, err)
	}
	defer f.Close()

	var rates []Rate
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	i := 0
	for scanner.Scan() {
		i++
		txt := scanner.Text()
		r, err := ParseRate(txt)
		if err != nil {
			return nil, &MalformedRecordError{Path: s.path, Line: i, Text: txt, Err: err}
		}
		rates = append(rates, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read price database %q: %w", s.path, err)
	}
	s.logger.Debug("read price database", "path", s.path, "rates", len(rates))
	return rates, nil
}

// First implements Store.
func (s *FileStore) First() (Rate, bool, error) {
	rates, err := s.ReadAll()
	if err != nil {
		return Rate{}, false, err
	}
	r, ok := earliest(rates)
	return r, ok, nil
}

// Last implements Store.
func (s *FileStore) Last() (Rate, bool, error) {
	rates, err := s.ReadAll()
	if err != nil {
		return Rate{}, false, err
	}
	r, ok := latest(rates)
	return r, ok, nil
}

// Append implements Store.
//
// The file and its parent directories are created if needed. The file is
// synced to disk before Append returns.
func (s *FileStore) Append(rates ...Rate) (err error) {
	if len(rates) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory for price database %q: %w", s.path, err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open price database %q for writing: %w", s.path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("cannot close price database %q: %w", s.path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	for _, r := range sortByDate(rates) {
		if _, err := fmt.Fprintln(w, r.String()); err != nil {
			return fmt.Errorf("cannot write to price database %q: %w", s.path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("cannot write to price database %q: %w", s.path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("cannot sync price database %q: %w", s.path, err)
	}
	s.logger.Debug("appended rates", "path", s.path, "rates", len(rates))
	return nil
}

var _ Store = (*FileStore)(nil)
