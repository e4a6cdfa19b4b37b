// Package sqlstore implements a pricedb.Store on a SQLite database.
//
// It keeps the same contract as the text file store: rates are returned in
// insertion order, appends are sorted by date and never deduplicated. Use
// pricedb.Export to produce a ledger readable file from it.
package sqlstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/etnz/pricedb"
	"github.com/etnz/pricedb/date"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// rateRow is the persisted form of a pricedb.Rate.
type rateRow struct {
	ID    uint            `gorm:"primaryKey;autoIncrement"`
	Day   string          `gorm:"column:day;not null;index"` // YYYY-MM-DD
	Base  string          `gorm:"column:base;not null"`
	Price decimal.Decimal `gorm:"column:price;type:text;not null"`
	Quote string          `gorm:"column:quote;not null"`
}

func (rateRow) TableName() string { return "rates" }

func fromRate(r pricedb.Rate) rateRow {
	return rateRow{Day: r.Date().String(), Base: r.Base(), Price: r.Price(), Quote: r.Quote()}
}

func (row rateRow) rate() (pricedb.Rate, error) {
	t, err := time.Parse(date.DateFormat, row.Day)
	if err != nil {
		return pricedb.Rate{}, fmt.Errorf("%w: invalid day %q", pricedb.ErrMalformedRecord, row.Day)
	}
	r, err := pricedb.NewRate(date.FromTime(t), row.Base, row.Price, row.Quote)
	if err != nil {
		return pricedb.Rate{}, fmt.Errorf("%w: %w", pricedb.ErrMalformedRecord, err)
	}
	return r, nil
}

// Store is a pricedb.Store backed by SQLite.
type Store struct {
	db     *gorm.DB
	path   string
	logger *slog.Logger
}

// Open opens or creates the database at path and migrates its schema. A nil
// logger means slog.Default().
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create directory for price database %q: %w", path, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open price database %q: %w", path, err)
	}
	if err := db.AutoMigrate(&rateRow{}); err != nil {
		return nil, fmt.Errorf("cannot migrate price database %q: %w", path, err)
	}
	logger.Debug("opened sqlite price database", "path", path)
	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the location of the database file.
func (s *Store) Path() string { return s.path }

// Close releases the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ReadAll implements pricedb.Store. An invalid row fails the whole read with a
// *pricedb.MalformedRecordError whose Line is the row id.
func (s *Store) ReadAll() ([]pricedb.Rate, error) {
	var rows []rateRow
	if err := s.db.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("cannot read price database %q: %w", s.path, err)
	}
	rates := make([]pricedb.Rate, 0, len(rows))
	for _, row := range rows {
		r, err := row.rate()
		if err != nil {
			return nil, s.malformed(row, err)
		}
		rates = append(rates, r)
	}
	return rates, nil
}

func (s *Store) malformed(row rateRow, err error) error {
	return &pricedb.MalformedRecordError{
		Path: s.path,
		Line: int(row.ID),
		Text: fmt.Sprintf("%s %s %s %s", row.Day, row.Base, row.Price, row.Quote),
		Err:  err,
	}
}

// First implements pricedb.Store.
func (s *Store) First() (pricedb.Rate, bool, error) { return s.one("day ASC, id ASC") }

// Last implements pricedb.Store.
func (s *Store) Last() (pricedb.Rate, bool, error) { return s.one("day DESC, id ASC") }

func (s *Store) one(order string) (pricedb.Rate, bool, error) {
	var row rateRow
	err := s.db.Order(order).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pricedb.Rate{}, false, nil
	}
	if err != nil {
		return pricedb.Rate{}, false, fmt.Errorf("cannot read price database %q: %w", s.path, err)
	}
	r, err := row.rate()
	if err != nil {
		return pricedb.Rate{}, false, s.malformed(row, err)
	}
	return r, true, nil
}

// Append implements pricedb.Store. All rates are inserted in a single
// transaction.
func (s *Store) Append(rates ...pricedb.Rate) error {
	if len(rates) == 0 {
		return nil
	}
	sorted := slices.Clone(rates)
	slices.SortStableFunc(sorted, func(a, b pricedb.Rate) int { return a.Date().Compare(b.Date()) })

	rows := make([]rateRow, len(sorted))
	for i, r := range sorted {
		rows[i] = fromRate(r)
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return fmt.Errorf("cannot append to price database %q: %w", s.path, err)
	}
	s.logger.Debug("appended rates", "path", s.path, "rates", len(rows))
	return nil
}

var _ pricedb.Store = (*Store)(nil)
