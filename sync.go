package pricedb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/etnz/pricedb/date"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves the rates of every day in a range.
type Fetcher interface {
	Fetch(ctx context.Context, r date.Range) ([]Rate, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, r date.Range) ([]Rate, error)

// Fetch calls f(ctx, r).
func (f FetcherFunc) Fetch(ctx context.Context, r date.Range) ([]Rate, error) { return f(ctx, r) }

// Observer is notified of synchronization progress.
type Observer interface {
	// ChunkFetched is called after each fetch attempt, err is the fetch error if any.
	ChunkFetched(r date.Range, rates int, elapsed time.Duration, err error)
	// RunCompleted is called once at the end of each Sync.
	RunCompleted(rep Report, elapsed time.Duration, err error)
}

// Report summarizes a synchronization run.
type Report struct {
	Planned  []date.Range // year chunks missing at the start of the run
	Chunks   []date.Range // chunks fetched and appended, in order
	Appended int          // number of rates appended
}

// Synchronizer brings a Store up to date with a rate provider.
//
// Each run computes the days missing between Start and today, given the
// store's earliest and latest dates, splits them into chunks of at most one
// year, and for each chunk fetches the rates and appends them. Each append is
// durable, so a failed run keeps the chunks done so far and the next run only
// asks for the rest.
type Synchronizer struct {
	Store    Store
	Provider Fetcher
	Start    date.Date // first day the database should cover

	// Workers is the number of chunks fetched concurrently. Values below 2
	// mean one chunk at a time, appended before the next one is fetched.
	Workers int

	Clock    func() time.Time // nil means time.Now
	Logger   *slog.Logger     // nil means slog.Default()
	Observer Observer         // optional
}

func (s *Synchronizer) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

// today returns the current UTC day.
func (s *Synchronizer) today() date.Date {
	if s.Clock == nil {
		return date.Today()
	}
	return date.FromTime(s.Clock().UTC())
}

// Plan returns the year chunks the next Sync would fetch, in order.
func (s *Synchronizer) Plan() ([]date.Range, error) {
	first, last, err := Bounds(s.Store)
	if err != nil {
		return nil, err
	}
	return date.Plan(s.Start, first, last, s.today()), nil
}

// Sync fetches and appends every missing chunk.
//
// The first failure stops the run and is returned unchanged when it comes from
// the provider. The report lists the chunks that were appended before the
// failure.
func (s *Synchronizer) Sync(ctx context.Context) (Report, error) {
	start := time.Now()
	rep, err := s.sync(ctx)
	if s.Observer != nil {
		s.Observer.RunCompleted(rep, time.Since(start), err)
	}
	if err != nil {
		s.logger().Error("price database synchronization failed", "chunks", len(rep.Chunks), "appended", rep.Appended, "error", err)
		return rep, err
	}
	s.logger().Info("price database synchronized", "chunks", len(rep.Chunks), "appended", rep.Appended, "elapsed", time.Since(start))
	return rep, nil
}

func (s *Synchronizer) sync(ctx context.Context) (Report, error) {
	chunks, err := s.Plan()
	if err != nil {
		return Report{}, err
	}
	rep := Report{Planned: chunks}
	if len(chunks) == 0 {
		s.logger().Info("price database is up to date")
		return rep, nil
	}
	s.logger().Debug("planned synchronization", "chunks", len(chunks), "workers", s.Workers)

	if s.Workers < 2 {
		for _, c := range chunks {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			rates, err := s.fetch(ctx, c)
			if err != nil {
				return rep, err
			}
			if err := s.append(&rep, c, rates); err != nil {
				return rep, err
			}
		}
		return rep, nil
	}

	// Fetch concurrently, then append in chunk order up to the first chunk
	// that could not be fetched.
	results := make([][]Rate, len(chunks))
	fetched := make([]bool, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for i, c := range chunks {
		g.Go(func() error {
			rates, err := s.fetch(gctx, c)
			if err != nil {
				return err
			}
			results[i], fetched[i] = rates, true
			return nil
		})
	}
	ferr := g.Wait()

	for i, c := range chunks {
		if !fetched[i] {
			break
		}
		if err := s.append(&rep, c, results[i]); err != nil {
			return rep, err
		}
	}
	return rep, ferr
}

func (s *Synchronizer) fetch(ctx context.Context, c date.Range) ([]Rate, error) {
	start := time.Now()
	rates, err := s.Provider.Fetch(ctx, c)
	if s.Observer != nil {
		s.Observer.ChunkFetched(c, len(rates), time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	s.logger().Info("fetched rates", "range", c.String(), "rates", len(rates))
	return rates, nil
}

func (s *Synchronizer) append(rep *Report, c date.Range, rates []Rate) error {
	if err := s.Store.Append(rates...); err != nil {
		return fmt.Errorf("cannot append rates for %v: %w", c, err)
	}
	rep.Chunks = append(rep.Chunks, c)
	rep.Appended += len(rates)
	return nil
}
