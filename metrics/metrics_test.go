package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/etnz/pricedb"
	"github.com/etnz/pricedb/date"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var year = date.Range{From: date.New(2023, 1, 1), To: date.New(2023, 12, 31)}

func TestMetrics_ChunkFetched(t *testing.T) {
	m := New()
	m.ChunkFetched(year, 365, time.Second, nil)
	m.ChunkFetched(year, 0, time.Second, &pricedb.ProviderError{Range: year, StatusCode: 429, Err: errors.New("too many requests")})
	m.ChunkFetched(year, 0, time.Second, &pricedb.ProviderError{Range: year, Err: errors.New("connection refused")})
	m.ChunkFetched(year, 0, time.Second, errors.New("canceled"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksFetched.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ChunksFetched.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFailures.WithLabelValues("429")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderFailures.WithLabelValues("0")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ProviderFailures))
}

func TestMetrics_RunCompleted(t *testing.T) {
	m := New()
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	planned := []date.Range{year, {From: date.New(2024, 1, 1), To: date.New(2024, 2, 14)}}
	m.RunCompleted(pricedb.Report{Planned: planned, Chunks: planned[:1], Appended: 365}, 2*time.Second, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingChunks))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccessTimestamp))

	m.RunCompleted(pricedb.Report{Planned: planned[1:], Chunks: planned[1:], Appended: 45}, time.Second, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingChunks))
	assert.Equal(t, 410.0, testutil.ToFloat64(m.RatesAppended))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastRunDuration))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSuccessTimestamp))
}

func TestMetrics_Synchronizer(t *testing.T) {
	m := New()
	rate, err := pricedb.NewRate(date.New(2024, 2, 13), "USD", decimal.RequireFromString("0.93"), "EUR")
	require.NoError(t, err)

	s := &pricedb.Synchronizer{
		Store: pricedb.NewFileStore(filepath.Join(t.TempDir(), "prices.db"), nil),
		Provider: pricedb.FetcherFunc(func(_ context.Context, r date.Range) ([]pricedb.Rate, error) {
			return []pricedb.Rate{rate}, nil
		}),
		Start:    date.New(2024, 2, 13),
		Clock:    func() time.Time { return time.Date(2024, 2, 14, 12, 0, 0, 0, time.UTC) },
		Observer: m,
	}
	_, err = s.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChunksFetched.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RatesAppended))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.RunCompleted(pricedb.Report{Appended: 3}, time.Second, nil)

	path := filepath.Join(t.TempDir(), "pricedb.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "pricedb_rates_appended_total 3"), text)
	assert.Contains(t, text, `pricedb_sync_runs_total{result="success"} 1`)
	assert.Contains(t, text, "# HELP pricedb_sync_last_success_timestamp_seconds")
}
