// Package metrics exposes price database synchronization metrics in the
// Prometheus format.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/etnz/pricedb"
	"github.com/etnz/pricedb/date"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pricedb"

// Metrics collects synchronization metrics. It implements pricedb.Observer.
type Metrics struct {
	reg *prometheus.Registry
	now func() time.Time

	ChunksFetched        *prometheus.CounterVec
	FetchDuration        prometheus.Histogram
	RatesAppended        prometheus.Counter
	ProviderFailures     *prometheus.CounterVec
	RunsTotal            *prometheus.CounterVec
	LastRunDuration      prometheus.Gauge
	LastSuccessTimestamp prometheus.Gauge
	PendingChunks        prometheus.Gauge
}

// New creates the collectors and registers them in a new registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		now: time.Now,
		ChunksFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_fetched_total",
			Help:      "Total number of chunk fetch attempts per result",
		}, []string{"result"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of chunk fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		RatesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rates_appended_total",
			Help:      "Total number of rates appended to the store",
		}),
		ProviderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Total number of failed provider requests per HTTP status code, 0 when no response was received",
		}, []string{"code"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Total number of synchronization runs per result",
		}, []string{"result"}),
		LastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_duration_seconds",
			Help:      "Duration of the last synchronization run",
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last successful synchronization run",
		}),
		PendingChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_pending_chunks",
			Help:      "Number of chunks still missing after the last synchronization run",
		}),
	}
	m.reg.MustRegister(
		m.ChunksFetched,
		m.FetchDuration,
		m.RatesAppended,
		m.ProviderFailures,
		m.RunsTotal,
		m.LastRunDuration,
		m.LastSuccessTimestamp,
		m.PendingChunks,
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ChunkFetched implements pricedb.Observer.
func (m *Metrics) ChunkFetched(_ date.Range, _ int, elapsed time.Duration, err error) {
	m.FetchDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.ChunksFetched.WithLabelValues("success").Inc()
		return
	}
	m.ChunksFetched.WithLabelValues("failure").Inc()
	var perr *pricedb.ProviderError
	if errors.As(err, &perr) {
		m.ProviderFailures.WithLabelValues(strconv.Itoa(perr.StatusCode)).Inc()
	}
}

// RunCompleted implements pricedb.Observer.
func (m *Metrics) RunCompleted(rep pricedb.Report, elapsed time.Duration, err error) {
	m.LastRunDuration.Set(elapsed.Seconds())
	m.RatesAppended.Add(float64(rep.Appended))
	m.PendingChunks.Set(float64(len(rep.Planned) - len(rep.Chunks)))
	if err != nil {
		m.RunsTotal.WithLabelValues("failure").Inc()
		return
	}
	m.RunsTotal.WithLabelValues("success").Inc()
	m.LastSuccessTimestamp.Set(float64(m.now().Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format,
// for the node_exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

var _ pricedb.Observer = (*Metrics)(nil)
