// Package metricsio collects metrics of dumps and pushes them to
// Prometheus Pushgateway.
package metricsio

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/xdump/xdump/pkg/ent/report"
)

// job is the Pushgateway job of xdump metrics.
const job = "xdump"

// Metrics of one xdump run.
type Metrics struct {
	backend string
	reg     *prometheus.Registry

	Duration    prometheus.Gauge
	Size        prometheus.Gauge
	Rows        *prometheus.GaugeVec
	LastSuccess prometheus.Gauge
	Failures    prometheus.Counter
}

// New creates metrics in their own registry.
func New(backend string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		backend: backend,
		reg:     reg,
		Duration: f.NewGauge(prometheus.GaugeOpts{
			Name: "xdump_dump_duration_seconds",
			Help: "Time taken to create the dump",
		}),
		Size: f.NewGauge(prometheus.GaugeOpts{
			Name: "xdump_dump_size_bytes",
			Help: "Size of the dump archive in bytes",
		}),
		Rows: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "xdump_dump_rows",
			Help: "Number of rows dumped per table",
		}, []string{"table"}),
		LastSuccess: f.NewGauge(prometheus.GaugeOpts{
			Name: "xdump_dump_last_success_timestamp_seconds",
			Help: "Timestamp of the last successful dump",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "xdump_dump_failures_total",
			Help: "Number of failed dumps",
		}),
	}
}

// Registry returns the registry of the metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Observe records a successful dump.
func (m *Metrics) Observe(r report.Report) {
	m.Duration.Set(r.Duration.Seconds())
	m.Size.Set(float64(r.Size))
	for _, t := range r.Tables {
		m.Rows.WithLabelValues(t.Name).Set(float64(t.Rows))
	}
	m.LastSuccess.Set(float64(time.Now().Unix()))
}

// Fail records a failed dump.
func (m *Metrics) Fail() {
	m.Failures.Inc()
}

// Push sends the metrics to Pushgateway, grouped by backend.
func (m *Metrics) Push(ctx context.Context, url string) error {
	err := push.New(url, job).
		Gatherer(m.reg).
		Grouping("backend", m.backend).
		PushContext(ctx)
	if err != nil {
		slog.Error("Cannot push metrics", "url", url, "error", err)
		return err
	}
	slog.Info("Metrics are pushed", "url", url)
	return nil
}
