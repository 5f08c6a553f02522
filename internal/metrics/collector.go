// internal/metrics/collector.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rovshanmuradov/losscheck/internal/pnl"
)

const namespace = "losscheck"

// Event kinds counted per asset.
const (
	KindProcessed        = "processed"
	KindClamped          = "clamped"
	KindIgnored          = "ignored"
	KindPriceUnavailable = "price_unavailable"
	KindAssumedDecimals  = "assumed_decimals"
)

// Asset outcome statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFailed   = "failed"
)

// Collector records per-asset replay outcomes. It implements pnl.Observer
// and owns its registry so several collectors can coexist in tests.
type Collector struct {
	registry *prometheus.Registry

	events   *prometheus.CounterVec
	assets   *prometheus.CounterVec
	duration prometheus.Histogram
}

var _ pnl.Observer = (*Collector)(nil)

// NewCollector creates a collector with its metrics registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Transfer events replayed, by asset and outcome kind",
			},
			[]string{"asset", "kind"},
		),
		assets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assets_total",
				Help:      "Assets summarized, by status",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "asset_duration_seconds",
				Help:      "Time spent replaying one asset, price lookups included",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
	}
	c.registry.MustRegister(c.events, c.assets, c.duration)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) AssetProcessed(s pnl.AssetStats) {
	label := s.AssetSymbol
	if label == "" {
		label = s.AssetID
	}
	d := s.Degradation
	c.events.WithLabelValues(label, KindProcessed).Add(float64(s.Events))
	c.add(label, KindClamped, d.ClampedEvents)
	c.add(label, KindIgnored, d.IgnoredEvents)
	c.add(label, KindPriceUnavailable, d.PriceUnavailable)
	c.add(label, KindAssumedDecimals, d.AssumedDecimals)

	status := StatusOK
	if d.Degraded() {
		status = StatusDegraded
	}
	c.assets.WithLabelValues(status).Inc()
	c.duration.Observe(s.Duration.Seconds())
}

func (c *Collector) AssetFailed(string, error) {
	c.assets.WithLabelValues(StatusFailed).Inc()
}

// Reset clears all series.
func (c *Collector) Reset() {
	c.events.Reset()
	c.assets.Reset()
}

func (c *Collector) add(asset, kind string, n int) {
	if n > 0 {
		c.events.WithLabelValues(asset, kind).Add(float64(n))
	}
}
