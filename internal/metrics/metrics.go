// Package metrics exports evaluator activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"

	"github.com/mengzui/Pinq/internal/evaluator"
	"github.com/mengzui/Pinq/internal/request"
)

// Request paths recorded in the "path" label.
const (
	PathPushdown = "pushdown" // answered by a source hook
	PathDeclined = "declined" // needed materialization
	PathCached   = "cached"   // answered by the cached snapshot
)

// Collector records evaluator events. It implements evaluator.Observer.
type Collector struct {
	requests         *prometheus.CounterVec
	materializations prometheus.Counter
	elements         prometheus.Histogram
}

var _ evaluator.Observer = (*Collector)(nil)

// New registers the collector's metrics on reg.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pinq_requests_total",
				Help: "Total number of requests by kind and evaluation path",
			},
			[]string{"kind", "path"},
		),
		materializations: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "pinq_materializations_total",
				Help: "Total number of query materializations",
			},
		),
		elements: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pinq_materialized_elements",
				Help:    "Number of elements produced per materialization",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),
	}
}

func (c *Collector) Pushdown(kind request.Kind) {
	c.requests.WithLabelValues(string(kind), PathPushdown).Inc()
}

func (c *Collector) Declined(kind request.Kind) {
	c.requests.WithLabelValues(string(kind), PathDeclined).Inc()
}

func (c *Collector) Cached(kind request.Kind) {
	c.requests.WithLabelValues(string(kind), PathCached).Inc()
}

func (c *Collector) Materialized(n int) {
	c.materializations.Inc()
	c.elements.Observe(float64(n))
}

// WriteText writes every metric family gathered from g in the Prometheus
// text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
