// Package metrics provides Prometheus metrics for the traffic API and worker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "traffic"

// Collector holds all metrics. A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	EntriesSaved    *prometheus.CounterVec
	PreservedRows   prometheus.Counter
	EntriesDeleted  prometheus.Counter
	RequestDuration *prometheus.HistogramVec
	BudgetRatio     *prometheus.GaugeVec
	ExportsTotal    *prometheus.CounterVec
}

// New creates a collector on a private registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c := NewWithRegistry(reg)
	c.registry = reg
	return c
}

// NewWithRegistry registers the domain metrics on reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		EntriesSaved: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_saved_total",
				Help:      "Daily entries saved, by mode (products or aggregate)",
			},
			[]string{"mode"},
		),
		PreservedRows: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "preserved_rows_total",
				Help:      "Product rows kept from storage because the submission was empty",
			},
		),
		EntriesDeleted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_deleted_total",
				Help:      "Daily entries deleted",
			},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "route", "status"},
		),
		BudgetRatio: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "budget_ratio",
				Help:      "Last computed month-to-date spend over monthly budget",
			},
			[]string{"client_id"},
		),
		ExportsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sheet_exports_total",
				Help:      "Entry events exported to the spreadsheet, by event type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// Handler serves the collector's registry, or the default gatherer when the
// collector was built on an external registry.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) EntrySaved(mode string, preserved int) {
	if c == nil {
		return
	}
	c.EntriesSaved.WithLabelValues(mode).Inc()
	if preserved > 0 {
		c.PreservedRows.Add(float64(preserved))
	}
}

func (c *Collector) EntryDeleted() {
	if c == nil {
		return
	}
	c.EntriesDeleted.Inc()
}

func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.RequestDuration.WithLabelValues(method, route, StatusClass(status)).Observe(d.Seconds())
}

func (c *Collector) SetBudgetRatio(clientID int64, ratio float64) {
	if c == nil {
		return
	}
	c.BudgetRatio.WithLabelValues(strconv.FormatInt(clientID, 10)).Set(ratio)
}

func (c *Collector) ExportProcessed(eventType, outcome string) {
	if c == nil {
		return
	}
	c.ExportsTotal.WithLabelValues(eventType, outcome).Inc()
}

// StatusClass collapses an HTTP status into 2xx/3xx/4xx/5xx.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
