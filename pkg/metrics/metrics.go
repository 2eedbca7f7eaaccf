// Package metrics counts crawl activity on a private Prometheus registry and
// can dump it in the node_exporter textfile format when a run ends.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/amosWeiskopf/rankcrawl/internal/models"
)

// Collector owns every crawl collector
type Collector struct {
	registry *prometheus.Registry

	visits         *prometheus.CounterVec
	edges          prometheus.Counter
	workersActive  prometheus.Gauge
	fetchDuration  prometheus.Histogram
	robotsFetches  prometheus.Counter
	robotsFailures prometheus.Counter
	rankIterations prometheus.Gauge
	rankDelta      prometheus.Gauge
}

// New registers the collectors on a fresh registry
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		visits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rankcrawl_pages_total",
			Help: "Claimed URLs partitioned by outcome.",
		}, []string{"status"}),
		edges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankcrawl_edges_total",
			Help: "Distinct links recorded in the graph.",
		}),
		workersActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rankcrawl_workers_active",
			Help: "Workers currently processing a URL.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rankcrawl_visit_duration_seconds",
			Help:    "Wall time per claimed URL, including robots lookup and retries.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		robotsFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankcrawl_robots_fetches_total",
			Help: "robots.txt fetch attempts.",
		}),
		robotsFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rankcrawl_robots_failures_total",
			Help: "robots.txt fetches that fell back to the failure policy.",
		}),
		rankIterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rankcrawl_rank_iterations",
			Help: "Power iterations performed by the last rank computation.",
		}),
		rankDelta: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rankcrawl_rank_delta",
			Help: "L1 delta of the last power iteration.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.visits, c.edges, c.workersActive, c.fetchDuration,
		c.robotsFetches, c.robotsFailures, c.rankIterations, c.rankDelta,
	} {
		if err := c.registry.Register(col); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

// VisitRecorded counts one claimed URL
func (c *Collector) VisitRecorded(v models.Visit) {
	c.visits.WithLabelValues(string(v.Status)).Inc()
	c.fetchDuration.Observe(v.Duration.Seconds())
}

// EdgesRecorded counts newly recorded links
func (c *Collector) EdgesRecorded(n int) {
	if n > 0 {
		c.edges.Add(float64(n))
	}
}

// WorkerActive moves the active-worker gauge
func (c *Collector) WorkerActive(delta int) {
	c.workersActive.Add(float64(delta))
}

// ObserveRobotsFetch counts a robots.txt fetch attempt
func (c *Collector) ObserveRobotsFetch(_ string, err error) {
	c.robotsFetches.Inc()
	if err != nil {
		c.robotsFailures.Inc()
	}
}

// RankFinished records how the power iteration ended
func (c *Collector) RankFinished(iterations int, delta float64) {
	c.rankIterations.Set(float64(iterations))
	c.rankDelta.Set(delta)
}

// WriteTextfile writes every metric to path in the Prometheus text format
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
