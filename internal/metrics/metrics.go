// Package metrics exposes counters for the service's core events —
// rotations, reclaims, archived batches, ingest lag — on a
// prometheus/client_golang registry, and owns the rcrowley/go-metrics
// registry that sarama's producers and consumers report into
// (github.com/IBM/sarama's Config.MetricRegistry expects exactly this
// type). Neither library appears in the teacher's own source; both
// are pulled in only transitively by sarama there. Wiring them here
// gives that transitive dependency surface an actual caller instead
// of leaving it dead weight in go.mod.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry bundles the two metric systems this service reports
// through: go-metrics for anything sarama instruments internally,
// and a prometheus registry for everything this service counts
// itself.
type Registry struct {
	Sarama gometrics.Registry

	prom *prometheus.Registry

	Rotations        prometheus.Counter
	Reclaims         prometheus.Counter
	ArchivedBatches  prometheus.Counter
	ArchivedItems    prometheus.Counter
	IngestLagSeconds prometheus.Gauge
}

// New constructs a Registry with every counter registered and ready
// to increment.
func New() *Registry {
	prom := prometheus.NewRegistry()

	r := &Registry{
		Sarama: gometrics.NewRegistry(),
		prom:   prom,
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apilogd_segment_rotations_total",
			Help: "Number of BoundedList segment rotations performed.",
		}),
		Reclaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apilogd_reclaims_total",
			Help: "Number of ResourceManager epochs reclaimed.",
		}),
		ArchivedBatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apilogd_archived_batches_total",
			Help: "Number of trash batches drained into the archive store.",
		}),
		ArchivedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "apilogd_archived_items_total",
			Help: "Number of call records drained into the archive store.",
		}),
		IngestLagSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "apilogd_ingest_lag_seconds",
			Help: "Seconds between an ingested event's timestamp and when it was recorded.",
		}),
	}

	prom.MustRegister(r.Rotations, r.Reclaims, r.ArchivedBatches, r.ArchivedItems, r.IngestLagSeconds)
	return r
}

// Handler returns the HTTP handler serving this registry's metrics in
// the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{})
}
