// Package metrics counts reaper operations with Prometheus collectors on a
// private registry. The CLI has no HTTP endpoint; counters are exported by
// writing a node_exporter textfile at exit.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"reaper-go/internal/reaper"
)

const namespace = "reaper"

// Registry implements reaper.Metrics.
type Registry struct {
	reg *prometheus.Registry

	scanned       prometheus.Counter
	scanErrors    prometheus.Counter
	classified    *prometheus.CounterVec
	banished      prometheus.Counter
	restored      prometheus.Counter
	undoResults   *prometheus.CounterVec
	logRecoveries prometheus.Counter
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		scanned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_scanned_total",
			Help:      "Regular files recorded by directory scans",
		}),
		scanErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_errors_total",
			Help:      "Entries skipped during scans because they could not be read",
		}),
		classified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classified_total",
			Help:      "Labels assigned by the classifier",
		}, []string{"label"}),
		banished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "banished_total",
			Help:      "Files moved into the graveyard",
		}),
		restored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restored_total",
			Help:      "Files moved back out of the graveyard",
		}),
		undoResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "undo_total",
			Help:      "Undo attempts by outcome",
		}, []string{"result"}),
		logRecoveries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_recoveries_total",
			Help:      "Unreadable operation logs replaced on open",
		}),
	}
}

func (r *Registry) FilesScanned(n int)                 { r.scanned.Add(float64(n)) }
func (r *Registry) ScanErrors(n int)                   { r.scanErrors.Add(float64(n)) }
func (r *Registry) Classified(c reaper.Classification) { r.classified.WithLabelValues(c.String()).Inc() }
func (r *Registry) Banished()                          { r.banished.Inc() }
func (r *Registry) Restored()                          { r.restored.Inc() }
func (r *Registry) UndoResult(result string)           { r.undoResults.WithLabelValues(result).Inc() }
func (r *Registry) LogRecovered()                      { r.logRecoveries.Inc() }

// Gatherer exposes the private registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes every metric in the text exposition format. The file
// is replaced atomically so a node_exporter never reads a partial write.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

var _ reaper.Metrics = (*Registry)(nil)
