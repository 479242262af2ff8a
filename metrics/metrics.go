// Package metrics exposes scanner progress as both go-metrics registry
// entries and a Prometheus /metrics endpoint, so operators already scraping
// Prometheus don't need a go-metrics-to-Prometheus bridge of their own.
package metrics

import (
	"net/http"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/klaytn/bridgescan/log"
)

var logger = log.NewModuleLogger(log.ModuleMetrics)

// Recorder is the single point every task reports its progress and
// drop decisions through.
type Recorder struct {
	scanHead        gometrics.Gauge
	eventualityHead gometrics.Gauge
	acknowledged    gometrics.Gauge
	pendingByKey    map[string]gometrics.Gauge

	promScanHead        prometheus.Gauge
	promEventualityHead prometheus.Gauge
	promAcknowledged    prometheus.Gauge
	promPending         *prometheus.GaugeVec
	promRejected        *prometheus.CounterVec
}

// New registers every metric with both go-metrics' DefaultRegistry and
// Prometheus' global default registry (so New panics if called twice in
// one process); Handler serves that default registry under /metrics.
func New() *Recorder {
	r := &Recorder{
		scanHead:        gometrics.NewRegisteredGauge("scanner/scan_head", gometrics.DefaultRegistry),
		eventualityHead: gometrics.NewRegisteredGauge("scanner/eventuality_head", gometrics.DefaultRegistry),
		acknowledged:    gometrics.NewRegisteredGauge("scanner/highest_acknowledged_block", gometrics.DefaultRegistry),
		pendingByKey:    make(map[string]gometrics.Gauge),

		promScanHead:        prometheus.NewGauge(prometheus.GaugeOpts{Name: "scanner_scan_head", Help: "Highest block number Scan has processed."}),
		promEventualityHead: prometheus.NewGauge(prometheus.GaugeOpts{Name: "scanner_eventuality_head", Help: "Highest block number Eventuality has processed."}),
		promAcknowledged:    prometheus.NewGauge(prometheus.GaugeOpts{Name: "scanner_highest_acknowledged_block", Help: "Highest block number acknowledged by the consensus layer."}),
		promPending:         prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "scanner_pending_eventualities", Help: "Outstanding Eventualities, by owning key."}, []string{"key"}),
		promRejected:        prometheus.NewCounterVec(prometheus.CounterOpts{Name: "scanner_rejected_outputs_total", Help: "Outputs dropped without being credited, by reason."}, []string{"reason"}),
	}

	prometheus.MustRegister(r.promScanHead, r.promEventualityHead, r.promAcknowledged, r.promPending, r.promRejected)
	return r
}

func (r *Recorder) Handler() http.Handler { return promhttp.Handler() }

// Every method below tolerates a nil Recorder, so tasks can hold one
// unconditionally and skip it by simply never calling New.

func (r *Recorder) ScanHead(n uint64) {
	if r == nil {
		return
	}
	r.scanHead.Update(int64(n))
	r.promScanHead.Set(float64(n))
}

func (r *Recorder) EventualityHead(n uint64) {
	if r == nil {
		return
	}
	r.eventualityHead.Update(int64(n))
	r.promEventualityHead.Set(float64(n))
}

func (r *Recorder) Acknowledged(n uint64) {
	if r == nil {
		return
	}
	r.acknowledged.Update(int64(n))
	r.promAcknowledged.Set(float64(n))
}

// PendingEventualities reports key's current outstanding-Eventuality count.
func (r *Recorder) PendingEventualities(key string, count int) {
	if r == nil {
		return
	}
	g, ok := r.pendingByKey[key]
	if !ok {
		g = gometrics.NewRegisteredGauge("scanner/pending_eventualities/"+key, gometrics.DefaultRegistry)
		r.pendingByKey[key] = g
	}
	g.Update(int64(count))
	r.promPending.WithLabelValues(key).Set(float64(count))
}

// RejectedOutput increments the drop counter for reason, logging at Debug
// for local visibility without promoting a routine drop to a Warn.
func (r *Recorder) RejectedOutput(reason string) {
	if r == nil {
		return
	}
	r.promRejected.WithLabelValues(reason).Inc()
	logger.Debug("rejected output", "reason", reason)
}
