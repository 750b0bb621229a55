// Package metrics records per-run export metrics on a private registry and
// writes them as a node_exporter textfile.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "commerce_export"

// Recorder holds the metrics of one process. Export name is a constant
// label on every series.
type Recorder struct {
	registry *prometheus.Registry

	records        *prometheus.CounterVec
	pages          *prometheus.CounterVec
	requests       *prometheus.CounterVec
	purchases      *prometheus.GaugeVec
	feedItems      prometheus.Gauge
	runDuration    prometheus.Gauge
	runs           *prometheus.CounterVec
	lastSuccess    prometheus.Gauge
	requestLatency *prometheus.HistogramVec
}

// New registers all export metrics on a fresh registry.
func New(export string) *Recorder {
	labels := prometheus.Labels{"export": export}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_total",
			Help: "Raw records read per collection", ConstLabels: labels,
		}, []string{"collection"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pages_total",
			Help: "Pages fetched per collection", ConstLabels: labels,
		}, []string{"collection"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_total",
			Help: "API requests by status code", ConstLabels: labels,
		}, []string{"code", "method"}),
		purchases: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "purchase_lines",
			Help: "Order lines of the last join by outcome", ConstLabels: labels,
		}, []string{"outcome"}),
		feedItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "feed_items",
			Help: "Items written to the last feed", ConstLabels: labels,
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_duration_seconds",
			Help: "Duration of the last run", ConstLabels: labels,
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Runs by result", ConstLabels: labels,
		}, []string{"result"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last successful run", ConstLabels: labels,
		}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds",
			Help: "API request latency", ConstLabels: labels,
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method"}),
	}

	r.registry.MustRegister(
		r.records, r.pages, r.requests, r.purchases, r.feedItems,
		r.runDuration, r.runs, r.lastSuccess, r.requestLatency,
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) AddRecords(collection string, n int) {
	r.records.WithLabelValues(collection).Add(float64(n))
}

func (r *Recorder) AddPage(collection string) {
	r.pages.WithLabelValues(collection).Inc()
}

// SetPurchaseLines records the outcome counts of a join.
func (r *Recorder) SetPurchaseLines(emitted, anonymousDropped, joinMisses int) {
	r.purchases.WithLabelValues("emitted").Set(float64(emitted))
	r.purchases.WithLabelValues("anonymous_dropped").Set(float64(anonymousDropped))
	r.purchases.WithLabelValues("join_miss").Set(float64(joinMisses))
}

func (r *Recorder) SetFeedItems(n int) { r.feedItems.Set(float64(n)) }

// ObserveRun records the result of one run.
func (r *Recorder) ObserveRun(start, end time.Time, err error) {
	r.runDuration.Set(end.Sub(start).Seconds())
	if err != nil {
		r.runs.WithLabelValues("failure").Inc()
		return
	}
	r.runs.WithLabelValues("success").Inc()
	r.lastSuccess.Set(float64(end.Unix()))
}

// InstrumentRoundTripper counts and times the requests that pass through next.
func (r *Recorder) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(r.requests,
		promhttp.InstrumentRoundTripperDuration(r.requestLatency, next))
}

// WriteTextfile writes the current values in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
