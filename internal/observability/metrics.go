package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the recruitment service.
// Metrics are organized by subsystem: recruitment windows, enrollments,
// cohorts, fulfillment, catalogue, and events. All counters and histograms are
// registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// WindowsOpened counts recruitment windows opened across all studies.
	WindowsOpened prometheus.Counter

	// WindowsClosed counts recruitment windows closed, labeled by how the close
	// was triggered ("manual", "sweep").
	WindowsClosed *prometheus.CounterVec

	// WindowDuration observes how long windows stayed open, in seconds.
	WindowDuration prometheus.Histogram

	// Enrollments counts participants enrolled, labeled by intake channel
	// ("simulated", "kafka", "generated").
	Enrollments *prometheus.CounterVec

	// EnrollmentsPerWindow observes the distribution of enrollments per closed window.
	EnrollmentsPerWindow prometheus.Histogram

	// CohortsFormed counts cohorts formed at window close.
	CohortsFormed prometheus.Counter

	// CohortsDelivered counts cohorts that reached the complete status.
	CohortsDelivered prometheus.Counter

	// CohortSize observes the distribution of cohort sizes.
	CohortSize prometheus.Histogram

	// TrackingCodesEntered counts tracking code entries, labeled by whether the
	// entry was the first for the participant or an overwrite.
	TrackingCodesEntered *prometheus.CounterVec

	// StudiesCompleted counts studies whose recruitment reached the terminal status.
	StudiesCompleted prometheus.Counter

	// ManifestsExported counts shipping manifest exports.
	ManifestsExported prometheus.Counter

	// CommandsTotal counts engine commands processed, labeled by command and outcome.
	CommandsTotal *prometheus.CounterVec

	// CommandDuration observes engine command duration in seconds, labeled by command.
	CommandDuration *prometheus.HistogramVec

	// CatalogueRequestsTotal counts HTTP requests to the study catalogue, labeled by endpoint.
	CatalogueRequestsTotal *prometheus.CounterVec

	// CatalogueRequestsFailed counts failed catalogue requests, labeled by endpoint and error type.
	CatalogueRequestsFailed *prometheus.CounterVec

	// CatalogueRequestDuration observes catalogue request duration in seconds.
	CatalogueRequestDuration *prometheus.HistogramVec

	// CatalogueRateLimited counts rate-limited responses from the catalogue.
	CatalogueRateLimited prometheus.Counter

	// EventsPublished counts lifecycle events published, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsFailed counts lifecycle events that failed to publish, labeled by event type.
	EventsFailed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Windows
		WindowsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_opened_total",
			Help:      "Total number of recruitment windows opened",
		}),
		WindowsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_closed_total",
			Help:      "Total number of recruitment windows closed by trigger",
		}, []string{"trigger"}),
		WindowDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "window_duration_seconds",
			Help:      "Duration recruitment windows stayed open in seconds",
			Buckets:   []float64{60, 600, 3600, 7200, 21600, 43200, 86400, 172800},
		}),

		// Enrollments
		Enrollments: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Total number of participants enrolled by intake channel",
		}, []string{"channel"}),
		EnrollmentsPerWindow: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrollments_per_window",
			Help:      "Number of participants enrolled per closed window",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),

		// Cohorts
		CohortsFormed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cohorts_formed_total",
			Help:      "Total number of cohorts formed at window close",
		}),
		CohortsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cohorts_delivered_total",
			Help:      "Total number of cohorts fully delivered",
		}),
		CohortSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cohort_size",
			Help:      "Number of participants per formed cohort",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200},
		}),
		TrackingCodesEntered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_codes_entered_total",
			Help:      "Total number of tracking code entries by entry kind",
		}, []string{"kind"}),
		StudiesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "studies_completed_total",
			Help:      "Total number of studies whose recruitment completed",
		}),
		ManifestsExported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifests_exported_total",
			Help:      "Total number of shipping manifests exported",
		}),

		// Commands
		CommandsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total number of engine commands processed by command and outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of engine commands in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"command"}),

		// Catalogue
		CatalogueRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalogue_requests_total",
			Help:      "Total number of requests to the study catalogue",
		}, []string{"endpoint"}),
		CatalogueRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalogue_requests_failed_total",
			Help:      "Total number of failed requests to the study catalogue",
		}, []string{"endpoint", "error_type"}),
		CatalogueRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "catalogue_request_duration_seconds",
			Help:      "Duration of requests to the study catalogue in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		CatalogueRateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalogue_rate_limited_total",
			Help:      "Total number of rate limit responses from the study catalogue",
		}),

		// Events
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of lifecycle events published by type",
		}, []string{"event_type"}),
		EventsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_failed_total",
			Help:      "Total number of lifecycle events that failed to publish by type",
		}, []string{"event_type"}),
	}
}

// RecordWindowOpened records that a recruitment window has opened.
func (m *Metrics) RecordWindowOpened() {
	m.WindowsOpened.Inc()
}

// RecordWindowClosed records that a recruitment window has closed.
func (m *Metrics) RecordWindowClosed(trigger string, durationSeconds float64, enrolled int) {
	m.WindowsClosed.WithLabelValues(trigger).Inc()
	m.WindowDuration.Observe(durationSeconds)
	m.EnrollmentsPerWindow.Observe(float64(enrolled))
}

// RecordEnrollments records participants enrolled through a channel.
func (m *Metrics) RecordEnrollments(channel string, count int) {
	m.Enrollments.WithLabelValues(channel).Add(float64(count))
}

// RecordCohortFormed records that a cohort has been formed.
func (m *Metrics) RecordCohortFormed(size int) {
	m.CohortsFormed.Inc()
	m.CohortSize.Observe(float64(size))
}

// RecordCohortDelivered records that a cohort has been fully delivered.
func (m *Metrics) RecordCohortDelivered() {
	m.CohortsDelivered.Inc()
}

// RecordTrackingCodeEntered records a tracking code entry.
func (m *Metrics) RecordTrackingCodeEntered(firstEntry bool) {
	kind := "overwrite"
	if firstEntry {
		kind = "first"
	}
	m.TrackingCodesEntered.WithLabelValues(kind).Inc()
}

// RecordStudyCompleted records that a study's recruitment has completed.
func (m *Metrics) RecordStudyCompleted() {
	m.StudiesCompleted.Inc()
}

// RecordManifestExported records a shipping manifest export.
func (m *Metrics) RecordManifestExported() {
	m.ManifestsExported.Inc()
}

// RecordCommand records an engine command and its outcome.
func (m *Metrics) RecordCommand(command, outcome string, durationSeconds float64) {
	m.CommandsTotal.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(durationSeconds)
}

// RecordCatalogueRequest records a request to the study catalogue.
func (m *Metrics) RecordCatalogueRequest(endpoint string, durationSeconds float64) {
	m.CatalogueRequestsTotal.WithLabelValues(endpoint).Inc()
	m.CatalogueRequestDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordCatalogueRequestFailed records a failed catalogue request.
func (m *Metrics) RecordCatalogueRequestFailed(endpoint, errorType string) {
	m.CatalogueRequestsFailed.WithLabelValues(endpoint, errorType).Inc()
}

// RecordCatalogueRateLimited records a rate limit response from the catalogue.
func (m *Metrics) RecordCatalogueRateLimited() {
	m.CatalogueRateLimited.Inc()
}

// RecordEventPublished records a published lifecycle event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventFailed records a lifecycle event that failed to publish.
func (m *Metrics) RecordEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
