package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "grants_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	engagementCreateTotal   *prometheus.CounterVec
	engagementCreateLatency *prometheus.HistogramVec
	engagementEditTotal     *prometheus.CounterVec
	approvalSignTotal       *prometheus.CounterVec
	engagementStatusTotal   *prometheus.CounterVec

	reallocationTotal   *prometheus.CounterVec
	reallocationLatency *prometheus.HistogramVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	overEngagedTotal     prometheus.Counter
	paymentRecordedTotal *prometheus.CounterVec

	notificationTotal *prometheus.CounterVec
	snapshotTotal     *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		engagementCreateTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "engagement_create_total",
				Help: "Total engagement creations by result",
			},
			[]string{"result"},
		)
		engagementCreateLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "engagement_create_latency_seconds",
				Help:    "Engagement creation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		engagementEditTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "engagement_edit_total",
				Help: "Total engagement edits by result",
			},
			[]string{"result"},
		)
		approvalSignTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "approval_sign_total",
				Help: "Total approval signatures by slot and result",
			},
			[]string{"slot", "result"},
		)
		engagementStatusTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "engagement_status_total",
				Help: "Total engagement status changes by target status",
			},
			[]string{"status"},
		)

		reallocationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reallocation_total",
				Help: "Total grant reallocations by result",
			},
			[]string{"result"},
		)
		reallocationLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reallocation_latency_seconds",
				Help:    "Grant reallocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		overEngagedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "over_engaged_total",
				Help: "Total engagements leaving a sub-line above its notified amount",
			},
		)
		paymentRecordedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "payment_recorded_total",
				Help: "Total recorded payments by status",
			},
			[]string{"status"},
		)

		notificationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_total",
				Help: "Total over-engagement notifications by result",
			},
			[]string{"result"},
		)
		snapshotTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "snapshot_total",
				Help: "Total state snapshots by operation and result",
			},
			[]string{"op", "result"},
		)

		prometheus.MustRegister(
			engagementCreateTotal,
			engagementCreateLatency,
			engagementEditTotal,
			approvalSignTotal,
			engagementStatusTotal,
			reallocationTotal,
			reallocationLatency,
			reportExportTotal,
			reportExportLatency,
			overEngagedTotal,
			paymentRecordedTotal,
			notificationTotal,
			snapshotTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveEngagementCreate records creation latency and result.
func ObserveEngagementCreate(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if engagementCreateTotal != nil {
		engagementCreateTotal.WithLabelValues(result).Inc()
	}
	if engagementCreateLatency != nil {
		engagementCreateLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncEngagementEdit increments the edit counter.
func IncEngagementEdit(result string) {
	if result == "" {
		result = resultSuccess
	}
	if engagementEditTotal != nil {
		engagementEditTotal.WithLabelValues(result).Inc()
	}
}

// IncApprovalSign increments the signature counter.
func IncApprovalSign(slot, result string) {
	if slot == "" {
		slot = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if approvalSignTotal != nil {
		approvalSignTotal.WithLabelValues(slot, result).Inc()
	}
}

// IncEngagementStatus increments the status change counter.
func IncEngagementStatus(status string) {
	if status == "" {
		status = "unknown"
	}
	if engagementStatusTotal != nil {
		engagementStatusTotal.WithLabelValues(status).Inc()
	}
}

// ObserveReallocation records reallocation latency and result.
func ObserveReallocation(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if reallocationTotal != nil {
		reallocationTotal.WithLabelValues(result).Inc()
	}
	if reallocationLatency != nil {
		reallocationLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncOverEngaged increments the over-engagement counter.
func IncOverEngaged() {
	if overEngagedTotal != nil {
		overEngagedTotal.Inc()
	}
}

// IncPaymentRecorded increments the payment counter.
func IncPaymentRecorded(status string) {
	if status == "" {
		status = "unknown"
	}
	if paymentRecordedTotal != nil {
		paymentRecordedTotal.WithLabelValues(status).Inc()
	}
}

// IncNotification increments the notification counter.
func IncNotification(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notificationTotal != nil {
		notificationTotal.WithLabelValues(result).Inc()
	}
}

// IncSnapshot increments the snapshot counter for op (load, save).
func IncSnapshot(op, result string) {
	if op == "" {
		op = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if snapshotTotal != nil {
		snapshotTotal.WithLabelValues(op, result).Inc()
	}
}

// Result maps an error to a result label.
func Result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
