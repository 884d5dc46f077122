package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "engagements_pending",
			Help: "Engagements awaiting a status decision",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM engagements WHERE status = 'pending'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "sub_budget_lines_over_engaged",
			Help: "Sub budget lines whose engaged amount exceeds the notified amount",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM sub_budget_lines WHERE engaged_amount > notified_amount")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warn("metrics query failed", zap.Error(err))
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
