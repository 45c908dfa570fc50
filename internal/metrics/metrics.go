package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rispay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rispay_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "path"},
	)

	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rispay_transfers_total",
			Help: "Total number of committed money movements",
		},
		[]string{"kind"},
	)

	TransferRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rispay_transfer_rejections_total",
			Help: "Total number of rejected money movements by error kind",
		},
		[]string{"kind", "reason"},
	)

	FeesCollectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rispay_fees_collected_total",
			Help: "Sum of fees and taxes collected",
		},
		[]string{"kind"},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rispay_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "result"},
	)

	InterestBanksSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rispay_interest_banks_skipped_total",
			Help: "Banks skipped by interest payout because the vault could not cover it",
		},
	)

	OutboxMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rispay_outbox_messages_total",
			Help: "Outbox messages relayed to kafka",
		},
		[]string{"status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordTransfer(kind string) {
	TransfersTotal.WithLabelValues(kind).Inc()
}

func RecordRejection(kind, reason string) {
	TransferRejectionsTotal.WithLabelValues(kind, reason).Inc()
}

// RecordFee 金额为 0 时不记录
func RecordFee(kind string, amount float64) {
	if amount <= 0 {
		return
	}
	FeesCollectedTotal.WithLabelValues(kind).Add(amount)
}

func RecordJobRun(job, result string) {
	JobRunsTotal.WithLabelValues(job, result).Inc()
}

func RecordInterestSkip() {
	InterestBanksSkippedTotal.Inc()
}

func RecordOutbox(status string) {
	OutboxMessagesTotal.WithLabelValues(status).Inc()
}
