// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	BillingEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_provider_events_total",
			Help: "Payment provider events handled, by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	TopUpsCredited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_topups_credited_total",
			Help: "Top-up sessions credited to user balances",
		},
	)

	TopUpCentsCredited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_topup_cents_credited_total",
			Help: "Sum of top-up amounts credited, in cents",
		},
	)

	UsageConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_usage_consumed_total",
			Help: "Metered actions consumed, by action and funding source",
		},
		[]string{"action", "source"},
	)

	UsageDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_usage_denied_total",
			Help: "Metered actions rejected for exhausted allowance and balance",
		},
		[]string{"action"},
	)

	AdminAdjustments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_admin_adjustments_total",
			Help: "Audited admin adjustments, by kind",
		},
		[]string{"kind"},
	)

	UsageIndexFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analytics_usage_index_failures_total",
			Help: "Usage log documents that could not be indexed for search",
		},
	)

	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_requests_total",
			Help: "Webhook deliveries received, by response status",
		},
		[]string{"status"},
	)
)
