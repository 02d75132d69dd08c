package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// entriesScheduled counts schedule entries created by the scheduler.
	entriesScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "scheduler",
			Name:      "entries_scheduled_total",
			Help:      "Number of schedule entries created",
		},
	)

	// campaignOutcomes counts per-campaign cycle results.
	// Labels:
	// - outcome: "scheduled", "out_of_window", "no_leads", "no_capacity", "config_error" or "error"
	campaignOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "scheduler",
			Name:      "campaign_cycles_total",
			Help:      "Campaign scheduling cycles by outcome",
		},
		[]string{"outcome"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "outreach",
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full scheduling cycle",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// sends counts executor send attempts.
	// Labels:
	// - status: "sent" or "error"
	sends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "executor",
			Name:      "sends_total",
			Help:      "Email send attempts by terminal status",
		},
		[]string{"status"},
	)

	sendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "outreach",
			Subsystem: "executor",
			Name:      "send_duration_seconds",
			Help:      "Time spent in the email transport per send",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// dailyResets counts applied daily counter resets.
	dailyResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "quota",
			Name:      "daily_resets_total",
			Help:      "Number of daily sender counter resets applied",
		},
	)

	// taskRuns counts periodic task executions.
	// Labels:
	// - task: "scheduler", "executor" or "daily_reset"
	// - status: "ok" or "error"
	taskRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "outreach",
			Subsystem: "runner",
			Name:      "task_runs_total",
			Help:      "Periodic task executions by task and status",
		},
		[]string{"task", "status"},
	)
)

func AddEntriesScheduled(n int) {
	if n <= 0 {
		return
	}
	entriesScheduled.Add(float64(n))
}

// IncCampaignOutcome records how one campaign's cycle ended.
func IncCampaignOutcome(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	campaignOutcomes.WithLabelValues(outcome).Inc()
}

func ObserveCycle(d time.Duration) {
	cycleDuration.Observe(d.Seconds())
}

// IncSend records a send attempt with its terminal status.
func IncSend(status string) {
	if status == "" {
		status = "unknown"
	}
	sends.WithLabelValues(status).Inc()
}

func ObserveSend(d time.Duration) {
	sendDuration.Observe(d.Seconds())
}

func IncDailyReset() {
	dailyResets.Inc()
}

// IncTaskRun records one periodic task run.
func IncTaskRun(task string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	taskRuns.WithLabelValues(task, status).Inc()
}
