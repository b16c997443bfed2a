package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests          *prometheus.CounterVec
	CounterPenaltiesApplied  *prometheus.CounterVec // by reason
	CounterPenaltyAmount     prometheus.Counter
	CounterPenaltiesRemoved  prometheus.Counter
	CounterLogsGenerated     prometheus.Counter
	CounterLogsMarkedMissed  prometheus.Counter
	CounterWeekUnlocks       prometheus.Counter
	CounterWeightSpikes      prometheus.Counter
	CounterJobRuns           *prometheus.CounterVec // by job, outcome
	CounterJobLockContention *prometheus.CounterVec // by job

	// histograms
	HistRequestDuration prometheus.Histogram
	HistJobDuration     *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("kinetix", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("kinetix", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	return &Manager{
		CounterRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request",
			Help:      "The total number of incoming requests",
		}, []string{"method", "status"}),
		CounterPenaltiesApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "penalties_applied",
			Help:      "The total number of charges added to client balances",
		}, []string{"reason"}),
		CounterPenaltyAmount: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "penalty_amount",
			Help:      "Sum of all charged amounts",
		}),
		CounterPenaltiesRemoved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "penalties_removed",
			Help:      "Penalty entries removed by plan cancellation",
		}),
		CounterLogsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workout_logs_generated",
			Help:      "Workout logs inserted by plan assignment",
		}),
		CounterLogsMarkedMissed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "workout_logs_marked_missed",
			Help:      "Workout logs flipped to missed by the sweeper",
		}),
		CounterWeekUnlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "week_unlocks",
			Help:      "Successful next-week unlocks",
		}),
		CounterWeightSpikes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "weight_spikes",
			Help:      "Weigh-ins flagged as a spike",
		}),
		CounterJobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_runs",
			Help:      "Batch job runs by outcome",
		}, []string{"job", "outcome"}),
		CounterJobLockContention: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_lock_skipped",
			Help:      "Batch job runs skipped because another instance held the lock",
		}, []string{"job"}),
		HistRequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			Name:      "request_duration_seconds",
			Help:      "Total duration of requests in seconds",
		}),
		HistJobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Buckets:   []float64{0.01, 0.1, 1, 10, 60, 120, 300, 600},
			Name:      "job_duration_seconds",
			Help:      "Duration of a single batch job run in seconds",
		}, []string{"job"}),
	}
}
