package executor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "rebalance_executor"

var (
	// executionStopped counts stop requests, whether made by a user or
	// triggered automatically by a dead or aborting replica task. An
	// execution that finishes without a stop does not increment it.
	executionStopped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_stopped",
			Help:      "Total number of executions that stopped, by any cause.",
		},
	)

	// executionStoppedByUser counts executions stopped via
	// userTriggeredStopExecution specifically.
	executionStoppedByUser = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_stopped_by_user",
			Help:      "Total number of executions stopped by an explicit user request.",
		},
	)

	// executionStartedKafkaAssigner counts executions started while
	// SetExecutionMode(true) was in effect.
	executionStartedKafkaAssigner = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_started_kafka_assigner",
			Help:      "Total number of executions started in kafka-assigner mode.",
		},
	)

	// executionStartedNonKafkaAssigner counts every other execution start.
	executionStartedNonKafkaAssigner = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_started_non_kafka_assigner",
			Help:      "Total number of executions started outside kafka-assigner mode.",
		},
	)

	// batchSize is a supplementary histogram (not named in spec §6, but a
	// natural Prometheus extension of the same "observable gauges" the
	// spec does name): the size of each dispatched batch, by phase.
	batchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of tasks dispatched in a single batch.",
			Buckets:   prometheus.LinearBuckets(1, 5, 10),
		},
		[]string{"phase"},
	)

	// taskDurationSeconds is the supplementary per-task-type completion
	// latency histogram.
	taskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Time from a task's IN_PROGRESS transition to a terminal state.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"task_type", "terminal_state"},
	)
)
