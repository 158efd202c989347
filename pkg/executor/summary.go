package executor

import "github.com/segmentio/rebalance-executor/pkg/proposal"

// TasksSummary is a read model over a TaskManager's current task set:
// counts by state plus the sets the execution loop and ExecutorState need
// to report progress.
type TasksSummary struct {
	CountsByState map[TaskState]int

	// RemainingReplicaMovements and RemainingLeaderMovements hold only
	// PENDING tasks, disjoint from InExecutionTasks, so that
	// finished = total - len(remaining) - len(inExecution) never
	// double-counts a dispatched task.
	RemainingReplicaMovements []proposal.TopicPartition
	RemainingLeaderMovements  []proposal.TopicPartition

	InExecutionTasks []TaskID
	InProgressTasks  []TaskID

	AbortingCount int
	AbortedTasks  []TaskID
	DeadTasks     []TaskID

	RemainingDataToMoveMB   int64
	InExecutionDataToMoveMB int64
}
