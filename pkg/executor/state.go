package executor

// LifecycleState is a coarse label for what the Executor is doing right
// now.
type LifecycleState int

const (
	// NoTaskInProgress means no execution is running.
	NoTaskInProgress LifecycleState = iota
	// StartingExecution means an execution has been accepted but the
	// worker has not yet begun dispatching batches.
	StartingExecution
	// ReplicaMovementTaskInProgress is Phase A.
	ReplicaMovementTaskInProgress
	// LeaderMovementTaskInProgress is Phase B.
	LeaderMovementTaskInProgress
	// StoppingExecution means a stop was requested and the worker is
	// draining in-flight tasks before returning to NoTaskInProgress.
	StoppingExecution
)

// String implements fmt.Stringer.
func (s LifecycleState) String() string {
	switch s {
	case NoTaskInProgress:
		return "NO_TASK_IN_PROGRESS"
	case StartingExecution:
		return "STARTING_EXECUTION"
	case ReplicaMovementTaskInProgress:
		return "REPLICA_MOVEMENT_TASK_IN_PROGRESS"
	case LeaderMovementTaskInProgress:
		return "LEADER_MOVEMENT_TASK_IN_PROGRESS"
	case StoppingExecution:
		return "STOPPING_EXECUTION"
	default:
		return "UNKNOWN_STATE"
	}
}

// State is an immutable snapshot of what the Executor is doing right now.
// Every observer-visible number is captured at construction time, not
// read by reference, so two goroutines reading the same State never see
// inconsistent values relative to each other.
type State struct {
	Lifecycle LifecycleState

	ExecutionUUID string

	FinishedPartitionMovements int
	FinishedLeaderMovements    int
	FinishedDataMovedMB        int64

	PartitionMovementConcurrency  int
	LeadershipMovementConcurrency int

	RecentlyDemotedBrokers []int
	RecentlyRemovedBrokers []int

	TasksSummary TasksSummary
}

// NoTaskInProgressState builds the snapshot published when no execution
// is running.
func NoTaskInProgressState(recentlyDemoted, recentlyRemoved []int) State {
	return State{
		Lifecycle:              NoTaskInProgress,
		RecentlyDemotedBrokers: recentlyDemoted,
		RecentlyRemovedBrokers: recentlyRemoved,
	}
}

// StartingExecutionState builds the snapshot published the moment an
// execution is accepted, before the worker has dispatched anything.
func StartingExecutionState(
	uuid string,
	partitionCap, leaderCap int,
	recentlyDemoted, recentlyRemoved []int,
) State {
	return State{
		Lifecycle:                     StartingExecution,
		ExecutionUUID:                 uuid,
		PartitionMovementConcurrency:  partitionCap,
		LeadershipMovementConcurrency: leaderCap,
		RecentlyDemotedBrokers:        recentlyDemoted,
		RecentlyRemovedBrokers:        recentlyRemoved,
	}
}

// ReplicaMovementState builds the snapshot published while Phase A is
// active.
func ReplicaMovementState(
	uuid string,
	finishedPartitions int,
	finishedMB int64,
	partitionCap, leaderCap int,
	recentlyDemoted, recentlyRemoved []int,
	summary TasksSummary,
) State {
	return State{
		Lifecycle:                     ReplicaMovementTaskInProgress,
		ExecutionUUID:                 uuid,
		FinishedPartitionMovements:    finishedPartitions,
		FinishedDataMovedMB:           finishedMB,
		PartitionMovementConcurrency:  partitionCap,
		LeadershipMovementConcurrency: leaderCap,
		RecentlyDemotedBrokers:        recentlyDemoted,
		RecentlyRemovedBrokers:        recentlyRemoved,
		TasksSummary:                  summary,
	}
}

// LeaderMovementState builds the snapshot published while Phase B is
// active.
func LeaderMovementState(
	uuid string,
	finishedPartitions, finishedLeaders int,
	finishedMB int64,
	partitionCap, leaderCap int,
	recentlyDemoted, recentlyRemoved []int,
	summary TasksSummary,
) State {
	return State{
		Lifecycle:                     LeaderMovementTaskInProgress,
		ExecutionUUID:                 uuid,
		FinishedPartitionMovements:    finishedPartitions,
		FinishedLeaderMovements:       finishedLeaders,
		FinishedDataMovedMB:           finishedMB,
		PartitionMovementConcurrency:  partitionCap,
		LeadershipMovementConcurrency: leaderCap,
		RecentlyDemotedBrokers:        recentlyDemoted,
		RecentlyRemovedBrokers:        recentlyRemoved,
		TasksSummary:                  summary,
	}
}

// StoppingExecutionState builds the snapshot published once a stop has
// been requested and the worker is draining.
func StoppingExecutionState(
	uuid string,
	finishedPartitions, finishedLeaders int,
	finishedMB int64,
	recentlyDemoted, recentlyRemoved []int,
	summary TasksSummary,
) State {
	return State{
		Lifecycle:                  StoppingExecution,
		ExecutionUUID:              uuid,
		FinishedPartitionMovements: finishedPartitions,
		FinishedLeaderMovements:    finishedLeaders,
		FinishedDataMovedMB:        finishedMB,
		RecentlyDemotedBrokers:     recentlyDemoted,
		RecentlyRemovedBrokers:     recentlyRemoved,
		TasksSummary:               summary,
	}
}
