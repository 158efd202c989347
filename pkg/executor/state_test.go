package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLifecycleStateString(t *testing.T) {
	assert.Equal(t, "NO_TASK_IN_PROGRESS", NoTaskInProgress.String())
	assert.Equal(t, "STARTING_EXECUTION", StartingExecution.String())
	assert.Equal(t, "REPLICA_MOVEMENT_TASK_IN_PROGRESS", ReplicaMovementTaskInProgress.String())
	assert.Equal(t, "LEADER_MOVEMENT_TASK_IN_PROGRESS", LeaderMovementTaskInProgress.String())
	assert.Equal(t, "STOPPING_EXECUTION", StoppingExecution.String())
	assert.Equal(t, "UNKNOWN_STATE", LifecycleState(99).String())
}

func TestNoTaskInProgressState(t *testing.T) {
	s := NoTaskInProgressState([]int{1}, []int{2})

	assert.Equal(t, NoTaskInProgress, s.Lifecycle)
	assert.Equal(t, []int{1}, s.RecentlyDemotedBrokers)
	assert.Equal(t, []int{2}, s.RecentlyRemovedBrokers)
	assert.Empty(t, s.ExecutionUUID)
}

func TestStartingExecutionState(t *testing.T) {
	s := StartingExecutionState("uuid-1", 5, 3, nil, nil)

	assert.Equal(t, StartingExecution, s.Lifecycle)
	assert.Equal(t, "uuid-1", s.ExecutionUUID)
	assert.Equal(t, 5, s.PartitionMovementConcurrency)
	assert.Equal(t, 3, s.LeadershipMovementConcurrency)
}

func TestReplicaMovementState(t *testing.T) {
	summary := TasksSummary{CountsByState: map[TaskState]int{Pending: 2}}

	s := ReplicaMovementState("uuid-1", 4, 1024, 5, 3, nil, nil, summary)

	assert.Equal(t, ReplicaMovementTaskInProgress, s.Lifecycle)
	assert.Equal(t, 4, s.FinishedPartitionMovements)
	assert.Equal(t, int64(1024), s.FinishedDataMovedMB)
	assert.Equal(t, summary, s.TasksSummary)
}

func TestStoppingExecutionState(t *testing.T) {
	s := StoppingExecutionState("uuid-1", 2, 1, 512, nil, nil, TasksSummary{})

	assert.Equal(t, StoppingExecution, s.Lifecycle)
	assert.Equal(t, 2, s.FinishedPartitionMovements)
	assert.Equal(t, 1, s.FinishedLeaderMovements)
	assert.Equal(t, int64(512), s.FinishedDataMovedMB)
}
