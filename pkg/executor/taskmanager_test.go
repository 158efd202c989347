package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

func replicaProposal(topic string, partition int, old, new []int) proposal.ExecutionProposal {
	return proposal.ExecutionProposal{
		TopicPartition: proposal.TopicPartition{Topic: topic, Partition: partition},
		OldReplicas:    old,
		NewReplicas:    new,
		OldLeader:      old[0],
		NewLeader:      new[0],
		DataToMoveMB:   100,
	}
}

func leaderOnlyProposal(topic string, partition int, replicas []int, oldLeader, newLeader int) proposal.ExecutionProposal {
	return proposal.ExecutionProposal{
		TopicPartition: proposal.TopicPartition{Topic: topic, Partition: partition},
		OldReplicas:    replicas,
		NewReplicas:    replicas,
		OldLeader:      oldLeader,
		NewLeader:      newLeader,
	}
}

func TestAddExecutionProposalsCreatesReplicaTasks(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)

	p := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p}, nil, nil)

	remaining := tm.RemainingReplicaMovements()
	require.Len(t, remaining, 1)
	assert.Equal(t, ReplicaAction, remaining[0].Type)
	assert.Equal(t, Pending, remaining[0].State)
}

func TestAddExecutionProposalsSkipsLeaderOnlyWhenNotInISR(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)
	view := newFakeClusterView()
	view.setPartition(clusterPartitionState("T", 0, []int{1, 2, 3}, []int{1, 2}, 1))

	p := leaderOnlyProposal("T", 0, []int{1, 2, 3}, 1, 3)
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p}, nil, view)

	assert.Empty(t, tm.RemainingLeaderMovements())
}

func TestAddExecutionProposalsCreatesLeaderTaskWhenInISR(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)
	view := newFakeClusterView()
	view.setPartition(clusterPartitionState("T", 0, []int{1, 2, 3}, []int{1, 2, 3}, 1))

	p := leaderOnlyProposal("T", 0, []int{1, 2, 3}, 1, 3)
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p}, nil, view)

	require.Len(t, tm.RemainingLeaderMovements(), 1)
}

func TestGetReplicaMovementTasksRespectsPerBrokerCap(t *testing.T) {
	tm := NewTaskManager(1, 10, nil)

	p1 := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	p2 := replicaProposal("T", 1, []int{1, 2, 3}, []int{1, 2, 5})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p1, p2}, nil, nil)

	batch := tm.GetReplicaMovementTasks()
	require.Len(t, batch, 1, "second task shares broker 1 and 2 with the first, both already at cap 1")
}

func TestGetReplicaMovementTasksSkipCapBrokerExempt(t *testing.T) {
	tm := NewTaskManager(1, 10, nil)

	p1 := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	p2 := replicaProposal("T", 1, []int{1, 2, 6}, []int{1, 2, 5})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p1, p2}, []int{1, 2}, nil)

	batch := tm.GetReplicaMovementTasks()
	assert.Len(t, batch, 2, "brokers 1 and 2 are exempt from the cap; the only non-exempt brokers are 3/4 (p1) and 6/5 (p2), none shared")
}

func TestGetLeadershipMovementTasksRespectsGlobalCap(t *testing.T) {
	tm := NewTaskManager(10, 1, nil)

	p1 := leaderOnlyProposal("T", 0, []int{1, 2, 3}, 1, 2)
	p2 := leaderOnlyProposal("T", 1, []int{1, 2, 3}, 1, 2)
	view := newFakeClusterView()
	view.setPartition(clusterPartitionState("T", 0, []int{1, 2, 3}, []int{1, 2, 3}, 1))
	view.setPartition(clusterPartitionState("T", 1, []int{1, 2, 3}, []int{1, 2, 3}, 1))
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p1, p2}, nil, view)

	batch := tm.GetLeadershipMovementTasks()
	assert.Len(t, batch, 1)
}

func TestMarkTasksInProgressIsIdempotent(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)
	p := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p}, nil, nil)

	batch := tm.GetReplicaMovementTasks()
	require.Len(t, batch, 1)

	now := time.Now()
	tm.MarkTasksInProgress(batch, now)
	assert.Equal(t, InProgress, batch[0].State)
	startTime := batch[0].StartTime

	tm.MarkTasksInProgress(batch, now.Add(time.Minute))
	assert.Equal(t, startTime, batch[0].StartTime, "re-marking an in-progress task must not reset its start time")
}

func TestMarkTaskDoneTransitions(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)
	p := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p}, nil, nil)

	task := tm.GetReplicaMovementTasks()[0]
	now := time.Now()
	tm.MarkTasksInProgress([]*Task{task}, now)
	tm.MarkTaskDone(task, now)

	assert.Equal(t, Completed, task.State)
}

func TestMarkTaskDeadFromAnyNonTerminalState(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)
	p := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p}, nil, nil)

	task := tm.GetReplicaMovementTasks()[0]
	now := time.Now()
	tm.MarkTasksInProgress([]*Task{task}, now)
	tm.MarkTaskDead(task, now)

	assert.Equal(t, Dead, task.State)
}

func TestClearResetsEverything(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)
	p := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p}, []int{1}, nil)
	tm.SetRequestedPartitionMovementConcurrency(2)

	tm.Clear()

	assert.Empty(t, tm.RemainingReplicaMovements())
	assert.Equal(t, 10, tm.effectivePartitionCap())
}

func TestGetExecutionTasksSummary(t *testing.T) {
	tm := NewTaskManager(10, 10, nil)
	p1 := replicaProposal("T", 0, []int{1, 2, 3}, []int{1, 2, 4})
	p2 := replicaProposal("T", 1, []int{1, 2, 3}, []int{1, 2, 5})
	tm.AddExecutionProposals([]proposal.ExecutionProposal{p1, p2}, nil, nil)

	batch := tm.GetReplicaMovementTasks()
	require.Len(t, batch, 2)
	now := time.Now()
	tm.MarkTasksInProgress(batch, now)
	tm.MarkTaskDone(batch[0], now)

	summary := tm.GetExecutionTasksSummary()
	assert.Equal(t, 1, summary.CountsByState[Completed])
	assert.Equal(t, 1, summary.CountsByState[InProgress])
	assert.Empty(t, summary.RemainingReplicaMovements)
	assert.Len(t, summary.InProgressTasks, 1)
}
