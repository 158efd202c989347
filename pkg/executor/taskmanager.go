package executor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
	"github.com/segmentio/rebalance-executor/pkg/strategy"
)

// TaskManager owns the full set of tasks for one execution: it tracks
// per-broker in-flight counts, hands out the next batch under concurrency
// caps, and performs the task state transitions other than the ones
// maybeMarkTaskAsDeadOrAborting (predicates.go) makes directly. It is
// logically owned by the single execution worker for the life of an
// execution; see Executor.
type TaskManager struct {
	mu sync.Mutex

	tasks           map[TaskID]*Task
	skipCapBrokers  map[int]struct{}
	replicaStrategy strategy.ReplicaMovementStrategy

	requestedPartitionCap int // <=0 means "use configured default"
	requestedLeaderCap    int

	defaultPartitionCap int
	defaultLeaderCap    int
}

// NewTaskManager returns an empty TaskManager with the argument default
// concurrency caps.
func NewTaskManager(defaultPartitionCap, defaultLeaderCap int, replicaStrategy strategy.ReplicaMovementStrategy) *TaskManager {
	if replicaStrategy == nil {
		replicaStrategy = strategy.Default{}
	}

	return &TaskManager{
		tasks:               make(map[TaskID]*Task),
		skipCapBrokers:      map[int]struct{}{},
		replicaStrategy:     replicaStrategy,
		defaultPartitionCap: defaultPartitionCap,
		defaultLeaderCap:    defaultLeaderCap,
	}
}

// AddExecutionProposals converts each proposal into a REPLICA_ACTION task
// (if the replica set changes) and/or a LEADER_ACTION task (if the leader
// changes and the new leader is already in the ISR -- leader-only moves
// require the destination to already be in sync, otherwise the task could
// never complete). brokersToSkipCap are exempted from per-broker
// concurrency accounting for this execution (typically brokers being
// drained, which are expected to run hot).
func (tm *TaskManager) AddExecutionProposals(
	proposals []proposal.ExecutionProposal,
	brokersToSkipCap []int,
	currentCluster ClusterView,
) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for _, id := range brokersToSkipCap {
		tm.skipCapBrokers[id] = struct{}{}
	}

	for _, p := range proposals {
		if p.ReplicaSetChanged() {
			task := &Task{Proposal: p, Type: ReplicaAction, State: Pending}
			tm.tasks[task.ID()] = task
		}

		if !p.ReplicaSetChanged() && p.LeaderChanged() {
			if currentCluster == nil {
				continue
			}
			state, ok := currentCluster.Partition(p.TopicPartition)
			if ok && state.InISR(p.NewLeader) {
				task := &Task{Proposal: p, Type: LeaderAction, State: Pending}
				tm.tasks[task.ID()] = task
			} else {
				log.Warnf(
					"Skipping leader-only proposal for %s: new leader %d not in ISR",
					p.TopicPartition, p.NewLeader,
				)
			}
		}
	}
}

// effectivePartitionCap returns the cap currently in force.
func (tm *TaskManager) effectivePartitionCap() int {
	if tm.requestedPartitionCap > 0 {
		return tm.requestedPartitionCap
	}
	return tm.defaultPartitionCap
}

func (tm *TaskManager) effectiveLeaderCap() int {
	if tm.requestedLeaderCap > 0 {
		return tm.requestedLeaderCap
	}
	return tm.defaultLeaderCap
}

// GetReplicaMovementTasks returns the next batch of PENDING REPLICA_ACTION
// tasks to dispatch: the largest prefix of the strategy-ordered pending
// tasks such that, for every broker involved (old or new replica list,
// excluding skip-cap brokers), admitting the task does not push that
// broker's in-flight count over the per-broker cap.
func (tm *TaskManager) GetReplicaMovementTasks() []*Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	partitionCap := tm.effectivePartitionCap()

	brokerCounts := tm.brokerInFlightCountsLocked()

	pending := tm.pendingTasksLocked(ReplicaAction)

	batch := make([]*Task, 0, len(pending))

	for _, task := range pending {
		involved := dedupBrokers(involvedBrokers(task))

		overCap := false
		for _, id := range involved {
			if tm.isSkipCapLocked(id) {
				continue
			}
			if brokerCounts[id] >= partitionCap {
				overCap = true
				break
			}
		}

		if overCap {
			break
		}

		for _, id := range involved {
			if !tm.isSkipCapLocked(id) {
				brokerCounts[id]++
			}
		}

		batch = append(batch, task)
	}

	return batch
}

// GetLeadershipMovementTasks returns up to the leadership concurrency cap
// of PENDING LEADER_ACTION tasks, ordered by topic, then partition. The
// order of the original proposal list is not kept.
func (tm *TaskManager) GetLeadershipMovementTasks() []*Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	leaderCap := tm.effectiveLeaderCap()

	inProgressCount := len(tm.inExecutionTaskIDsLocked(LeaderAction))
	remainingSlots := leaderCap - inProgressCount
	if remainingSlots <= 0 {
		return nil
	}

	pending := tm.pendingTasksLocked(LeaderAction)
	if len(pending) > remainingSlots {
		pending = pending[:remainingSlots]
	}

	return pending
}

// pendingTasksLocked returns PENDING tasks of the argument type, sorted
// by topic, then partition, and then (for REPLICA_ACTION) reordered by
// the configured replica-movement strategy. Caller must hold tm.mu.
func (tm *TaskManager) pendingTasksLocked(taskType TaskType) []*Task {
	pending := []*Task{}
	for _, task := range tm.tasks {
		if task.Type == taskType && task.State == Pending {
			pending = append(pending, task)
		}
	}

	sortTasksByID(pending)

	if taskType == ReplicaAction {
		proposals := make([]proposal.ExecutionProposal, len(pending))
		for i, task := range pending {
			proposals[i] = task.Proposal
		}

		tm.replicaStrategy.Sort(proposals)

		byTopicPartition := map[proposal.TopicPartition]*Task{}
		for _, task := range pending {
			byTopicPartition[task.Proposal.TopicPartition] = task
		}

		reordered := make([]*Task, len(proposals))
		for i, p := range proposals {
			reordered[i] = byTopicPartition[p.TopicPartition]
		}
		pending = reordered
	}

	return pending
}

// MarkTasksInProgress transitions the argument tasks PENDING -> IN_PROGRESS
// and stamps their start time. Re-marking an already IN_PROGRESS task is a
// no-op, so re-submission (see maybeReexecuteTasks) is idempotent.
func (tm *TaskManager) MarkTasksInProgress(tasks []*Task, now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	for _, task := range tasks {
		if task.State == InProgress {
			continue
		}
		task.transitionTo(InProgress, now)
	}
}

// MarkTaskDone transitions t to its terminal success state: IN_PROGRESS ->
// COMPLETED, ABORTING -> ABORTED. A DEAD task stays DEAD.
func (tm *TaskManager) MarkTaskDone(t *Task, now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	switch t.State {
	case InProgress:
		t.transitionTo(Completed, now)
	case Aborting:
		t.transitionTo(Aborted, now)
	case Dead:
		// already terminal
	default:
		panic(fmt.Sprintf("MarkTaskDone called on task in state %s", t.State))
	}
}

// MarkTaskAborting transitions t from IN_PROGRESS to ABORTING.
func (tm *TaskManager) MarkTaskAborting(t *Task, now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t.transitionTo(Aborting, now)
}

// MarkTaskDead transitions t to DEAD from any non-terminal state.
func (tm *TaskManager) MarkTaskDead(t *Task, now time.Time) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if t.State.IsTerminal() {
		return
	}
	t.transitionTo(Dead, now)
}

// InExecutionTasks returns every task that has been dispatched and has
// not yet reached a terminal state (IN_PROGRESS or ABORTING).
func (tm *TaskManager) InExecutionTasks() []*Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return tm.inExecutionTasksLocked(nil)
}

// InExecutionTasksOfType is InExecutionTasks filtered to one TaskType.
func (tm *TaskManager) InExecutionTasksOfType(taskType TaskType) []*Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return tm.inExecutionTasksLocked(&taskType)
}

func (tm *TaskManager) inExecutionTasksLocked(taskType *TaskType) []*Task {
	tasks := []*Task{}
	for _, task := range tm.tasks {
		if taskType != nil && task.Type != *taskType {
			continue
		}
		if task.State == InProgress || task.State == Aborting {
			tasks = append(tasks, task)
		}
	}
	sortTasksByID(tasks)
	return tasks
}

func (tm *TaskManager) inExecutionTaskIDsLocked(taskType TaskType) []TaskID {
	tasks := tm.inExecutionTasksLocked(&taskType)
	ids := make([]TaskID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID()
	}
	return ids
}

// InProgressTasks returns every task currently IN_PROGRESS.
func (tm *TaskManager) InProgressTasks() []*Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tasks := []*Task{}
	for _, task := range tm.tasks {
		if task.State == InProgress {
			tasks = append(tasks, task)
		}
	}
	sortTasksByID(tasks)
	return tasks
}

// RemainingReplicaMovements returns the PENDING REPLICA_ACTION tasks --
// the ones not yet dispatched. Disjoint from InExecutionTasksOfType, so
// that finished = total - len(remaining) - len(inExecution) never
// double-counts a task.
func (tm *TaskManager) RemainingReplicaMovements() []*Task {
	return tm.remaining(ReplicaAction)
}

// RemainingLeaderMovements returns the PENDING LEADER_ACTION tasks.
func (tm *TaskManager) RemainingLeaderMovements() []*Task {
	return tm.remaining(LeaderAction)
}

func (tm *TaskManager) remaining(taskType TaskType) []*Task {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tasks := []*Task{}
	for _, task := range tm.tasks {
		if task.Type == taskType && task.State == Pending {
			tasks = append(tasks, task)
		}
	}
	sortTasksByID(tasks)
	return tasks
}

// GetExecutionTasksSummary builds a TasksSummary over the current task
// set.
func (tm *TaskManager) GetExecutionTasksSummary() TasksSummary {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	summary := TasksSummary{
		CountsByState: map[TaskState]int{},
	}

	for _, task := range tm.tasks {
		summary.CountsByState[task.State]++

		switch task.Type {
		case ReplicaAction:
			if task.State == Pending {
				summary.RemainingReplicaMovements = append(
					summary.RemainingReplicaMovements, task.Proposal.TopicPartition,
				)
				summary.RemainingDataToMoveMB += task.Proposal.DataToMoveMB
			}
		case LeaderAction:
			if task.State == Pending {
				summary.RemainingLeaderMovements = append(
					summary.RemainingLeaderMovements, task.Proposal.TopicPartition,
				)
			}
		}

		if task.State == InProgress || task.State == Aborting {
			summary.InExecutionTasks = append(summary.InExecutionTasks, task.ID())
			if task.Type == ReplicaAction {
				summary.InExecutionDataToMoveMB += task.Proposal.DataToMoveMB
			}
		}
		if task.State == InProgress {
			summary.InProgressTasks = append(summary.InProgressTasks, task.ID())
		}
		if task.State == Aborting {
			summary.AbortingCount++
		}
		if task.State == Aborted {
			summary.AbortedTasks = append(summary.AbortedTasks, task.ID())
		}
		if task.State == Dead {
			summary.DeadTasks = append(summary.DeadTasks, task.ID())
		}
	}

	return summary
}

// SetRequestedPartitionMovementConcurrency clamps the per-broker
// concurrency cap to n starting at the next batch boundary. n<=0 resets
// to the configured default.
func (tm *TaskManager) SetRequestedPartitionMovementConcurrency(n int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.requestedPartitionCap = n
}

// SetRequestedLeadershipMovementConcurrency is the leader-cap analog of
// SetRequestedPartitionMovementConcurrency.
func (tm *TaskManager) SetRequestedLeadershipMovementConcurrency(n int) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.requestedLeaderCap = n
}

// Clear drops all tasks and resets per-execution state. Called by the
// execution loop's finally block.
func (tm *TaskManager) Clear() {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.tasks = make(map[TaskID]*Task)
	tm.skipCapBrokers = map[int]struct{}{}
	tm.requestedPartitionCap = 0
	tm.requestedLeaderCap = 0
}

// The partition and data totals used for progress reporting are captured
// once by Executor.moveReplicas, when the replica phase starts, since
// TaskManager's own counts shrink as tasks finish.

func (tm *TaskManager) isSkipCapLocked(brokerID int) bool {
	_, ok := tm.skipCapBrokers[brokerID]
	return ok
}

// brokerInFlightCountsLocked returns, for every broker, the count of
// IN_PROGRESS or ABORTING REPLICA_ACTION tasks whose old or new replica
// list contains it (invariant I2's left-hand side, before the skip-cap
// exclusion which callers apply themselves).
func (tm *TaskManager) brokerInFlightCountsLocked() map[int]int {
	counts := map[int]int{}

	for _, task := range tm.tasks {
		if task.Type != ReplicaAction {
			continue
		}
		if task.State != InProgress && task.State != Aborting {
			continue
		}

		for _, id := range dedupBrokers(involvedBrokers(task)) {
			counts[id]++
		}
	}

	return counts
}

func involvedBrokers(task *Task) []int {
	ids := make([]int, 0, len(task.Proposal.OldReplicas)+len(task.Proposal.NewReplicas))
	ids = append(ids, task.Proposal.OldReplicas...)
	ids = append(ids, task.Proposal.NewReplicas...)
	return ids
}

// dedupBrokers collapses a broker id list to its distinct members, so a
// broker present in both a task's old and new replica list -- the normal
// case, where most replicas are unchanged -- is counted once, matching
// brokerInFlightCountsLocked's accounting exactly at batch boundaries.
func dedupBrokers(ids []int) []int {
	seen := map[int]struct{}{}
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortTasksByID(tasks []*Task) {
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].ID(), tasks[j].ID()
		if a.TopicPartition.Topic != b.TopicPartition.Topic {
			return a.TopicPartition.Topic < b.TopicPartition.Topic
		}
		if a.TopicPartition.Partition != b.TopicPartition.Partition {
			return a.TopicPartition.Partition < b.TopicPartition.Partition
		}
		return a.Type < b.Type
	})
}
