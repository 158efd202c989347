package executor

import (
	"fmt"
	"time"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

// TaskType distinguishes the two kinds of work a proposal can generate.
type TaskType int

const (
	// ReplicaAction moves a partition's replica set.
	ReplicaAction TaskType = iota
	// LeaderAction moves a partition's leader without changing replicas.
	LeaderAction
)

// String implements fmt.Stringer.
func (t TaskType) String() string {
	switch t {
	case ReplicaAction:
		return "REPLICA_ACTION"
	case LeaderAction:
		return "LEADER_ACTION"
	default:
		return "UNKNOWN_ACTION"
	}
}

// TaskState is a task's position in its state machine.
type TaskState int

const (
	// Pending means the task has been created but not yet dispatched.
	Pending TaskState = iota
	// InProgress means the task has been dispatched to the control plane.
	InProgress
	// Aborting means the task is being rolled back to its starting point.
	Aborting
	// Aborted is terminal: the task successfully rolled back.
	Aborted
	// Dead is terminal: the task can make no further safe progress.
	Dead
	// Completed is terminal: the task reached its proposal's target state.
	Completed
)

// String implements fmt.Stringer.
func (s TaskState) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case InProgress:
		return "IN_PROGRESS"
	case Aborting:
		return "ABORTING"
	case Aborted:
		return "ABORTED"
	case Dead:
		return "DEAD"
	case Completed:
		return "COMPLETED"
	default:
		return "UNKNOWN_STATE"
	}
}

// IsTerminal reports whether s is one a task never leaves once reached.
func (s TaskState) IsTerminal() bool {
	return s == Aborted || s == Dead || s == Completed
}

// legalTransitions enumerates every state a task may move to directly
// from its current state. A task never leaves a terminal state.
var legalTransitions = map[TaskState]map[TaskState]bool{
	Pending:    {InProgress: true},
	InProgress: {Completed: true, Aborting: true, Dead: true},
	Aborting:   {Aborted: true, Dead: true},
	Aborted:    {},
	Dead:       {},
	Completed:  {},
}

// CanTransition reports whether moving from 'from' to 'to' is legal.
func CanTransition(from, to TaskState) bool {
	return legalTransitions[from][to]
}

// Task is the Executor's unit of work: exactly one proposal plus the
// action type derived from it, a state, and timing. Its identity (the
// proposal's partition plus its Type) is stable across re-submission, so
// re-dispatching an in-progress task is idempotent from TaskManager's
// point of view.
type Task struct {
	Proposal proposal.ExecutionProposal
	Type     TaskType
	State    TaskState

	// StartTime is set on the Pending -> InProgress transition.
	StartTime time.Time
}

// ID returns the task's stable identity.
func (t *Task) ID() TaskID {
	return TaskID{TopicPartition: t.Proposal.TopicPartition, Type: t.Type}
}

// TaskID is a Task's stable identity: one proposal, one action type.
type TaskID struct {
	TopicPartition proposal.TopicPartition
	Type           TaskType
}

// transitionTo moves the task to 'to' if legal, stamping StartTime when
// moving into InProgress. It panics on an illegal transition attempt --
// every call site in this package is expected to have already checked
// applicability (e.g. via the completion predicates in predicates.go), so
// reaching an illegal transition is a programming error, not a runtime
// condition callers should handle.
func (t *Task) transitionTo(to TaskState, now time.Time) {
	if t.State == to {
		return
	}

	if !CanTransition(t.State, to) {
		panic(fmt.Sprintf("illegal task transition %s -> %s for %s", t.State, to, t.ID()))
	}

	if to == InProgress {
		t.StartTime = now
	}

	t.State = to
}
