package executor

import (
	"fmt"
	"time"

	"github.com/segmentio/rebalance-executor/pkg/cluster"
)

// leaderActionTimeout is how long a LEADER_ACTION task may sit IN_PROGRESS
// before it is declared DEAD.
const leaderActionTimeout = 180 * time.Second

// isTaskDone evaluates the completion predicate for t given the
// partition's current observed state. Callers handle a partition that
// has disappeared entirely (e.g. its topic was deleted) before
// consulting isTaskDone; see waitForTasksToFinish.
func isTaskDone(t *Task, state cluster.PartitionState) bool {
	switch t.Type {
	case ReplicaAction:
		return isReplicaActionDone(t, state)
	case LeaderAction:
		return isLeadershipActionDone(t, state)
	default:
		panic(fmt.Sprintf("unknown task type %s", t.Type))
	}
}

func isReplicaActionDone(t *Task, state cluster.PartitionState) bool {
	switch t.State {
	case InProgress:
		return t.Proposal.CompletedSuccessfully(state.Replicas)
	case Aborting:
		return t.Proposal.Aborted(state.Replicas) || t.Proposal.CompletedSuccessfully(state.Replicas)
	case Dead:
		return true
	default:
		panic(fmt.Sprintf("isReplicaActionDone called on task in state %s", t.State))
	}
}

func isLeadershipActionDone(t *Task, state cluster.PartitionState) bool {
	switch t.State {
	case InProgress:
		if !state.HasLeader() {
			return true
		}
		if state.Leader == t.Proposal.NewLeader {
			return true
		}
		return !state.InISR(t.Proposal.NewLeader)
	case Aborting, Dead:
		return true
	default:
		panic(fmt.Sprintf("isLeadershipActionDone called on task in state %s", t.State))
	}
}

// maybeMarkTaskAsDeadOrAborting applies the dead/aborting-detection rules
// from the engine's progress-observation pass. It returns true if the
// task's state was changed.
func maybeMarkTaskAsDeadOrAborting(t *Task, view ClusterView, now time.Time) bool {
	switch t.Type {
	case LeaderAction:
		if !view.NodeByID(t.Proposal.NewLeader) {
			t.transitionTo(Dead, now)
			return true
		}
		if now.Sub(t.StartTime) > leaderActionTimeout {
			t.transitionTo(Dead, now)
			return true
		}
		return false
	case ReplicaAction:
		for _, brokerID := range t.Proposal.NewReplicas {
			if !view.NodeByID(brokerID) {
				t.transitionTo(Dead, now)
				return true
			}
		}
		return false
	default:
		panic(fmt.Sprintf("unknown task type %s", t.Type))
	}
}
