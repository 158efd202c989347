// Package proposal defines the unit of input accepted by the execution
// engine: a single partition's desired post-move replica set and leader.
package proposal

import (
	"fmt"
)

// TopicPartition identifies a single partition of a topic.
type TopicPartition struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
}

// String implements fmt.Stringer.
func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s-%d", tp.Topic, tp.Partition)
}

// ExecutionProposal is an immutable description of the desired replica set
// and leader for one partition, along with the state it is moving away
// from and an estimate of how much data the move will shift. Proposals are
// produced upstream of this package (by an optimizer) and are never
// mutated once constructed.
type ExecutionProposal struct {
	TopicPartition TopicPartition `json:"topicPartition"`

	// OldReplicas is the replica list (ordered, first entry preferred
	// leader) at the time the proposal was generated.
	OldReplicas []int `json:"oldReplicas"`

	// NewReplicas is the desired replica list.
	NewReplicas []int `json:"newReplicas"`

	OldLeader int `json:"oldLeader"`
	NewLeader int `json:"newLeader"`

	// DataToMoveMB is the optimizer's estimate of how much data this move
	// will shift across the network.
	DataToMoveMB int64 `json:"dataToMoveMB"`
}

// ReplicaSetChanged reports whether the proposal requires a REPLICA_ACTION
// task, i.e. the new replica list differs from the old one (as ordered
// sequences -- order matters, since the first entry is the preferred
// leader).
func (p ExecutionProposal) ReplicaSetChanged() bool {
	return !sameOrder(p.OldReplicas, p.NewReplicas)
}

// LeaderChanged reports whether the proposal moves the leader independent
// of the replica set.
func (p ExecutionProposal) LeaderChanged() bool {
	return p.OldLeader != p.NewLeader
}

// CompletedSuccessfully reports whether the argument current replica list
// matches this proposal's target, meaning the move is done.
func (p ExecutionProposal) CompletedSuccessfully(currentReplicas []int) bool {
	return sameOrder(currentReplicas, p.NewReplicas)
}

// Aborted reports whether the argument current replica list has reverted
// to this proposal's starting point, meaning an abort succeeded.
func (p ExecutionProposal) Aborted(currentReplicas []int) bool {
	return sameOrder(currentReplicas, p.OldReplicas)
}

func sameOrder(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
