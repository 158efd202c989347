// Package controlplane defines and implements the submission side of the
// execution engine: requesting replica reassignments and preferred-leader
// elections, and reporting which of either are currently in flight from
// the cluster's point of view.
package controlplane

import (
	"context"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

// ReplicaTask is the minimal view of a REPLICA_ACTION task the control
// plane needs in order to submit a reassignment.
type ReplicaTask struct {
	TopicPartition proposal.TopicPartition
	NewReplicas    []int
}

// LeaderTask is the minimal view of a LEADER_ACTION task the control plane
// needs in order to request a preferred-leader election.
type LeaderTask struct {
	TopicPartition proposal.TopicPartition
}

// ControlPlane is the set of capabilities the execution engine needs from
// whatever system actually coordinates the cluster (zookeeper, or the
// broker admin protocol). Every implementation must be safe for concurrent
// use by the single execution worker and by shutdown.
type ControlPlane interface {
	// SubmitReplicaReassignments atomically requests that each task's
	// partition become the task's new replica list.
	SubmitReplicaReassignments(ctx context.Context, tasks []ReplicaTask) error

	// SubmitPreferredLeaderElection requests that each task's partition
	// elect its current preferred (first) replica as leader.
	SubmitPreferredLeaderElection(ctx context.Context, tasks []LeaderTask) error

	// PartitionsBeingReassigned returns the set of partitions the control
	// plane currently believes are undergoing reassignment, regardless of
	// who submitted them.
	PartitionsBeingReassigned(ctx context.Context) (map[proposal.TopicPartition]struct{}, error)

	// OngoingLeaderElection returns the set of partitions currently
	// undergoing a leader election.
	OngoingLeaderElection(ctx context.Context) (map[proposal.TopicPartition]struct{}, error)

	// Close releases the underlying transport. ctx bounds how long to wait
	// for a clean shutdown.
	Close(ctx context.Context) error
}
