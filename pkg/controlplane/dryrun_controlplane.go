package controlplane

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

// DryRunControlPlane logs what it would have submitted instead of writing
// to the underlying coordination system, mirroring the teacher's
// pervasive DryRun flag in pkg/apply. It reports nothing ever in flight,
// so the rest of the execution engine runs its full state machine against
// a live ClusterView without ever mutating the cluster.
type DryRunControlPlane struct{}

var _ ControlPlane = (*DryRunControlPlane)(nil)

// NewDryRunControlPlane returns a ControlPlane that never writes.
func NewDryRunControlPlane() *DryRunControlPlane {
	return &DryRunControlPlane{}
}

// SubmitReplicaReassignments logs the would-be reassignment and returns nil.
func (c *DryRunControlPlane) SubmitReplicaReassignments(ctx context.Context, tasks []ReplicaTask) error {
	for _, task := range tasks {
		log.Infof("[dry-run] would reassign %s to %v", task.TopicPartition, task.NewReplicas)
	}
	return nil
}

// SubmitPreferredLeaderElection logs the would-be election and returns nil.
func (c *DryRunControlPlane) SubmitPreferredLeaderElection(ctx context.Context, tasks []LeaderTask) error {
	for _, task := range tasks {
		log.Infof("[dry-run] would elect preferred leader for %s", task.TopicPartition)
	}
	return nil
}

// PartitionsBeingReassigned always reports nothing in flight, since a
// dry-run never submits a reassignment.
func (c *DryRunControlPlane) PartitionsBeingReassigned(ctx context.Context) (map[proposal.TopicPartition]struct{}, error) {
	return map[proposal.TopicPartition]struct{}{}, nil
}

// OngoingLeaderElection always reports nothing in flight, since a dry-run
// never submits an election.
func (c *DryRunControlPlane) OngoingLeaderElection(ctx context.Context) (map[proposal.TopicPartition]struct{}, error) {
	return map[proposal.TopicPartition]struct{}{}, nil
}

// Close is a no-op: there is no underlying transport to release.
func (c *DryRunControlPlane) Close(ctx context.Context) error {
	return nil
}
