package controlplane

import (
	"context"
	"errors"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
	"github.com/segmentio/rebalance-executor/pkg/util"
	"github.com/segmentio/rebalance-executor/pkg/zk"
)

const (
	assignmentPath = "/admin/reassign_partitions"
	electionPath   = "/admin/preferred_replica_election"
)

type zkAssignment struct {
	Version    int                     `json:"version"`
	Partitions []zkAssignmentPartition `json:"partitions"`
}

type zkAssignmentPartition struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
	Replicas  []int  `json:"replicas"`
}

type zkElection struct {
	Version    int                        `json:"version"`
	Partitions []zkElectionTopicPartition `json:"partitions"`
}

type zkElectionTopicPartition struct {
	Topic     string `json:"topic"`
	Partition int    `json:"partition"`
}

// ZKControlPlane submits reassignments and elections by writing to the
// zookeeper nodes the cluster controller watches, and reports work in
// flight by checking whether those nodes currently exist. This mirrors the
// real cluster controller's own zookeeper-based submission path.
type ZKControlPlane struct {
	zkClient zk.Client
	zkPrefix string
}

var _ ControlPlane = (*ZKControlPlane)(nil)

// NewZKControlPlane returns a ZKControlPlane that writes under the
// argument zookeeper chroot prefix (pass "" for the root).
func NewZKControlPlane(zkClient zk.Client, zkPrefix string) *ZKControlPlane {
	return &ZKControlPlane{
		zkClient: zkClient,
		zkPrefix: zkPrefix,
	}
}

// SubmitReplicaReassignments writes a single reassignment request
// covering all of the argument tasks to the reassignment zk node.
func (c *ZKControlPlane) SubmitReplicaReassignments(
	ctx context.Context,
	tasks []ReplicaTask,
) error {
	if len(tasks) == 0 {
		return nil
	}

	assignment := zkAssignment{
		Version:    1,
		Partitions: make([]zkAssignmentPartition, 0, len(tasks)),
	}

	for _, task := range tasks {
		assignment.Partitions = append(
			assignment.Partitions,
			zkAssignmentPartition{
				Topic:     task.TopicPartition.Topic,
				Partition: task.TopicPartition.Partition,
				Replicas:  util.CopyInts(task.NewReplicas),
			},
		)
	}

	zNode := c.zNode(assignmentPath)
	log.Infof("Writing reassignment request to zk path %s: %+v", zNode, assignment)

	return c.zkClient.CreateJSON(ctx, zNode, assignment, false)
}

// SubmitPreferredLeaderElection writes a single election request covering
// all of the argument tasks to the election zk node.
func (c *ZKControlPlane) SubmitPreferredLeaderElection(
	ctx context.Context,
	tasks []LeaderTask,
) error {
	if len(tasks) == 0 {
		return nil
	}

	election := zkElection{
		Version:    1,
		Partitions: make([]zkElectionTopicPartition, 0, len(tasks)),
	}

	for _, task := range tasks {
		election.Partitions = append(
			election.Partitions,
			zkElectionTopicPartition{
				Topic:     task.TopicPartition.Topic,
				Partition: task.TopicPartition.Partition,
			},
		)
	}

	zNode := c.zNode(electionPath)
	log.Infof("Writing leader election request to zk path %s: %+v", zNode, election)

	return c.zkClient.CreateJSON(ctx, zNode, election, false)
}

// PartitionsBeingReassigned reads the reassignment zk node, if present,
// and returns the partitions it names. An absent node means nothing is in
// flight.
func (c *ZKControlPlane) PartitionsBeingReassigned(
	ctx context.Context,
) (map[proposal.TopicPartition]struct{}, error) {
	exists, _, err := c.zkClient.Exists(ctx, c.zNode(assignmentPath))
	if err != nil {
		return nil, err
	}

	result := map[proposal.TopicPartition]struct{}{}
	if !exists {
		return result, nil
	}

	assignment := zkAssignment{}
	if _, err := c.zkClient.GetJSON(ctx, c.zNode(assignmentPath), &assignment); err != nil {
		// The node can disappear between the Exists check and the Get; the
		// controller clears it the moment a reassignment finishes. Treat
		// that race as "nothing in flight" rather than an error.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return result, nil
	}

	for _, p := range assignment.Partitions {
		result[proposal.TopicPartition{Topic: p.Topic, Partition: p.Partition}] = struct{}{}
	}

	return result, nil
}

// OngoingLeaderElection reads the election zk node, if present, and
// returns the partitions it names.
func (c *ZKControlPlane) OngoingLeaderElection(
	ctx context.Context,
) (map[proposal.TopicPartition]struct{}, error) {
	exists, _, err := c.zkClient.Exists(ctx, c.zNode(electionPath))
	if err != nil {
		return nil, err
	}

	result := map[proposal.TopicPartition]struct{}{}
	if !exists {
		return result, nil
	}

	election := zkElection{}
	if _, err := c.zkClient.GetJSON(ctx, c.zNode(electionPath), &election); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return result, nil
	}

	for _, p := range election.Partitions {
		result[proposal.TopicPartition{Topic: p.Topic, Partition: p.Partition}] = struct{}{}
	}

	return result, nil
}

// Close closes the underlying zookeeper client.
func (c *ZKControlPlane) Close(_ context.Context) error {
	return c.zkClient.Close()
}

func (c *ZKControlPlane) zNode(elements ...string) string {
	joinedElements := filepath.Join(elements...)
	return filepath.Join("/", c.zkPrefix, joinedElements)
}
