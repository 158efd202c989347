package controlplane

import (
	"context"
	"fmt"

	kafka "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

// BrokerControlPlane submits reassignments and elections through the
// broker admin protocol instead of zookeeper, for clusters running in
// KIP-455 mode where the controller no longer watches zookeeper for
// reassignment requests. Mirrors the ZKControlPlane/BrokerAdminClient
// duality already present in this engine's teacher.
type BrokerControlPlane struct {
	client *kafka.Client
}

var _ ControlPlane = (*BrokerControlPlane)(nil)

// NewBrokerControlPlane returns a BrokerControlPlane that talks to the
// broker at bootstrapAddr.
func NewBrokerControlPlane(bootstrapAddr string) *BrokerControlPlane {
	return &BrokerControlPlane{
		client: &kafka.Client{
			Addr: kafka.TCP(bootstrapAddr),
		},
	}
}

// SubmitReplicaReassignments issues one AlterPartitionReassignments call
// per distinct topic among the argument tasks.
func (c *BrokerControlPlane) SubmitReplicaReassignments(
	ctx context.Context,
	tasks []ReplicaTask,
) error {
	byTopic := map[string][]kafka.AlterPartitionReassignmentsRequestAssignment{}

	for _, task := range tasks {
		byTopic[task.TopicPartition.Topic] = append(
			byTopic[task.TopicPartition.Topic],
			kafka.AlterPartitionReassignmentsRequestAssignment{
				PartitionID: task.TopicPartition.Partition,
				BrokerIDs:   task.NewReplicas,
			},
		)
	}

	for topic, assignments := range byTopic {
		resp, err := c.client.AlterPartitionReassignments(
			ctx,
			&kafka.AlterPartitionReassignmentsRequest{
				Topic:       topic,
				Assignments: assignments,
			},
		)
		if err != nil {
			return fmt.Errorf("error submitting reassignment for topic %s: %w", topic, err)
		}
		if resp.Error != nil {
			return fmt.Errorf("broker rejected reassignment for topic %s: %w", topic, resp.Error)
		}
		for _, result := range resp.PartitionResults {
			if result.Error != nil {
				log.Warnf(
					"Partition %s-%d rejected in reassignment batch: %+v",
					topic, result.PartitionID, result.Error,
				)
			}
		}
	}

	return nil
}

// SubmitPreferredLeaderElection issues one ElectLeaders call per distinct
// topic among the argument tasks.
func (c *BrokerControlPlane) SubmitPreferredLeaderElection(
	ctx context.Context,
	tasks []LeaderTask,
) error {
	byTopic := map[string][]int{}

	for _, task := range tasks {
		byTopic[task.TopicPartition.Topic] = append(
			byTopic[task.TopicPartition.Topic],
			task.TopicPartition.Partition,
		)
	}

	for topic, partitions := range byTopic {
		_, err := c.client.ElectLeaders(
			ctx,
			&kafka.ElectLeadersRequest{
				Topic:      topic,
				Partitions: partitions,
			},
		)
		if err != nil {
			return fmt.Errorf("error submitting leader election for topic %s: %w", topic, err)
		}
	}

	return nil
}

// PartitionsBeingReassigned lists every reassignment currently tracked by
// the broker across all topics.
func (c *BrokerControlPlane) PartitionsBeingReassigned(
	ctx context.Context,
) (map[proposal.TopicPartition]struct{}, error) {
	resp, err := c.client.ListPartitionReassignments(
		ctx,
		&kafka.ListPartitionReassignmentsRequest{},
	)
	if err != nil {
		return nil, fmt.Errorf("error listing partition reassignments: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("broker error listing partition reassignments: %w", resp.Error)
	}

	result := map[proposal.TopicPartition]struct{}{}

	for topic, topicResp := range resp.Topics {
		for _, partition := range topicResp.Partitions {
			result[proposal.TopicPartition{Topic: topic, Partition: partition.PartitionIndex}] = struct{}{}
		}
	}

	return result, nil
}

// OngoingLeaderElection is not observable through the broker admin
// protocol -- there is no broker API that lists in-flight elections, only
// ones the controller watches via zookeeper. The engine treats the broker
// control plane as never reporting an ongoing election, which is
// conservative: it only means maybeReexecuteTasks always re-submits
// leader tasks when no replica tasks are running, rather than skipping
// that resubmission during someone else's concurrent election.
func (c *BrokerControlPlane) OngoingLeaderElection(
	_ context.Context,
) (map[proposal.TopicPartition]struct{}, error) {
	return map[proposal.TopicPartition]struct{}{}, nil
}

// Close does nothing and always returns nil.
func (c *BrokerControlPlane) Close(_ context.Context) error {
	return nil
}
