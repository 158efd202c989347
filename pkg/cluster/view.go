// Package cluster provides a thin, read-only snapshot of broker-cluster
// membership, partitions, replica sets, leaders, and in-sync replica sets,
// refreshed on demand from the Kafka broker protocol -- the same protocol
// path used for cluster state throughout this module's teacher, rather
// than the zookeeper path used by the control plane.
package cluster

import (
	"context"
	"fmt"
	"sync"

	kafka "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
	"github.com/segmentio/rebalance-executor/pkg/util"
)

// PartitionState is the observed state of a single partition at the time
// of the last refresh.
type PartitionState struct {
	Topic     string
	Partition int
	Replicas  []int
	ISR       []int
	Leader    int // -1 if the partition currently has no leader
}

// HasLeader reports whether the partition has a known leader.
func (p PartitionState) HasLeader() bool {
	return p.Leader != NoLeader
}

// InISR reports whether the argument broker id is in this partition's ISR.
func (p PartitionState) InISR(brokerID int) bool {
	for _, id := range p.ISR {
		if id == brokerID {
			return true
		}
	}
	return false
}

// FullyInSync reports whether every replica is currently in the ISR, i.e.
// the partition is not under-replicated.
func (p PartitionState) FullyInSync() bool {
	return util.SameElements(p.Replicas, p.ISR)
}

// NoLeader is the sentinel leader id for a partition with no current
// leader.
const NoLeader = -1

// View is a point-in-time, read-only snapshot of cluster state, refreshed
// on demand. It is safe for concurrent reads; Refresh replaces the
// snapshot wholesale so readers never observe a partially-updated view.
type View struct {
	client *kafka.Client

	mu         sync.RWMutex
	nodeIDs    map[int]struct{}
	partitions map[proposal.TopicPartition]PartitionState
}

// New returns a View that reads cluster metadata from the broker at
// bootstrapAddr via the Kafka protocol.
func New(bootstrapAddr string) *View {
	return &View{
		client: &kafka.Client{
			Addr: kafka.TCP(bootstrapAddr),
		},
		nodeIDs:    map[int]struct{}{},
		partitions: map[proposal.TopicPartition]PartitionState{},
	}
}

// Refresh re-reads cluster metadata from the broker and replaces the
// current snapshot.
func (v *View) Refresh(ctx context.Context) error {
	resp, err := v.client.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return fmt.Errorf("error refreshing cluster metadata: %w", err)
	}

	nodeIDs := map[int]struct{}{}
	for _, broker := range resp.Brokers {
		nodeIDs[broker.ID] = struct{}{}
	}

	partitions := map[proposal.TopicPartition]PartitionState{}

	for _, topic := range resp.Topics {
		if topic.Error != nil {
			log.Debugf("Skipping topic %s in metadata refresh: %+v", topic.Name, topic.Error)
			continue
		}

		for _, p := range topic.Partitions {
			tp := proposal.TopicPartition{Topic: topic.Name, Partition: p.ID}

			partitions[tp] = PartitionState{
				Topic:     topic.Name,
				Partition: p.ID,
				Replicas:  brokerIDs(p.Replicas),
				ISR:       brokerIDs(p.Isr),
				Leader:    leaderID(p.Leader),
			}
		}
	}

	v.mu.Lock()
	v.nodeIDs = nodeIDs
	v.partitions = partitions
	v.mu.Unlock()

	return nil
}

// Partition returns the current state of the argument partition and
// whether it is present in the cluster. A partition is absent either
// because its topic was deleted or because a refresh has not happened yet.
func (v *View) Partition(tp proposal.TopicPartition) (PartitionState, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	state, ok := v.partitions[tp]
	return state, ok
}

// NodeByID reports whether the argument broker id is currently present in
// the cluster.
func (v *View) NodeByID(id int) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, ok := v.nodeIDs[id]
	return ok
}

func brokerIDs(brokers []kafka.Broker) []int {
	ids := make([]int, len(brokers))
	for i, b := range brokers {
		ids[i] = b.ID
	}
	return ids
}

// leaderID maps kafka-go's Broker zero value (returned for a partition
// with no current leader) to NoLeader. The protocol itself represents "no
// leader" with broker id -1, which kafka-go passes through unchanged.
func leaderID(leader kafka.Broker) int {
	if leader.ID == 0 && leader.Host == "" {
		return NoLeader
	}
	return leader.ID
}
