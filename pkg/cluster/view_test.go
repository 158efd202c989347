package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

func TestPartitionStateHasLeader(t *testing.T) {
	withLeader := PartitionState{Leader: 3}
	assert.True(t, withLeader.HasLeader())

	withoutLeader := PartitionState{Leader: NoLeader}
	assert.False(t, withoutLeader.HasLeader())
}

func TestPartitionStateInISR(t *testing.T) {
	state := PartitionState{ISR: []int{1, 2, 3}}

	assert.True(t, state.InISR(2))
	assert.False(t, state.InISR(4))
}

func TestViewPartitionAbsentBeforeRefresh(t *testing.T) {
	view := New("localhost:9092")

	_, ok := view.Partition(proposal.TopicPartition{Topic: "T", Partition: 0})
	assert.False(t, ok)

	assert.False(t, view.NodeByID(1))
}
