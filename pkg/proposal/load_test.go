package proposal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytes(t *testing.T) {
	contents := []byte(`
[
  {
    "topicPartition": {"topic": "T", "partition": 0},
    "oldReplicas": [1, 2, 3],
    "newReplicas": [1, 2, 4],
    "oldLeader": 1,
    "newLeader": 1,
    "dataToMoveMB": 512
  }
]
`)

	proposals, err := LoadBytes(contents)
	require.NoError(t, err)
	require.Len(t, proposals, 1)

	assert.Equal(
		t,
		ExecutionProposal{
			TopicPartition: TopicPartition{Topic: "T", Partition: 0},
			OldReplicas:    []int{1, 2, 3},
			NewReplicas:    []int{1, 2, 4},
			OldLeader:      1,
			NewLeader:      1,
			DataToMoveMB:   512,
		},
		proposals[0],
	)
}

func TestLoadBytesRejectsUnknownFields(t *testing.T) {
	contents := []byte(`[{"topicPartition": {"topic": "T", "partition": 0}, "bogusField": true}]`)

	_, err := LoadBytes(contents)
	assert.Error(t, err)
}
