package strategy

import "github.com/segmentio/rebalance-executor/pkg/proposal"

// PrioritizeLargePartitions moves the proposals with the most estimated
// data-to-move first, on the theory that large moves should claim their
// concurrency slot as early as possible so they aren't left to run alone
// at the tail of an execution.
type PrioritizeLargePartitions struct{}

// Name implements ReplicaMovementStrategy.
func (PrioritizeLargePartitions) Name() string { return "prioritize-large-partitions" }

// Sort implements ReplicaMovementStrategy.
func (PrioritizeLargePartitions) Sort(proposals []proposal.ExecutionProposal) {
	stableSortByKey(proposals, func(a, b proposal.ExecutionProposal) bool {
		return a.DataToMoveMB > b.DataToMoveMB
	})
}

// PrioritizeSmallPartitions moves the proposals with the least estimated
// data-to-move first, clearing easy wins quickly and leaving the larger
// moves to run without competing for broker-level concurrency slots.
type PrioritizeSmallPartitions struct{}

// Name implements ReplicaMovementStrategy.
func (PrioritizeSmallPartitions) Name() string { return "prioritize-small-partitions" }

// Sort implements ReplicaMovementStrategy.
func (PrioritizeSmallPartitions) Sort(proposals []proposal.ExecutionProposal) {
	stableSortByKey(proposals, func(a, b proposal.ExecutionProposal) bool {
		return a.DataToMoveMB < b.DataToMoveMB
	})
}
