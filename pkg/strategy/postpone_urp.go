package strategy

import "github.com/segmentio/rebalance-executor/pkg/proposal"

// PostponeUrpStrategy postpones proposals whose old replica count looks
// under-replicated relative to their new one -- moving a partition that is
// already short a replica risks leaving it briefly even thinner, so those
// proposals are pushed to the back of the batch in favor of ones that
// aren't shrinking a short replica set further.
type PostponeUrpStrategy struct{}

// Name implements ReplicaMovementStrategy.
func (PostponeUrpStrategy) Name() string { return "postpone-urp" }

// Sort implements ReplicaMovementStrategy.
func (PostponeUrpStrategy) Sort(proposals []proposal.ExecutionProposal) {
	stableSortByKey(proposals, func(a, b proposal.ExecutionProposal) bool {
		return !looksUnderReplicated(a) && looksUnderReplicated(b)
	})
}

func looksUnderReplicated(p proposal.ExecutionProposal) bool {
	return len(p.OldReplicas) < len(p.NewReplicas)
}
