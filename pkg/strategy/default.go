package strategy

import "github.com/segmentio/rebalance-executor/pkg/proposal"

// Default leaves proposals in their input order. It is the required
// tie-break for every other strategy and the strategy used when none is
// configured.
type Default struct{}

// Name implements ReplicaMovementStrategy.
func (Default) Name() string { return "default" }

// Sort implements ReplicaMovementStrategy. It is a no-op: proposal order
// is already the tie-break every other strategy falls back to.
func (Default) Sort(_ []proposal.ExecutionProposal) {}
