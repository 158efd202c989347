// Package strategy provides pluggable orderings for the batch of pending
// replica-movement proposals a TaskManager selects from, mirroring the
// "configurable replica-movement-strategy identifiers" this engine accepts
// as configuration. Strategies operate purely on proposals so that this
// package has no dependency on the executor's task bookkeeping, in the
// same one-directional relationship the teacher's picker packages have
// with its admin types.
package strategy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

// ReplicaMovementStrategy orders a batch of pending replica-movement
// proposals. Implementations must be stable with respect to ties, falling
// back to the proposals' natural (input) order.
type ReplicaMovementStrategy interface {
	// Name identifies the strategy in configuration.
	Name() string

	// Sort reorders the argument proposals in place, most urgent to move
	// first.
	Sort(proposals []proposal.ExecutionProposal)
}

var (
	registryMu sync.Mutex
	registry   = map[string]ReplicaMovementStrategy{}
)

func init() {
	Register(Default{})
	Register(PostponeUrpStrategy{})
	Register(PrioritizeLargePartitions{})
	Register(PrioritizeSmallPartitions{})
}

// Register adds a strategy to the package registry, keyed by its Name().
// Strategies registered under a name already present overwrite it -- used
// by tests to substitute fakes.
func Register(s ReplicaMovementStrategy) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[s.Name()] = s
}

// Get looks up a strategy by name.
func Get(name string) (ReplicaMovementStrategy, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown replica-movement strategy: %s", name)
	}
	return s, nil
}

// Chain composes multiple strategies into one: proposals are sorted by the
// first strategy, with ties (proposals the first strategy considers
// equal) broken by the next strategy, and so on, with the proposals'
// natural order as the final tie-break. This mirrors the engine's
// "configured list of strategy identifiers" key: each strategy in the
// list narrows the ordering the previous one left ambiguous.
type Chain []ReplicaMovementStrategy

// Name joins the names of the chained strategies.
func (c Chain) Name() string {
	names := make([]string, len(c))
	for i, s := range c {
		names[i] = s.Name()
	}
	return fmt.Sprintf("chain(%v)", names)
}

// Sort applies the strategies from last to first (least significant
// first), each with a stable sort, so that the first strategy's order
// wins and each later strategy only decides among proposals the earlier
// ones consider equal.
func (c Chain) Sort(proposals []proposal.ExecutionProposal) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].Sort(proposals)
	}
}

// stableSortByKey is a small helper shared by the concrete strategies: it
// sorts by a less function using sort.SliceStable so ties preserve the
// input (natural proposal) order, per the engine's required tie-break.
func stableSortByKey(proposals []proposal.ExecutionProposal, less func(a, b proposal.ExecutionProposal) bool) {
	sort.SliceStable(proposals, func(i, j int) bool {
		return less(proposals[i], proposals[j])
	})
}
