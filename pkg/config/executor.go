package config

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/segmentio/rebalance-executor/pkg/controlplane"
	"github.com/segmentio/rebalance-executor/pkg/executor"
	"github.com/segmentio/rebalance-executor/pkg/strategy"
)

// ExecutorConfig holds the concurrency caps, polling interval, history
// retention, and replica-movement strategy configuration for an Executor.
type ExecutorConfig struct {
	Meta ExecutorMeta `json:"meta"`
	Spec ExecutorSpec `json:"spec"`
}

// ExecutorMeta is the (mostly immutable) metadata identifying which
// cluster this executor configuration applies to.
type ExecutorMeta struct {
	Cluster     string `json:"cluster"`
	Description string `json:"description"`
}

// ExecutorSpec holds the tunable knobs for an Executor.
type ExecutorSpec struct {
	// DefaultPartitionMovementConcurrency is the default per-broker cap on
	// concurrent replica-movement tasks. Defaults to 5 if zero.
	DefaultPartitionMovementConcurrency int `json:"defaultPartitionMovementConcurrency"`

	// DefaultLeadershipMovementConcurrency is the default global cap on
	// concurrent leader-movement tasks. Defaults to 1000 if zero.
	DefaultLeadershipMovementConcurrency int `json:"defaultLeadershipMovementConcurrency"`

	// StatusCheckIntervalStr is the progress-polling period, parsed with
	// time.ParseDuration. Defaults to 5s if blank.
	StatusCheckIntervalStr string `json:"statusCheckInterval"`

	// DemotionHistoryRetentionStr and RemovalHistoryRetentionStr bound how
	// long a broker stays in ExecutorState's RecentlyDemotedBrokers and
	// RecentlyRemovedBrokers lists after its demotion/removal. Default to
	// 1h each if blank.
	DemotionHistoryRetentionStr string `json:"demotionHistoryRetention"`
	RemovalHistoryRetentionStr  string `json:"removalHistoryRetention"`

	// ReplicaMovementStrategies names, in priority order, the registered
	// strategy.ReplicaMovementStrategy implementations used to order
	// pending replica-movement tasks. The last entry should normally be
	// "default" to guarantee a deterministic tie-break. Defaults to
	// ["default"] if empty.
	ReplicaMovementStrategies []string `json:"replicaMovementStrategies"`
}

// Validate evaluates whether the executor config is valid.
func (c ExecutorConfig) Validate() error {
	var err error

	if c.Meta.Cluster == "" {
		err = multierror.Append(err, errors.New("Cluster must be set"))
	}
	if c.Spec.DefaultPartitionMovementConcurrency < 0 {
		err = multierror.Append(err, errors.New("DefaultPartitionMovementConcurrency must not be negative"))
	}
	if c.Spec.DefaultLeadershipMovementConcurrency < 0 {
		err = multierror.Append(err, errors.New("DefaultLeadershipMovementConcurrency must not be negative"))
	}

	if _, parseErr := c.statusCheckInterval(); parseErr != nil {
		err = multierror.Append(err, parseErr)
	}
	if _, parseErr := c.demotionHistoryRetention(); parseErr != nil {
		err = multierror.Append(err, parseErr)
	}
	if _, parseErr := c.removalHistoryRetention(); parseErr != nil {
		err = multierror.Append(err, parseErr)
	}
	if _, stratErr := c.replicaMovementStrategy(); stratErr != nil {
		err = multierror.Append(err, stratErr)
	}

	return err
}

func (c ExecutorConfig) partitionMovementConcurrency() int {
	if c.Spec.DefaultPartitionMovementConcurrency <= 0 {
		return 5
	}
	return c.Spec.DefaultPartitionMovementConcurrency
}

func (c ExecutorConfig) leadershipMovementConcurrency() int {
	if c.Spec.DefaultLeadershipMovementConcurrency <= 0 {
		return 1000
	}
	return c.Spec.DefaultLeadershipMovementConcurrency
}

func (c ExecutorConfig) statusCheckInterval() (time.Duration, error) {
	if c.Spec.StatusCheckIntervalStr == "" {
		return 5 * time.Second, nil
	}
	return time.ParseDuration(c.Spec.StatusCheckIntervalStr)
}

func (c ExecutorConfig) demotionHistoryRetention() (time.Duration, error) {
	if c.Spec.DemotionHistoryRetentionStr == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(c.Spec.DemotionHistoryRetentionStr)
}

func (c ExecutorConfig) removalHistoryRetention() (time.Duration, error) {
	if c.Spec.RemovalHistoryRetentionStr == "" {
		return time.Hour, nil
	}
	return time.ParseDuration(c.Spec.RemovalHistoryRetentionStr)
}

func (c ExecutorConfig) replicaMovementStrategy() (strategy.ReplicaMovementStrategy, error) {
	names := c.Spec.ReplicaMovementStrategies
	if len(names) == 0 {
		names = []string{"default"}
	}

	chain := make(strategy.Chain, 0, len(names))
	for _, name := range names {
		s, err := strategy.Get(name)
		if err != nil {
			return nil, err
		}
		chain = append(chain, s)
	}

	return chain, nil
}

// NewExecutor builds an Executor from this config, wired to the argument
// cluster view and control plane (normally obtained from a ClusterConfig's
// NewClusterView/NewControlPlane).
func (c ExecutorConfig) NewExecutor(
	clusterView executor.ClusterView,
	controlPlane controlplane.ControlPlane,
) (*executor.Executor, error) {
	demoteRetention, err := c.demotionHistoryRetention()
	if err != nil {
		return nil, err
	}
	removeRetention, err := c.removalHistoryRetention()
	if err != nil {
		return nil, err
	}
	statusCheckInterval, err := c.statusCheckInterval()
	if err != nil {
		return nil, err
	}
	replicaStrategy, err := c.replicaMovementStrategy()
	if err != nil {
		return nil, err
	}

	history := executor.NewHistoryRetainer(demoteRetention, removeRetention)
	go history.Run(context.Background())

	return executor.New(
		clusterView,
		controlPlane,
		history,
		replicaStrategy,
		c.partitionMovementConcurrency(),
		c.leadershipMovementConcurrency(),
		statusCheckInterval,
	), nil
}
