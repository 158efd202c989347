package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmentio/rebalance-executor/pkg/strategy"
)

func TestExecutorValidate(t *testing.T) {
	type testCase struct {
		description    string
		executorConfig ExecutorConfig
		expError       bool
	}

	testCases := []testCase{
		{
			description: "all good, all defaults",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{Cluster: "test-cluster"},
			},
			expError: false,
		},
		{
			description: "missing cluster",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{},
			},
			expError: true,
		},
		{
			description: "negative partition movement concurrency",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{Cluster: "test-cluster"},
				Spec: ExecutorSpec{DefaultPartitionMovementConcurrency: -1},
			},
			expError: true,
		},
		{
			description: "negative leadership movement concurrency",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{Cluster: "test-cluster"},
				Spec: ExecutorSpec{DefaultLeadershipMovementConcurrency: -1},
			},
			expError: true,
		},
		{
			description: "bad status check interval",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{Cluster: "test-cluster"},
				Spec: ExecutorSpec{StatusCheckIntervalStr: "5xxx"},
			},
			expError: true,
		},
		{
			description: "bad demotion history retention",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{Cluster: "test-cluster"},
				Spec: ExecutorSpec{DemotionHistoryRetentionStr: "1xxx"},
			},
			expError: true,
		},
		{
			description: "bad removal history retention",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{Cluster: "test-cluster"},
				Spec: ExecutorSpec{RemovalHistoryRetentionStr: "1xxx"},
			},
			expError: true,
		},
		{
			description: "unknown replica movement strategy",
			executorConfig: ExecutorConfig{
				Meta: ExecutorMeta{Cluster: "test-cluster"},
				Spec: ExecutorSpec{ReplicaMovementStrategies: []string{"does-not-exist"}},
			},
			expError: true,
		},
	}

	for _, testCase := range testCases {
		err := testCase.executorConfig.Validate()
		if testCase.expError {
			assert.Error(t, err, testCase.description)
		} else {
			assert.NoError(t, err, testCase.description)
		}
	}
}

func TestExecutorDefaults(t *testing.T) {
	c := ExecutorConfig{Meta: ExecutorMeta{Cluster: "test-cluster"}}

	assert.Equal(t, 5, c.partitionMovementConcurrency())
	assert.Equal(t, 1000, c.leadershipMovementConcurrency())

	interval, err := c.statusCheckInterval()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, interval)

	demote, err := c.demotionHistoryRetention()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, demote)

	remove, err := c.removalHistoryRetention()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, remove)

	strat, err := c.replicaMovementStrategy()
	require.NoError(t, err)
	assert.Equal(t, strategy.Chain{strategy.Default{}}, strat)
}

func TestExecutorOverridesTakePrecedenceOverDefaults(t *testing.T) {
	c := ExecutorConfig{
		Meta: ExecutorMeta{Cluster: "test-cluster"},
		Spec: ExecutorSpec{
			DefaultPartitionMovementConcurrency:  3,
			DefaultLeadershipMovementConcurrency: 7,
			StatusCheckIntervalStr:               "1s",
			DemotionHistoryRetentionStr:          "2h",
			RemovalHistoryRetentionStr:           "3h",
		},
	}

	assert.Equal(t, 3, c.partitionMovementConcurrency())
	assert.Equal(t, 7, c.leadershipMovementConcurrency())

	interval, err := c.statusCheckInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Second, interval)

	demote, err := c.demotionHistoryRetention()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, demote)

	remove, err := c.removalHistoryRetention()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, remove)
}

func TestNewExecutorBuildsAWorkingExecutor(t *testing.T) {
	c := ExecutorConfig{Meta: ExecutorMeta{Cluster: "test-cluster"}}

	exec, err := c.NewExecutor(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, exec)
}

func TestNewExecutorPropagatesBadStrategyName(t *testing.T) {
	c := ExecutorConfig{
		Meta: ExecutorMeta{Cluster: "test-cluster"},
		Spec: ExecutorSpec{ReplicaMovementStrategies: []string{"does-not-exist"}},
	}

	_, err := c.NewExecutor(nil, nil)
	assert.Error(t, err)
}
