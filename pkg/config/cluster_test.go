package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClusterValidate(t *testing.T) {
	type testCase struct {
		description   string
		clusterConfig ClusterConfig
		expError      bool
	}

	testCases := []testCase{
		{
			description: "all good",
			clusterConfig: ClusterConfig{
				Meta: ClusterMeta{
					Name:        "test-cluster",
					Region:      "test-region",
					Environment: "test-environment",
					Description: "test-description",
				},
				Spec: ClusterSpec{
					BootstrapAddrs: []string{"broker-addr:9092"},
					ZKAddrs:        []string{"zk-addr:2181"},
				},
			},
			expError: false,
		},
		{
			description: "missing meta fields",
			clusterConfig: ClusterConfig{
				Meta: ClusterMeta{
					Environment: "test-environment",
				},
				Spec: ClusterSpec{
					BootstrapAddrs: []string{"broker-addr:9092"},
					ZKAddrs:        []string{"zk-addr:2181"},
				},
			},
			expError: true,
		},
		{
			description: "missing bootstrap addresses",
			clusterConfig: ClusterConfig{
				Meta: ClusterMeta{
					Name:        "test-cluster",
					Region:      "test-region",
					Environment: "test-environment",
				},
				Spec: ClusterSpec{
					ZKAddrs: []string{"zk-addr:2181"},
				},
			},
			expError: true,
		},
		{
			description: "missing zk addresses without broker control plane",
			clusterConfig: ClusterConfig{
				Meta: ClusterMeta{
					Name:        "test-cluster",
					Region:      "test-region",
					Environment: "test-environment",
				},
				Spec: ClusterSpec{
					BootstrapAddrs: []string{"broker-addr:9092"},
				},
			},
			expError: true,
		},
		{
			description: "missing zk addresses is fine when using broker control plane",
			clusterConfig: ClusterConfig{
				Meta: ClusterMeta{
					Name:        "test-cluster",
					Region:      "test-region",
					Environment: "test-environment",
				},
				Spec: ClusterSpec{
					BootstrapAddrs:        []string{"broker-addr:9092"},
					UseBrokerControlPlane: true,
				},
			},
			expError: false,
		},
		{
			description: "bad zk session timeout format",
			clusterConfig: ClusterConfig{
				Meta: ClusterMeta{
					Name:        "test-cluster",
					Region:      "test-region",
					Environment: "test-environment",
				},
				Spec: ClusterSpec{
					BootstrapAddrs:      []string{"broker-addr:9092"},
					ZKAddrs:             []string{"zk-addr:2181"},
					ZKSessionTimeoutStr: "10xxx",
				},
			},
			expError: true,
		},
	}

	for _, testCase := range testCases {
		err := testCase.clusterConfig.Validate()
		if testCase.expError {
			assert.Error(t, err, testCase.description)
		} else {
			assert.NoError(t, err, testCase.description)
		}
	}
}

func TestClusterZKSessionTimeoutDefault(t *testing.T) {
	c := ClusterConfig{}
	timeout, err := c.zkSessionTimeout()
	assert.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	c.Spec.ZKSessionTimeoutStr = "30s"
	timeout, err = c.zkSessionTimeout()
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestClusterZKPoolSizeDefault(t *testing.T) {
	c := ClusterConfig{}
	assert.Equal(t, 1, c.zkPoolSize())

	c.Spec.ZKPoolSize = 4
	assert.Equal(t, 4, c.zkPoolSize())
}

func TestNewControlPlaneSelectsBrokerControlPlane(t *testing.T) {
	c := ClusterConfig{
		Spec: ClusterSpec{
			BootstrapAddrs:        []string{"broker-addr:9092"},
			UseBrokerControlPlane: true,
		},
	}

	cp, err := c.NewControlPlane()
	assert.NoError(t, err)
	assert.NotNil(t, cp)
}
