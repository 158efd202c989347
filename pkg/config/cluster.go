package config

import (
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/segmentio/rebalance-executor/pkg/cluster"
	"github.com/segmentio/rebalance-executor/pkg/controlplane"
	"github.com/segmentio/rebalance-executor/pkg/zk"
)

// ClusterConfig stores the metadata and connection details for a single
// Kafka cluster this engine drives reassignments against.
type ClusterConfig struct {
	Meta ClusterMeta `json:"meta"`
	Spec ClusterSpec `json:"spec"`
}

// ClusterMeta contains (mostly immutable) metadata about the cluster.
// Inspired by the meta fields in Kubernetes objects.
type ClusterMeta struct {
	Name        string `json:"name"`
	Region      string `json:"region"`
	Environment string `json:"environment"`
	Description string `json:"description"`
}

// ClusterSpec contains the details necessary to communicate with a Kafka
// cluster's metadata and control plane.
type ClusterSpec struct {
	// BootstrapAddrs is a list of one or more broker bootstrap addresses,
	// used for cluster metadata refreshes and, if UseBrokerControlPlane is
	// set, for submitting reassignments too.
	BootstrapAddrs []string `json:"bootstrapAddrs"`

	// ZKAddrs is a list of one or more zookeeper addresses. Required
	// unless UseBrokerControlPlane is set.
	ZKAddrs []string `json:"zkAddrs"`

	// ZKPrefix is the chroot prefix under which this cluster's admin nodes
	// live. If blank, nodes are assumed to be under the zk root.
	ZKPrefix string `json:"zkPrefix"`

	// ZKSessionTimeoutStr is the zookeeper session timeout, parsed with
	// time.ParseDuration. Defaults to 10s if blank.
	ZKSessionTimeoutStr string `json:"zkSessionTimeout"`

	// ZKPoolSize is the number of pooled read-only zookeeper connections
	// to maintain. Defaults to 1 if zero.
	ZKPoolSize int `json:"zkPoolSize"`

	// UseBrokerControlPlane selects BrokerControlPlane (the broker admin
	// protocol) over ZKControlPlane for submitting reassignments and
	// elections. Requires no zookeeper addresses.
	UseBrokerControlPlane bool `json:"useBrokerControlPlane"`
}

// Validate evaluates whether the cluster config is valid.
func (c ClusterConfig) Validate() error {
	var err error

	if c.Meta.Name == "" {
		err = multierror.Append(err, errors.New("Name must be set"))
	}
	if c.Meta.Region == "" {
		err = multierror.Append(err, errors.New("Region must be set"))
	}
	if c.Meta.Environment == "" {
		err = multierror.Append(err, errors.New("Environment must be set"))
	}

	if len(c.Spec.BootstrapAddrs) == 0 {
		err = multierror.Append(err, errors.New("At least one bootstrap broker address must be set"))
	}
	if len(c.Spec.ZKAddrs) == 0 && !c.Spec.UseBrokerControlPlane {
		err = multierror.Append(err, errors.New("At least one zookeeper address must be set"))
	}

	if _, parseErr := c.zkSessionTimeout(); parseErr != nil {
		err = multierror.Append(err, parseErr)
	}

	return err
}

func (c ClusterConfig) zkSessionTimeout() (time.Duration, error) {
	if c.Spec.ZKSessionTimeoutStr == "" {
		return 10 * time.Second, nil
	}
	return time.ParseDuration(c.Spec.ZKSessionTimeoutStr)
}

func (c ClusterConfig) zkPoolSize() int {
	if c.Spec.ZKPoolSize <= 0 {
		return 1
	}
	return c.Spec.ZKPoolSize
}

// NewClusterView returns a ClusterView backed by this cluster's bootstrap
// addresses.
func (c ClusterConfig) NewClusterView() *cluster.View {
	return cluster.New(c.Spec.BootstrapAddrs[0])
}

// NewControlPlane returns the ControlPlane selected by
// UseBrokerControlPlane: a BrokerControlPlane talking the broker admin
// protocol, or a ZKControlPlane backed by a pooled zookeeper client.
func (c ClusterConfig) NewControlPlane() (controlplane.ControlPlane, error) {
	if c.Spec.UseBrokerControlPlane {
		return controlplane.NewBrokerControlPlane(c.Spec.BootstrapAddrs[0]), nil
	}

	timeout, err := c.zkSessionTimeout()
	if err != nil {
		return nil, err
	}

	zkClient, err := zk.NewPooledClient(
		c.Spec.ZKAddrs,
		timeout,
		&zk.DebugLogger{},
		c.zkPoolSize(),
		false,
	)
	if err != nil {
		return nil, err
	}

	return controlplane.NewZKControlPlane(zkClient, c.Spec.ZKPrefix), nil
}
