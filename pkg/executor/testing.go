package executor

import (
	"context"
	"sync"

	"github.com/segmentio/rebalance-executor/pkg/cluster"
	"github.com/segmentio/rebalance-executor/pkg/controlplane"
	"github.com/segmentio/rebalance-executor/pkg/monitor"
	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

// clusterPartitionState builds a cluster.PartitionState for tests.
func clusterPartitionState(topic string, partition int, replicas, isr []int, leader int) cluster.PartitionState {
	return cluster.PartitionState{
		Topic:     topic,
		Partition: partition,
		Replicas:  replicas,
		ISR:       isr,
		Leader:    leader,
	}
}

// fakeClusterView is an in-memory ClusterView for exercising the
// execution loop without a live broker. Tests mutate its state directly
// between waitForTasksToFinish polls to simulate the controller making
// progress.
type fakeClusterView struct {
	mu sync.Mutex

	nodeIDs    map[int]struct{}
	partitions map[proposal.TopicPartition]cluster.PartitionState

	refreshErr error
}

func newFakeClusterView() *fakeClusterView {
	return &fakeClusterView{
		nodeIDs:    map[int]struct{}{},
		partitions: map[proposal.TopicPartition]cluster.PartitionState{},
	}
}

func (f *fakeClusterView) Refresh(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.refreshErr
}

func (f *fakeClusterView) Partition(tp proposal.TopicPartition) (cluster.PartitionState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.partitions[tp]
	return state, ok
}

func (f *fakeClusterView) NodeByID(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.nodeIDs[id]
	return ok
}

func (f *fakeClusterView) setNodes(ids ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, id := range ids {
		f.nodeIDs[id] = struct{}{}
	}
}

func (f *fakeClusterView) removeNode(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.nodeIDs, id)
}

func (f *fakeClusterView) setPartition(state cluster.PartitionState) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.partitions[proposal.TopicPartition{Topic: state.Topic, Partition: state.Partition}] = state
}

func (f *fakeClusterView) deletePartition(tp proposal.TopicPartition) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.partitions, tp)
}

// fakeControlPlane is an in-memory ControlPlane. SubmitReplicaReassignments
// and SubmitPreferredLeaderElection just record which partitions are
// "in flight"; tests drive completion by updating a fakeClusterView and
// calling resolve to clear the in-flight marker, mimicking what a real
// controller would eventually report once the move finishes.
type fakeControlPlane struct {
	mu sync.Mutex

	reassigning map[proposal.TopicPartition]struct{}
	electing    map[proposal.TopicPartition]struct{}

	submitReplicaErr error
	submitLeaderErr  error

	closeCalls int
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		reassigning: map[proposal.TopicPartition]struct{}{},
		electing:    map[proposal.TopicPartition]struct{}{},
	}
}

func (f *fakeControlPlane) SubmitReplicaReassignments(_ context.Context, tasks []controlplane.ReplicaTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitReplicaErr != nil {
		return f.submitReplicaErr
	}
	for _, t := range tasks {
		f.reassigning[t.TopicPartition] = struct{}{}
	}
	return nil
}

func (f *fakeControlPlane) SubmitPreferredLeaderElection(_ context.Context, tasks []controlplane.LeaderTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitLeaderErr != nil {
		return f.submitLeaderErr
	}
	for _, t := range tasks {
		f.electing[t.TopicPartition] = struct{}{}
	}
	return nil
}

func (f *fakeControlPlane) PartitionsBeingReassigned(_ context.Context) (map[proposal.TopicPartition]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[proposal.TopicPartition]struct{}, len(f.reassigning))
	for tp := range f.reassigning {
		out[tp] = struct{}{}
	}
	return out, nil
}

func (f *fakeControlPlane) OngoingLeaderElection(_ context.Context) (map[proposal.TopicPartition]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[proposal.TopicPartition]struct{}, len(f.electing))
	for tp := range f.electing {
		out[tp] = struct{}{}
	}
	return out, nil
}

func (f *fakeControlPlane) Close(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closeCalls++
	return nil
}

func (f *fakeControlPlane) closeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closeCalls
}

func (f *fakeControlPlane) resolveReassignment(tp proposal.TopicPartition) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.reassigning, tp)
}

func (f *fakeControlPlane) resolveElection(tp proposal.TopicPartition) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.electing, tp)
}

func (f *fakeControlPlane) setForeignReassignment(tp proposal.TopicPartition) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reassigning[tp] = struct{}{}
}

// fakeLoadMonitor is an in-memory LoadMonitor that records every
// pause/resume call, for asserting the execution loop pairs them
// correctly.
type fakeLoadMonitor struct {
	mu sync.Mutex

	paused      bool
	pauseCalls  int
	resumeCalls int
	notReady    bool
}

func newFakeLoadMonitor() *fakeLoadMonitor {
	return &fakeLoadMonitor{}
}

func (f *fakeLoadMonitor) PauseMetricSampling(_ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.notReady {
		return monitor.ErrNotReady
	}
	f.paused = true
	f.pauseCalls++
	return nil
}

func (f *fakeLoadMonitor) ResumeMetricSampling(_ string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paused = false
	f.resumeCalls++
}

func (f *fakeLoadMonitor) setNotReady(notReady bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notReady = notReady
}

func (f *fakeLoadMonitor) counts() (pause, resume int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.pauseCalls, f.resumeCalls
}
