// Package executor drives the two-phase (replica movement, then leader
// movement) execution of a batch of partition-reassignment proposals
// against a Kafka cluster, under configurable per-broker and global
// concurrency caps, publishing observable ExecutorState snapshots
// throughout.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/segmentio/rebalance-executor/pkg/cluster"
	"github.com/segmentio/rebalance-executor/pkg/controlplane"
	"github.com/segmentio/rebalance-executor/pkg/monitor"
	"github.com/segmentio/rebalance-executor/pkg/proposal"
	"github.com/segmentio/rebalance-executor/pkg/strategy"
	"github.com/segmentio/rebalance-executor/pkg/util"
)

// metadataRefreshBackoff bounds how long the polling loop waits after a
// failed cluster-metadata refresh before trying again.
const metadataRefreshBackoff = 100 * time.Millisecond

// ClusterView is the read side of cluster state the execution loop needs:
// *cluster.View satisfies it against a live broker; tests substitute a
// fake that needs no network access.
type ClusterView interface {
	Refresh(ctx context.Context) error
	Partition(tp proposal.TopicPartition) (cluster.PartitionState, bool)
	NodeByID(id int) bool
}

// Executor is the top-level lifecycle driver. ExecuteProposals and
// ExecuteDemoteProposals validate and admit a batch synchronously, then
// fork a single worker goroutine that owns the batch's TaskManager for
// the life of the execution. Everything else (SetExecutionMode,
// UserTriggeredStopExecution, Shutdown) is mutually exclusive with
// admission at the Executor level; of these, only Shutdown waits for the
// worker to finish.
type Executor struct {
	clusterView  ClusterView
	controlPlane controlplane.ControlPlane
	history      *HistoryRetainer

	replicaStrategy strategy.ReplicaMovementStrategy

	defaultPartitionCap int
	defaultLeaderCap    int
	statusCheckInterval time.Duration

	// mu serializes ExecuteProposals, ExecuteDemoteProposals,
	// SetExecutionMode, UserTriggeredStopExecution and Shutdown against
	// each other. Admission holds it across the cluster-view refresh and
	// the in-flight reassignment check; Shutdown releases it before
	// waiting for the worker.
	mu                  sync.Mutex
	hasOngoingExecution bool
	shutdownRequested   bool
	workerDone          chan struct{}

	stopRequested       atomic.Bool
	isKafkaAssignerMode atomic.Bool

	state atomic.Pointer[State]
}

// New returns an Executor that reads cluster state from clusterView,
// submits work through controlPlane, and records demotion/removal
// history in history. defaultPartitionCap and defaultLeaderCap are the
// concurrency caps used when an execution does not request an override.
// statusCheckInterval is the progress-polling period.
func New(
	clusterView ClusterView,
	controlPlane controlplane.ControlPlane,
	history *HistoryRetainer,
	replicaStrategy strategy.ReplicaMovementStrategy,
	defaultPartitionCap, defaultLeaderCap int,
	statusCheckInterval time.Duration,
) *Executor {
	e := &Executor{
		clusterView:         clusterView,
		controlPlane:        controlPlane,
		history:             history,
		replicaStrategy:     replicaStrategy,
		defaultPartitionCap: defaultPartitionCap,
		defaultLeaderCap:    defaultLeaderCap,
		statusCheckInterval: statusCheckInterval,
	}

	noTask := NoTaskInProgressState(nil, nil)
	e.state.Store(&noTask)

	return e
}

// State returns the most recently published snapshot.
func (e *Executor) State() State {
	return *e.state.Load()
}

// SetExecutionMode records whether subsequent executions should be
// attributed to kafka-assigner-mode callers in the execution-started
// counters. It has no effect on an execution already in progress.
func (e *Executor) SetExecutionMode(kafkaAssignerMode bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.isKafkaAssignerMode.Store(kafkaAssignerMode)
}

// UserTriggeredStopExecution requests that any in-progress execution stop
// after its current batch. It is a no-op if a stop has already been
// requested. A call while no execution is running still sets the stop
// flag and increments the stop counters; the flag is cleared again when
// the next execution is admitted.
func (e *Executor) UserTriggeredStopExecution() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.triggerStop(true)
}

func (e *Executor) triggerStop(byUser bool) {
	if e.stopRequested.CompareAndSwap(false, true) {
		executionStopped.Inc()
		if byUser {
			executionStoppedByUser.Inc()
		}
	}
}

// ExecuteProposals admits proposals for execution, treating
// unthrottledBrokers as exempt from per-broker concurrency accounting and
// removedBrokers as brokers to record in the removal history. It returns
// ErrBusy if an execution is already running, ErrInvalidArgument if
// loadMonitor is nil, and ErrConcurrentReassignment if the control plane
// reports reassignments this Executor did not initiate. partitionCap and
// leaderCap, if non-nil, override the configured defaults for this
// execution. If execUUID is empty one is generated.
func (e *Executor) ExecuteProposals(
	ctx context.Context,
	proposals []proposal.ExecutionProposal,
	unthrottledBrokers []int,
	removedBrokers []int,
	loadMonitor monitor.LoadMonitor,
	partitionCap, leaderCap *int,
	execUUID string,
) (string, error) {
	return e.execute(ctx, proposals, unthrottledBrokers, removedBrokers, nil, loadMonitor, partitionCap, leaderCap, execUUID)
}

// ExecuteDemoteProposals is ExecuteProposals specialized for broker
// demotion: demotedBrokers is both the skip-cap set and the set recorded
// in the demotion history, and the concurrency override applies to the
// partition-movement cap (demotion proposals are all swaps, so Cruise
// Control's own terminology calls this "concurrent swaps").
func (e *Executor) ExecuteDemoteProposals(
	ctx context.Context,
	proposals []proposal.ExecutionProposal,
	demotedBrokers []int,
	loadMonitor monitor.LoadMonitor,
	concurrentSwaps, leaderCap *int,
	execUUID string,
) (string, error) {
	return e.execute(ctx, proposals, demotedBrokers, nil, demotedBrokers, loadMonitor, concurrentSwaps, leaderCap, execUUID)
}

func (e *Executor) execute(
	ctx context.Context,
	proposals []proposal.ExecutionProposal,
	unthrottledBrokers []int,
	removedBrokers []int,
	demotedBrokers []int,
	loadMonitor monitor.LoadMonitor,
	partitionCap, leaderCap *int,
	execUUID string,
) (string, error) {
	if loadMonitor == nil {
		return "", ErrInvalidArgument
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shutdownRequested {
		return "", ErrShuttingDown
	}
	if e.hasOngoingExecution {
		return "", ErrBusy
	}

	tm := NewTaskManager(e.defaultPartitionCap, e.defaultLeaderCap, e.replicaStrategy)

	if err := e.clusterView.Refresh(ctx); err != nil {
		return "", fmt.Errorf("refreshing cluster view before admitting execution: %w", err)
	}
	tm.AddExecutionProposals(proposals, unthrottledBrokers, e.clusterView)

	if partitionCap != nil {
		tm.SetRequestedPartitionMovementConcurrency(*partitionCap)
	}
	if leaderCap != nil {
		tm.SetRequestedLeadershipMovementConcurrency(*leaderCap)
	}

	reassigning, err := e.controlPlane.PartitionsBeingReassigned(ctx)
	if err != nil {
		return "", fmt.Errorf("checking for in-flight reassignments: %w", err)
	}
	if len(reassigning) > 0 {
		// Metric sampling is never touched here: it has not been paused yet,
		// pausing only happens inside the worker once admission succeeds.
		return "", ErrConcurrentReassignment
	}

	// History is only recorded once admission is certain to succeed, so a
	// rejected execution leaves the recently-removed/demoted broker sets
	// untouched.
	now := time.Now()
	for _, id := range removedBrokers {
		e.history.RecordRemoval(id, now)
	}
	for _, id := range demotedBrokers {
		e.history.RecordDemotion(id, now)
	}

	if execUUID == "" {
		execUUID = uuid.NewString()
	}

	e.hasOngoingExecution = true
	e.stopRequested.Store(false)

	if e.isKafkaAssignerMode.Load() {
		executionStartedKafkaAssigner.Inc()
	} else {
		executionStartedNonKafkaAssigner.Inc()
	}

	done := make(chan struct{})
	e.workerDone = done

	partCap := e.defaultPartitionCap
	if partitionCap != nil {
		partCap = *partitionCap
	}
	leadCap := e.defaultLeaderCap
	if leaderCap != nil {
		leadCap = *leaderCap
	}

	starting := StartingExecutionState(
		execUUID, partCap, leadCap,
		e.history.RecentlyDemotedBrokers(), e.history.RecentlyRemovedBrokers(),
	)
	e.state.Store(&starting)

	go e.run(execUUID, loadMonitor, tm, partCap, leadCap, done)

	return execUUID, nil
}

// Shutdown waits indefinitely for any in-progress execution to finish on
// its own -- it never forces the worker to stop early -- then closes the
// control plane. It is safe to call more than once.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.shutdownRequested {
		e.mu.Unlock()
		return nil
	}
	e.shutdownRequested = true
	done := e.workerDone
	if e.hasOngoingExecution {
		log.Warnf("Shutdown may take a while: an execution is still in progress")
	}
	e.mu.Unlock()

	if done != nil {
		<-done
	}

	return e.controlPlane.Close(ctx)
}

// run is the single execution worker. It owns tm exclusively until it
// returns.
func (e *Executor) run(
	execUUID string,
	loadMonitor monitor.LoadMonitor,
	tm *TaskManager,
	partitionCap, leaderCap int,
	done chan struct{},
) {
	defer close(done)

	defer func() {
		loadMonitor.ResumeMetricSampling(fmt.Sprintf("execution %s finished", execUUID))
		tm.Clear()

		e.mu.Lock()
		e.hasOngoingExecution = false
		e.mu.Unlock()

		e.stopRequested.Store(false)
		noTask := NoTaskInProgressState(e.history.RecentlyDemotedBrokers(), e.history.RecentlyRemovedBrokers())
		e.state.Store(&noTask)
	}()

	ctx := context.Background()

	for {
		err := loadMonitor.PauseMetricSampling(fmt.Sprintf("execution %s starting", execUUID))
		if err == nil {
			break
		}
		if !errors.Is(err, monitor.ErrNotReady) {
			log.Errorf("Execution %s: unexpected error pausing metric sampling: %v", execUUID, err)
		}
		time.Sleep(e.statusCheckInterval)
	}

	log.Infof("Execution %s: starting balancing proposals", execUUID)

	finishedPartitions, finishedMB := e.moveReplicas(ctx, execUUID, tm, partitionCap, leaderCap)
	if !e.stopRequested.Load() {
		e.moveLeaderships(ctx, execUUID, tm, partitionCap, leaderCap, finishedPartitions, finishedMB)
	}

	log.Infof("Execution %s: finished", execUUID)
}

func (e *Executor) moveReplicas(ctx context.Context, execUUID string, tm *TaskManager, partitionCap, leaderCap int) (int, int64) {
	totalPartitions := len(tm.RemainingReplicaMovements())
	totalDataMB := sumDataToMove(tm.RemainingReplicaMovements())

	log.Infof("Execution %s: starting %d partition movements", execUUID, totalPartitions)

	var finishedPartitions int
	var finishedMB int64
	start := time.Now()

	publish := func() {
		demoted, removed := e.history.RecentlyDemotedBrokers(), e.history.RecentlyRemovedBrokers()
		if e.stopRequested.Load() {
			s := StoppingExecutionState(execUUID, finishedPartitions, 0, finishedMB, demoted, removed, tm.GetExecutionTasksSummary())
			e.state.Store(&s)
			return
		}
		s := ReplicaMovementState(
			execUUID, finishedPartitions, finishedMB, partitionCap, leaderCap,
			demoted, removed, tm.GetExecutionTasksSummary(),
		)
		e.state.Store(&s)
	}

	publish()

	remaining := tm.RemainingReplicaMovements()
	inExecution := tm.InExecutionTasksOfType(ReplicaAction)

	for (len(remaining) > 0 || len(inExecution) > 0) && !e.stopRequested.Load() {
		batch := tm.GetReplicaMovementTasks()
		log.Infof("Execution %s: dispatching %d replica-movement task(s)", execUUID, len(batch))

		if len(batch) > 0 {
			tm.MarkTasksInProgress(batch, time.Now())
			if err := e.controlPlane.SubmitReplicaReassignments(ctx, toReplicaTasks(batch)); err != nil {
				log.Errorf("Execution %s: error submitting replica reassignments: %v", execUUID, err)
			}
			batchSize.WithLabelValues("replica").Observe(float64(len(batch)))
		}

		e.waitForTasksToFinish(ctx, tm, publish)

		remaining = tm.RemainingReplicaMovements()
		inExecution = tm.InExecutionTasksOfType(ReplicaAction)
		finishedPartitions = totalPartitions - len(remaining) - len(inExecution)
		finishedMB = totalDataMB - sumDataToMove(remaining) - sumDataToMove(inExecution)

		if totalPartitions > 0 {
			elapsed := time.Since(start)
			log.Infof(
				"Execution %s: %d/%d (%d%%) partition movements completed, %d/%dMB moved (%s), %s elapsed",
				execUUID, finishedPartitions, totalPartitions, finishedPartitions*100/totalPartitions,
				finishedMB, totalDataMB, util.PrettyRate(finishedMB, elapsed), util.PrettyDuration(elapsed),
			)
		}
	}

	// After the loop exits, the controller may still be cleaning up the
	// reassignment path for in-flight tasks; keep polling until it drains.
	// This also ensures a clean stop when the execution was stopped mid-phase.
	for len(tm.InExecutionTasksOfType(ReplicaAction)) > 0 {
		e.waitForTasksToFinish(ctx, tm, publish)
	}

	summary := tm.GetExecutionTasksSummary()
	if summary.CountsByState[InProgress] == 0 {
		log.Infof("Execution %s: partition movements finished", execUUID)
	} else if e.stopRequested.Load() {
		log.Infof(
			"Execution %s: partition movements stopped with %d in progress, %d remaining, %d dead",
			execUUID, summary.CountsByState[InProgress], len(summary.RemainingReplicaMovements), len(summary.DeadTasks),
		)
	}

	return finishedPartitions, finishedMB
}

func (e *Executor) moveLeaderships(
	ctx context.Context, execUUID string, tm *TaskManager, partitionCap, leaderCap int,
	finishedPartitions int, finishedMB int64,
) {
	totalLeaders := len(tm.RemainingLeaderMovements())
	log.Infof("Execution %s: starting %d leadership movements", execUUID, totalLeaders)

	var finishedLeaders int

	publish := func() {
		demoted, removed := e.history.RecentlyDemotedBrokers(), e.history.RecentlyRemovedBrokers()
		if e.stopRequested.Load() {
			s := StoppingExecutionState(execUUID, finishedPartitions, finishedLeaders, finishedMB, demoted, removed, tm.GetExecutionTasksSummary())
			e.state.Store(&s)
			return
		}
		s := LeaderMovementState(
			execUUID, finishedPartitions, finishedLeaders, finishedMB, partitionCap, leaderCap,
			demoted, removed, tm.GetExecutionTasksSummary(),
		)
		e.state.Store(&s)
	}

	for len(tm.RemainingLeaderMovements()) > 0 && !e.stopRequested.Load() {
		publish()

		batch := tm.GetLeadershipMovementTasks()
		if len(batch) > 0 && !e.stopRequested.Load() {
			tm.MarkTasksInProgress(batch, time.Now())
			if err := e.controlPlane.SubmitPreferredLeaderElection(ctx, toLeaderTasks(batch)); err != nil {
				log.Errorf("Execution %s: error submitting leader election: %v", execUUID, err)
			}
			batchSize.WithLabelValues("leader").Observe(float64(len(batch)))

			for len(tm.InProgressTasks()) > 0 && !e.stopRequested.Load() {
				e.waitForTasksToFinish(ctx, tm, publish)
			}
		}

		finishedLeaders += len(batch)
		if totalLeaders > 0 {
			log.Infof("Execution %s: %d/%d leadership movements completed", execUUID, finishedLeaders, totalLeaders)
		}
	}

	log.Infof("Execution %s: leadership movements finished", execUUID)
}

// waitForTasksToFinish is the single progress-polling primitive both
// phases use: it re-submits any straggler tasks the controller appears
// to have silently dropped, sleeps one status-check interval, refreshes
// cluster state, and advances every in-execution task's state
// machine, calling publish after each pass. It keeps polling until either
// a task's state changed or there is nothing left in execution.
func (e *Executor) waitForTasksToFinish(ctx context.Context, tm *TaskManager, publish func()) {
	for {
		e.maybeReexecuteTasks(ctx, tm)

		time.Sleep(e.statusCheckInterval)

		if err := e.clusterView.Refresh(ctx); err != nil {
			log.Warnf("Error refreshing cluster view while waiting for tasks to finish: %v", err)
			time.Sleep(metadataRefreshBackoff)
			continue
		}

		now := time.Now()
		anyFinished := false
		var deadOrAborting []*Task

		for _, task := range tm.InExecutionTasks() {
			tp := task.Proposal.TopicPartition
			state, present := e.clusterView.Partition(tp)

			switch {
			case !present:
				log.Debugf("Task %s marked finished: its topic has been deleted", task.ID())
				tm.MarkTaskAborting(task, now)
				tm.MarkTaskDone(task, now)
				anyFinished = true
			case isTaskDone(task, state):
				tm.MarkTaskDone(task, now)
				anyFinished = true
			case maybeMarkTaskAsDeadOrAborting(task, e.clusterView, now):
				if task.Type != LeaderAction {
					deadOrAborting = append(deadOrAborting, task)
				}
				if task.State == Dead || task.State == Aborted {
					anyFinished = true
				}
			}

			if present && task.Type == ReplicaAction && !task.State.IsTerminal() && !state.FullyInSync() {
				log.Debugf("Task %s still under-replicated: replicas=%v isr=%v", task.ID(), state.Replicas, state.ISR)
			}

			if task.State.IsTerminal() {
				taskDurationSeconds.WithLabelValues(task.Type.String(), task.State.String()).
					Observe(time.Since(task.StartTime).Seconds())
			}
		}

		if len(deadOrAborting) > 0 {
			e.triggerStop(false)
		}

		publish()

		if anyFinished || len(tm.InExecutionTasks()) == 0 {
			return
		}
	}
}

// maybeReexecuteTasks re-submits tasks the controller appears to have
// silently dropped: if more REPLICA_ACTION tasks are IN_PROGRESS or
// ABORTING than the control plane reports in flight, resubmit all of
// them. Leader elections are only resubmitted once no replica action is
// in flight and the control plane reports no ongoing election, since a
// resubmitted election could otherwise race a replica move for the same
// partition.
func (e *Executor) maybeReexecuteTasks(ctx context.Context, tm *TaskManager) {
	inExecutionReplica := tm.InExecutionTasksOfType(ReplicaAction)

	reassigning, err := e.controlPlane.PartitionsBeingReassigned(ctx)
	if err != nil {
		log.Warnf("Error checking in-flight reassignments for straggler detection: %v", err)
		return
	}

	if len(inExecutionReplica) > len(reassigning) {
		log.Infof("Re-executing %d replica-movement task(s)", len(inExecutionReplica))
		if err := e.controlPlane.SubmitReplicaReassignments(ctx, toReplicaTasks(inExecutionReplica)); err != nil {
			log.Errorf("Error re-submitting replica reassignments: %v", err)
		}
	}

	if len(inExecutionReplica) > 0 {
		return
	}

	ongoingElection, err := e.controlPlane.OngoingLeaderElection(ctx)
	if err != nil {
		log.Warnf("Error checking ongoing leader election for straggler detection: %v", err)
		return
	}
	if len(ongoingElection) > 0 {
		return
	}

	inExecutionLeader := tm.InExecutionTasksOfType(LeaderAction)
	if len(inExecutionLeader) == 0 {
		return
	}

	log.Infof("Re-executing %d leader-movement task(s)", len(inExecutionLeader))
	if err := e.controlPlane.SubmitPreferredLeaderElection(ctx, toLeaderTasks(inExecutionLeader)); err != nil {
		log.Errorf("Error re-submitting leader election: %v", err)
	}
}

func sumDataToMove(tasks []*Task) int64 {
	var total int64
	for _, t := range tasks {
		total += t.Proposal.DataToMoveMB
	}
	return total
}

func toReplicaTasks(tasks []*Task) []controlplane.ReplicaTask {
	out := make([]controlplane.ReplicaTask, len(tasks))
	for i, t := range tasks {
		out[i] = controlplane.ReplicaTask{
			TopicPartition: t.Proposal.TopicPartition,
			NewReplicas:    t.Proposal.NewReplicas,
		}
	}
	return out
}

func toLeaderTasks(tasks []*Task) []controlplane.LeaderTask {
	out := make([]controlplane.LeaderTask, len(tasks))
	for i, t := range tasks {
		out[i] = controlplane.LeaderTask{TopicPartition: t.Proposal.TopicPartition}
	}
	return out
}
