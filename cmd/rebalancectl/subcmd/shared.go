package subcmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	"github.com/segmentio/rebalance-executor/pkg/config"
	"github.com/segmentio/rebalance-executor/pkg/controlplane"
	"github.com/segmentio/rebalance-executor/pkg/executor"
)

// buildExecutor loads the cluster and executor configs named by options and
// wires them into a single Executor, along with its ControlPlane (which the
// caller is responsible for shutting down via Executor.Shutdown). If
// dryRun is set, the Executor is wired to a DryRunControlPlane instead of
// the configured zookeeper/broker control plane.
func buildExecutor(options sharedOptions, dryRun bool) (*executor.Executor, error) {
	clusterConfig, err := config.LoadClusterFile(options.clusterConfig)
	if err != nil {
		return nil, fmt.Errorf("loading cluster config: %w", err)
	}
	if err := clusterConfig.Validate(); err != nil {
		return nil, fmt.Errorf("validating cluster config: %w", err)
	}

	executorConfig := config.ExecutorConfig{
		Meta: config.ExecutorMeta{Cluster: clusterConfig.Meta.Name},
	}
	if options.executorConfig != "" {
		executorConfig, err = config.LoadExecutorConfigFile(options.executorConfig)
		if err != nil {
			return nil, fmt.Errorf("loading executor config: %w", err)
		}
	}
	if err := executorConfig.Validate(); err != nil {
		return nil, fmt.Errorf("validating executor config: %w", err)
	}

	clusterView := clusterConfig.NewClusterView()

	var controlPlane controlplane.ControlPlane
	if dryRun {
		controlPlane = controlplane.NewDryRunControlPlane()
	} else {
		controlPlane, err = clusterConfig.NewControlPlane()
		if err != nil {
			return nil, fmt.Errorf("building control plane: %w", err)
		}
	}

	return executorConfig.NewExecutor(clusterView, controlPlane)
}

// writePIDFile records this process's pid, so that a later status/stop
// invocation can locate it. Mirrors the pattern of a standard unix daemon
// pid file; removed by removePIDFile once the execution finishes.
func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func removePIDFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to remove pid file %s: %+v", path, err)
	}
}

func readPIDFile(path string) (int, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading pid file %s: %w", path, err)
	}
	return strconv.Atoi(string(contents))
}

var roundScoreboard = color.New(color.FgYellow, color.Bold).SprintfFunc()

// logExecutorState prints a one-line summary of an Executor's current
// state, in the manner of pkg/apply/apply.go's round-highlighted progress
// lines.
func logExecutorState(state executor.State) {
	summary := state.TasksSummary
	var replicaInProgress, leaderInProgress int
	for _, id := range summary.InProgressTasks {
		if id.Type == executor.LeaderAction {
			leaderInProgress++
		} else {
			replicaInProgress++
		}
	}
	log.Infof(
		"%s: lifecycle=%s uuid=%s replicaInProgress=%d leaderInProgress=%d completed=%d dead=%d",
		roundScoreboard(state.Lifecycle.String()),
		state.Lifecycle,
		state.ExecutionUUID,
		replicaInProgress,
		leaderInProgress,
		summary.CountsByState[executor.Completed],
		len(summary.DeadTasks),
	)
}

// watchExecution polls an Executor's state until the lifecycle returns to
// NoTaskInProgress, logging progress every interval. It also handles a
// stopRequested signal by invoking UserTriggeredStopExecution.
func watchExecution(e *executor.Executor, interval time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			state := e.State()
			logExecutorState(state)
			if state.Lifecycle == executor.NoTaskInProgress {
				return
			}
		case <-stopChan:
			e.UserTriggeredStopExecution()
			stopChan = nil // already requested; stop selecting this case
		}
	}
}
