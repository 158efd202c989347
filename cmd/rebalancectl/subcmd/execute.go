package subcmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/segmentio/rebalance-executor/pkg/monitor"
	"github.com/segmentio/rebalance-executor/pkg/proposal"
)

var executeCmd = &cobra.Command{
	Use:     "execute",
	Short:   "execute a batch of partition reassignment proposals",
	PreRunE: executePreRun,
	RunE:    executeRun,
}

type executeCmdConfig struct {
	proposalsFile        string
	unthrottledBrokers   []int
	partitionCap         int
	leaderCap            int
	dryRun               bool
	showProgressInterval time.Duration

	shared sharedOptions
}

var executeConfig executeCmdConfig

func init() {
	executeCmd.Flags().StringVar(
		&executeConfig.proposalsFile,
		"proposals",
		"",
		"Path to a JSON file containing the proposal batch to execute",
	)
	executeCmd.Flags().IntSliceVar(
		&executeConfig.unthrottledBrokers,
		"unthrottled-broker",
		[]int{},
		"Broker IDs exempt from the per-broker partition movement cap",
	)
	executeCmd.Flags().IntVar(
		&executeConfig.partitionCap,
		"partition-movement-concurrency",
		0,
		"Override the configured partition movement concurrency cap",
	)
	executeCmd.Flags().IntVar(
		&executeConfig.leaderCap,
		"leadership-movement-concurrency",
		0,
		"Override the configured leadership movement concurrency cap",
	)
	executeCmd.Flags().BoolVar(
		&executeConfig.dryRun,
		"dry-run",
		false,
		"Drive the state machine against the live cluster view without submitting any reassignments",
	)
	executeCmd.Flags().DurationVar(
		&executeConfig.showProgressInterval,
		"show-progress-interval",
		10*time.Second,
		"How often to log execution progress",
	)

	addSharedConfigFlags(executeCmd, &executeConfig.shared)
	RootCmd.AddCommand(executeCmd)
}

func executePreRun(cmd *cobra.Command, args []string) error {
	if executeConfig.proposalsFile == "" {
		return fmt.Errorf("Must set --proposals")
	}
	return executeConfig.shared.validate()
}

func executeRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	proposals, err := proposal.LoadFile(executeConfig.proposalsFile)
	if err != nil {
		return fmt.Errorf("loading proposals: %w", err)
	}
	log.Infof("Loaded %d proposals from %s", len(proposals), executeConfig.proposalsFile)

	e, err := buildExecutor(executeConfig.shared, executeConfig.dryRun)
	if err != nil {
		return err
	}

	if err := writePIDFile(executeConfig.shared.pidFile); err != nil {
		log.Warnf("Failed to write pid file %s: %+v", executeConfig.shared.pidFile, err)
	}
	defer removePIDFile(executeConfig.shared.pidFile)

	var partitionCap, leaderCap *int
	if executeConfig.partitionCap > 0 {
		partitionCap = &executeConfig.partitionCap
	}
	if executeConfig.leaderCap > 0 {
		leaderCap = &executeConfig.leaderCap
	}

	lm := monitor.NewSimpleLoadMonitor()

	execUUID, err := e.ExecuteProposals(
		ctx, proposals, executeConfig.unthrottledBrokers, nil, lm, partitionCap, leaderCap, "",
	)
	if err != nil {
		return fmt.Errorf("admitting execution: %w", err)
	}
	log.Infof("Admitted execution %s", execUUID)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	stopChan := make(chan struct{})
	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGUSR1:
				logExecutorState(e.State())
			default:
				log.Infof("Received %s, requesting stop", sig)
				close(stopChan)
				return
			}
		}
	}()

	watchExecution(e, executeConfig.showProgressInterval, stopChan)

	return e.Shutdown(ctx)
}
