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

var demoteCmd = &cobra.Command{
	Use:     "demote",
	Short:   "execute a batch of broker-demotion swap proposals",
	PreRunE: demotePreRun,
	RunE:    demoteRun,
}

type demoteCmdConfig struct {
	proposalsFile        string
	demotedBrokers       []int
	concurrentSwaps      int
	leaderCap            int
	dryRun               bool
	showProgressInterval time.Duration

	shared sharedOptions
}

var demoteConfig demoteCmdConfig

func init() {
	demoteCmd.Flags().StringVar(
		&demoteConfig.proposalsFile,
		"proposals",
		"",
		"Path to a JSON file containing the demotion proposal batch to execute",
	)
	demoteCmd.Flags().IntSliceVar(
		&demoteConfig.demotedBrokers,
		"demoted-broker",
		[]int{},
		"IDs of the brokers being demoted; recorded in the demotion history and exempted from the per-broker cap",
	)
	demoteCmd.Flags().IntVar(
		&demoteConfig.concurrentSwaps,
		"concurrent-swaps",
		0,
		"Override the configured partition movement concurrency cap",
	)
	demoteCmd.Flags().IntVar(
		&demoteConfig.leaderCap,
		"leadership-movement-concurrency",
		0,
		"Override the configured leadership movement concurrency cap",
	)
	demoteCmd.Flags().BoolVar(
		&demoteConfig.dryRun,
		"dry-run",
		false,
		"Drive the state machine against the live cluster view without submitting any reassignments",
	)
	demoteCmd.Flags().DurationVar(
		&demoteConfig.showProgressInterval,
		"show-progress-interval",
		10*time.Second,
		"How often to log execution progress",
	)

	addSharedConfigFlags(demoteCmd, &demoteConfig.shared)
	RootCmd.AddCommand(demoteCmd)
}

func demotePreRun(cmd *cobra.Command, args []string) error {
	if demoteConfig.proposalsFile == "" {
		return fmt.Errorf("Must set --proposals")
	}
	if len(demoteConfig.demotedBrokers) == 0 {
		return fmt.Errorf("Must set at least one --demoted-broker")
	}
	return demoteConfig.shared.validate()
}

func demoteRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	proposals, err := proposal.LoadFile(demoteConfig.proposalsFile)
	if err != nil {
		return fmt.Errorf("loading proposals: %w", err)
	}
	log.Infof("Loaded %d demotion proposals from %s", len(proposals), demoteConfig.proposalsFile)

	e, err := buildExecutor(demoteConfig.shared, demoteConfig.dryRun)
	if err != nil {
		return err
	}

	if err := writePIDFile(demoteConfig.shared.pidFile); err != nil {
		log.Warnf("Failed to write pid file %s: %+v", demoteConfig.shared.pidFile, err)
	}
	defer removePIDFile(demoteConfig.shared.pidFile)

	var concurrentSwaps, leaderCap *int
	if demoteConfig.concurrentSwaps > 0 {
		concurrentSwaps = &demoteConfig.concurrentSwaps
	}
	if demoteConfig.leaderCap > 0 {
		leaderCap = &demoteConfig.leaderCap
	}

	lm := monitor.NewSimpleLoadMonitor()

	execUUID, err := e.ExecuteDemoteProposals(
		ctx, proposals, demoteConfig.demotedBrokers, lm, concurrentSwaps, leaderCap, "",
	)
	if err != nil {
		return fmt.Errorf("admitting demotion execution: %w", err)
	}
	log.Infof("Admitted demotion execution %s", execUUID)

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

	watchExecution(e, demoteConfig.showProgressInterval, stopChan)

	return e.Shutdown(ctx)
}
