package subcmd

import (
	"fmt"
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "request that a running execute/demote process stop its in-progress execution",
	RunE:  stopRun,
}

type stopCmdConfig struct {
	shared sharedOptions
}

var stopConfig stopCmdConfig

func init() {
	addPIDFileFlag(stopCmd, &stopConfig.shared)
	RootCmd.AddCommand(stopCmd)
}

func stopRun(cmd *cobra.Command, args []string) error {
	pid, err := readPIDFile(stopConfig.shared.pidFile)
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	// SIGTERM is handled by execute/demote the same way as a Ctrl-C: it
	// calls Executor.UserTriggeredStopExecution and lets the in-flight
	// batch drain before exiting, never forcing a task to stop mid-flight.
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling process %d: %w", pid, err)
	}

	log.Infof("Asked pid %d to stop its execution", pid)
	return nil
}
