package subcmd

import (
	"fmt"
	"os"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "ask a running execute/demote process to log its current state",
	RunE:  statusRun,
}

type statusCmdConfig struct {
	shared sharedOptions
}

var statusConfig statusCmdConfig

func init() {
	addPIDFileFlag(statusCmd, &statusConfig.shared)
	RootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command, args []string) error {
	pid, err := readPIDFile(statusConfig.shared.pidFile)
	if err != nil {
		return err
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding process %d: %w", pid, err)
	}

	if err := proc.Signal(syscall.SIGUSR1); err != nil {
		return fmt.Errorf("signaling process %d: %w", pid, err)
	}

	log.Infof("Asked pid %d to log its execution state; see that process's own log output", pid)
	return nil
}
