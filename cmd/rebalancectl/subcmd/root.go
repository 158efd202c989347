package subcmd

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var debug bool

// RootCmd is the cobra CLI root command.
var RootCmd = &cobra.Command{
	Use:               "rebalancectl",
	Short:             "rebalancectl drives kafka partition reassignment executions",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: preRun,
}

func init() {
	log.SetFormatter(&prefixed.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})

	RootCmd.PersistentFlags().BoolVar(
		&debug,
		"debug",
		false,
		"enable debug logging",
	)
}

// Execute runs rebalancectl.
func Execute(versionRef string) {
	RootCmd.Version = fmt.Sprintf("v%s", versionRef)

	if err := RootCmd.Execute(); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

func preRun(cmd *cobra.Command, args []string) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	return nil
}

// sharedOptions holds the config-file flags common to every subcommand
// that needs to build a ClusterConfig/ExecutorConfig pair.
type sharedOptions struct {
	clusterConfig  string
	executorConfig string
	pidFile        string
}

func (s sharedOptions) validate() error {
	if s.clusterConfig == "" {
		return errors.New("Must set --cluster-config")
	}
	return nil
}

func addSharedConfigFlags(cmd *cobra.Command, options *sharedOptions) {
	cmd.Flags().StringVar(
		&options.clusterConfig,
		"cluster-config",
		os.Getenv("REBALANCECTL_CLUSTER_CONFIG"),
		"Path to cluster config YAML",
	)
	cmd.Flags().StringVar(
		&options.executorConfig,
		"executor-config",
		os.Getenv("REBALANCECTL_EXECUTOR_CONFIG"),
		"Path to executor config YAML; if unset, defaults are used",
	)
	cmd.Flags().StringVar(
		&options.pidFile,
		"pid-file",
		"/tmp/rebalancectl.pid",
		"Path to the pid file this process writes while an execution is running, used by status/stop",
	)
}

// addPIDFileFlag registers only the --pid-file flag, for subcommands
// (status, stop) that target an already-running execute/demote process
// rather than building their own Executor.
func addPIDFileFlag(cmd *cobra.Command, options *sharedOptions) {
	cmd.Flags().StringVar(
		&options.pidFile,
		"pid-file",
		"/tmp/rebalancectl.pid",
		"Path to the pid file written by the execute/demote process to target",
	)
}
