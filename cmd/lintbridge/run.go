package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/lintbridge/internal/host"
)

var (
	runConfigPath string
	runOpenFiles  []string
	runNoPersist  bool
	runLogLevel   string
)

var runCmd = &cobra.Command{
	Use:   "run [folder...]",
	Short: "Run the lint server against workspace folders",
	Long: `Run spawns the configured lint server, opens the documents matched by
the include globs (plus any named with --open), and serves the session
until the server exits or the process is interrupted.`,
	RunE: runSession,
}

func init() {
	runCmd.Flags().StringVarP(&runConfigPath, "config", "c", "", "host config file (.toml, .yaml)")
	runCmd.Flags().StringSliceVar(&runOpenFiles, "open", nil, "open these documents in addition to the include globs")
	runCmd.Flags().BoolVar(&runNoPersist, "no-persist", false, "keep user decisions in memory only")
	runCmd.Flags().StringVar(&runLogLevel, "log-level", "", "override the configured log level")
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, err := host.LoadConfig(runConfigPath)
	if err != nil {
		return err
	}
	if runNoPersist {
		cfg.Store.InMemory = true
	}
	if runLogLevel != "" {
		cfg.Log.Level = runLogLevel
	}

	folders := args
	if len(folders) == 0 && len(runOpenFiles) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
		folders = []string{cwd}
	}

	h, err := host.New(cfg, folders, runOpenFiles)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return h.Run(ctx)
}
