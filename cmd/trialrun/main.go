package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tunelab/trialrun/internal/config"
	"github.com/tunelab/trialrun/internal/harness"
	apperrors "github.com/tunelab/trialrun/internal/pkg/errors"
	"github.com/tunelab/trialrun/internal/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trialrun",
		Short: "Trialrun - hyperparameter search trial worker",
		Long: `Trialrun executes one trial of a hyperparameter search experiment:
it resolves the trial identity from its environment, runs the trial
computation, reports the objective metric through the configured sinks,
and holds the process open for the sidecar metrics collector.

Run 'trialrun run' to execute a trial.
Run 'trialrun --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")

	rootCmd.AddCommand(
		runCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperrors.ExitCodeOf(err))
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one search trial",
		Long: `Execute one trial and report its objective metric.

The trial identity is taken from the KATIB_BASE_URL, KATIB_NAMESPACE and
KATIB_TRIAL_NAME environment variables when the worker runs under a search
controller; outside that context the worker runs standalone and only sinks
that need no identity (e.g. stdout) may be configured.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Flag overrides beat both the file and the environment.
			if cmd.Flags().Changed("hyperparameter") {
				cfg.Nested.Hyperparameter, _ = cmd.Flags().GetFloat64("hyperparameter")
			}
			if cmd.Flags().Changed("sinks") {
				cfg.Sinks, _ = cmd.Flags().GetString("sinks")
			}
			if cmd.Flags().Changed("event-dir") {
				cfg.EventDir, _ = cmd.Flags().GetString("event-dir")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logger.New(cfg.Log.Level, cfg.Log.Format)

			// Record the effective configuration in the trial logs.
			fmt.Fprint(os.Stderr, cfg.Dump())

			h := harness.New(cfg, log)
			if err := h.Run(context.Background()); err != nil {
				log.WithError(err).Error("trial failed")
				return err
			}
			return nil
		},
	}

	cmd.Flags().Float64("hyperparameter", 0, "trial hyperparameter value")
	cmd.Flags().String("sinks", "", "comma-separated sink list (stdout, events, tracking, kafka, redis)")
	cmd.Flags().String("event-dir", "", "directory for the scalar event file")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("trialrun %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
