package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scoutline/scout-cli/internal/runner"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run connector jobs from the dispatch queue",
	Long:  "Claims queued run jobs and executes the named connectors: fetch, dedupe, extract, score, persist, then advance the schedule. Runs until interrupted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if workerConcurrency > 0 {
			cfg.Worker.Concurrency = workerConcurrency
		}
		if err := cfg.Validate("worker"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		reg := buildRegistry()
		exec := buildExecutor(st, reg)
		w := runner.NewWorker(st, exec, runner.WorkerOptions{
			Concurrency:  cfg.Worker.Concurrency,
			PollInterval: pollInterval(),
		})
		return w.Run(ctx)
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "claim loops to run in parallel (default from config)")
	rootCmd.AddCommand(workerCmd)
}
