package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scoutline/scout-cli/internal/cadence"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate schedules once and dispatch due connectors",
	Long:  "Bootstraps schedules for registered connectors, finds which are due, and enqueues a run job per due connector whose lock is free. Safe to run from cron; overlapping sweeps coordinate through the locks.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("sweep"); err != nil {
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
		if len(reg.Names()) == 0 {
			fmt.Fprintln(os.Stderr, "No connectors configured.")
			return nil
		}

		dispatched, err := buildScheduler(st, reg).Sweep(ctx, time.Now())
		if err != nil {
			return eris.Wrap(err, "sweep")
		}

		zap.L().Info("sweep complete", zap.Int("dispatched", dispatched))
		fmt.Printf("Dispatched %d run(s).\n", dispatched)
		return nil
	},
}

var cadenceCheckCmd = &cobra.Command{
	Use:   "check-cadence <expression>",
	Short: "Validate a cron cadence expression",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := cadence.Validate(args[0]); err != nil {
			return err
		}
		next, err := cadence.Next(args[0], time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("OK. Next fire: %s\n", next.Format(time.RFC3339))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(cadenceCheckCmd)
}
