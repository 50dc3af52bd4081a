package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutline/scout-cli/internal/model"
	"github.com/scoutline/scout-cli/internal/store"
)

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "Inspect and toggle connector schedules",
}

var schedulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connector schedules",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		filter := store.ScheduleFilter{}
		if enabledOnly, _ := cmd.Flags().GetBool("enabled"); enabledOnly {
			enabled := true
			filter.Enabled = &enabled
		}

		scheds, err := st.ListSchedules(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "schedules list")
		}
		if len(scheds) == 0 {
			fmt.Fprintln(os.Stderr, "No schedules found. Run a sweep to bootstrap them.")
			return nil
		}

		formatSchedulesList(os.Stdout, scheds)
		return nil
	},
}

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
			if err := st.Migrate(ctx); err != nil {
				return err
			}

			if err := st.SetScheduleEnabled(ctx, args[0], enabled); err != nil {
				return eris.Wrapf(err, "schedules %s", use)
			}
			fmt.Printf("%s: enabled=%v\n", args[0], enabled)
			return nil
		},
	}
}

func init() {
	schedulesListCmd.Flags().Bool("enabled", false, "only show enabled schedules")

	schedulesCmd.AddCommand(schedulesListCmd)
	schedulesCmd.AddCommand(setEnabledCmd("enable <connector>", "Enable a connector's schedule", true))
	schedulesCmd.AddCommand(setEnabledCmd("disable <connector>", "Disable a connector's schedule", false))
	rootCmd.AddCommand(schedulesCmd)
}

// formatSchedulesList writes a tabular list of schedules to w.
func formatSchedulesList(out io.Writer, scheds []model.Schedule) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CONNECTOR\tCADENCE\tENABLED\tLAST_RUN\tNEXT_DUE\tFAILURES")
	_, _ = fmt.Fprintln(w, "---------\t-------\t-------\t--------\t--------\t--------")

	for _, s := range scheds {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%s\t%d\n",
			s.Connector,
			s.Cadence,
			s.Enabled,
			formatSchedTime(s.LastRunAt),
			formatSchedTime(s.NextDueAt),
			s.FailureCount,
		)
	}
	_ = w.Flush()
}

func formatSchedTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
