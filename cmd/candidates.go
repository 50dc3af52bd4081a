package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/scoutline/scout-cli/internal/model"
	"github.com/scoutline/scout-cli/internal/store"
)

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "Review and triage discovered candidates",
}

var candidatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List candidates",
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

		channel, _ := cmd.Flags().GetString("channel")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		cands, err := st.ListCandidates(ctx, store.CandidateFilter{
			Channel: channel,
			Status:  model.CandidateStatus(status),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "candidates list")
		}

		if len(cands) == 0 {
			fmt.Fprintln(os.Stderr, "No candidates found.")
			return nil
		}

		formatCandidatesList(os.Stdout, cands)
		return nil
	},
}

var candidatesSetStatusCmd = &cobra.Command{
	Use:   "set-status <id> <pending|approved|watch|dismissed>",
	Short: "Set a candidate's review status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Errorf("invalid candidate id: %s", args[0])
		}
		status := model.CandidateStatus(args[1])
		switch status {
		case model.CandidateStatusPending, model.CandidateStatusApproved,
			model.CandidateStatusWatch, model.CandidateStatusDismissed:
		default:
			return eris.Errorf("invalid status: %s", args[1])
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.UpdateCandidateStatus(ctx, id, status); err != nil {
			return eris.Wrap(err, "candidates set-status")
		}
		fmt.Printf("candidate %d: %s\n", id, status)
		return nil
	},
}

func init() {
	candidatesListCmd.Flags().String("channel", "", "filter by channel")
	candidatesListCmd.Flags().String("status", "", "filter by status (pending, approved, watch, dismissed)")
	candidatesListCmd.Flags().Int("limit", 50, "max number of candidates to display")

	candidatesCmd.AddCommand(candidatesListCmd)
	candidatesCmd.AddCommand(candidatesSetStatusCmd)
	rootCmd.AddCommand(candidatesCmd)
}

// formatCandidatesList writes a tabular list of candidates to w.
func formatCandidatesList(out io.Writer, cands []model.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tCHANNEL\tSCORE\tSTATUS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-------\t-----\t------\t-------")

	for _, c := range cands {
		name := c.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.0f\t%s\t%s\n",
			c.ID,
			name,
			c.Channel,
			c.Score,
			c.Status,
			c.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
