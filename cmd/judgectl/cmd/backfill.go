package cmd

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newBackfillCmd() *cobra.Command {
	var dryRun bool
	c := &cobra.Command{
		Use:   "backfill-contest",
		Short: "Attach a contest to submissions that were stored without one",
		Long: `A submission is attached when exactly one contest contains its question
and was running when it was submitted. Ambiguous and unmatched submissions
are listed for manual resolution.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeAll := maintenance()
			defer closeAll()

			report, err := svc.BackfillContests(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			verb := "attached"
			if dryRun {
				verb = "would attach"
			}
			for _, m := range report.Attached {
				printf(cmd, "%s %s -> %s\n", verb, m.SubmissionID, m.ContestID)
			}
			ids := make([]string, 0, len(report.Ambiguous))
			for id := range report.Ambiguous {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				printf(cmd, "ambiguous %s: %s\n", id, strings.Join(report.Ambiguous[id], ", "))
			}
			for _, id := range report.Unmatched {
				printf(cmd, "unmatched %s\n", id)
			}
			printf(cmd, "%s %d, ambiguous %d, unmatched %d\n", verb, len(report.Attached), len(report.Ambiguous), len(report.Unmatched))
			return nil
		},
	}
	c.Flags().BoolVar(&dryRun, "dry-run", false, "report matches without writing them")
	return c
}
