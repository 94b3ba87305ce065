package cli

import (
	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/canon"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Recompute canonical fields on stored memories",
		Long:  "Recompute content hash, tag canonical forms, and the metadata flag over a bounded scan. Idempotent; safe to re-run after a failure.",
		Run:   runBackfill,
	}

	cmd.Flags().IntP("limit", "l", canon.DefaultBackfillLimit, "Max memories scanned")
	cmd.Flags().Bool("dry-run", false, "Report counts without writing")

	RootCmd.AddCommand(cmd)
}

func runBackfill(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	result, err := canon.NewBackfiller(s, logger()).Run(cmd.Context(), canon.BackfillParams{
		Limit:  limit,
		DryRun: dryRun,
	})
	if err != nil {
		exitErr("backfill", err)
	}
	printJSON(result)
}
