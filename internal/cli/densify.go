package cli

import (
	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/graph"
)

func init() {
	cmd := &cobra.Command{
		Use:   "densify",
		Short: "Infer entity relationships from co-occurrence",
		Long:  "Create co-occurs relationships for entity pairs that share enough memories and have no edge yet.",
		Run:   runDensify,
	}

	cmd.Flags().Int("min-shared", graph.DefaultMinShared, "Minimum distinct shared memories per pair")
	cmd.Flags().IntP("limit", "l", graph.DefaultLimit, "Max pairs processed")
	cmd.Flags().Bool("dry-run", false, "Report counts without writing")

	RootCmd.AddCommand(cmd)
}

func runDensify(cmd *cobra.Command, args []string) {
	minShared, _ := cmd.Flags().GetInt("min-shared")
	limit, _ := cmd.Flags().GetInt("limit")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	result, err := graph.NewDensifier(s, logger()).Run(cmd.Context(), graph.Params{
		MinShared: minShared,
		Limit:     limit,
		DryRun:    dryRun,
	})
	if err != nil {
		exitErr("densify", err)
	}
	printJSON(result)
}
