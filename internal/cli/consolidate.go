package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/consolidate"
	"github.com/tkuo/mnemo/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Cluster similar memories and merge each cluster into a summary",
		Run:   runConsolidate,
	}

	cmd.Flags().Float64("min-similarity", consolidate.DefaultMinSimilarity, "Similarity floor for cluster membership")
	cmd.Flags().Int("min-size", consolidate.DefaultMinClusterSize, "Minimum cluster size")
	cmd.Flags().Bool("dry-run", false, "List clusters without merging")

	history := &cobra.Command{
		Use:   "history",
		Short: "Show consolidation audit records",
		Run:   runConsolidateHistory,
	}
	history.Flags().IntP("limit", "l", 50, "Max records")
	cmd.AddCommand(history)

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	minSimilarity, _ := cmd.Flags().GetFloat64("min-similarity")
	minSize, _ := cmd.Flags().GetInt("min-size")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	ctx := cmd.Context()

	engine := consolidate.NewEngine(s, newEmbedder(), logger())
	clusters, err := engine.FindClusters(ctx, minSimilarity, minSize)
	if err != nil {
		exitErr("find clusters", err)
	}

	if dryRun {
		if clusters == nil {
			fmt.Println("[]")
			return
		}
		printJSON(clusters)
		return
	}

	var records []model.Consolidation
	for _, cluster := range clusters {
		summary, err := engine.BasicSummary(ctx, cluster.MemberIDs)
		if err != nil {
			exitErr("summarize cluster", err)
		}
		rec, err := engine.Consolidate(ctx, cluster, summary)
		if err != nil {
			exitErr("consolidate cluster", err)
		}
		records = append(records, *rec)
	}
	if records == nil {
		fmt.Println("[]")
		return
	}
	printJSON(records)
}

func runConsolidateHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.ListConsolidations(cmd.Context(), limit)
	if err != nil {
		exitErr("history", err)
	}
	if records == nil {
		fmt.Println("[]")
		return
	}
	printJSON(records)
}
