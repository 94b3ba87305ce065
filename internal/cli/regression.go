package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/regression"
	"github.com/tkuo/mnemo/internal/search"
)

func init() {
	reg := &cobra.Command{
		Use:   "regression",
		Short: "Retrieval-quality regression harness",
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run golden queries and compare rankings to baselines",
		Run:   runRegression,
	}
	run.Flags().Int("top-k", regression.DefaultTopK, "Ranking depth compared")
	run.Flags().Float64("min-overlap", 0, "Overlap@10 alert floor (default from settings)")
	run.Flags().Float64("max-shift", 0, "Rank shift alert ceiling (default from settings)")
	run.Flags().Bool("no-alert-memory", false, "Suppress the alert memory write")
	run.Flags().Bool("update-baseline", false, "Rewrite baselines from the current ranking")
	reg.AddCommand(run)

	add := &cobra.Command{
		Use:   "add [query]",
		Short: "Register a golden query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRegressionAdd,
	}
	reg.AddCommand(add)

	list := &cobra.Command{
		Use:   "list",
		Short: "List golden queries and baselines",
		Run:   runRegressionList,
	}
	reg.AddCommand(list)

	rm := &cobra.Command{
		Use:   "rm [query]",
		Short: "Remove a golden query",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRegressionRm,
	}
	reg.AddCommand(rm)

	RootCmd.AddCommand(reg)
}

func runRegression(cmd *cobra.Command, args []string) {
	topK, _ := cmd.Flags().GetInt("top-k")
	minOverlap, _ := cmd.Flags().GetFloat64("min-overlap")
	maxShift, _ := cmd.Flags().GetFloat64("max-shift")
	noAlert, _ := cmd.Flags().GetBool("no-alert-memory")
	updateBaseline, _ := cmd.Flags().GetBool("update-baseline")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	log := logger()
	engine := search.NewEngine(s, newEmbedder(), log)
	result, err := regression.NewHarness(s, engine, log).Run(cmd.Context(), regression.Params{
		TopK:           topK,
		MinOverlap:     minOverlap,
		MaxShift:       maxShift,
		SuppressAlert:  noAlert,
		UpdateBaseline: updateBaseline,
	})
	if err != nil {
		exitErr("regression run", err)
	}
	printJSON(result)
}

func runRegressionAdd(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	query := strings.Join(args, " ")
	if err := s.AddGoldenQuery(cmd.Context(), query); err != nil {
		exitErr("regression add", err)
	}
	fmt.Printf(`{"added":%q}`+"\n", query)
}

func runRegressionList(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	golden, err := s.ListGoldenQueries(cmd.Context())
	if err != nil {
		exitErr("regression list", err)
	}
	if golden == nil {
		fmt.Println("[]")
		return
	}
	printJSON(golden)
}

func runRegressionRm(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	removed, err := s.RemoveGoldenQuery(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		exitErr("regression rm", err)
	}
	fmt.Printf(`{"removed":%v}`+"\n", removed)
}
