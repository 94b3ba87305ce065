package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/search"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories with hybrid ranking",
		Long:  "Rank memories by fused semantic similarity, keyword overlap, recency, and access frequency.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("tags", "t", "", "Comma-separated tag filter")
	cmd.Flags().String("type", "", "Filter by content type")
	cmd.Flags().String("after", "", "Only memories created on/after this date (YYYY-MM-DD)")
	cmd.Flags().String("before", "", "Only memories created on/before this date (YYYY-MM-DD)")
	cmd.Flags().IntP("limit", "l", 10, fmt.Sprintf("Max results (cap %d)", search.MaxLimit))

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	contentType, _ := cmd.Flags().GetString("type")
	afterStr, _ := cmd.Flags().GetString("after")
	beforeStr, _ := cmd.Flags().GetString("before")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	after, err := parseDay(afterStr)
	if err != nil {
		exitErr("parse --after", err)
	}
	before, err := parseDay(beforeStr)
	if err != nil {
		exitErr("parse --before", err)
	}
	if !before.IsZero() {
		before = before.Add(24*time.Hour - time.Second)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	engine := search.NewEngine(s, newEmbedder(), logger())
	results, err := engine.Search(cmd.Context(), search.Params{
		Query:       query,
		Tags:        splitTags(tagsStr),
		ContentType: contentType,
		After:       after,
		Before:      before,
		Limit:       limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
