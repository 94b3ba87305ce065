package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/temporal"
)

func init() {
	timeline := &cobra.Command{
		Use:   "timeline",
		Short: "Show memories bucketed by day",
		Run:   runTimeline,
	}
	timeline.Flags().String("after", "", "Range start (YYYY-MM-DD)")
	timeline.Flags().String("before", "", "Range end (YYYY-MM-DD)")
	timeline.Flags().Int("days", temporal.DefaultDays, "Max days shown")
	timeline.Flags().Bool("with-memories", false, "Attach up to 20 memories per day")
	RootCmd.AddCommand(timeline)

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show temporal and database statistics",
		Run:   runStats,
	}
	RootCmd.AddCommand(stats)
}

func runTimeline(cmd *cobra.Command, args []string) {
	afterStr, _ := cmd.Flags().GetString("after")
	beforeStr, _ := cmd.Flags().GetString("before")
	days, _ := cmd.Flags().GetInt("days")
	withMemories, _ := cmd.Flags().GetBool("with-memories")

	after, err := parseDay(afterStr)
	if err != nil {
		exitErr("parse --after", err)
	}
	before, err := parseDay(beforeStr)
	if err != nil {
		exitErr("parse --before", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	timeline, err := temporal.NewAnalytics(s).Timeline(cmd.Context(), temporal.TimelineParams{
		After:        after,
		Before:       before,
		Days:         days,
		WithMemories: withMemories,
	})
	if err != nil {
		exitErr("timeline", err)
	}
	if timeline == nil {
		fmt.Println("[]")
		return
	}
	printJSON(timeline)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	ctx := cmd.Context()

	tstats, err := temporal.NewAnalytics(s).Stats(ctx)
	if err != nil {
		exitErr("temporal stats", err)
	}
	dbstats, err := s.Stats(ctx, getDBPath())
	if err != nil {
		exitErr("db stats", err)
	}

	printJSON(map[string]interface{}{
		"temporal": tstats,
		"database": dbstats,
	})
}
