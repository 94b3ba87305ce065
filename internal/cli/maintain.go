package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/consolidate"
	"github.com/tkuo/mnemo/internal/graph"
	"github.com/tkuo/mnemo/internal/maintenance"
	"github.com/tkuo/mnemo/internal/regression"
	"github.com/tkuo/mnemo/internal/search"
)

func init() {
	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run the periodic maintenance cycle",
		Long:  "Densify the entity graph, consolidate clusters, and check retrieval regressions on a cron schedule (maintenance.schedule setting).",
		Run:   runMaintain,
	}
	cmd.Flags().Bool("once", false, "Run one cycle and exit")
	RootCmd.AddCommand(cmd)
}

func runMaintain(cmd *cobra.Command, args []string) {
	once, _ := cmd.Flags().GetBool("once")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	log := logger()
	embedder := newEmbedder()
	engine := search.NewEngine(s, embedder, log)
	runner := maintenance.NewRunner(
		s,
		graph.NewDensifier(s, log),
		consolidate.NewEngine(s, embedder, log),
		regression.NewHarness(s, engine, log),
		log,
	)

	if once {
		result, err := runner.RunCycle(cmd.Context())
		if err != nil {
			exitErr("maintain", err)
		}
		printJSON(result)
		return
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := runner.Start(ctx); err != nil {
		exitErr("maintain", err)
	}
}
