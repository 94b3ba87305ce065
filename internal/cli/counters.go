package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	counters := &cobra.Command{
		Use:   "counters",
		Short: "Show durable observability counters",
		Run:   runCounters,
	}

	reset := &cobra.Command{
		Use:   "reset [key]",
		Short: "Reset one counter to zero",
		Args:  cobra.ExactArgs(1),
		Run:   runCountersReset,
	}
	counters.AddCommand(reset)

	RootCmd.AddCommand(counters)
}

func runCounters(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	counters, err := s.ListCounters(cmd.Context())
	if err != nil {
		exitErr("counters", err)
	}
	printJSON(counters)
}

func runCountersReset(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.ResetCounter(cmd.Context(), args[0]); err != nil {
		exitErr("counters reset", err)
	}
	fmt.Printf(`{"reset":%q}`+"\n", args[0])
}
