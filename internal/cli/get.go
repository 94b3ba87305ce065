package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/store"
)

func init() {
	get := &cobra.Command{
		Use:   "get [id]",
		Short: "Show a memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}
	RootCmd.AddCommand(get)

	list := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Run:   runList,
	}
	list.Flags().StringP("tags", "t", "", "Comma-separated tag filter")
	list.Flags().String("type", "", "Filter by content type")
	list.Flags().String("after", "", "Only memories created on/after this date (YYYY-MM-DD)")
	list.Flags().String("before", "", "Only memories created on/before this date (YYYY-MM-DD)")
	list.Flags().Bool("all", false, "Include inactive memories")
	list.Flags().IntP("limit", "l", 20, "Max results")
	RootCmd.AddCommand(list)

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Deactivate a memory",
		Long:  "Soft-delete a memory. The record stays for audit; retrieval and analytics ignore it.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}
	RootCmd.AddCommand(rm)
}

func runGet(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	mem, err := s.GetMemory(cmd.Context(), args[0])
	if err != nil {
		exitErr("get", err)
	}
	if mem == nil {
		fmt.Println("null")
		return
	}
	printJSON(mem)
}

func runList(cmd *cobra.Command, args []string) {
	tagsStr, _ := cmd.Flags().GetString("tags")
	contentType, _ := cmd.Flags().GetString("type")
	afterStr, _ := cmd.Flags().GetString("after")
	beforeStr, _ := cmd.Flags().GetString("before")
	all, _ := cmd.Flags().GetBool("all")
	limit, _ := cmd.Flags().GetInt("limit")

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

	memories, err := s.ListMemories(cmd.Context(), store.ListParams{
		Tags:        splitTags(tagsStr),
		ContentType: contentType,
		After:       after,
		Before:      before,
		ActiveOnly:  !all,
		Limit:       limit,
	})
	if err != nil {
		exitErr("list", err)
	}
	if memories == nil {
		fmt.Println("[]")
		return
	}
	printJSON(memories)
}

func runRm(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ok, err := s.DeactivateMemory(cmd.Context(), args[0])
	if err != nil {
		exitErr("rm", err)
	}
	fmt.Printf(`{"deactivated":%v}`+"\n", ok)
}

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, t := range splitAndTrim(s, ",") {
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
