package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/model"
)

func init() {
	export := &cobra.Command{
		Use:   "export",
		Short: "Export all memories as JSON",
		Run:   runExport,
	}
	RootCmd.AddCommand(export)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import memories from JSON (stdin)",
		Long:  "Import memories from JSON produced by export. Per-item failures are collected; the batch continues and reports a failure count.",
		Run:   runImport,
	}
	RootCmd.AddCommand(importCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	memories, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}
	if memories == nil {
		fmt.Println("[]")
		return
	}
	printJSON(memories)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var memories []model.Memory
	if err := json.Unmarshal(data, &memories); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	result, err := s.Import(cmd.Context(), memories)
	if err != nil {
		exitErr("import", err)
	}
	printJSON(result)
}
