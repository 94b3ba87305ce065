package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	settings := &cobra.Command{
		Use:   "settings",
		Short: "Process-wide configuration in the store",
		Run:   runSettingsList,
	}

	get := &cobra.Command{
		Use:   "get [key]",
		Short: "Show one setting",
		Args:  cobra.ExactArgs(1),
		Run:   runSettingsGet,
	}
	settings.AddCommand(get)

	set := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Set a setting",
		Args:  cobra.ExactArgs(2),
		Run:   runSettingsSet,
	}
	settings.AddCommand(set)

	RootCmd.AddCommand(settings)
}

func runSettingsList(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	all, err := s.ListSettings(cmd.Context())
	if err != nil {
		exitErr("settings", err)
	}
	printJSON(all)
}

func runSettingsGet(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	value, err := s.GetSetting(cmd.Context(), args[0])
	if err != nil {
		exitErr("settings get", err)
	}
	fmt.Printf("%q\n", value)
}

func runSettingsSet(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
		exitErr("settings set", err)
	}
	fmt.Printf(`{"set":%q}`+"\n", args[0])
}
