package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	entity := &cobra.Command{
		Use:   "entity",
		Short: "Manage entities and their memory links",
	}

	add := &cobra.Command{
		Use:   "add [name]",
		Short: "Create an entity (idempotent per name+type)",
		Args:  cobra.ExactArgs(1),
		Run:   runEntityAdd,
	}
	add.Flags().String("type", "concept", "Entity type: person, project, technology, organization, concept")
	add.Flags().String("aliases", "", "Comma-separated aliases")
	entity.AddCommand(add)

	link := &cobra.Command{
		Use:   "link [entity-id] [memory-id]",
		Short: "Link an entity to a memory",
		Args:  cobra.ExactArgs(2),
		Run:   runEntityLink,
	}
	link.Flags().Float64("relevance", 1.0, "Link relevance in [0,1]")
	entity.AddCommand(link)

	list := &cobra.Command{
		Use:   "list",
		Short: "List entities",
		Run:   runEntityList,
	}
	list.Flags().String("type", "", "Filter by entity type")
	list.Flags().IntP("limit", "l", 100, "Max results")
	entity.AddCommand(list)

	rels := &cobra.Command{
		Use:   "rels [entity-id]",
		Short: "List relationships, optionally for one entity",
		Args:  cobra.MaximumNArgs(1),
		Run:   runEntityRels,
	}
	rels.Flags().IntP("limit", "l", 100, "Max results")
	entity.AddCommand(rels)

	RootCmd.AddCommand(entity)
}

func runEntityAdd(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	aliasesStr, _ := cmd.Flags().GetString("aliases")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	var aliases []string
	if aliasesStr != "" {
		aliases = splitAndTrim(aliasesStr, ",")
	}

	e, err := s.UpsertEntity(cmd.Context(), args[0], typ, aliases)
	if err != nil {
		exitErr("entity add", err)
	}
	printJSON(e)
}

func runEntityLink(cmd *cobra.Command, args []string) {
	relevance, _ := cmd.Flags().GetFloat64("relevance")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.LinkEntity(cmd.Context(), args[1], args[0], relevance); err != nil {
		exitErr("entity link", err)
	}
	fmt.Printf(`{"linked":true}` + "\n")
}

func runEntityList(cmd *cobra.Command, args []string) {
	typ, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entities, err := s.ListEntities(cmd.Context(), typ, limit)
	if err != nil {
		exitErr("entity list", err)
	}
	if entities == nil {
		fmt.Println("[]")
		return
	}
	printJSON(entities)
}

func runEntityRels(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entityID := ""
	if len(args) > 0 {
		entityID = args[0]
	}
	rels, err := s.ListRelationships(cmd.Context(), entityID, limit)
	if err != nil {
		exitErr("entity rels", err)
	}
	if rels == nil {
		fmt.Println("[]")
		return
	}
	printJSON(rels)
}
