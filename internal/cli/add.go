package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tkuo/mnemo/internal/canon"
	"github.com/tkuo/mnemo/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a memory",
		Long:  "Store a memory. Content can be a positional arg or piped via stdin. Tags are canonicalized and merged with auto-generated ones.",
		Run:   runAdd,
	}

	cmd.Flags().String("type", "note", "Content type: text, conversation, note, summary")
	cmd.Flags().StringP("tags", "t", "", "Comma-separated tags")
	cmd.Flags().String("source", "cli", "Origin of the memory")
	cmd.Flags().Float64("importance", 0.5, "Importance in [0,1]")
	cmd.Flags().Bool("no-auto-tags", false, "Skip auto-tagging")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	contentType, _ := cmd.Flags().GetString("type")
	tagsStr, _ := cmd.Flags().GetString("tags")
	source, _ := cmd.Flags().GetString("source")
	importance, _ := cmd.Flags().GetFloat64("importance")
	noAutoTags, _ := cmd.Flags().GetBool("no-auto-tags")

	var content string
	if len(args) > 0 {
		content = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			content = string(b)
		}
	}
	content = strings.TrimSpace(content)
	if content == "" {
		exitErr("add", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()
	ctx := cmd.Context()
	log := logger()

	aliasJSON, err := s.GetSetting(ctx, store.SettingTagAliases)
	if err != nil {
		exitErr("read settings", err)
	}
	aliases := canon.LoadAliases(aliasJSON)

	var tags []string
	if tagsStr != "" {
		tags = canon.NormalizeTags(strings.Split(tagsStr, ","), aliases)
	}
	if !noAutoTags {
		for _, t := range canon.AutoTags(content) {
			tags = appendUnique(tags, t)
		}
	}

	normalize, err := canon.NormalizeWhitespaceSetting(ctx, s)
	if err != nil {
		exitErr("read settings", err)
	}
	hash := canon.ContentHash(content, normalize)

	// The store observes duplicate hashes itself; the CLI only warns.
	if n, err := s.CountByHash(ctx, hash); err == nil && n > 0 {
		log.Warn().Int("existing", n).Msg("duplicate content detected")
	}

	var vec []float32
	if e := newEmbedder(); e != nil {
		if v, err := e.Embed(ctx, content); err != nil {
			log.Warn().Err(err).Msg("embedding failed, storing without vector")
		} else {
			vec = v
		}
	}

	mem, err := s.InsertMemory(ctx, store.InsertParams{
		Content:     content,
		ContentType: contentType,
		Source:      source,
		Importance:  importance,
		ContentHash: hash,
		IsMetadata:  canon.IsMetadataContent(content),
		Embedding:   vec,
		Tags:        tags,
	})
	if err != nil {
		exitErr("add", err)
	}

	printJSON(mem)
}

func appendUnique(tags []string, t string) []string {
	for _, existing := range tags {
		if existing == t {
			return tags
		}
	}
	return append(tags, t)
}
