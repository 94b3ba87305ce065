package consolidate

import (
	"context"
	"fmt"
	"strings"

	"github.com/tkuo/mnemo/internal/model"
)

const (
	summaryMaxMembers = 8
	summarySnippetLen = 200
)

// BasicSummary builds an extractive summary for a cluster: snippets
// of the original content selected by importance then recency and
// concatenated. No network calls; generative synthesis is delegated
// to an external process.
func (e *Engine) BasicSummary(ctx context.Context, memberIDs []string) (string, error) {
	var members []model.Memory
	for _, id := range memberIDs {
		m, err := e.store.GetMemory(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load member %s: %w", id, err)
		}
		if m == nil {
			return "", fmt.Errorf("member %s not found", id)
		}
		members = append(members, *m)
	}
	if len(members) == 0 {
		return "", fmt.Errorf("empty cluster")
	}

	sortByImportance(members)
	if len(members) > summaryMaxMembers {
		members = members[:summaryMaxMembers]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Consolidated from %d memories:\n", len(memberIDs))
	for _, m := range members {
		b.WriteString("- ")
		b.WriteString(snippet(m.Content))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// snippet returns the first sentence of content, bounded in length.
func snippet(content string) string {
	c := strings.Join(strings.Fields(content), " ")
	if i := strings.IndexAny(c, ".!?"); i > 0 && i < summarySnippetLen {
		return c[:i+1]
	}
	if len(c) > summarySnippetLen {
		return c[:summarySnippetLen] + "..."
	}
	return c
}
