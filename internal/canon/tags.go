package canon

import (
	"encoding/json"
	"regexp"
	"strings"
)

// defaultAliases maps common tag spellings to their canonical form.
var defaultAliases = map[string]string{
	"golang":     "go",
	"js":         "javascript",
	"ts":         "typescript",
	"py":         "python",
	"k8s":        "kubernetes",
	"postgresql": "postgres",
	"pg":         "postgres",
	"ml":         "machine-learning",
	"ai":         "machine-learning",
	"db":         "database",
	"cfg":        "config",
	"configuration": "config",
	"perf":       "performance",
	"sec":        "security",
	"docs":       "documentation",
	"deps":       "dependencies",
}

var separatorRun = regexp.MustCompile(`[\s_]+`)
var hyphenRun = regexp.MustCompile(`-{2,}`)

// NormalizeTag canonicalizes one tag: trim, lowercase, collapse
// space/underscore runs to hyphens, strip edge hyphens, then map
// through the alias table. Returns "" for tags that normalize away.
func NormalizeTag(tag string, aliases map[string]string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	t = separatorRun.ReplaceAllString(t, "-")
	t = hyphenRun.ReplaceAllString(t, "-")
	t = strings.Trim(t, "-")
	if t == "" {
		return ""
	}
	if canonical, ok := aliases[t]; ok {
		return canonical
	}
	return t
}

// NormalizeTags canonicalizes a tag list, dropping empties and
// duplicates while preserving first-seen order.
func NormalizeTags(tags []string, aliases map[string]string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, tag := range tags {
		t := NormalizeTag(tag, aliases)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// LoadAliases merges the default alias map with a user-supplied JSON
// override. A parse failure falls back silently to the defaults; a
// broken setting must never make tagging fatal.
func LoadAliases(jsonOverride string) map[string]string {
	merged := make(map[string]string, len(defaultAliases))
	for k, v := range defaultAliases {
		merged[k] = v
	}
	if strings.TrimSpace(jsonOverride) == "" {
		return merged
	}
	var override map[string]string
	if err := json.Unmarshal([]byte(jsonOverride), &override); err != nil {
		return merged
	}
	for k, v := range override {
		merged[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return merged
}
