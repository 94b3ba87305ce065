package canon

import (
	"regexp"
	"strings"
)

const maxAutoTags = 5

// techKeywords are matched against exact lowercase tokens (stage 1).
var techKeywords = map[string]bool{
	"go": true, "python": true, "javascript": true, "typescript": true,
	"rust": true, "java": true, "kotlin": true, "swift": true,
	"docker": true, "kubernetes": true, "terraform": true, "ansible": true,
	"postgres": true, "sqlite": true, "mysql": true, "redis": true,
	"kafka": true, "grpc": true, "graphql": true, "rest": true,
	"react": true, "vue": true, "svelte": true, "linux": true,
	"aws": true, "gcp": true, "azure": true, "git": true,
}

// topicPatterns classify content into topic tags (stage 2). Evaluated
// in declaration order, first match per pattern; order is a semantic
// contract, not an implementation detail.
var topicPatterns = []struct {
	pattern *regexp.Regexp
	tag     string
}{
	{regexp.MustCompile(`(?i)\b(decided?|decision|chose|chosen|settled on)\b`), "decision"},
	{regexp.MustCompile(`(?i)\b(bug|fix(ed)?|broken|crash(ed|es)?|error|regression)\b`), "bug"},
	{regexp.MustCompile(`(?i)\b(architecture|design|structure|component|module)\b`), "architecture"},
	{regexp.MustCompile(`(?i)\b(learn(ed|t)?|lesson|insight|realized|takeaway)\b`), "lesson"},
	{regexp.MustCompile(`(?i)\b(config(ur(e|ed|ation))?|settings?|environment variable)\b`), "config"},
	{regexp.MustCompile(`(?i)\b(slow|fast(er)?|performance|latency|optimi[sz](e|ed|ation))\b`), "performance"},
	{regexp.MustCompile(`(?i)\b(deploy(ed|ment)?|release(d)?|rollout|ship(ped)?)\b`), "deployment"},
	{regexp.MustCompile(`(?i)\b(test(s|ed|ing)?|coverage|assert(ion)?s?)\b`), "testing"},
	{regexp.MustCompile(`(?i)\b(refactor(ed|ing)?|clean(ed)? up|rewrote|rewrite)\b`), "refactor"},
	{regexp.MustCompile(`(?i)\b(security|vulnerabilit(y|ies)|auth(entication|orization)?|credential)\b`), "security"},
}

// kebabToken extracts kebab-case compound words (stage 3).
var kebabToken = regexp.MustCompile(`\b[a-z][a-z0-9]*(?:-[a-z0-9]+)+\b`)

// kebabBlocklist filters generic compounds that carry no topic signal.
var kebabBlocklist = map[string]bool{
	"follow-up": true, "e-mail": true, "so-called": true, "well-known": true,
	"long-term": true, "short-term": true, "high-level": true, "low-level": true,
	"built-in": true, "end-to-end": true, "day-to-day": true, "real-time": true,
	"re-run": true, "co-worker": true, "one-off": true, "up-to-date": true,
}

var wordToken = regexp.MustCompile(`[a-z0-9][a-z0-9\-]*`)

// AutoTags derives at most 5 tags from content via three ordered
// stages: technology keywords, topic patterns, kebab-case extraction.
// Output is deterministic for identical content.
func AutoTags(content string) []string {
	tags := []string{}
	seen := map[string]bool{}
	add := func(t string) bool {
		if seen[t] {
			return len(tags) < maxAutoTags
		}
		seen[t] = true
		tags = append(tags, t)
		return len(tags) < maxAutoTags
	}

	lower := strings.ToLower(content)

	// Stage 1: exact technology tokens, in order of appearance.
	for _, token := range wordToken.FindAllString(lower, -1) {
		if techKeywords[token] {
			if !add(token) {
				return tags
			}
		}
	}

	// Stage 2: topic patterns, declaration order, first match wins.
	for _, tp := range topicPatterns {
		if tp.pattern.MatchString(content) {
			if !add(tp.tag) {
				return tags
			}
		}
	}

	// Stage 3: kebab-case compounds, bounded length, blocklisted
	// generics removed.
	for _, token := range kebabToken.FindAllString(lower, -1) {
		if len(token) < 3 || len(token) > 30 || kebabBlocklist[token] {
			continue
		}
		if !add(token) {
			return tags
		}
	}

	return tags
}
