package canon

import (
	"strings"
	"testing"
)

func TestContentHash_NormalizedInvariance(t *testing.T) {
	a := ContentHash("Hello   World", true)
	b := ContentHash("hello world", true)
	c := ContentHash("  HELLO\tWORLD  ", true)
	if a != b || b != c {
		t.Errorf("normalized hashes differ: %s / %s / %s", a, b, c)
	}

	// Without normalization, case and spacing matter.
	if ContentHash("Hello World", false) == ContentHash("hello world", false) {
		t.Error("expected different hashes without normalization")
	}

	// Recomputing on unchanged content never changes the hash.
	if ContentHash("stable content", true) != ContentHash("stable content", true) {
		t.Error("hash not deterministic")
	}
}

func TestNormalizeTag(t *testing.T) {
	aliases := LoadAliases("")
	tests := []struct {
		in   string
		want string
	}{
		{"  Machine Learning ", "machine-learning"},
		{"snake_case_tag", "snake-case-tag"},
		{"--edge--", "edge"},
		{"golang", "go"},
		{"K8s", "kubernetes"},
		{"already-fine", "already-fine"},
		{"   ", ""},
		{"___", ""},
	}
	for _, tt := range tests {
		if got := NormalizeTag(tt.in, aliases); got != tt.want {
			t.Errorf("NormalizeTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTags_DedupOrder(t *testing.T) {
	aliases := LoadAliases("")
	got := NormalizeTags([]string{"Go", "golang", "testing", "GO", "deploy"}, aliases)
	want := []string{"go", "testing", "deploy"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadAliases_BadJSONFallsBack(t *testing.T) {
	aliases := LoadAliases(`{"not valid`)
	if aliases["golang"] != "go" {
		t.Error("expected defaults after parse failure")
	}

	merged := LoadAliases(`{"rb":"ruby"}`)
	if merged["rb"] != "ruby" {
		t.Error("expected override merged")
	}
	if merged["golang"] != "go" {
		t.Error("expected defaults preserved under override")
	}
}

func TestAutoTags_Stages(t *testing.T) {
	// Stage 1: technology keywords.
	tags := AutoTags("Migrated the service from Python to Go last week")
	if len(tags) == 0 || tags[0] != "python" {
		t.Errorf("expected python first, got %v", tags)
	}
	if !contains(tags, "go") {
		t.Errorf("expected go tag, got %v", tags)
	}

	// Stage 2: topic patterns in declaration order.
	tags = AutoTags("We decided to fix the crash before the deploy")
	if !contains(tags, "decision") || !contains(tags, "bug") || !contains(tags, "deployment") {
		t.Errorf("expected decision/bug/deployment, got %v", tags)
	}
	if indexOf(tags, "decision") > indexOf(tags, "bug") {
		t.Errorf("pattern order not preserved: %v", tags)
	}

	// Stage 3: kebab extraction with blocklist.
	tags = AutoTags("Notes on the rate-limiter rollout as a follow-up")
	if !contains(tags, "rate-limiter") {
		t.Errorf("expected rate-limiter, got %v", tags)
	}
	if contains(tags, "follow-up") {
		t.Errorf("blocklisted compound leaked: %v", tags)
	}
}

func TestAutoTags_CapAndEmpty(t *testing.T) {
	content := "go python rust java docker kubernetes redis kafka"
	tags := AutoTags(content)
	if len(tags) > 5 {
		t.Errorf("expected at most 5 tags, got %d: %v", len(tags), tags)
	}

	if got := AutoTags("nothing of note here whatsoever"); len(got) != 0 {
		t.Errorf("expected no tags, got %v", got)
	}

	// Deterministic across runs.
	a := strings.Join(AutoTags(content), ",")
	b := strings.Join(AutoTags(content), ",")
	if a != b {
		t.Errorf("auto tags not deterministic: %q vs %q", a, b)
	}
}

func TestIsMetadataContent(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`{"key": "value", "n": 3}`, true},
		{"host: example.com\nport: 8080", true},
		{"retries=3\ntimeout=30", true},
		{"Met with the platform team about the migration.", false},
		{"", false},
		{"{not json at all", false},
	}
	for _, tt := range tests {
		if got := IsMetadataContent(tt.in); got != tt.want {
			t.Errorf("IsMetadataContent(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func contains(s []string, v string) bool {
	return indexOf(s, v) >= 0
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
