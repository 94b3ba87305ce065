// Package canon implements the canonicalization pipeline: content
// hashing, tag normalization, auto-tagging, and the backfill batch
// that repairs derived fields on stored memories.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ContentHash returns the sha256 hex digest of canonicalized content.
// With normalizeWhitespace the content is lowercased and whitespace
// runs collapse to single spaces, so case and spacing variants of the
// same text collide. The toggle is a process-wide setting: changing
// it per call would make dedup semantics unstable.
func ContentHash(content string, normalizeWhitespace bool) string {
	c := strings.TrimSpace(content)
	if normalizeWhitespace {
		c = strings.ToLower(c)
		c = whitespaceRun.ReplaceAllString(c, " ")
	}
	sum := sha256.Sum256([]byte(c))
	return hex.EncodeToString(sum[:])
}

var kvLine = regexp.MustCompile(`^[A-Za-z0-9_.\-]+\s*[:=]\s*\S`)

// IsMetadataContent reports whether content is metadata-only: a JSON
// object or array, or nothing but key: value / key=value lines.
func IsMetadataContent(content string) bool {
	c := strings.TrimSpace(content)
	if c == "" {
		return false
	}
	if strings.HasPrefix(c, "{") || strings.HasPrefix(c, "[") {
		var v interface{}
		if json.Unmarshal([]byte(c), &v) == nil {
			return true
		}
	}
	lines := strings.Split(c, "\n")
	seen := 0
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if !kvLine.MatchString(t) {
			return false
		}
		seen++
	}
	return seen > 0
}
