// Package model defines the core memory data types.
package model

import "time"

// Memory represents a stored memory entry.
type Memory struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type"`
	Source      string    `json:"source,omitempty"`
	Importance  float64   `json:"importance"`
	AccessCount int       `json:"access_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsActive    bool      `json:"is_active"`
	IsMetadata  bool      `json:"is_metadata,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	Embedding   []float32 `json:"-"`
	Tags        []string  `json:"tags,omitempty"`
}

// ValidContentTypes are the allowed memory content types.
var ValidContentTypes = map[string]bool{
	"text":         true,
	"conversation": true,
	"note":         true,
	"summary":      true,
}

// Cluster is a transient group of mutually similar memories.
// Clusters are computed, never persisted; consolidation turns one
// into a summary memory plus an audit record.
type Cluster struct {
	Topic         string   `json:"topic"`
	MemberIDs     []string `json:"member_ids"`
	AvgSimilarity float64  `json:"avg_similarity"`
}

// Consolidation is an append-only audit record of a cluster merge.
type Consolidation struct {
	ID             string    `json:"id"`
	Strategy       string    `json:"strategy"`
	MemoriesMerged int       `json:"memories_merged"`
	SummaryID      string    `json:"summary_id"`
	CreatedAt      time.Time `json:"created_at"`
}
