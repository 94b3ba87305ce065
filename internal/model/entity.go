package model

import "time"

// Entity is a named thing referenced by memories.
type Entity struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Aliases   []string          `json:"aliases,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ValidEntityTypes are the allowed entity types.
var ValidEntityTypes = map[string]bool{
	"person":       true,
	"project":      true,
	"technology":   true,
	"organization": true,
	"concept":      true,
}

// EntityRelationship is an undirected edge between two entities.
// At most one relationship exists per unordered pair; the store
// keeps SourceEntityID < TargetEntityID to enforce that.
type EntityRelationship struct {
	ID               string    `json:"id"`
	SourceEntityID   string    `json:"source_entity_id"`
	TargetEntityID   string    `json:"target_entity_id"`
	Relationship     string    `json:"relationship"`
	Confidence       float64   `json:"confidence"`
	EvidenceMemoryID string    `json:"evidence_memory_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// MemoryEntityLink joins an entity to a memory it appears in.
type MemoryEntityLink struct {
	MemoryID  string  `json:"memory_id"`
	EntityID  string  `json:"entity_id"`
	Relevance float64 `json:"relevance"`
}
