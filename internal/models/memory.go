package models

import "time"

// Memory types
const (
	MemoryTypeFact       = "fact"
	MemoryTypePreference = "preference"
	MemoryTypeEntity     = "entity"
	MemoryTypeProcedure  = "procedure"
)

// Revision states. Exactly one revision per memory is "current" at any time.
const (
	RevisionStateCurrent    = "current"
	RevisionStateSuperseded = "superseded"
	RevisionStateCorrected  = "corrected"
	RevisionStateMerged     = "merged"
)

// Memory is a long-term fact/preference/entity/procedure record scoped to
// (tenant, user). Content hash deduplicates writes; confidence decays
// multiplicatively when the memory goes unused.
type Memory struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	UserID          string     `json:"user_id"`
	MemoryType      string     `json:"memory_type"`
	Content         string     `json:"content"`
	ContentHash     string     `json:"content_hash"` // SHA-256 of normalized content
	Embedding       []float32  `json:"-"`
	EmbeddingModel  string     `json:"embedding_model,omitempty"`
	EmbeddingDim    int        `json:"embedding_dim,omitempty"`
	EmbeddingStatus string     `json:"embedding_status"`
	AccessCount     int64      `json:"access_count"`
	LastAccessedAt  *time.Time `json:"last_accessed_at,omitempty"`
	Confidence      float64    `json:"confidence"` // [0,1], starts at 1.0, non-increasing except explicit reinforcement
	ValidFrom       *time.Time `json:"valid_from,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"` // nil = indefinite
	IsInvalidated   bool       `json:"is_invalidated"`
	InvalidatedAt   *time.Time `json:"invalidated_at,omitempty"`
	LastDecayedAt   *time.Time `json:"last_decayed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MemoryRevision is one entry in a memory's append-only version history
type MemoryRevision struct {
	ID        string    `json:"id"`
	MemoryID  string    `json:"memory_id"`
	Version   int       `json:"version"`
	State     string    `json:"state"`
	Content   string    `json:"content"`
	Reason    string    `json:"reason,omitempty"`
	ChangedBy string    `json:"changed_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CleanupResult reports what one maintenance pass changed
type CleanupResult struct {
	Invalidated int `json:"invalidated"`
	Decayed     int `json:"decayed"`
	Deleted     int `json:"deleted"`
}
