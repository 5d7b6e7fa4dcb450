package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"mnemo/internal/models"
	"mnemo/internal/store"
)

// MemoryService owns the behavior of long-term memories beyond plain storage:
// content-hash dedup on write, access tracking, versioned corrections, and
// the periodic expire/decay/delete maintenance pass.
type MemoryService struct {
	store   *store.Store
	config  CleanupConfig
	metrics *Metrics
}

// CleanupConfig holds the maintenance pass configuration
type CleanupConfig struct {
	DecayAfter  time.Duration // Default: 30 days without access
	DecayFactor float64       // Default: 0.9 (multiplicative)
	DeleteAfter time.Duration // Default: 90 days past invalidation
}

// DefaultCleanupConfig returns the default cleanup configuration
func DefaultCleanupConfig() CleanupConfig {
	return CleanupConfig{
		DecayAfter:  30 * 24 * time.Hour,
		DecayFactor: 0.9,
		DeleteAfter: 90 * 24 * time.Hour,
	}
}

// NewMemoryService creates a new memory service
func NewMemoryService(st *store.Store, config CleanupConfig, metrics *Metrics) *MemoryService {
	if config.DecayAfter <= 0 {
		config.DecayAfter = 30 * 24 * time.Hour
	}
	if config.DecayFactor <= 0 || config.DecayFactor >= 1 {
		config.DecayFactor = 0.9
	}
	if config.DeleteAfter <= 0 {
		config.DeleteAfter = 90 * 24 * time.Hour
	}
	return &MemoryService{store: st, config: config, metrics: metrics}
}

// HashContent computes the dedup hash for memory content. Whitespace runs
// collapse and case folds so trivially-reworded duplicates hash identically.
func HashContent(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Record stores a memory for (tenant, user). Recording the same content twice
// returns the same memory both times; duplication is absorbed, never
// rejected. New memories get an embedding job and their first revision.
func (s *MemoryService) Record(ctx context.Context, tenantID, userID, content, memoryType string, validUntil *time.Time) (*models.Memory, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("memory content is empty")
	}
	if memoryType == "" {
		memoryType = models.MemoryTypeFact
	}

	mem, isNew, err := s.store.RecordMemory(ctx, tenantID, userID, memoryType, content, HashContent(content), validUntil)
	if err != nil {
		return nil, fmt.Errorf("failed to record memory: %w", err)
	}
	if !isNew {
		log.Printf("📎 [MEMORY] Duplicate content absorbed for tenant %s (memory %s)", tenantID, mem.ID)
	}
	return mem, nil
}

// Touch marks a memory as used, which is what protects it from decay
func (s *MemoryService) Touch(ctx context.Context, tenantID, memoryID string) error {
	return s.store.TouchMemory(ctx, tenantID, memoryID)
}

// Get fetches one memory
func (s *MemoryService) Get(ctx context.Context, tenantID, memoryID string) (*models.Memory, error) {
	return s.store.GetMemory(ctx, tenantID, memoryID)
}

// List returns a tenant/user's live memories
func (s *MemoryService) List(ctx context.Context, tenantID, userID string, limit int) ([]*models.Memory, error) {
	return s.store.ListMemories(ctx, tenantID, userID, false, limit)
}

// Correct replaces a memory's content while keeping its full history. The
// old current revision becomes superseded and a new current revision is
// created; the single-current invariant holds through the swap.
func (s *MemoryService) Correct(ctx context.Context, tenantID, memoryID, newContent, reason, changedBy string) (*models.Memory, error) {
	newContent = strings.TrimSpace(newContent)
	if newContent == "" {
		return nil, fmt.Errorf("corrected content is empty")
	}
	return s.store.CorrectMemory(ctx, tenantID, memoryID, newContent, HashContent(newContent), reason, changedBy)
}

// History returns a memory's revision trail, oldest first
func (s *MemoryService) History(ctx context.Context, tenantID, memoryID string) ([]*models.MemoryRevision, error) {
	return s.store.ListRevisions(ctx, tenantID, memoryID)
}

// Cleanup runs the three maintenance rules for one tenant in fixed order:
// expire, then decay, then hard-delete. Each rule is idempotent, so the whole
// pass can be re-run any number of times without further state changes.
func (s *MemoryService) Cleanup(ctx context.Context, tenantID string) (*models.CleanupResult, error) {
	asOf := time.Now().UTC()
	result := &models.CleanupResult{}

	invalidated, err := s.store.InvalidateExpiredMemories(ctx, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to expire memories: %w", err)
	}
	result.Invalidated = invalidated

	decayed, err := s.store.DecayStaleMemories(ctx, tenantID, asOf.Add(-s.config.DecayAfter), s.config.DecayFactor)
	if err != nil {
		return nil, fmt.Errorf("failed to decay memories: %w", err)
	}
	result.Decayed = decayed

	deleted, err := s.store.PurgeInvalidatedMemories(ctx, tenantID, asOf.Add(-s.config.DeleteAfter))
	if err != nil {
		return nil, fmt.Errorf("failed to purge memories: %w", err)
	}
	result.Deleted = deleted

	s.metrics.RecordCleanup(result.Invalidated, result.Decayed, result.Deleted)

	if result.Invalidated+result.Decayed+result.Deleted > 0 {
		log.Printf("🧹 [MEMORY] Cleanup for tenant %s: %d invalidated, %d decayed, %d deleted",
			tenantID, result.Invalidated, result.Decayed, result.Deleted)
	}
	return result, nil
}
