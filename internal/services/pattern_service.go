package services

import (
	"context"
	"fmt"
	"strings"

	"mnemo/internal/models"
	"mnemo/internal/store"
)

// PatternService manages learned trigger -> response associations. Confidence
// is always derived from the outcome counts, never stored, so it can't drift.
type PatternService struct {
	store *store.Store
}

// NewPatternService creates a new pattern service
func NewPatternService(st *store.Store) *PatternService {
	return &PatternService{store: st}
}

// Record stores a pattern for the tenant, deduplicated on the trigger hash.
// Recording a known trigger refreshes its response instead of duplicating.
func (s *PatternService) Record(ctx context.Context, tenantID, triggerText, responseText string) (*models.Pattern, error) {
	triggerText = strings.TrimSpace(triggerText)
	if triggerText == "" {
		return nil, fmt.Errorf("pattern trigger is empty")
	}

	pat, _, err := s.store.RecordPattern(ctx, tenantID, triggerText, HashContent(triggerText), responseText)
	return pat, err
}

// Lookup finds the pattern matching a trigger text, if any
func (s *PatternService) Lookup(ctx context.Context, tenantID, triggerText string) (*models.Pattern, error) {
	return s.store.GetPatternByTrigger(ctx, tenantID, HashContent(strings.TrimSpace(triggerText)))
}

// ReportOutcome records whether using a pattern worked, shifting its
// derived confidence.
func (s *PatternService) ReportOutcome(ctx context.Context, tenantID, patternID string, success bool) error {
	return s.store.MarkPatternOutcome(ctx, tenantID, patternID, success)
}

// List returns the tenant's patterns, most successful first
func (s *PatternService) List(ctx context.Context, tenantID string, limit int) ([]*models.Pattern, error) {
	return s.store.ListPatterns(ctx, tenantID, limit)
}
