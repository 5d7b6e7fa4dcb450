package models

import "time"

// Pattern is a tenant-scoped learned trigger -> response association.
// Confidence is derived from outcome counts, not stored.
type Pattern struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	TriggerText  string     `json:"trigger_text"`
	TriggerHash  string     `json:"trigger_hash"` // Dedup key
	ResponseText string     `json:"response_text"`
	SuccessCount int64      `json:"success_count"`
	FailureCount int64      `json:"failure_count"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Confidence returns success/(success+failure), or 0 when the pattern has
// never been used. Computed on access rather than stored.
func (p *Pattern) Confidence() float64 {
	total := p.SuccessCount + p.FailureCount
	if total == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(total)
}
