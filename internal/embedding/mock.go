package embedding

import (
	"context"
	"crypto/sha256"
	"sync"
)

// MockProvider is a deterministic in-process provider for tests and local
// runs without a real model. The vector is derived from a hash of the input,
// so equal texts always embed identically.
type MockProvider struct {
	mu        sync.Mutex
	dimension int
	calls     int
	failures  []error // consumed front-to-back before succeeding
}

// NewMockProvider creates a mock emitting vectors of the given dimension
func NewMockProvider(dimension int) *MockProvider {
	if dimension <= 0 {
		dimension = 8
	}
	return &MockProvider{dimension: dimension}
}

// FailNext queues errors to return, in order, before calls succeed again
func (p *MockProvider) FailNext(errs ...error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, errs...)
}

// Calls returns how many Embed calls have been made
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Embed returns a deterministic vector for the text
func (p *MockProvider) Embed(ctx context.Context, text, modelHint string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, ClassifyError(err)
	}

	p.mu.Lock()
	p.calls++
	if len(p.failures) > 0 {
		err := p.failures[0]
		p.failures = p.failures[1:]
		p.mu.Unlock()
		return nil, err
	}
	dim := p.dimension
	p.mu.Unlock()

	sum := sha256.Sum256([]byte(text))
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = float32(sum[i%len(sum)]) / 255.0
	}

	model := modelHint
	if model == "" {
		model = "mock-embedding"
	}

	return &Result{Vector: vector, ModelID: model, Dimension: dim}, nil
}
