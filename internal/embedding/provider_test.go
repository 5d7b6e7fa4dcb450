package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorCategory
	}{
		{429, ErrorCategoryTransient},
		{500, ErrorCategoryTransient},
		{503, ErrorCategoryTransient},
		{408, ErrorCategoryTransient},
		{401, ErrorCategoryPermanent},
		{403, ErrorCategoryPermanent},
		{400, ErrorCategoryPermanent},
		{422, ErrorCategoryPermanent},
		{404, ErrorCategoryPermanent},
		{418, ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		err := ClassifyHTTPError(tt.status, "body")
		if err.Category != tt.want {
			t.Errorf("HTTP %d: expected %s, got %s", tt.status, tt.want, err.Category)
		}
	}
}

func TestIsPermanent(t *testing.T) {
	permanent := &Error{Category: ErrorCategoryPermanent, Message: "rejected"}
	if !IsPermanent(permanent) {
		t.Error("Expected permanent error to be permanent")
	}

	transient := &Error{Category: ErrorCategoryTransient, Message: "rate limited"}
	if IsPermanent(transient) {
		t.Error("Transient error must not be permanent")
	}

	// Unknown and plain errors count as retryable
	if IsPermanent(errors.New("something broke")) {
		t.Error("Plain error must not be permanent")
	}
	if IsPermanent(nil) {
		t.Error("nil must not be permanent")
	}

	// Classification survives wrapping
	wrapped := &wrapError{cause: permanent}
	if !IsPermanent(wrapped) {
		t.Error("Expected wrapped permanent error to be permanent")
	}
}

type wrapError struct{ cause error }

func (w *wrapError) Error() string { return "wrapped: " + w.cause.Error() }
func (w *wrapError) Unwrap() error { return w.cause }

func TestClassifyError_Network(t *testing.T) {
	err := ClassifyError(errors.New("dial tcp: connection refused"))
	if err.Category != ErrorCategoryTransient {
		t.Errorf("Expected connection refused to be transient, got %s", err.Category)
	}

	err = ClassifyError(errors.New("context deadline exceeded"))
	if err.Category != ErrorCategoryTransient {
		t.Errorf("Expected timeout to be transient, got %s", err.Category)
	}

	err = ClassifyError(errors.New("parse failure"))
	if err.Category != ErrorCategoryUnknown {
		t.Errorf("Expected unclassified error to be unknown, got %s", err.Category)
	}
}

func TestMockProvider_Deterministic(t *testing.T) {
	provider := NewMockProvider(8)
	ctx := context.Background()

	first, err := provider.Embed(ctx, "same text", "")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	second, _ := provider.Embed(ctx, "same text", "")

	if len(first.Vector) != 8 || first.Dimension != 8 {
		t.Errorf("Expected 8-dim vector, got %d/%d", len(first.Vector), first.Dimension)
	}
	for i := range first.Vector {
		if first.Vector[i] != second.Vector[i] {
			t.Fatal("Equal texts must embed identically")
		}
	}

	other, _ := provider.Embed(ctx, "different text", "")
	same := true
	for i := range first.Vector {
		if first.Vector[i] != other.Vector[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Different texts should embed differently")
	}

	if provider.Calls() != 3 {
		t.Errorf("Expected 3 calls recorded, got %d", provider.Calls())
	}
}

func TestMockProvider_FailNext(t *testing.T) {
	provider := NewMockProvider(4)
	ctx := context.Background()

	boom := &Error{Category: ErrorCategoryTransient, Message: "injected"}
	provider.FailNext(boom)

	if _, err := provider.Embed(ctx, "text", ""); err != boom {
		t.Fatalf("Expected injected error, got %v", err)
	}
	if _, err := provider.Embed(ctx, "text", ""); err != nil {
		t.Fatalf("Expected success after the queued failure, got %v", err)
	}
}

func TestMockProvider_ModelHint(t *testing.T) {
	provider := NewMockProvider(4)

	result, _ := provider.Embed(context.Background(), "text", "custom-model")
	if result.ModelID != "custom-model" {
		t.Errorf("Expected hint honored, got %q", result.ModelID)
	}

	result, _ = provider.Embed(context.Background(), "text", "")
	if result.ModelID != "mock-embedding" {
		t.Errorf("Expected default model, got %q", result.ModelID)
	}
}
