package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// OpenAIProvider calls an OpenAI-compatible /v1/embeddings endpoint. Works
// with OpenAI itself and with local servers (Ollama, llama.cpp) that expose
// the same API shape.
type OpenAIProvider struct {
	baseURL      string
	apiKey       string
	defaultModel string
	client       *http.Client
	limiter      *rate.Limiter
}

// NewOpenAIProvider creates a provider for the given endpoint. requestsPerSec
// caps the outbound call rate so a busy worker pool cannot trip the
// provider's rate limits; zero disables the limiter.
func NewOpenAIProvider(baseURL, apiKey, defaultModel string, requestsPerSec float64, timeout time.Duration) *OpenAIProvider {
	if defaultModel == "" {
		defaultModel = "text-embedding-3-small"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if requestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSec), 1)
	}

	return &OpenAIProvider{
		baseURL:      baseURL,
		apiKey:       apiKey,
		defaultModel: defaultModel,
		client:       &http.Client{Timeout: timeout},
		limiter:      limiter,
	}
}

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed generates a vector for the text. Failures carry a transient or
// permanent classification via *Error.
func (p *OpenAIProvider) Embed(ctx context.Context, text, modelHint string) (*Result, error) {
	if text == "" {
		return nil, &Error{Category: ErrorCategoryPermanent, Message: "empty input text"}
	}

	model := modelHint
	if model == "" {
		model = p.defaultModel
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, ClassifyError(err)
		}
	}

	body, err := json.Marshal(embeddingRequest{Input: text, Model: model})
	if err != nil {
		return nil, &Error{Category: ErrorCategoryPermanent, Message: fmt.Sprintf("failed to encode request: %v", err), Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Category: ErrorCategoryPermanent, Message: fmt.Sprintf("failed to build request: %v", err), Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, ClassifyError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, ClassifyError(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode, string(respBody))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &Error{Category: ErrorCategoryPermanent, Message: "failed to parse provider response", Cause: err}
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, &Error{Category: ErrorCategoryPermanent, Message: "provider returned no embedding"}
	}

	modelID := parsed.Model
	if modelID == "" {
		modelID = model
	}

	vector := parsed.Data[0].Embedding
	return &Result{
		Vector:    vector,
		ModelID:   modelID,
		Dimension: len(vector),
	}, nil
}
