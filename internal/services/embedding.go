package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SparseVector is a keyword-level embedding as (index, value) pairs, the
// shape Qdrant expects for sparse named vectors.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// EmbeddingService turns text into the two query representations the
// talent pool is indexed under: a sparse keyword vector and a dense
// semantic vector. The two calls are independent and safe to run
// concurrently.
type EmbeddingService interface {
	EmbedSparse(ctx context.Context, text string) (*SparseVector, error)
	EmbedDense(ctx context.Context, text string) ([]float32, error)
}

type embeddingService struct {
	gemini     GeminiService
	sparseURL  string
	httpClient *http.Client
}

// NewEmbeddingService builds an embedder backed by Gemini for the dense
// side and a FastEmbed BM42 sidecar for the sparse side.
func NewEmbeddingService(gemini GeminiService, sparseURL string, timeout time.Duration) EmbeddingService {
	return &embeddingService{
		gemini:     gemini,
		sparseURL:  sparseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sparseEmbedRequest struct {
	Text string `json:"text"`
}

type sparseEmbedResponse struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
	Error   string    `json:"error,omitempty"`
}

// EmbedSparse implements EmbeddingService.
func (e *embeddingService) EmbedSparse(ctx context.Context, text string) (*SparseVector, error) {
	body, err := json.Marshal(sparseEmbedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sparse embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.sparseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build sparse embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sparse embedder request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sparse embedder response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sparse embedder returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed sparseEmbedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode sparse embedder response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("sparse embedder error: %s", parsed.Error)
	}
	if len(parsed.Indices) == 0 || len(parsed.Indices) != len(parsed.Values) {
		return nil, fmt.Errorf("sparse embedder returned %d indices and %d values", len(parsed.Indices), len(parsed.Values))
	}

	return &SparseVector{Indices: parsed.Indices, Values: parsed.Values}, nil
}

// EmbedDense implements EmbeddingService.
func (e *embeddingService) EmbedDense(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.gemini.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("dense embedding failed: %w", err)
	}
	return vector, nil
}
