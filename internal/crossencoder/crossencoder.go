// Package crossencoder scores query/passage pairs with an external
// cross-encoder model served over HTTP (e.g. a bge-reranker deployment
// behind a scoring endpoint). The reranking stage treats scorer failures as
// soft: callers fall back to the pre-rerank ordering.
package crossencoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultModel is the cross-encoder model requested when none is configured.
const DefaultModel = "BAAI/bge-reranker-v2-m3"

// defaultBatchSize bounds the number of pairs sent per scoring request.
const defaultBatchSize = 32

// Scorer assigns a relevance score to each passage for a query. Higher is
// more relevant. The returned slice is parallel to the passages slice.
// Implementations must be safe to call from multiple goroutines.
type Scorer interface {
	Score(ctx context.Context, query string, passages []string) ([]float64, error)
}

// Config holds the settings for constructing an HTTPScorer.
type Config struct {
	// Endpoint is the scoring endpoint URL.
	Endpoint string
	// Model is the cross-encoder model name (default: DefaultModel).
	Model string
	// APIKey is an optional Bearer token.
	APIKey string
	// Timeout bounds each scoring request (default: 30s).
	Timeout time.Duration
	// BatchSize is the maximum pairs per request (default: 32).
	BatchSize int
}

// HTTPScorer implements Scorer against a JSON scoring endpoint that accepts
// {"model": ..., "pairs": [[query, passage], ...]} and returns
// {"scores": [...]}. Safe for concurrent use.
type HTTPScorer struct {
	// endpoint is the scoring endpoint URL.
	endpoint string
	// model is the cross-encoder model name.
	model string
	// apiKey is the optional Bearer token.
	apiKey string
	// batchSize bounds the pairs per request.
	batchSize int
	// client is the shared HTTP client with a request timeout.
	client *http.Client
}

// NewHTTPScorer constructs an HTTPScorer, applying defaults for zero values.
func NewHTTPScorer(cfg *Config) (*HTTPScorer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("crossencoder: endpoint must not be empty")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &HTTPScorer{
		endpoint:  cfg.Endpoint,
		model:     model,
		apiKey:    cfg.APIKey,
		batchSize: batchSize,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// scoreRequest is the JSON body sent to the scoring endpoint.
type scoreRequest struct {
	Model string      `json:"model"`
	Pairs [][2]string `json:"pairs"`
}

// scoreResponse is the JSON body returned from the scoring endpoint.
type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

// Score scores each passage against the query, batching requests so large
// candidate sets never exceed the endpoint's payload limits.
func (s *HTTPScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores := make([]float64, 0, len(passages))
	for start := 0; start < len(passages); start += s.batchSize {
		end := start + s.batchSize
		if end > len(passages) {
			end = len(passages)
		}

		batch, err := s.scoreBatch(ctx, query, passages[start:end])
		if err != nil {
			return nil, err
		}
		scores = append(scores, batch...)
	}
	return scores, nil
}

// scoreBatch sends one scoring request for a batch of passages.
func (s *HTTPScorer) scoreBatch(ctx context.Context, query string, passages []string) ([]float64, error) {
	pairs := make([][2]string, len(passages))
	for i, p := range passages {
		pairs[i] = [2]string{query, p}
	}

	payload, err := json.Marshal(scoreRequest{Model: s.model, Pairs: pairs})
	if err != nil {
		return nil, fmt.Errorf("crossencoder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("crossencoder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossencoder: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("crossencoder: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("crossencoder: decode response: %w", err)
	}
	if len(result.Scores) != len(passages) {
		return nil, fmt.Errorf("crossencoder: expected %d scores, got %d", len(passages), len(result.Scores))
	}

	return result.Scores, nil
}
