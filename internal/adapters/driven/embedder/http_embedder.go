// Package embedder provides Embedder implementations: an HTTP client
// shaped like OpenAI's embeddings API, and a deterministic local stub for
// offline use and tests.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

var _ driven.Embedder = (*HTTPEmbedder)(nil)

// HTTPEmbedder implements driven.Embedder against an OpenAI-embeddings-API
// shaped HTTP endpoint, unit-L2-normalizing every vector it returns since
// the contract (§6.3) requires it regardless of what the upstream model
// does.
type HTTPEmbedder struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	client     *http.Client
}

// modelDimensions holds the known output width of supported models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewHTTPEmbedder creates an HTTPEmbedder.
func NewHTTPEmbedder(apiKey, model, baseURL string) (*HTTPEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedder: API key is required")
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	dims, ok := modelDimensions[model]
	if !ok {
		dims = 1536
	}
	return &HTTPEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dims,
		client:     &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type embeddingRequest struct {
	Input          any    `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Encode returns the unit-L2 embedding of text.
func (e *HTTPEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{Input: text, Model: e.model, EncodingFormat: "float"}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", domain.ErrEmbedderFailure, err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrEmbedderFailure, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", domain.ErrEmbedderFailure, resp.StatusCode)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrEmbedderFailure)
	}

	return unitL2(parsed.Data[0].Embedding), nil
}

// Dimensions returns the fixed embedding width.
func (e *HTTPEmbedder) Dimensions() int { return e.dimensions }

// Model identifies the embedding model in use.
func (e *HTTPEmbedder) Model() string { return e.model }

// Close releases idle HTTP connections.
func (e *HTTPEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// unitL2 rescales v to unit L2 norm, leaving a zero vector as-is.
func unitL2(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
