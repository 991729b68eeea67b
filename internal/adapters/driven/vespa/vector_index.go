// Package vespa implements the approximate-nearest-neighbor vector index
// (§4.E) against a Vespa content cluster. Vespa's native HNSW index
// (distance-metric euclidean, max-links-per-node, neighbors-to-explore-at-
// insert) maps directly onto the required m=16/ef_construction=64
// parameters, so no separate ANN library is introduced.
package vespa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements driven.VectorIndex using Vespa's document and
// search APIs over a "snippet" schema with an HNSW-indexed embedding field.
type VectorIndex struct {
	baseURL    string
	namespace  string
	httpClient *http.Client
}

// Config holds Vespa connection configuration.
type Config struct {
	// BaseURL is the Vespa endpoint (e.g. http://localhost:8080).
	BaseURL string
	// Namespace is the document namespace (defaults to "pkgdex").
	Namespace string
	// Timeout for HTTP requests.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, Namespace: "pkgdex", Timeout: 30 * time.Second}
}

// NewVectorIndex creates a Vespa-backed VectorIndex.
func NewVectorIndex(cfg Config) *VectorIndex {
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "pkgdex"
	}
	return &VectorIndex{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		namespace:  namespace,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type snippetDocument struct {
	Fields snippetFields `json:"fields"`
}

type snippetFields struct {
	Hash      string    `json:"hash"`
	Embedding []float32 `json:"embedding"`
}

// IndexSnippet upserts a snippet's embedding into the HNSW field. Called
// once per newly-embedded snippet, right after Store.SetSnippetEmbedding.
func (v *VectorIndex) IndexSnippet(ctx context.Context, hash string, embedding []float32) error {
	doc := snippetDocument{Fields: snippetFields{Hash: hash, Embedding: embedding}}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/document/v1/%s/snippet/docid/%s", v.baseURL, v.namespace, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("vespa index failed: %s - %s", resp.Status, string(respBody))
	}
	return nil
}

// vespaNeighborResponse is Vespa's search response format for a
// nearestNeighbor query over the snippet schema.
type vespaNeighborResponse struct {
	Root struct {
		Children []struct {
			Relevance float64       `json:"relevance"`
			Fields    snippetFields `json:"fields"`
		} `json:"children"`
	} `json:"root"`
}

// Query returns the k nearest snippets to vec by L2 distance.
func (v *VectorIndex) Query(ctx context.Context, vec []float32, k int) ([]driven.SnippetNeighbor, error) {
	searchReq := map[string]any{
		"yql":                     fmt.Sprintf("select * from snippet where ({targetHits:%d}nearestNeighbor(embedding,query_embedding))", k),
		"hits":                    k,
		"ranking.profile":         "nearest_neighbor",
		"input.query(query_embedding)": vec,
	}

	body, err := json.Marshal(searchReq)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/search/", v.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("vespa nearest-neighbor query failed: %s - %s", resp.Status, string(respBody))
	}

	var parsed vespaNeighborResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]driven.SnippetNeighbor, 0, len(parsed.Root.Children))
	for _, hit := range parsed.Root.Children {
		// Vespa's nearest_neighbor rank feature returns closeness (higher is
		// closer); convert back to a distance for the driven.VectorIndex
		// contract, which speaks in terms of L2 distance.
		distance := 0.0
		if hit.Relevance > 0 {
			distance = 1/hit.Relevance - 1
		}
		out = append(out, driven.SnippetNeighbor{SnippetHash: hit.Fields.Hash, Distance: distance})
	}
	return out, nil
}

// HealthCheck verifies the Vespa cluster is reachable.
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/state/v1/health", v.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vespa health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vespa unhealthy: %s", resp.Status)
	}
	return nil
}
