package vespa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVectorIndexDefaultsNamespace(t *testing.T) {
	idx := NewVectorIndex(Config{BaseURL: "http://localhost:8080/"})
	assert.Equal(t, "pkgdex", idx.namespace)
	assert.Equal(t, "http://localhost:8080", idx.baseURL)
}

func TestIndexSnippetSendsUpsertRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/document/v1/pkgdex/snippet/docid/abc123", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	idx := NewVectorIndex(DefaultConfig(server.URL))
	err := idx.IndexSnippet(context.Background(), "abc123", []float32{1, 0, 0})
	require.NoError(t, err)
}

func TestIndexSnippetPropagatesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	idx := NewVectorIndex(DefaultConfig(server.URL))
	err := idx.IndexSnippet(context.Background(), "abc123", []float32{1, 0, 0})
	require.Error(t, err)
}

func TestQueryConvertsRelevanceToDistance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"root": {
				"children": [
					{"relevance": 1.0, "fields": {"hash": "exact-match"}},
					{"relevance": 0.5, "fields": {"hash": "farther"}}
				]
			}
		}`))
	}))
	defer server.Close()

	idx := NewVectorIndex(DefaultConfig(server.URL))
	neighbors, err := idx.Query(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, neighbors, 2)

	assert.Equal(t, "exact-match", neighbors[0].SnippetHash)
	assert.InDelta(t, 0.0, neighbors[0].Distance, 1e-9)

	assert.Equal(t, "farther", neighbors[1].SnippetHash)
	assert.InDelta(t, 1.0, neighbors[1].Distance, 1e-9)
}

func TestQueryPropagatesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad yql"))
	}))
	defer server.Close()

	idx := NewVectorIndex(DefaultConfig(server.URL))
	_, err := idx.Query(context.Background(), []float32{1, 0, 0}, 2)
	require.Error(t, err)
}

func TestHealthCheckSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/state/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	idx := NewVectorIndex(DefaultConfig(server.URL))
	require.NoError(t, idx.HealthCheck(context.Background()))
}

func TestHealthCheckFailsOnNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	idx := NewVectorIndex(DefaultConfig(server.URL))
	assert.Error(t, idx.HealthCheck(context.Background()))
}
