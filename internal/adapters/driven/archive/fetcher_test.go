package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWritesFileAndHashesBytes(t *testing.T) {
	payload := []byte("distribution bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	dir := t.TempDir()
	f := NewFetcher()

	path, hash, err := f.Fetch(context.Background(), server.URL+"/pkg-1.0.tar.gz", dir)
	require.NoError(t, err)

	want := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(want[:]), hash)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFetchPropagatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	f := NewFetcher()

	_, _, err := f.Fetch(context.Background(), server.URL+"/missing.tar.gz", dir)
	assert.Error(t, err)
}
