// Package pypi implements driven.PackageIndexClient against the PyPI JSON
// API (https://pypi.org/pypi/{project}/json).
package pypi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

var _ driven.PackageIndexClient = (*Client)(nil)

// Client implements driven.PackageIndexClient against PyPI.
type Client struct {
	httpClient *http.Client
	baseURL    string
	maxRetries int
}

// NewClient creates a PyPI Client. An empty baseURL defaults to pypi.org.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://pypi.org"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		maxRetries: 3,
	}
}

// projectResponse is the subset of PyPI's JSON API response this client
// cares about.
type projectResponse struct {
	Info struct {
		Name string `json:"name"`
	} `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type releaseFile struct {
	Filename    string `json:"filename"`
	URL         string `json:"url"`
	PackageType string `json:"packagetype"`
	PythonVersion string `json:"python_version"`
}

// ListDistributions returns every distribution file known for project,
// across every released version.
func (c *Client) ListDistributions(ctx context.Context, project string) ([]driven.Distribution, error) {
	resp, err := c.doRequest(ctx, fmt.Sprintf("/pypi/%s/json", project))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", project, err)
	}

	var out []driven.Distribution
	for version, files := range parsed.Releases {
		for _, f := range files {
			out = append(out, driven.Distribution{
				Project:     project,
				Version:     version,
				Filename:    f.Filename,
				URL:         f.URL,
				PackageType: f.PackageType,
				PythonTag:   pythonTag(f),
			})
		}
	}
	return out, nil
}

// pythonTag derives the abi/python-version tag used for ranking (§4.F),
// falling back to PyPI's reported python_version for sdists.
func pythonTag(f releaseFile) string {
	if f.PackageType != "bdist_wheel" {
		return f.PythonVersion
	}
	// Wheel filenames encode the tag as
	// {name}-{version}(-{build})?-{python}-{abi}-{platform}.whl
	parts := strings.Split(strings.TrimSuffix(f.Filename, ".whl"), "-")
	if len(parts) < 3 {
		return f.PythonVersion
	}
	pyTag := parts[len(parts)-3]
	abiTag := parts[len(parts)-2]
	if strings.Contains(abiTag, "abi3") {
		return "abi3"
	}
	return pyTag
}

func (c *Client) doRequest(ctx context.Context, path string) (*http.Response, error) {
	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, lastErr = c.httpClient.Do(req)
		if lastErr != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
				continue
			}
		}

		if resp.StatusCode < 500 {
			break
		}
		resp.Body.Close()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Second):
		}
	}

	if lastErr != nil {
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("pypi API error %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
