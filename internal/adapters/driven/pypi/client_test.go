package pypi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

func TestNewClientDefaultsBaseURL(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, "https://pypi.org", c.baseURL)
}

func TestNewClientTrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://example.test/")
	assert.Equal(t, "http://example.test", c.baseURL)
}

func TestListDistributionsParsesReleases(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pypi/flask/json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"info": {"name": "flask"},
			"releases": {
				"2.0.0": [
					{"filename": "flask-2.0.0.tar.gz", "url": "http://x/sdist", "packagetype": "sdist", "python_version": "source"},
					{"filename": "flask-2.0.0-py3-none-any.whl", "url": "http://x/wheel", "packagetype": "bdist_wheel", "python_version": "py3"}
				]
			}
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	dists, err := c.ListDistributions(context.Background(), "flask")
	require.NoError(t, err)
	require.Len(t, dists, 2)

	byType := map[string]driven.Distribution{}
	for _, d := range dists {
		byType[d.PackageType] = d
	}
	assert.Equal(t, "2.0.0", byType["sdist"].Version)
	assert.Equal(t, "py3", byType["bdist_wheel"].PythonTag)
}

func TestListDistributionsPropagatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not found"))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	_, err := c.ListDistributions(context.Background(), "missing-project")
	require.Error(t, err)
}

func TestPythonTagSdistUsesPythonVersion(t *testing.T) {
	tag := pythonTag(releaseFile{PackageType: "sdist", PythonVersion: "source"})
	assert.Equal(t, "source", tag)
}

func TestPythonTagWheelExtractsFromFilename(t *testing.T) {
	tag := pythonTag(releaseFile{PackageType: "bdist_wheel", Filename: "pkg-1.0.0-py2.py3-none-any.whl"})
	assert.Equal(t, "py2.py3", tag)
}

func TestPythonTagWheelDetectsAbi3(t *testing.T) {
	tag := pythonTag(releaseFile{PackageType: "bdist_wheel", Filename: "pkg-1.0.0-cp39-abi3-manylinux1_x86_64.whl"})
	assert.Equal(t, "abi3", tag)
}

func TestPythonTagWheelMalformedFilenameFallsBack(t *testing.T) {
	tag := pythonTag(releaseFile{PackageType: "bdist_wheel", Filename: "oddname.whl", PythonVersion: "cp39"})
	assert.Equal(t, "cp39", tag)
}
