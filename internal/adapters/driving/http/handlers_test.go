package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driving"
)

// mockLookup is a hand-rolled fake implementing driving.LookupService.
type mockLookup struct {
	archives        map[string]*domain.Archive
	files           map[string]*domain.File
	normalizedFiles map[string]*domain.NormalizedFile
	snippets        map[string]*domain.Snippet
	placementsByArc map[string][]domain.FileInArchive
	placementsByNF  map[string][]domain.FileInArchive
	snippetsByNF    map[string][]*domain.Snippet
	ownersBySnippet map[string][]string
}

func newMockLookup() *mockLookup {
	return &mockLookup{
		archives:        map[string]*domain.Archive{},
		files:           map[string]*domain.File{},
		normalizedFiles: map[string]*domain.NormalizedFile{},
		snippets:        map[string]*domain.Snippet{},
		placementsByArc: map[string][]domain.FileInArchive{},
		placementsByNF:  map[string][]domain.FileInArchive{},
		snippetsByNF:    map[string][]*domain.Snippet{},
		ownersBySnippet: map[string][]string{},
	}
}

func (m *mockLookup) LookupFile(ctx context.Context, content []byte) (*domain.LookupResult, error) {
	return nil, errors.New("not implemented")
}
func (m *mockLookup) SnippetHashesOf(ctx context.Context, normalizedHash string) ([]string, error) {
	return nil, errors.New("not implemented")
}
func (m *mockLookup) NormalizedFilesContaining(ctx context.Context, snippetHash string) ([]string, error) {
	return m.ownersBySnippet[snippetHash], nil
}
func (m *mockLookup) Decompose(ctx context.Context, normalizedHash string) (*domain.Coverage, error) {
	return nil, errors.New("not implemented")
}
func (m *mockLookup) GetArchive(ctx context.Context, hash string) (*domain.Archive, error) {
	a, ok := m.archives[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return a, nil
}
func (m *mockLookup) ListPlacementsInArchive(ctx context.Context, archiveHash string) ([]domain.FileInArchive, error) {
	return m.placementsByArc[archiveHash], nil
}
func (m *mockLookup) GetFile(ctx context.Context, hash string) (*domain.File, error) {
	f, ok := m.files[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f, nil
}
func (m *mockLookup) GetNormalizedFile(ctx context.Context, hash string) (*domain.NormalizedFile, error) {
	nf, ok := m.normalizedFiles[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return nf, nil
}
func (m *mockLookup) ListPlacementsByNormalized(ctx context.Context, normalizedHash string) ([]domain.FileInArchive, error) {
	return m.placementsByNF[normalizedHash], nil
}
func (m *mockLookup) ListSnippetsInOrder(ctx context.Context, normalizedHash string) ([]*domain.Snippet, error) {
	return m.snippetsByNF[normalizedHash], nil
}
func (m *mockLookup) GetSnippet(ctx context.Context, hash string) (*domain.Snippet, error) {
	s, ok := m.snippets[hash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

// mockIngestion is a hand-rolled fake implementing driving.IngestionService.
type mockIngestion struct {
	ingestURLFn func(ctx context.Context, url, project string) (*domain.Archive, error)
}

func (m *mockIngestion) IngestURL(ctx context.Context, url, project string) (*domain.Archive, error) {
	if m.ingestURLFn != nil {
		return m.ingestURLFn(ctx, url, project)
	}
	return nil, errors.New("not implemented")
}
func (m *mockIngestion) IngestLocalArchive(ctx context.Context, path string) (*domain.Archive, error) {
	return nil, errors.New("not implemented")
}
func (m *mockIngestion) IngestLocalFile(ctx context.Context, path string) (string, error) {
	return "", errors.New("not implemented")
}
func (m *mockIngestion) IngestProject(ctx context.Context, projects []string, shard driving.ShardSpec) error {
	return nil
}

func newTestServer(lookup *mockLookup, ingestion *mockIngestion) *Server {
	return &Server{
		router:    http.NewServeMux(),
		lookup:    lookup,
		ingestion: ingestion,
	}
}

func TestHandleGetArchiveFound(t *testing.T) {
	lookup := newMockLookup()
	lookup.archives["abc"] = &domain.Archive{Hash: "abc", SourceURL: "https://example.com/pkg.tar.gz"}
	lookup.placementsByArc["abc"] = []domain.FileInArchive{{ArchiveHash: "abc", FileHash: "f1", SamplePath: "pkg/mod.py"}}
	lookup.files["f1"] = &domain.File{Hash: "f1", NormalizedHash: "n1"}

	s := newTestServer(lookup, &mockIngestion{})
	s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/archive/hash/abc", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://example.com/pkg.tar.gz")
	assert.Contains(t, rec.Body.String(), "n1")
}

func TestHandleGetArchiveNotFound(t *testing.T) {
	s := newTestServer(newMockLookup(), &mockIngestion{})
	s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/archive/hash/missing", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetFileRedirectsToNormalized(t *testing.T) {
	lookup := newMockLookup()
	lookup.files["f1"] = &domain.File{Hash: "f1", NormalizedHash: "n1"}

	s := newTestServer(lookup, &mockIngestion{})
	s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/file/hash/f1", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/normalized/hash/n1", rec.Header().Get("Location"))
}

func TestHandleImportProjectURLThreadsProjectParameter(t *testing.T) {
	var gotURL, gotProject string
	ingestion := &mockIngestion{
		ingestURLFn: func(ctx context.Context, url, project string) (*domain.Archive, error) {
			gotURL, gotProject = url, project
			return &domain.Archive{Hash: "abc", SourceURL: url, ProjectName: project}, nil
		},
	}

	s := newTestServer(newMockLookup(), ingestion)
	s.setupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/import/project-url/?project=requests&url=https://example.com/requests.tar.gz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/api/archive/hash/abc", rec.Header().Get("Location"))
	assert.Equal(t, "https://example.com/requests.tar.gz", gotURL)
	assert.Equal(t, "requests", gotProject)
}

func TestHandleImportProjectURLMissingURL(t *testing.T) {
	s := newTestServer(newMockLookup(), &mockIngestion{})
	s.setupRoutes()

	req := httptest.NewRequest(http.MethodPost, "/import/project-url/?project=requests", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetSnippet(t *testing.T) {
	lookup := newMockLookup()
	lookup.snippets["s1"] = &domain.Snippet{Hash: "s1", Text: "def f():\n    pass\n"}
	lookup.ownersBySnippet["s1"] = []string{"n1", "n2"}

	s := newTestServer(lookup, &mockIngestion{})
	s.setupRoutes()

	req := httptest.NewRequest(http.MethodGet, "/snippet/hash/s1", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"norm_count\":2")
}
