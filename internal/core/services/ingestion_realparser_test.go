package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/normalizer"
	"github.com/custodia-labs/pkgdex/internal/segmenter"
)

// newRealParserOrchestrator wires the real tree-sitter-backed normalizer and
// segmenter instead of the identity/line stubs used elsewhere in this
// package, to exercise the per-file protocol's whitespace-only-file
// boundary end to end.
func newRealParserOrchestrator(t *testing.T, store *fakeStore) *IngestionOrchestrator {
	t.Helper()
	return NewIngestionOrchestrator(IngestionOrchestratorConfig{
		Store:      store,
		Normalizer: normalizer.New(),
		Segmenter:  segmenter.New(),
		Embedder:   &fakeEmbedder{},
		ScratchDir: t.TempDir(),
	})
}

func TestIngestLocalFileWhitespaceOnlyProducesNoFileRow(t *testing.T) {
	store := newFakeStore()
	orch := newRealParserOrchestrator(t, store)

	dir := t.TempDir()
	path := dir + "/blank.py"
	require.NoError(t, writeFile(path, "\n\n   \n"))

	_, err := orch.IngestLocalFile(context.Background(), path)
	require.ErrorIs(t, err, domain.ErrEmptyContent)
	assert.Empty(t, store.files)
	assert.Empty(t, store.normalizedFiles)
}

func TestIngestLocalFileDocstringOnlyModuleProducesNoFileRow(t *testing.T) {
	store := newFakeStore()
	orch := newRealParserOrchestrator(t, store)

	dir := t.TempDir()
	path := dir + "/docstring_only.py"
	require.NoError(t, writeFile(path, "'''Some module docstring.'''\n"))

	_, err := orch.IngestLocalFile(context.Background(), path)
	require.ErrorIs(t, err, domain.ErrEmptyContent)
	assert.Empty(t, store.files)
}

func TestIngestLocalFileStripsNonLeadingDocstringInsideIfBlock(t *testing.T) {
	store := newFakeStore()
	orch := newRealParserOrchestrator(t, store)

	dir := t.TempDir()
	path := dir + "/if_docstring.py"
	src := "if sys.version_info[:2] < (3, 3):\n    '''Some docstring'''\n    _print=print_\n"
	require.NoError(t, writeFile(path, src))

	nh, err := orch.IngestLocalFile(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, nh)

	refs := store.refs[nh]
	require.NotEmpty(t, refs)
	var joined string
	for _, ref := range refs {
		joined += store.snippets[ref.SnippetHash].Text
	}
	assert.NotContains(t, joined, "Some docstring")
	assert.Contains(t, joined, "_print=print_")
}
