package driven

import (
	"context"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
)

// Store is the content-addressed persistence layer for the four-level
// entity graph (Archive -> File -> NormalizedFile -> Snippet) plus the
// FileInArchive and SnippetRef edges. Every insert is upsert-if-absent:
// concurrent writers racing to insert the same content-addressed row must
// both succeed, with only one row surviving (§5 of the design).
type Store interface {
	// GetArchive is a point read by hash.
	GetArchive(ctx context.Context, hash string) (*domain.Archive, error)
	// UpsertArchive inserts the archive if its hash is not yet known,
	// returning whether it was newly inserted.
	UpsertArchive(ctx context.Context, archive *domain.Archive) (inserted bool, err error)

	// GetFile is a point read by hash.
	GetFile(ctx context.Context, hash string) (*domain.File, error)
	// UpsertFile inserts the file if its hash is not yet known.
	UpsertFile(ctx context.Context, file *domain.File) (inserted bool, err error)

	// GetNormalizedFile is a point read by hash.
	GetNormalizedFile(ctx context.Context, hash string) (*domain.NormalizedFile, error)
	// UpsertNormalizedFile inserts the normalized file if its hash is not
	// yet known.
	UpsertNormalizedFile(ctx context.Context, nf *domain.NormalizedFile) (inserted bool, err error)

	// GetSnippet is a point read by hash.
	GetSnippet(ctx context.Context, hash string) (*domain.Snippet, error)
	// UpsertSnippets inserts any snippets whose hash is not yet known ("on
	// conflict do nothing") and returns only the newly-inserted rows, so
	// the caller can embed exactly those and no others.
	UpsertSnippets(ctx context.Context, snippets []*domain.Snippet) (inserted []*domain.Snippet, err error)
	// SetSnippetEmbedding sets a snippet's embedding exactly once; it is the
	// sole mutation path on an otherwise-immutable row.
	SetSnippetEmbedding(ctx context.Context, hash string, embedding []float32) error

	// AddSnippetRefs creates the ordered, dense, 0-based membership edges
	// from a NormalizedFile to its Snippets.
	AddSnippetRefs(ctx context.Context, refs []domain.SnippetRef) error
	// ListSnippetsInOrder enumerates a NormalizedFile's snippets in
	// sequence order.
	ListSnippetsInOrder(ctx context.Context, normalizedHash string) ([]*domain.Snippet, error)

	// AddFileInArchive records a placement edge. One representative path is
	// kept per (archive, file) insertion call.
	AddFileInArchive(ctx context.Context, fia domain.FileInArchive) error
	// ListFileInArchiveByFile enumerates placements of a file, ordered by
	// vendor level ascending (non-vendored evidence first).
	ListFileInArchiveByFile(ctx context.Context, fileHash string) ([]domain.FileInArchive, error)
	// ListFileInArchiveByNormalized enumerates placements of any file whose
	// NormalizedFile matches the given hash, vendor-level ordered.
	ListFileInArchiveByNormalized(ctx context.Context, normalizedHash string) ([]domain.FileInArchive, error)
	// ListFileInArchiveByArchive enumerates every file placement recorded
	// inside a given archive, used by the archive-detail HTTP view.
	ListFileInArchiveByArchive(ctx context.Context, archiveHash string) ([]domain.FileInArchive, error)

	// SnippetHashesOf returns the ordered snippet-hash sequence of a
	// NormalizedFile, used by the partial-coverage decomposition.
	SnippetHashesOf(ctx context.Context, normalizedHash string) ([]string, error)
	// NormalizedFilesSharingSnippets returns a map from every NormalizedFile
	// hash (other than exclude) that contains at least one of hashes to the
	// snippet hashes from hashes that it contains.
	NormalizedFilesSharingSnippets(ctx context.Context, hashes []string, exclude string) (map[string][]string, error)
}

// VectorIndex is the approximate-nearest-neighbor query surface over the
// Snippet embedding column (§4.E "Vector index"). It is a distinct port from
// Store because a faithful implementation may back it with a separate
// search engine (see internal/adapters/driven/vespa).
type VectorIndex interface {
	// Query returns the k nearest snippets to vec by L2 distance, along
	// with their distance. Snippets with no embedding are never returned.
	Query(ctx context.Context, vec []float32, k int) ([]SnippetNeighbor, error)
}

// SnippetNeighbor is one result of a VectorIndex.Query call.
type SnippetNeighbor struct {
	SnippetHash string
	Distance    float64
}
