package driving

import (
	"context"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
)

// ShardSpec selects a subset of {0, ..., OfShards-1} to process, per the
// grammar of spec §6.2.
type ShardSpec struct {
	Shards   map[int]struct{}
	OfShards int
}

// Active reports whether shard is selected by this spec. An OfShards of 0
// (no sharding requested) always selects everything.
func (s ShardSpec) Active(shard int) bool {
	if s.OfShards <= 0 {
		return true
	}
	_, ok := s.Shards[shard%s.OfShards]
	return ok
}

// IngestionService is the driving port for the Ingestion Orchestrator (§4.F),
// called by the CLI and by the project-wide driver.
type IngestionService interface {
	// IngestURL ingests one archive from a URL. project, if non-empty,
	// records the package-index project name the archive was fetched for.
	IngestURL(ctx context.Context, url, project string) (*domain.Archive, error)

	// IngestLocalArchive ingests one archive already on disk.
	IngestLocalArchive(ctx context.Context, path string) (*domain.Archive, error)

	// IngestLocalFile ingests a single source file outside of any archive,
	// returning its normalized hash.
	IngestLocalFile(ctx context.Context, path string) (normalizedHash string, err error)

	// IngestProject drives ingestion for one or more project names, ranking
	// and selecting the best distribution per version (§4.F) and applying
	// shard filtering.
	IngestProject(ctx context.Context, projects []string, shard ShardSpec) error
}

// LookupService is the driving port for the Lookup Engine (§4.G).
type LookupService interface {
	// LookupFile performs the three-tier lookup against the bytes of a
	// query file.
	LookupFile(ctx context.Context, content []byte) (*domain.LookupResult, error)

	// SnippetHashesOf lists the snippet hashes of a normalized file, in
	// sequence order.
	SnippetHashesOf(ctx context.Context, normalizedHash string) ([]string, error)

	// NormalizedFilesContaining lists the NormalizedFile hashes that
	// contain the given snippet hash.
	NormalizedFilesContaining(ctx context.Context, snippetHash string) ([]string, error)

	// Decompose computes the partial-coverage decomposition of a
	// previously-ingested NormalizedFile (§4.G).
	Decompose(ctx context.Context, normalizedHash string) (*domain.Coverage, error)

	// GetArchive is a point read by hash, for the archive-detail HTTP view.
	GetArchive(ctx context.Context, hash string) (*domain.Archive, error)
	// ListPlacementsInArchive enumerates every file placed inside an archive.
	ListPlacementsInArchive(ctx context.Context, archiveHash string) ([]domain.FileInArchive, error)
	// GetFile is a point read by hash, used to resolve a file's normalized
	// hash for the redirect view.
	GetFile(ctx context.Context, hash string) (*domain.File, error)
	// GetNormalizedFile is a point read by hash.
	GetNormalizedFile(ctx context.Context, hash string) (*domain.NormalizedFile, error)
	// ListPlacementsByNormalized enumerates every placement of any file
	// belonging to a NormalizedFile, for the normalized-detail HTTP view.
	ListPlacementsByNormalized(ctx context.Context, normalizedHash string) ([]domain.FileInArchive, error)
	// ListSnippetsInOrder enumerates a NormalizedFile's snippets in sequence
	// order.
	ListSnippetsInOrder(ctx context.Context, normalizedHash string) ([]*domain.Snippet, error)
	// GetSnippet is a point read by hash.
	GetSnippet(ctx context.Context, hash string) (*domain.Snippet, error)
}
