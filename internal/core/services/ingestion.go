package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driving"
	"github.com/custodia-labs/pkgdex/internal/fingerprint"
)

// Ensure IngestionOrchestrator implements IngestionService.
var _ driving.IngestionService = (*IngestionOrchestrator)(nil)

// IngestionOrchestrator coordinates the archive ingestion pipeline (§4.F).
// It implements the per-archive protocol:
//  1. Fetch/locate the archive, compute its hash, short-circuit if known.
//  2. Unpack to a scratch directory.
//  3. Walk every .py file, routing each through the per-file protocol.
//  4. Record the Archive row once every file has been processed.
//
// and the per-file protocol:
//  1. Hash the raw bytes; if the File row exists, only the placement edge is
//     new work.
//  2. Otherwise normalize, hash the canonical serialization; if the
//     NormalizedFile exists, the File row is created pointing at it.
//  3. Otherwise segment, upsert-if-absent every snippet, embed only the
//     snippets that were newly inserted, record the ordered refs, then
//     create the NormalizedFile and File rows.
type IngestionOrchestrator struct {
	store      driven.Store
	index      driven.VectorIndex
	fetcher    driven.ArchiveFetcher
	unpacker   driven.ArchiveUnpacker
	packages   driven.PackageIndexClient
	normalizer driven.Normalizer
	segmenter  driven.Segmenter
	embedder   driven.Embedder
	scratchDir string
	logger     *slog.Logger
}

// IngestionOrchestratorConfig holds dependencies for IngestionOrchestrator.
type IngestionOrchestratorConfig struct {
	Store      driven.Store
	Index      driven.VectorIndex
	Fetcher    driven.ArchiveFetcher
	Unpacker   driven.ArchiveUnpacker
	Packages   driven.PackageIndexClient
	Normalizer driven.Normalizer
	Segmenter  driven.Segmenter
	Embedder   driven.Embedder
	ScratchDir string
	Logger     *slog.Logger
}

// NewIngestionOrchestrator creates an IngestionOrchestrator.
func NewIngestionOrchestrator(cfg IngestionOrchestratorConfig) *IngestionOrchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	scratch := cfg.ScratchDir
	if scratch == "" {
		scratch = os.TempDir()
	}
	return &IngestionOrchestrator{
		store:      cfg.Store,
		index:      cfg.Index,
		fetcher:    cfg.Fetcher,
		unpacker:   cfg.Unpacker,
		packages:   cfg.Packages,
		normalizer: cfg.Normalizer,
		segmenter:  cfg.Segmenter,
		embedder:   cfg.Embedder,
		scratchDir: scratch,
		logger:     logger,
	}
}

// IngestURL downloads and ingests the archive at url. project, if
// non-empty, is recorded on the Archive row as its package-index project
// name (spec §6.4's `POST /import/project-url/?project=&url=`).
func (o *IngestionOrchestrator) IngestURL(ctx context.Context, url, project string) (*domain.Archive, error) {
	return o.ingestURLForProject(ctx, url, project, "")
}

// ingestURLForProject downloads and ingests the archive at url, tagging the
// resulting Archive row with project/version when either is known.
func (o *IngestionOrchestrator) ingestURLForProject(ctx context.Context, url, project, version string) (*domain.Archive, error) {
	dir, err := os.MkdirTemp(o.scratchDir, "pkgdex-fetch-")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path, hash, err := o.fetcher.Fetch(ctx, url, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrNetworkFailure, url, err)
	}

	return o.ingestArchiveFile(ctx, path, hash, url, project, version)
}

// IngestLocalArchive ingests an archive already present on disk.
func (o *IngestionOrchestrator) IngestLocalArchive(ctx context.Context, path string) (*domain.Archive, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	hash := fingerprint.OfBytes(raw)
	return o.ingestArchiveFile(ctx, path, hash, path, "", "")
}

// IngestLocalFile ingests a single source file, as though it were the sole
// member of a one-file archive, and returns its normalized hash. A
// whitespace-only (or otherwise content-free) file produces no File row at
// all, reported as domain.ErrEmptyContent.
func (o *IngestionOrchestrator) IngestLocalFile(ctx context.Context, path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	_, nf, err := o.ingestFileBytes(ctx, raw)
	if err != nil {
		return "", err
	}
	if nf == nil {
		return "", domain.ErrEmptyContent
	}
	return nf.Hash, nil
}

// ingestArchiveFile runs the per-archive protocol for an archive whose bytes
// are already on disk at path, with a precomputed hash. project/version are
// recorded on the Archive row when known; either may be empty.
func (o *IngestionOrchestrator) ingestArchiveFile(ctx context.Context, path, hash, sourceURL, project, version string) (*domain.Archive, error) {
	if existing, err := o.store.GetArchive(ctx, hash); err == nil {
		o.logger.Info("archive already ingested", "hash", hash, "source_url", sourceURL)
		return existing, nil
	}

	dir, err := os.MkdirTemp(o.scratchDir, "pkgdex-unpack-")
	if err != nil {
		return nil, fmt.Errorf("scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := o.unpacker.Unpack(ctx, path, dir); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrArchiveUnpackFailure, err)
	}

	archive := &domain.Archive{Hash: hash, SourceURL: sourceURL, ProjectName: project, ProjectVersion: version}

	var filesSeen, filesFailed int
	err = filepath.Walk(dir, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() || !strings.HasSuffix(p, ".py") {
			return nil
		}
		filesSeen++

		raw, readErr := os.ReadFile(p)
		if readErr != nil {
			o.logger.Warn("could not read extracted file", "path", p, "error", readErr)
			filesFailed++
			return nil
		}

		file, _, processErr := o.ingestFileBytes(ctx, raw)
		if processErr != nil {
			o.logger.Warn("failed to process file", "path", p, "error", processErr)
			filesFailed++
			return nil
		}
		if file == nil {
			// Whitespace-only (or otherwise content-free) file: no File row,
			// so no placement edge either.
			return nil
		}

		rel, _ := filepath.Rel(dir, p)
		if err := o.store.AddFileInArchive(ctx, domain.FileInArchive{
			ArchiveHash: hash,
			FileHash:    file.Hash,
			SamplePath:  rel,
			VendorLevel: vendorLevel(rel),
		}); err != nil {
			o.logger.Warn("failed to record placement", "path", rel, "error", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}

	if _, err := o.store.UpsertArchive(ctx, archive); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	o.logger.Info("archive ingested",
		"hash", hash, "source_url", sourceURL, "files_seen", filesSeen, "files_failed", filesFailed)

	return archive, nil
}

// ingestFileBytes runs the per-file protocol and returns the File and
// NormalizedFile rows (newly created or pre-existing). Both return values
// are nil, with a nil error, when the file normalizes and segments down to
// nothing: per §8, a whitespace-only (or otherwise content-free) file is the
// sole case where a source file contributes no File row.
func (o *IngestionOrchestrator) ingestFileBytes(ctx context.Context, raw []byte) (*domain.File, *domain.NormalizedFile, error) {
	fileHash := fingerprint.OfBytes(raw)

	if existing, err := o.store.GetFile(ctx, fileHash); err == nil {
		nf, err := o.store.GetNormalizedFile(ctx, existing.NormalizedHash)
		if err != nil {
			return nil, nil, fmt.Errorf("inconsistent store: file %s references missing normalized file: %w", fileHash, err)
		}
		return existing, nf, nil
	}

	normalized, err := o.normalizer.Normalize(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	normalizedHash := fingerprint.OfBytes(normalized)

	nf, err := o.store.GetNormalizedFile(ctx, normalizedHash)
	if err != nil {
		segments, segErr := o.segmenter.Segment(normalized)
		if segErr != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, segErr)
		}
		if len(segments) == 0 {
			return nil, nil, nil
		}
		nf, err = o.buildNormalizedFile(ctx, normalizedHash, segments)
		if err != nil {
			return nil, nil, err
		}
	}

	file := &domain.File{Hash: fileHash, NormalizedHash: normalizedHash}
	if _, err := o.store.UpsertFile(ctx, file); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	return file, nf, nil
}

// buildNormalizedFile upserts the snippets of an already-segmented,
// newly-seen canonical serialization, embeds the ones that were genuinely
// new, and records the ordered refs, before creating the NormalizedFile row
// itself.
func (o *IngestionOrchestrator) buildNormalizedFile(ctx context.Context, normalizedHash string, segments []string) (*domain.NormalizedFile, error) {
	snippets := make([]*domain.Snippet, len(segments))
	for i, text := range segments {
		snippets[i] = &domain.Snippet{Hash: fingerprint.OfString(text), Text: text}
	}

	newSnippets, err := o.store.UpsertSnippets(ctx, snippets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	for _, snip := range newSnippets {
		vec, err := o.embedder.Encode(ctx, snip.Text)
		if err != nil {
			o.logger.Warn("embedding failed", "snippet_hash", snip.Hash, "error", fmt.Errorf("%w: %v", domain.ErrEmbedderFailure, err))
			continue
		}
		if err := o.store.SetSnippetEmbedding(ctx, snip.Hash, vec); err != nil {
			o.logger.Warn("failed to store embedding", "snippet_hash", snip.Hash, "error", err)
			continue
		}
		if indexer, ok := o.index.(interface {
			IndexSnippet(ctx context.Context, hash string, embedding []float32) error
		}); ok {
			if err := indexer.IndexSnippet(ctx, snip.Hash, vec); err != nil {
				o.logger.Warn("failed to index embedding", "snippet_hash", snip.Hash, "error", err)
			}
		}
	}

	refs := make([]domain.SnippetRef, len(snippets))
	for i, snip := range snippets {
		refs[i] = domain.SnippetRef{NormalizedHash: normalizedHash, SnippetHash: snip.Hash, Sequence: i}
	}
	if err := o.store.AddSnippetRefs(ctx, refs); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}

	nf := &domain.NormalizedFile{Hash: normalizedHash}
	if _, err := o.store.UpsertNormalizedFile(ctx, nf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nf, nil
}

// IngestProject drives ingestion for one or more project names against a
// package index, ranking candidate distributions per version (§4.F,
// "Project-level driver") and honoring shard filtering.
func (o *IngestionOrchestrator) IngestProject(ctx context.Context, projects []string, shard driving.ShardSpec) error {
	for shardIdx, project := range projects {
		if !shard.Active(shardIdx) {
			continue
		}

		dists, err := o.packages.ListDistributions(ctx, project)
		if err != nil {
			o.logger.Error("failed to list distributions", "project", project, "error", err)
			continue
		}

		byVersion := make(map[string][]driven.Distribution)
		for _, d := range dists {
			byVersion[d.Version] = append(byVersion[d.Version], d)
		}

		for version, candidates := range byVersion {
			best := pickBestDistribution(candidates)
			if best == nil {
				continue
			}
			o.logger.Info("ingesting distribution", "project", project, "version", version, "filename", best.Filename)
			if _, err := o.ingestURLForProject(ctx, best.URL, project, version); err != nil {
				o.logger.Error("failed to ingest distribution",
					"project", project, "version", version, "filename", best.Filename, "error", err)
			}
		}
	}
	return nil
}

// pickBestDistribution selects the highest-ranked distribution among
// candidates, breaking ties by filename for determinism.
func pickBestDistribution(candidates []driven.Distribution) *driven.Distribution {
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := RankCandidate(candidates[i]), RankCandidate(candidates[j])
		if ri != rj {
			return ri > rj
		}
		return candidates[i].Filename < candidates[j].Filename
	})
	return &candidates[0]
}

// vendorLevel counts the path components naming a bundled-dependency
// directory (vendor, _vendor, vendored, _vendored).
func vendorLevel(relPath string) int {
	level := 0
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		switch part {
		case "vendor", "_vendor", "vendored", "_vendored":
			level++
		}
	}
	return level
}
