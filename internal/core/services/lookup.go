package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driving"
	"github.com/custodia-labs/pkgdex/internal/fingerprint"
)

// similarK is the number of nearest neighbors requested per snippet for
// tier-3 lookup (§4.G).
const similarK = 2

// Ensure LookupEngine implements LookupService.
var _ driving.LookupService = (*LookupEngine)(nil)

// LookupEngine implements the three-tier lookup and partial-coverage
// decomposition of §4.G. Tier 1 (exact) and tier 2 (normalized) are point
// reads; tier 3 (similar) degrades gracefully to "no result" if the vector
// index is unavailable or the file has no segmentable content, exactly as
// the reference search path falls back to text-only search when the
// embedding service is unavailable.
type LookupEngine struct {
	store      driven.Store
	index      driven.VectorIndex
	normalizer driven.Normalizer
	segmenter  driven.Segmenter
	embedder   driven.Embedder
	logger     *slog.Logger
}

// LookupEngineConfig holds dependencies for LookupEngine.
type LookupEngineConfig struct {
	Store      driven.Store
	Index      driven.VectorIndex
	Normalizer driven.Normalizer
	Segmenter  driven.Segmenter
	Embedder   driven.Embedder
	Logger     *slog.Logger
}

// NewLookupEngine creates a LookupEngine.
func NewLookupEngine(cfg LookupEngineConfig) *LookupEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &LookupEngine{
		store:      cfg.Store,
		index:      cfg.Index,
		normalizer: cfg.Normalizer,
		segmenter:  cfg.Segmenter,
		embedder:   cfg.Embedder,
		logger:     logger,
	}
}

// LookupFile performs the three-tier lookup against the bytes of a query
// file (§4.G).
func (l *LookupEngine) LookupFile(ctx context.Context, content []byte) (*domain.LookupResult, error) {
	fileHash := fingerprint.OfBytes(content)
	result := &domain.LookupResult{FileHash: fileHash}

	// Tier 1: exact.
	if placements, err := l.store.ListFileInArchiveByFile(ctx, fileHash); err == nil {
		result.Exact = attachTier(placements, domain.TierExact, nil)
	}

	normalized, err := l.normalizer.Normalize(content)
	if err != nil {
		l.logger.Warn("normalization failed during lookup", "error", err)
		return result, nil
	}
	normalizedHash := fingerprint.OfBytes(normalized)
	result.NormalizedHash = normalizedHash

	// Tier 2: normalized.
	if placements, err := l.store.ListFileInArchiveByNormalized(ctx, normalizedHash); err == nil {
		result.Normalized = attachTier(placements, domain.TierNormalized, nil)
	}
	if len(result.Normalized) > 0 {
		return result, nil
	}

	// Tier 3: similar, via per-segment embedding k-NN.
	if l.index == nil || l.embedder == nil {
		return result, nil
	}
	segments, err := l.segmenter.Segment(normalized)
	if err != nil {
		l.logger.Warn("segmentation failed during lookup", "error", err)
		return result, nil
	}

	seen := map[string]bool{}
	for _, text := range segments {
		vec, err := l.embedder.Encode(ctx, text)
		if err != nil {
			l.logger.Warn("embedding failed during lookup", "error", err)
			continue
		}
		neighbors, err := l.index.Query(ctx, vec, similarK)
		if err != nil {
			l.logger.Warn("vector index query failed", "error", err)
			continue
		}
		for _, n := range neighbors {
			if seen[n.SnippetHash] {
				continue
			}
			seen[n.SnippetHash] = true

			owners, err := l.store.NormalizedFilesSharingSnippets(ctx, []string{n.SnippetHash}, normalizedHash)
			if err != nil {
				continue
			}
			for ownerHash := range owners {
				placements, err := l.store.ListFileInArchiveByNormalized(ctx, ownerHash)
				if err != nil {
					continue
				}
				result.Similar = append(result.Similar, attachTier(placements, domain.TierSimilar, &n)...)
			}
		}
	}

	return result, nil
}

// attachTier annotates a set of placements with the tier that produced them
// and, for tier 3, the snippet distance evidence.
func attachTier(placements []domain.FileInArchive, tier domain.LookupTier, neighbor *driven.SnippetNeighbor) []domain.Placement {
	out := make([]domain.Placement, len(placements))
	for i, p := range placements {
		out[i] = domain.Placement{Tier: tier, Placement: p}
		if neighbor != nil {
			out[i].Distance = neighbor.Distance
			out[i].SnippetHash = neighbor.SnippetHash
		}
	}
	return out
}

// SnippetHashesOf lists the snippet hashes of a normalized file, in
// sequence order.
func (l *LookupEngine) SnippetHashesOf(ctx context.Context, normalizedHash string) ([]string, error) {
	return l.store.SnippetHashesOf(ctx, normalizedHash)
}

// NormalizedFilesContaining lists the NormalizedFile hashes that contain
// the given snippet hash.
func (l *LookupEngine) NormalizedFilesContaining(ctx context.Context, snippetHash string) ([]string, error) {
	owners, err := l.store.NormalizedFilesSharingSnippets(ctx, []string{snippetHash}, "")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(owners))
	for hash := range owners {
		out = append(out, hash)
	}
	sort.Strings(out)
	return out, nil
}

// Decompose computes the greedy partial-coverage decomposition of a target
// NormalizedFile by other NormalizedFiles sharing snippet hashes with it
// (§4.G). Ties between candidates covering the same number of not-yet-
// covered positions are broken by the lexicographically smaller normalized
// hash, for a decomposition that is deterministic across runs and across
// store implementations.
func (l *LookupEngine) Decompose(ctx context.Context, normalizedHash string) (*domain.Coverage, error) {
	sequence, err := l.store.SnippetHashesOf(ctx, normalizedHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, normalizedHash)
	}
	if len(sequence) == 0 {
		if _, err := l.store.GetNormalizedFile(ctx, normalizedHash); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, normalizedHash)
		}
	}

	owners, err := l.store.NormalizedFilesSharingSnippets(ctx, sequence, normalizedHash)
	if err != nil {
		return nil, err
	}

	// candidatePositions[hash] = set of positions in `sequence` this
	// candidate's snippets occupy.
	candidatePositions := make(map[string]map[int]struct{})
	for pos, hash := range sequence {
		for _, owner := range indexOwnersOf(owners, hash) {
			if candidatePositions[owner] == nil {
				candidatePositions[owner] = map[int]struct{}{}
			}
			candidatePositions[owner][pos] = struct{}{}
		}
	}

	covered := make(map[int]bool, len(sequence))
	var found []domain.CoverageEntry

	for len(covered) < len(sequence) {
		bestHash := ""
		bestNew := 0
		for hash, positions := range candidatePositions {
			n := 0
			for pos := range positions {
				if !covered[pos] {
					n++
				}
			}
			if n > bestNew || (n == bestNew && n > 0 && (bestHash == "" || hash < bestHash)) {
				bestNew = n
				bestHash = hash
			}
		}
		if bestNew == 0 {
			break
		}

		var included []int
		for pos := range candidatePositions[bestHash] {
			if !covered[pos] {
				covered[pos] = true
				included = append(included, pos)
			}
		}
		sort.Ints(included)
		found = append(found, domain.CoverageEntry{NormalizedHash: bestHash, IncludedPositions: included})
		delete(candidatePositions, bestHash)
	}

	var excluded []int
	for pos := range sequence {
		if !covered[pos] {
			excluded = append(excluded, pos)
		}
	}
	sort.Ints(excluded)

	return &domain.Coverage{TargetHash: normalizedHash, Found: found, Excluded: excluded}, nil
}

// GetArchive is a point read by hash.
func (l *LookupEngine) GetArchive(ctx context.Context, hash string) (*domain.Archive, error) {
	return l.store.GetArchive(ctx, hash)
}

// ListPlacementsInArchive enumerates every file placed inside an archive.
func (l *LookupEngine) ListPlacementsInArchive(ctx context.Context, archiveHash string) ([]domain.FileInArchive, error) {
	return l.store.ListFileInArchiveByArchive(ctx, archiveHash)
}

// GetFile is a point read by hash.
func (l *LookupEngine) GetFile(ctx context.Context, hash string) (*domain.File, error) {
	return l.store.GetFile(ctx, hash)
}

// GetNormalizedFile is a point read by hash.
func (l *LookupEngine) GetNormalizedFile(ctx context.Context, hash string) (*domain.NormalizedFile, error) {
	return l.store.GetNormalizedFile(ctx, hash)
}

// ListPlacementsByNormalized enumerates every placement of any file
// belonging to a NormalizedFile.
func (l *LookupEngine) ListPlacementsByNormalized(ctx context.Context, normalizedHash string) ([]domain.FileInArchive, error) {
	return l.store.ListFileInArchiveByNormalized(ctx, normalizedHash)
}

// ListSnippetsInOrder enumerates a NormalizedFile's snippets in sequence order.
func (l *LookupEngine) ListSnippetsInOrder(ctx context.Context, normalizedHash string) ([]*domain.Snippet, error) {
	return l.store.ListSnippetsInOrder(ctx, normalizedHash)
}

// GetSnippet is a point read by hash.
func (l *LookupEngine) GetSnippet(ctx context.Context, hash string) (*domain.Snippet, error) {
	return l.store.GetSnippet(ctx, hash)
}

// indexOwnersOf returns the normalized-file hashes that, per owners, contain
// snippetHash.
func indexOwnersOf(owners map[string][]string, snippetHash string) []string {
	var out []string
	for owner, hashes := range owners {
		for _, h := range hashes {
			if h == snippetHash {
				out = append(out, owner)
				break
			}
		}
	}
	return out
}
