package postgres

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.Store = (*Store)(nil)

// Store implements driven.Store using PostgreSQL.
type Store struct {
	db *DB
}

// NewStore creates a Store.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// GetArchive is a point read by hash.
func (s *Store) GetArchive(ctx context.Context, hash string) (*domain.Archive, error) {
	var a domain.Archive
	var projectName, projectVersion sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, source_url, uploaded_at, project_name, project_version FROM archives WHERE hash = $1`,
		hash,
	).Scan(&a.Hash, &a.SourceURL, &a.UploadedAt, &projectName, &projectVersion)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.ProjectName = projectName.String
	a.ProjectVersion = projectVersion.String
	return &a, nil
}

// UpsertArchive inserts the archive if its hash is not yet known.
func (s *Store) UpsertArchive(ctx context.Context, archive *domain.Archive) (bool, error) {
	uploadedAt := archive.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO archives (hash, source_url, uploaded_at, project_name, project_version)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
		ON CONFLICT (hash) DO NOTHING
	`, archive.Hash, archive.SourceURL, uploadedAt, archive.ProjectName, archive.ProjectVersion)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// GetFile is a point read by hash.
func (s *Store) GetFile(ctx context.Context, hash string) (*domain.File, error) {
	var f domain.File
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, normalized_hash FROM files WHERE hash = $1`, hash,
	).Scan(&f.Hash, &f.NormalizedHash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &f, err
}

// UpsertFile inserts the file if its hash is not yet known.
func (s *Store) UpsertFile(ctx context.Context, file *domain.File) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO files (hash, normalized_hash) VALUES ($1, $2)
		ON CONFLICT (hash) DO NOTHING
	`, file.Hash, file.NormalizedHash)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// GetNormalizedFile is a point read by hash.
func (s *Store) GetNormalizedFile(ctx context.Context, hash string) (*domain.NormalizedFile, error) {
	var nf domain.NormalizedFile
	err := s.db.QueryRowContext(ctx,
		`SELECT hash FROM normalized_files WHERE hash = $1`, hash,
	).Scan(&nf.Hash)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return &nf, err
}

// UpsertNormalizedFile inserts the normalized file if its hash is not yet known.
func (s *Store) UpsertNormalizedFile(ctx context.Context, nf *domain.NormalizedFile) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO normalized_files (hash) VALUES ($1)
		ON CONFLICT (hash) DO NOTHING
	`, nf.Hash)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n > 0, err
}

// GetSnippet is a point read by hash.
func (s *Store) GetSnippet(ctx context.Context, hash string) (*domain.Snippet, error) {
	var snip domain.Snippet
	var embedding pq.Float64Array
	err := s.db.QueryRowContext(ctx,
		`SELECT hash, text, embedding FROM snippets WHERE hash = $1`, hash,
	).Scan(&snip.Hash, &snip.Text, &embedding)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snip.Embedding = toFloat32(embedding)
	return &snip, nil
}

// UpsertSnippets inserts any snippets whose hash is not yet known and
// returns only the newly-inserted rows.
func (s *Store) UpsertSnippets(ctx context.Context, snippets []*domain.Snippet) ([]*domain.Snippet, error) {
	var inserted []*domain.Snippet
	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO snippets (hash, text) VALUES ($1, $2)
			ON CONFLICT (hash) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, snip := range snippets {
			result, err := stmt.ExecContext(ctx, snip.Hash, snip.Text)
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if n > 0 {
				inserted = append(inserted, snip)
			}
		}
		return nil
	})
	return inserted, err
}

// SetSnippetEmbedding sets a snippet's embedding exactly once.
func (s *Store) SetSnippetEmbedding(ctx context.Context, hash string, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE snippets SET embedding = $2 WHERE hash = $1`,
		hash, pq.Array(toFloat64(embedding)),
	)
	return err
}

// AddSnippetRefs creates the ordered membership edges from a
// NormalizedFile to its Snippets.
func (s *Store) AddSnippetRefs(ctx context.Context, refs []domain.SnippetRef) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO snippet_refs (normalized_hash, snippet_hash, sequence) VALUES ($1, $2, $3)
			ON CONFLICT (normalized_hash, sequence) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, ref := range refs {
			if _, err := stmt.ExecContext(ctx, ref.NormalizedHash, ref.SnippetHash, ref.Sequence); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListSnippetsInOrder enumerates a NormalizedFile's snippets in sequence order.
func (s *Store) ListSnippetsInOrder(ctx context.Context, normalizedHash string) ([]*domain.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.hash, s.text, s.embedding
		FROM snippet_refs r JOIN snippets s ON s.hash = r.snippet_hash
		WHERE r.normalized_hash = $1
		ORDER BY r.sequence
	`, normalizedHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Snippet
	for rows.Next() {
		var snip domain.Snippet
		var embedding pq.Float64Array
		if err := rows.Scan(&snip.Hash, &snip.Text, &embedding); err != nil {
			return nil, err
		}
		snip.Embedding = toFloat32(embedding)
		out = append(out, &snip)
	}
	return out, rows.Err()
}

// AddFileInArchive records a placement edge.
func (s *Store) AddFileInArchive(ctx context.Context, fia domain.FileInArchive) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files_in_archive (archive_hash, file_hash, sample_path, vendor_level)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (archive_hash, file_hash) DO NOTHING
	`, fia.ArchiveHash, fia.FileHash, fia.SamplePath, fia.VendorLevel)
	return err
}

// ListFileInArchiveByFile enumerates placements of a file, vendor-level ordered.
func (s *Store) ListFileInArchiveByFile(ctx context.Context, fileHash string) ([]domain.FileInArchive, error) {
	return s.scanPlacements(ctx, `
		SELECT archive_hash, file_hash, sample_path, vendor_level
		FROM files_in_archive WHERE file_hash = $1 ORDER BY vendor_level ASC
	`, fileHash)
}

// ListFileInArchiveByNormalized enumerates placements of any file whose
// NormalizedFile matches normalizedHash, vendor-level ordered.
func (s *Store) ListFileInArchiveByNormalized(ctx context.Context, normalizedHash string) ([]domain.FileInArchive, error) {
	return s.scanPlacements(ctx, `
		SELECT fa.archive_hash, fa.file_hash, fa.sample_path, fa.vendor_level
		FROM files_in_archive fa JOIN files f ON f.hash = fa.file_hash
		WHERE f.normalized_hash = $1 ORDER BY fa.vendor_level ASC
	`, normalizedHash)
}

// ListFileInArchiveByArchive enumerates every file placement inside a
// given archive.
func (s *Store) ListFileInArchiveByArchive(ctx context.Context, archiveHash string) ([]domain.FileInArchive, error) {
	return s.scanPlacements(ctx, `
		SELECT archive_hash, file_hash, sample_path, vendor_level
		FROM files_in_archive WHERE archive_hash = $1 ORDER BY vendor_level ASC
	`, archiveHash)
}

func (s *Store) scanPlacements(ctx context.Context, query string, arg string) ([]domain.FileInArchive, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FileInArchive
	for rows.Next() {
		var fia domain.FileInArchive
		if err := rows.Scan(&fia.ArchiveHash, &fia.FileHash, &fia.SamplePath, &fia.VendorLevel); err != nil {
			return nil, err
		}
		out = append(out, fia)
	}
	return out, rows.Err()
}

// SnippetHashesOf returns the ordered snippet-hash sequence of a NormalizedFile.
func (s *Store) SnippetHashesOf(ctx context.Context, normalizedHash string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snippet_hash FROM snippet_refs WHERE normalized_hash = $1 ORDER BY sequence
	`, normalizedHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// NormalizedFilesSharingSnippets returns a map from every NormalizedFile hash
// (other than exclude) that contains at least one of hashes to the snippet
// hashes from hashes that it contains.
func (s *Store) NormalizedFilesSharingSnippets(ctx context.Context, hashes []string, exclude string) (map[string][]string, error) {
	if len(hashes) == 0 {
		return map[string][]string{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT normalized_hash, snippet_hash
		FROM snippet_refs
		WHERE snippet_hash = ANY($1) AND normalized_hash != $2
	`, pq.Array(hashes), exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var normalizedHash, snippetHash string
		if err := rows.Scan(&normalizedHash, &snippetHash); err != nil {
			return nil, err
		}
		out[normalizedHash] = append(out[normalizedHash], snippetHash)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out, nil
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func toFloat32(v pq.Float64Array) []float32 {
	if len(v) == 0 {
		return nil
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

