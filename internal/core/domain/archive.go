package domain

import "time"

// Archive represents one distribution package ever ingested (a tarball, zip,
// or wheel fetched from a package repository). Archives are content-addressed
// by the SHA-256 of their bytes and are append-only: a row is created once,
// at successful ingestion of a new hash, and never updated or deleted.
type Archive struct {
	// Hash is the lowercase-hex SHA-256 of the archive's bytes (primary key).
	Hash string `json:"hash"`

	// SourceURL is where the archive was fetched from.
	SourceURL string `json:"source_url"`

	// UploadedAt is when this archive was first ingested.
	UploadedAt time.Time `json:"uploaded_at"`

	// ProjectName is the canonical package-index project name, if known.
	ProjectName string `json:"project_name,omitempty"`

	// ProjectVersion is the package version, if known.
	ProjectVersion string `json:"project_version,omitempty"`
}

// File is one source file byte sequence ever observed, across every archive.
// normalize(Bytes) always serializes to the NormalizedHash it references.
type File struct {
	// Hash is the lowercase-hex SHA-256 of the raw file bytes (primary key).
	Hash string `json:"hash"`

	// NormalizedHash references the NormalizedFile this file normalizes to.
	NormalizedHash string `json:"normalized_hash"`
}

// FileInArchive is a placement edge from an Archive to a File: the evidence
// that a given file's bytes were observed at a given path inside a given
// archive. Only one representative path is retained per (archive, file) pair.
type FileInArchive struct {
	ArchiveHash string `json:"archive_hash"`
	FileHash    string `json:"file_hash"`

	// SamplePath is one arbitrary representative path-within-archive.
	SamplePath string `json:"sample_path"`

	// VendorLevel is the count of path components naming a bundled-dependency
	// directory (vendor, _vendor, vendored, _vendored). Lookup prefers
	// evidence with a lower vendor level.
	VendorLevel int `json:"vendor_level"`
}

// NormalizedFile is the equivalence class of Files under normalization,
// identified by the SHA-256 of its canonical serialization. It owns an
// ordered sequence of snippets whose concatenation reproduces that
// serialization.
type NormalizedFile struct {
	// Hash is the lowercase-hex SHA-256 of the canonical serialization
	// (primary key).
	Hash string `json:"hash"`
}

// Snippet is one textual segment produced by the Segmenter, stored with its
// embedding. hash == sha256(text). The embedding may be unset transiently
// during ingestion; once set it never changes.
type Snippet struct {
	// Hash is the lowercase-hex SHA-256 of Text (primary key).
	Hash string `json:"hash"`

	// Text is the segment's UTF-8 source text.
	Text string `json:"text"`

	// Embedding is the unit-L2 vector for Text, or nil if not yet embedded.
	Embedding []float32 `json:"embedding,omitempty"`
}

// HasEmbedding reports whether the snippet has been embedded.
func (s *Snippet) HasEmbedding() bool {
	return len(s.Embedding) > 0
}

// SnippetRef is the ordered membership edge from a NormalizedFile to a
// Snippet, carrying the snippet's 0-based, dense, strictly increasing
// position within that file.
type SnippetRef struct {
	NormalizedHash string `json:"normalized_hash"`
	SnippetHash    string `json:"snippet_hash"`
	Sequence       int    `json:"sequence"`
}
