package domain

import "errors"

// Domain errors - used across all layers.
// These map onto the error kinds of the lookup/ingestion propagation policy:
// NotFound surfaces to callers, ParseFailure/EmbedderFailure are logged and
// swallowed at the file/snippet level, StorageConflict is treated as success
// because every write is content-addressed upsert-if-absent.
var (
	// ErrNotFound indicates the requested entity does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a content-addressed row already exists.
	// Upsert call sites treat this the same as a successful insert.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed caller input (bad hash, bad shard spec).
	ErrInvalidInput = errors.New("invalid input")

	// ErrParseFailure indicates the source text could not be parsed into an AST.
	ErrParseFailure = errors.New("parse failure")

	// ErrArchiveUnpackFailure indicates the archive could not be unpacked.
	ErrArchiveUnpackFailure = errors.New("archive unpack failure")

	// ErrNetworkFailure indicates a download could not complete.
	ErrNetworkFailure = errors.New("network failure")

	// ErrStorageConflict indicates a unique-key conflict on insert.
	ErrStorageConflict = errors.New("storage conflict")

	// ErrStorageUnavailable indicates the store could not be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEmbedderFailure indicates the embedding model call failed.
	ErrEmbedderFailure = errors.New("embedder failure")

	// ErrEmptyContent indicates a source file normalized and segmented down
	// to nothing (whitespace-only or otherwise content-free) and so
	// contributes no File row.
	ErrEmptyContent = errors.New("empty content")
)
