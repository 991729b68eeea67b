package driven

import "context"

// ArchiveFetcher downloads a distribution archive, computing its hash while
// streaming so the claimed and real hashes can both admit the idempotency
// short-circuit of §4.F step 1. It is an external collaborator: retries are
// the caller's concern (§7 NetworkFailure propagation policy).
type ArchiveFetcher interface {
	// Fetch downloads url to a local path inside dir and returns that path
	// plus the lowercase-hex SHA-256 of the downloaded bytes.
	Fetch(ctx context.Context, url string, dir string) (path string, hash string, err error)
}

// ArchiveUnpacker extracts an archive file into a scratch directory. Suffix
// routes to the right format: .zip/.whl use zip, anything else uses tar
// (optionally gzipped).
type ArchiveUnpacker interface {
	// Unpack extracts archivePath into destDir.
	Unpack(ctx context.Context, archivePath string, destDir string) error
}

// PackageIndexClient discovers distribution URLs for a project name and
// ranks candidate distributions (§4.F "Project-level driver"). It is the
// out-of-scope package-index client of spec §1/§6.
type PackageIndexClient interface {
	// ListDistributions returns every distribution file known for project,
	// across all versions. The order of the returned distributions is not
	// defined; in particular they are not sorted by version.
	ListDistributions(ctx context.Context, project string) ([]Distribution, error)
}

// Distribution describes one release file as reported by a package index.
type Distribution struct {
	Project     string
	Version     string
	Filename    string
	URL         string
	PackageType string // "sdist" or "bdist_wheel"
	PythonTag   string // e.g. "py3", "py2.py3", "cp312", "abi3"
}
