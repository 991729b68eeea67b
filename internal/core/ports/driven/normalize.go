package driven

// Normalizer rewrites Python source bytes into their canonical form (§4.A):
// docstrings stripped, annotated assignments rewritten to plain assignments,
// parameter annotations stripped, and an otherwise-empty body padded with
// pass. Implementations must be idempotent: Normalize(Normalize(b)) ==
// Normalize(b).
type Normalizer interface {
	// Normalize returns the canonical UTF-8 serialization of src. A src that
	// fails to parse returns domain.ErrParseFailure.
	Normalize(src []byte) ([]byte, error)
}

// Segmenter splits a canonically-normalized file into an ordered sequence of
// segments at top-level function boundaries (§4.B): a segment per top-level
// function_definition (decorators included), and one segment per maximal run
// of non-function text between/around them. Whitespace-only runs produce no
// segment, so concatenating every segment's text, in order, yields a
// parseable program but not necessarily the input byte-for-byte.
type Segmenter interface {
	// Segment returns the ordered segment texts of normalized, a canonical
	// serialization already produced by a Normalizer.
	Segment(normalized []byte) ([]string, error)
}
