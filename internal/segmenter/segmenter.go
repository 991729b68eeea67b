// Package segmenter splits a canonically-normalized Python file into the
// ordered sequence of segments defined by §4.B: a segment per top-level
// function (decorators included), and one segment for each maximal run of
// non-whitespace-only text between/around them. Concatenating every
// returned segment, in order, recovers a parseable program, but not
// necessarily the input byte-for-byte: whitespace-only gaps between
// functions are dropped rather than emitted as empty segments.
package segmenter

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

// FunctionSegmenter implements driven.Segmenter over tree-sitter-python.
type FunctionSegmenter struct{}

var _ driven.Segmenter = (*FunctionSegmenter)(nil)

// New creates a FunctionSegmenter.
func New() *FunctionSegmenter {
	return &FunctionSegmenter{}
}

type byteRange struct{ start, end uint }

// Segment returns the ordered segment texts of normalized.
func (s *FunctionSegmenter) Segment(normalized []byte) ([]string, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}

	tree := parser.Parse(normalized, nil)
	if tree == nil {
		return nil, fmt.Errorf("%w: parser returned no tree", domain.ErrParseFailure)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: syntax error", domain.ErrParseFailure)
	}

	funcs := topLevelFunctions(root)

	var segments []string
	cursor := uint(0)
	for _, fr := range funcs {
		if fr.start > cursor {
			appendIfNotBlank(&segments, normalized[cursor:fr.start])
		}
		segments = append(segments, string(normalized[fr.start:fr.end]))
		cursor = fr.end
	}
	if cursor < uint(len(normalized)) {
		appendIfNotBlank(&segments, normalized[cursor:])
	}

	return segments, nil
}

// appendIfNotBlank appends text as a segment unless it is empty or
// whitespace-only, per §4.B's between-segment rule.
func appendIfNotBlank(segments *[]string, text []byte) {
	if strings.TrimSpace(string(text)) == "" {
		return
	}
	*segments = append(*segments, string(text))
}

// topLevelFunctions returns the byte ranges of every module-level function
// definition, decorators included, in source order.
func topLevelFunctions(root *tree_sitter.Node) []byteRange {
	var out []byteRange
	count := int(root.NamedChildCount())
	for i := 0; i < count; i++ {
		child := root.NamedChild(uint(i))
		switch child.Kind() {
		case "function_definition":
			out = append(out, byteRange{child.StartByte(), child.EndByte()})
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil && def.Kind() == "function_definition" {
				out = append(out, byteRange{child.StartByte(), child.EndByte()})
			}
		}
	}
	return out
}
