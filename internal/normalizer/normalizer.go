// Package normalizer rewrites Python source into its canonical form
// (§4.A): docstrings removed, annotated assignments rewritten to plain
// assignments, parameter-type annotations stripped, and an
// otherwise-empty body padded with pass. Return-type annotations
// (the "-> T" after a parameter list) are left untouched.
package normalizer

import (
	"bytes"
	"fmt"
	"sort"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/custodia-labs/pkgdex/internal/core/domain"
	"github.com/custodia-labs/pkgdex/internal/core/ports/driven"
)

// PythonNormalizer implements driven.Normalizer over tree-sitter-python.
type PythonNormalizer struct{}

var _ driven.Normalizer = (*PythonNormalizer)(nil)

// New creates a PythonNormalizer.
func New() *PythonNormalizer {
	return &PythonNormalizer{}
}

// edit is a byte-range replacement applied against the original source:
// node boundaries come from StartByte/EndByte and text is never re-printed
// from a rebuilt AST.
type edit struct {
	start, end  uint
	replacement []byte
}

// Normalize returns the canonical serialization of src.
func (n *PythonNormalizer) Normalize(src []byte) ([]byte, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}

	tree := parser.Parse(src, nil)
	if tree == nil {
		return nil, fmt.Errorf("%w: parser returned no tree", domain.ErrParseFailure)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: syntax error", domain.ErrParseFailure)
	}

	var edits []edit
	stripDocstrings(root, src, &edits)
	stripAnnotations(root, src, &edits)
	edits = append(edits, padEmptyBodies(root, src, edits)...)

	return applyEdits(src, edits), nil
}

// stripDocstrings walks every node in the tree and deletes any bare-string
// expression statement it finds, wherever it occurs: leading or trailing in
// a module/function/class body, inside an if/try/except/for/while/with
// block, anywhere. This mirrors the reference normalizer's visit_Expr,
// which strips every standalone string-literal statement regardless of
// position or enclosing construct.
func stripDocstrings(node *tree_sitter.Node, src []byte, edits *[]edit) {
	if node.Kind() == "expression_statement" && isDocstring(node) {
		*edits = append(*edits, deleteStatement(node, src))
	}

	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		stripDocstrings(node.NamedChild(uint(i)), src, edits)
	}
}

// bodyStatements returns the direct statement list of an indented block (the
// generic body of a function, class, if, try, except, for, while, or with
// statement), or nil if node is not a block. A module's top-level statement
// list is deliberately excluded: the reference normalizer pads function,
// class, if, except, and try bodies but has no module-level equivalent, so
// a file that normalizes down to nothing stays empty rather than becoming a
// lone "pass".
func bodyStatements(node *tree_sitter.Node) []*tree_sitter.Node {
	if node.Kind() != "block" {
		return nil
	}
	return namedChildren(node)
}

func namedChildren(node *tree_sitter.Node) []*tree_sitter.Node {
	count := int(node.NamedChildCount())
	out := make([]*tree_sitter.Node, count)
	for i := 0; i < count; i++ {
		out[i] = node.NamedChild(uint(i))
	}
	return out
}

// isDocstring reports whether stmt is an expression statement consisting
// solely of a string literal.
func isDocstring(stmt *tree_sitter.Node) bool {
	if stmt.Kind() != "expression_statement" {
		return false
	}
	if stmt.NamedChildCount() != 1 {
		return false
	}
	return stmt.NamedChild(0).Kind() == "string"
}

// deleteStatement removes a statement and the newline that follows it. When
// the statement opens its own line and its block keeps other statements,
// the line's indentation goes too, so no stray indent is left in front of
// the next line. In a block made only of bare strings (which padEmptyBodies
// fills with pass, keyed by each statement's start) the edit starts at the
// statement itself and instead takes the next line's matching indentation.
func deleteStatement(stmt *tree_sitter.Node, src []byte) edit {
	start, end := stmt.StartByte(), stmt.EndByte()
	if end < uint(len(src)) && src[end] == '\n' {
		end++
	}
	lineStart := start
	for lineStart > 0 && (src[lineStart-1] == ' ' || src[lineStart-1] == '\t') {
		lineStart--
	}
	if lineStart == 0 || src[lineStart-1] == '\n' {
		onlyStrings := true
		for _, sib := range namedChildren(stmt.Parent()) {
			onlyStrings = onlyStrings && isDocstring(sib)
		}
		if !onlyStrings {
			start = lineStart
		} else if indent := src[lineStart:start]; bytes.HasPrefix(src[end:], indent) {
			end += uint(len(indent))
		}
	}
	return edit{start: start, end: end, replacement: nil}
}

// deleteClause removes an entire clause (e.g. a finally_clause) along with
// its leading indentation and the newline that follows it, so that dropping
// the clause doesn't leave a blank indented line behind.
func deleteClause(clause *tree_sitter.Node, src []byte) edit {
	start := clause.StartByte()
	for start > 0 && (src[start-1] == ' ' || src[start-1] == '\t') {
		start--
	}
	end := clause.EndByte()
	for end < uint(len(src)) && src[end] == '\n' {
		end++
		break
	}
	return edit{start: start, end: end, replacement: nil}
}

// stripAnnotations rewrites annotated assignments that carry a value to
// plain assignments (an annotated assignment without a value is left as
// written) and strips parameter-type annotations, leaving return-type
// annotations untouched.
func stripAnnotations(node *tree_sitter.Node, src []byte, edits *[]edit) {
	switch node.Kind() {
	case "assignment":
		if typ := node.ChildByFieldName("type"); typ != nil {
			left := node.ChildByFieldName("left")
			right := node.ChildByFieldName("right")
			if right != nil {
				repl := append(append(append([]byte{}, nodeText(left, src)...), []byte(" = ")...), nodeText(right, src)...)
				*edits = append(*edits, edit{start: node.StartByte(), end: node.EndByte(), replacement: repl})
			}
		}
	case "typed_parameter":
		name := node.NamedChild(0)
		if name != nil {
			*edits = append(*edits, edit{start: node.StartByte(), end: node.EndByte(), replacement: nodeText(name, src)})
		}
	case "typed_default_parameter":
		name := node.ChildByFieldName("name")
		value := node.ChildByFieldName("value")
		if name != nil && value != nil {
			repl := append(append(append([]byte{}, nodeText(name, src)...), []byte("=")...), nodeText(value, src)...)
			*edits = append(*edits, edit{start: node.StartByte(), end: node.EndByte(), replacement: repl})
		}
	}

	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		stripAnnotations(node.NamedChild(uint(i)), src, edits)
	}
}

func nodeText(node *tree_sitter.Node, src []byte) []byte {
	return src[node.StartByte():node.EndByte()]
}

// padEmptyBodies finds every block (the body of a function, class, if, try,
// except, for, while, or with statement) left with zero statements by edits
// already collected and inserts a pass statement in its place, so the result
// is always syntactically valid. A body only ever becomes empty here because
// every one of its statements was a bare-string expression statement deleted
// above; "finally" blocks are excluded per the normalizer's own rule that
// they are never padded, and a module's own top-level statement list is
// never padded (see bodyStatements).
func padEmptyBodies(node *tree_sitter.Node, src []byte, existing []edit) []edit {
	deleted := make(map[uint]bool, len(existing))
	deletedSpanEnd := make(map[uint]uint, len(existing))
	for _, e := range existing {
		if e.replacement == nil {
			deleted[e.start] = true
			deletedSpanEnd[e.start] = e.end
		}
	}

	var out []edit
	var walk func(n *tree_sitter.Node, parent *tree_sitter.Node)
	walk = func(n *tree_sitter.Node, parent *tree_sitter.Node) {
		if stmts := bodyStatements(n); stmts != nil && len(stmts) > 0 {
			allDeleted := true
			for _, s := range stmts {
				if !deleted[s.StartByte()] {
					allDeleted = false
					break
				}
			}
			isFinallyBody := n.Kind() == "block" && parent != nil && parent.Kind() == "finally_clause"
			switch {
			case allDeleted && isFinallyBody:
				// An emptied-out finally clause is dropped entirely rather
				// than padded: the reference normalizer's Try handling only
				// ever pads the try body itself, never finalbody, and
				// unparsing a Try with an empty finalbody omits the clause.
				out = append(out, deleteClause(parent, src))
			case allDeleted:
				// Replace the last deleted statement's own span (indentation
				// before it is untouched, so no indent needs repeating here)
				// rather than inserting a separate edit at its boundary:
				// that would overlap the statement's own delete edit and
				// corrupt both.
				last := stmts[len(stmts)-1]
				out = append(out, edit{
					start:       last.StartByte(),
					end:         deletedSpanEnd[last.StartByte()],
					replacement: []byte("pass\n"),
				})
			}
		}
		count := int(n.NamedChildCount())
		for i := 0; i < count; i++ {
			walk(n.NamedChild(uint(i)), n)
		}
	}
	walk(node, nil)
	return out
}

// applyEdits splices src according to edits, applied in descending order of
// start offset so earlier offsets stay valid as later ones are consumed.
// Edits fully contained within a larger edit (e.g. a statement delete inside
// a clause delete, when a finally block's only statement is stripped and the
// whole clause is then dropped) are discarded first: splicing both against
// the same original offsets would double-count the overlap.
func applyEdits(src []byte, edits []edit) []byte {
	edits = dropNestedEdits(edits)
	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })

	out := append([]byte{}, src...)
	for _, e := range edits {
		tail := append([]byte{}, out[e.end:]...)
		out = append(out[:e.start:e.start], e.replacement...)
		out = append(out, tail...)
	}
	return out
}

// dropNestedEdits first collapses edits that share the exact same
// [start,end) span to a single edit (padEmptyBodies turns a statement's
// plain delete into a "pass\n" replacement over that same span, so both
// land in the edit list; the replacement wins), then removes any
// remaining edit whose span is fully contained within another edit's
// span, keeping only the outermost edit for a given region.
func dropNestedEdits(edits []edit) []edit {
	bySpan := make(map[[2]uint]edit, len(edits))
	var order [][2]uint
	for _, e := range edits {
		key := [2]uint{e.start, e.end}
		if existing, ok := bySpan[key]; !ok {
			bySpan[key] = e
			order = append(order, key)
		} else if existing.replacement == nil && e.replacement != nil {
			bySpan[key] = e
		}
	}
	deduped := make([]edit, 0, len(order))
	for _, key := range order {
		deduped = append(deduped, bySpan[key])
	}

	out := make([]edit, 0, len(deduped))
	for i, e := range deduped {
		contained := false
		for j, other := range deduped {
			if i == j {
				continue
			}
			if other.start <= e.start && e.end <= other.end && (other.start < e.start || other.end > e.end) {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, e)
		}
	}
	return out
}
