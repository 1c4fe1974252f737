package language

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// maxErrorSnippet limits how much offending source a diagnostic quotes.
const maxErrorSnippet = 60

// sitterDiagnostics parses content with the given grammar and converts
// ERROR and missing nodes into diagnostics. A fresh parser is created per
// call because tree-sitter parsers are not safe for concurrent use.
func sitterDiagnostics(ctx context.Context, lang *sitter.Language, path, content string) ([]Diagnostic, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	src := []byte(content)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	defer tree.Close()

	return collectErrorNodes(tree.RootNode(), src, path), nil
}

// collectErrorNodes walks the tree, pruning subtrees without errors.
func collectErrorNodes(root *sitter.Node, src []byte, path string) []Diagnostic {
	var diags []Diagnostic

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.IsMissing() {
			diags = append(diags, Diagnostic{
				Path:     path,
				Severity: SeverityError,
				Message:  fmt.Sprintf("missing %s", n.Type()),
				Line:     int(n.StartPoint().Row) + 1,
				Column:   int(n.StartPoint().Column) + 1,
			})
			return
		}
		if n.Type() == "ERROR" {
			diags = append(diags, Diagnostic{
				Path:     path,
				Severity: SeverityError,
				Message:  fmt.Sprintf("syntax error near %q", errorSnippet(n, src)),
				Line:     int(n.StartPoint().Row) + 1,
				Column:   int(n.StartPoint().Column) + 1,
			})
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	// The tree can carry an error flag without a reachable ERROR node.
	if len(diags) == 0 && root.HasError() {
		diags = append(diags, Diagnostic{
			Path:     path,
			Severity: SeverityError,
			Message:  "syntax error",
			Line:     1,
			Column:   1,
		})
	}

	return diags
}

// errorSnippet extracts a short excerpt of the offending source.
func errorSnippet(n *sitter.Node, src []byte) string {
	snippet := n.Content(src)
	snippet = strings.Join(strings.Fields(snippet), " ")
	if len(snippet) > maxErrorSnippet {
		snippet = snippet[:maxErrorSnippet] + "..."
	}
	return snippet
}
