package language

import (
	"context"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"omegacode/fragment"
)

// GoAdapter validates Go fragments with the standard library parser, which
// reports precise line/column positions for every syntax error.
type GoAdapter struct{}

// NewGoAdapter creates the Go language adapter.
func NewGoAdapter() *GoAdapter {
	return &GoAdapter{}
}

func (g *GoAdapter) ID() string { return "go" }

func (g *GoAdapter) Extensions() []string { return []string{".go"} }

func (g *GoAdapter) DefaultFileName(index int) string {
	if index == 0 {
		return "main.go"
	}
	return fmt.Sprintf("file_%d.go", index)
}

// DependencyFileName returns "" — Go declares dependencies in source
// imports and the module file needs a module path this pipeline does not
// invent.
func (g *GoAdapter) DependencyFileName() string { return "" }

func (g *GoAdapter) RenderDependencyFile(_ []fragment.Dependency) string { return "" }

// Validate parses the fragment and converts scanner errors into
// diagnostics.
func (g *GoAdapter) Validate(_ context.Context, frag fragment.Fragment) ([]Diagnostic, error) {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, frag.Path, frag.Content, parser.AllErrors)
	if err == nil {
		return nil, nil
	}

	if errList, ok := err.(scanner.ErrorList); ok {
		diags := make([]Diagnostic, 0, len(errList))
		for _, e := range errList {
			diags = append(diags, Diagnostic{
				Path:     frag.Path,
				Severity: SeverityError,
				Message:  e.Msg,
				Line:     e.Pos.Line,
				Column:   e.Pos.Column,
			})
		}
		return diags, nil
	}

	return []Diagnostic{{
		Path:     frag.Path,
		Severity: SeverityError,
		Message:  err.Error(),
	}}, nil
}

// References extracts third-party imports. Imports whose first path element
// has no dot are treated as standard library and skipped; Go files do not
// reference sibling files directly, so no local references are produced.
func (g *GoAdapter) References(frag fragment.Fragment) []Reference {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, frag.Path, frag.Content, parser.ImportsOnly)
	if err != nil || file == nil {
		return nil
	}

	var refs []Reference
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, `"`)
		first, _, _ := strings.Cut(importPath, "/")
		if !strings.Contains(first, ".") {
			continue // standard library
		}
		refs = append(refs, Reference{
			Raw:        importPath,
			Line:       fset.Position(imp.Pos()).Line,
			Dependency: importPath,
		})
	}
	return refs
}
