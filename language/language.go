// Package language provides per-target-language adapters for validating
// generated code fragments and for file-layout conventions. Adapters are
// looked up through a registry so the rest of the pipeline never branches
// on language identifiers.
package language

import (
	"context"
	"errors"

	"omegacode/fragment"
)

// ErrUnsupportedLanguage indicates no adapter is registered for the
// requested language identifier. This is a caller error and is never
// retried.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Severity classifies a diagnostic. Any error-severity diagnostic fails
// validation; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Rank orders severities for sorting, most severe first.
func (s Severity) Rank() int {
	if s == SeverityError {
		return 0
	}
	return 1
}

// Diagnostic is one structured finding about a fragment. An empty Path
// means the finding concerns the candidate as a whole rather than a single
// fragment. Line and Column are 1-based; zero means no location.
type Diagnostic struct {
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
	Severity Severity `json:"severity" yaml:"severity"`
	Message  string   `json:"message" yaml:"message"`
	Line     int      `json:"line,omitempty" yaml:"line,omitempty"`
	Column   int      `json:"column,omitempty" yaml:"column,omitempty"`
}

// Reference is an import/include statement extracted from a fragment, used
// by the cross-fragment resolution check. A reference resolves when any
// candidate path is among the declared fragment paths, or when its
// dependency name is declared by some fragment. Adapters never produce
// references with neither field set.
type Reference struct {
	// Raw is the reference as written in the source.
	Raw string

	// Line is the 1-based line of the statement, 0 if unknown.
	Line int

	// Candidates lists project-relative paths that would satisfy the
	// reference. Empty when only a declared dependency can satisfy it.
	Candidates []string

	// Dependency is the external package name that would satisfy the
	// reference. Empty for strictly-local references.
	Dependency string
}

// Adapter is the per-language strategy: syntax validation, reference
// extraction, and layout conventions. Implementations must be safe for
// concurrent use; the validator runs fragments in parallel.
type Adapter interface {
	// ID returns the canonical language identifier (e.g. "go", "python").
	ID() string

	// Extensions returns the file extensions this language uses, with
	// leading dot.
	Extensions() []string

	// Validate runs the language's syntax check against one fragment and
	// returns its diagnostics. A non-nil error means the check itself could
	// not run, not that the fragment is invalid.
	Validate(ctx context.Context, frag fragment.Fragment) ([]Diagnostic, error)

	// References extracts import/include statements for the cross-fragment
	// resolution check. Language built-ins are filtered out.
	References(frag fragment.Fragment) []Reference

	// DefaultFileName returns the path used when the oracle omits one.
	DefaultFileName(index int) string

	// DependencyFileName returns the conventional dependency manifest path,
	// or "" when the language declares dependencies in source only.
	DependencyFileName() string

	// RenderDependencyFile renders the merged dependency set in the
	// language's manifest format. Only called when DependencyFileName
	// returns a non-empty path.
	RenderDependencyFile(deps []fragment.Dependency) string
}
