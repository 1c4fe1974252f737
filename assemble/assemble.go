// Package assemble merges an accepted (or best-effort) attempt's fragments
// into a project manifest, resolves the dependency set, and writes the
// project tree plus a generation report.
package assemble

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bmatcuk/doublestar/v4"

	"omegacode/fragment"
	"omegacode/language"
	"omegacode/loop"
)

// ErrConflictingDependencyVersion indicates two fragments declared the same
// dependency with constraints that cannot be intersected. Never resolved by
// silently picking one.
var ErrConflictingDependencyVersion = errors.New("conflicting dependency version")

// Manifest is the assembled project: the accepted fragments laid out at
// their final paths plus the merged dependency set. Immutable once built.
type Manifest struct {
	Language     string                `json:"language" yaml:"language"`
	Fragments    []fragment.Fragment   `json:"fragments" yaml:"fragments"`
	Dependencies []fragment.Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Attempts     int                   `json:"attempts" yaml:"attempts"`
	Accepted     bool                  `json:"accepted" yaml:"accepted"`
}

// Assembler builds manifests from loop results.
type Assembler struct {
	adapter  language.Adapter
	excludes []string
	logger   *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithExcludes sets glob patterns (doublestar syntax) for fragment paths to
// drop from the manifest.
func WithExcludes(patterns []string) Option {
	return func(a *Assembler) {
		a.excludes = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// New creates an assembler for one language adapter.
func New(adapter language.Adapter, opts ...Option) *Assembler {
	a := &Assembler{
		adapter: adapter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble merges the loop result into a manifest. Dependencies are
// deduplicated in first-seen order; the same name with non-intersectable
// constraints fails with ErrConflictingDependencyVersion. When the language
// has a dependency file convention and dependencies were declared, the
// rendered manifest file is appended as a fragment unless the oracle
// already produced one at that path.
func (a *Assembler) Assemble(res *loop.Result) (*Manifest, error) {
	frags := a.filterExcluded(res.Fragments)

	deps, err := mergeDependencies(frags)
	if err != nil {
		return nil, err
	}

	if name := a.adapter.DependencyFileName(); name != "" && len(deps) > 0 {
		if !hasPath(frags, name) {
			frags = append(frags, fragment.Fragment{
				Path:    name,
				Content: a.adapter.RenderDependencyFile(deps),
			})
		}
	}

	a.logger.Info("project assembled",
		slog.String("language", a.adapter.ID()),
		slog.Int("fragments", len(frags)),
		slog.Int("dependencies", len(deps)),
		slog.Bool("accepted", res.Accepted))

	return &Manifest{
		Language:     a.adapter.ID(),
		Fragments:    frags,
		Dependencies: deps,
		Attempts:     len(res.Attempts),
		Accepted:     res.Accepted,
	}, nil
}

// filterExcluded drops fragments whose path matches an exclude pattern.
func (a *Assembler) filterExcluded(frags []fragment.Fragment) []fragment.Fragment {
	if len(a.excludes) == 0 {
		return frags
	}

	kept := make([]fragment.Fragment, 0, len(frags))
	for _, frag := range frags {
		if pattern := matchExclude(a.excludes, frag.Path); pattern != "" {
			a.logger.Debug("fragment excluded",
				slog.String("path", frag.Path),
				slog.String("pattern", pattern))
			continue
		}
		kept = append(kept, frag)
	}
	return kept
}

func matchExclude(patterns []string, path string) string {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return pattern
		}
	}
	return ""
}

// mergeDependencies deduplicates declared dependencies in first-seen order.
// Two constraints intersect only when they are equal or one side is empty;
// the non-empty side wins.
func mergeDependencies(frags []fragment.Fragment) ([]fragment.Dependency, error) {
	var merged []fragment.Dependency
	index := make(map[string]int)

	for _, frag := range frags {
		for _, dep := range frag.Dependencies {
			i, seen := index[dep.Name]
			if !seen {
				index[dep.Name] = len(merged)
				merged = append(merged, dep)
				continue
			}

			existing := merged[i].Constraint
			switch {
			case existing == dep.Constraint:
			case existing == "":
				merged[i].Constraint = dep.Constraint
			case dep.Constraint == "":
			default:
				return nil, fmt.Errorf("%w: %s declared as %q and %q",
					ErrConflictingDependencyVersion, dep.Name, existing, dep.Constraint)
			}
		}
	}
	return merged, nil
}

func hasPath(frags []fragment.Fragment, path string) bool {
	for _, frag := range frags {
		if frag.Path == path {
			return true
		}
	}
	return false
}
