// Package validate runs per-fragment syntax checks on a bounded worker
// pool and merges the results into a single deterministic verdict.
package validate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"omegacode/fragment"
	"omegacode/language"
)

// checkerSlots rate-limits syntax-checker invocations process-wide.
// Checkers are CPU-bound (or spawn external processes), so the pool is
// sized to the available cores and shared across concurrent requests.
var checkerSlots = semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))

// Verdict is the pass/fail result of validating one candidate's fragments.
// A verdict with any error-severity diagnostic is never passed.
type Verdict struct {
	Passed      bool                  `json:"passed" yaml:"passed"`
	Diagnostics []language.Diagnostic `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// Resolver maps a file name to the adapter registered for its extension.
// *language.Registry implements it.
type Resolver interface {
	LookupByPath(filename string) (language.Adapter, error)
}

// Validator coordinates adapter syntax checks and the cross-fragment
// reference check.
type Validator struct {
	resolver     Resolver
	checkTimeout time.Duration
	logger       *slog.Logger
}

// New creates a validator. resolver routes fragments whose extension does
// not belong to the target language to the adapter registered for them; nil
// leaves such fragments unchecked. checkTimeout bounds each per-fragment
// check; zero means 30s.
func New(resolver Resolver, checkTimeout time.Duration, logger *slog.Logger) *Validator {
	if checkTimeout == 0 {
		checkTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{resolver: resolver, checkTimeout: checkTimeout, logger: logger}
}

// Validate checks every fragment, runs the cross-fragment reference check,
// and merges all diagnostics into one sorted verdict. A candidate may mix
// languages: each fragment is checked with the adapter its extension maps
// to, so a README.md in a Python project is never parsed with the Python
// grammar. Fragments are independent units and are checked concurrently;
// the merge imposes a deterministic order afterwards. The returned error is
// non-nil only when ctx is cancelled.
func (v *Validator) Validate(ctx context.Context, frags []fragment.Fragment, target language.Adapter) (Verdict, error) {
	adapters := make([]language.Adapter, len(frags))
	for i, frag := range frags {
		adapters[i] = v.adapterFor(frag.Path, target)
	}

	perFragment := make([][]language.Diagnostic, len(frags))

	g, gctx := errgroup.WithContext(ctx)
	for i, frag := range frags {
		i, frag := i, frag
		g.Go(func() error {
			if err := checkerSlots.Acquire(gctx, 1); err != nil {
				return err
			}
			defer checkerSlots.Release(1)

			perFragment[i] = v.checkFragment(gctx, frag, adapters[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Verdict{}, err
	}

	var diags []language.Diagnostic
	for _, d := range perFragment {
		diags = append(diags, d...)
	}
	diags = append(diags, crossCheck(frags, adapters)...)

	sortDiagnostics(diags)

	return Verdict{
		Passed:      !hasError(diags),
		Diagnostics: diags,
	}, nil
}

// adapterFor picks the adapter that should syntax-check one fragment.
// Fragments with the target language's extensions use the target adapter,
// fragments with another registered extension use that language's adapter,
// and anything else (README.md, data files) gets no syntax check.
func (v *Validator) adapterFor(path string, target language.Adapter) language.Adapter {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range target.Extensions() {
		if ext == e {
			return target
		}
	}
	if v.resolver != nil {
		if a, err := v.resolver.LookupByPath(path); err == nil {
			return a
		}
	}
	return nil
}

// checkFragment runs one adapter check under the per-check deadline. Check
// failures and timeouts become synthetic error diagnostics so one stuck
// checker cannot hang the merge. A nil adapter skips the syntax check but
// keeps the empty-content warning.
func (v *Validator) checkFragment(ctx context.Context, frag fragment.Fragment, adapter language.Adapter) []language.Diagnostic {
	var diags []language.Diagnostic

	start := time.Now()
	if adapter != nil {
		checkCtx, cancel := context.WithTimeout(ctx, v.checkTimeout)
		defer cancel()

		var err error
		diags, err = adapter.Validate(checkCtx, frag)

		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded):
			v.logger.Warn("syntax check timed out",
				slog.String("path", frag.Path),
				slog.Duration("timeout", v.checkTimeout))
			diags = append(diags, language.Diagnostic{
				Path:     frag.Path,
				Severity: language.SeverityError,
				Message:  fmt.Sprintf("syntax check timed out after %s", v.checkTimeout),
			})
		default:
			v.logger.Warn("syntax check failed",
				slog.String("path", frag.Path),
				slog.String("error", err.Error()))
			diags = append(diags, language.Diagnostic{
				Path:     frag.Path,
				Severity: language.SeverityError,
				Message:  fmt.Sprintf("syntax check failed: %v", err),
			})
		}
	}

	if strings.TrimSpace(frag.Content) == "" {
		diags = append(diags, language.Diagnostic{
			Path:     frag.Path,
			Severity: language.SeverityWarning,
			Message:  "fragment has no content",
		})
	}

	v.logger.Debug("fragment checked",
		slog.String("path", frag.Path),
		slog.Int("diagnostics", len(diags)),
		slog.Duration("took", time.Since(start)))

	return diags
}

// crossCheck verifies every project-local or package reference resolves to
// a declared fragment path or a declared dependency. Unresolved references
// are whole-candidate errors with no fragment-local location. References
// are extracted with each fragment's own adapter; unchecked fragments still
// contribute their path to the resolution set.
func crossCheck(frags []fragment.Fragment, adapters []language.Adapter) []language.Diagnostic {
	paths := make(map[string]struct{}, len(frags))
	deps := make(map[string]struct{})
	for _, frag := range frags {
		paths[frag.Path] = struct{}{}
		for _, dep := range frag.Dependencies {
			deps[dep.Name] = struct{}{}
		}
	}

	var diags []language.Diagnostic
	for i, frag := range frags {
		if adapters[i] == nil {
			continue
		}
		for _, ref := range adapters[i].References(frag) {
			if resolves(ref, paths, deps) {
				continue
			}
			diags = append(diags, language.Diagnostic{
				Severity: language.SeverityError,
				Message: fmt.Sprintf("unresolved reference %q in %s: no matching fragment or declared dependency",
					ref.Raw, frag.Path),
			})
		}
	}
	return diags
}

func resolves(ref language.Reference, paths, deps map[string]struct{}) bool {
	for _, candidate := range ref.Candidates {
		if _, ok := paths[candidate]; ok {
			return true
		}
	}
	if ref.Dependency != "" {
		if _, ok := deps[ref.Dependency]; ok {
			return true
		}
	}
	return false
}

// sortDiagnostics orders by fragment path, severity (errors first), then
// location. Whole-candidate diagnostics (empty path) sort first.
func sortDiagnostics(diags []language.Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Severity != b.Severity {
			return a.Severity.Rank() < b.Severity.Rank()
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Message < b.Message
	})
}

func hasError(diags []language.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == language.SeverityError {
			return true
		}
	}
	return false
}
