package language

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/smacker/go-tree-sitter/javascript"

	"omegacode/fragment"
)

// nodeBuiltins are module specifiers provided by the Node.js runtime.
var nodeBuiltins = map[string]struct{}{
	"assert": {}, "buffer": {}, "child_process": {}, "crypto": {}, "dns": {},
	"events": {}, "fs": {}, "http": {}, "https": {}, "net": {}, "os": {},
	"path": {}, "process": {}, "querystring": {}, "readline": {},
	"stream": {}, "string_decoder": {}, "timers": {}, "tls": {}, "url": {},
	"util": {}, "worker_threads": {}, "zlib": {},
}

var ecmaImportRes = []*regexp.Regexp{
	regexp.MustCompile(`import\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`),
	regexp.MustCompile(`import\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`export\s+[^'"]*?from\s+['"]([^'"]+)['"]`),
	regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`),
}

// JavaScriptAdapter validates JavaScript fragments with tree-sitter.
type JavaScriptAdapter struct{}

// NewJavaScriptAdapter creates the JavaScript language adapter.
func NewJavaScriptAdapter() *JavaScriptAdapter {
	return &JavaScriptAdapter{}
}

func (j *JavaScriptAdapter) ID() string { return "javascript" }

func (j *JavaScriptAdapter) Extensions() []string { return []string{".js", ".mjs", ".cjs"} }

func (j *JavaScriptAdapter) DefaultFileName(index int) string {
	if index == 0 {
		return "index.js"
	}
	return fmt.Sprintf("file_%d.js", index)
}

func (j *JavaScriptAdapter) DependencyFileName() string { return "package.json" }

func (j *JavaScriptAdapter) RenderDependencyFile(deps []fragment.Dependency) string {
	return renderPackageJSON(deps)
}

func (j *JavaScriptAdapter) Validate(ctx context.Context, frag fragment.Fragment) ([]Diagnostic, error) {
	return sitterDiagnostics(ctx, javascript.GetLanguage(), frag.Path, frag.Content)
}

func (j *JavaScriptAdapter) References(frag fragment.Fragment) []Reference {
	return ecmaReferences(frag, j.Extensions())
}

// renderPackageJSON emits a minimal manifest preserving first-seen
// dependency order. An empty constraint maps to "*".
func renderPackageJSON(deps []fragment.Dependency) string {
	var b strings.Builder
	b.WriteString("{\n  \"dependencies\": {\n")
	for i, dep := range deps {
		constraint := dep.Constraint
		if constraint == "" {
			constraint = "*"
		}
		fmt.Fprintf(&b, "    %q: %q", dep.Name, constraint)
		if i < len(deps)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("  }\n}\n")
	return b.String()
}

// ecmaReferences extracts import/require specifiers, shared between the
// JavaScript and TypeScript adapters.
func ecmaReferences(frag fragment.Fragment, exts []string) []Reference {
	var refs []Reference
	seen := make(map[string]struct{})

	for lineNo, line := range strings.Split(frag.Content, "\n") {
		for _, re := range ecmaImportRes {
			for _, m := range re.FindAllStringSubmatch(line, -1) {
				spec := m[1]
				if _, dup := seen[spec]; dup {
					continue
				}
				seen[spec] = struct{}{}
				if ref, ok := ecmaReference(spec, frag.Path, lineNo+1, exts); ok {
					refs = append(refs, ref)
				}
			}
		}
	}

	return refs
}

// ecmaReference classifies one module specifier.
func ecmaReference(spec, fragPath string, line int, exts []string) (Reference, bool) {
	if strings.HasPrefix(spec, "node:") {
		return Reference{}, false
	}

	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		target := path.Join(path.Dir(fragPath), spec)
		if target == ".." || strings.HasPrefix(target, "../") {
			return Reference{}, false // escapes project root; path policy is the parser's job
		}
		candidates := []string{target}
		for _, ext := range exts {
			candidates = append(candidates, target+ext, target+"/index"+ext)
		}
		return Reference{Raw: spec, Line: line, Candidates: candidates}, true
	}

	// Bare specifier: a package name, possibly scoped.
	name := spec
	if strings.HasPrefix(spec, "@") {
		parts := strings.SplitN(spec, "/", 3)
		if len(parts) >= 2 {
			name = parts[0] + "/" + parts[1]
		}
	} else {
		name, _, _ = strings.Cut(spec, "/")
	}

	if _, builtin := nodeBuiltins[name]; builtin {
		return Reference{}, false
	}

	return Reference{Raw: spec, Line: line, Dependency: name}, true
}
