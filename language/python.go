package language

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/smacker/go-tree-sitter/python"

	"omegacode/fragment"
)

// pythonStdlib holds top-level standard library modules that never need a
// declared dependency. Not exhaustive — covers what generated projects
// commonly import.
var pythonStdlib = map[string]struct{}{
	"abc": {}, "argparse": {}, "asyncio": {}, "base64": {}, "collections": {},
	"contextlib": {}, "copy": {}, "csv": {}, "dataclasses": {}, "datetime": {},
	"decimal": {}, "enum": {}, "functools": {}, "glob": {}, "hashlib": {},
	"heapq": {}, "html": {}, "http": {}, "io": {}, "itertools": {}, "json": {},
	"logging": {}, "math": {}, "os": {}, "pathlib": {}, "pickle": {},
	"queue": {}, "random": {}, "re": {}, "shutil": {}, "socket": {},
	"sqlite3": {}, "string": {}, "subprocess": {}, "sys": {}, "tempfile": {},
	"threading": {}, "time": {}, "traceback": {}, "types": {}, "typing": {},
	"unittest": {}, "urllib": {}, "uuid": {}, "warnings": {}, "xml": {},
}

var (
	pythonFromRe   = regexp.MustCompile(`^\s*from\s+(\.*[\w.]*)\s+import\s+`)
	pythonImportRe = regexp.MustCompile(`^\s*import\s+([\w.]+(?:\s*,\s*[\w.]+)*)`)
)

// PythonAdapter validates Python fragments with tree-sitter.
type PythonAdapter struct{}

// NewPythonAdapter creates the Python language adapter.
func NewPythonAdapter() *PythonAdapter {
	return &PythonAdapter{}
}

func (p *PythonAdapter) ID() string { return "python" }

func (p *PythonAdapter) Extensions() []string { return []string{".py"} }

func (p *PythonAdapter) DefaultFileName(index int) string {
	if index == 0 {
		return "main.py"
	}
	return fmt.Sprintf("file_%d.py", index)
}

func (p *PythonAdapter) DependencyFileName() string { return "requirements.txt" }

// RenderDependencyFile emits pip requirements format. A bare version
// constraint like "2.0.1" is pinned with ==.
func (p *PythonAdapter) RenderDependencyFile(deps []fragment.Dependency) string {
	var b strings.Builder
	for _, dep := range deps {
		switch {
		case dep.Constraint == "":
			b.WriteString(dep.Name)
		case strings.ContainsAny(dep.Constraint[:1], "<>=!~"):
			b.WriteString(dep.Name + dep.Constraint)
		default:
			b.WriteString(dep.Name + "==" + dep.Constraint)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (p *PythonAdapter) Validate(ctx context.Context, frag fragment.Fragment) ([]Diagnostic, error) {
	return sitterDiagnostics(ctx, python.GetLanguage(), frag.Path, frag.Content)
}

// References extracts import statements line by line. Relative imports
// resolve against the fragment's directory; absolute imports may be
// satisfied by a project file at the root or by a declared dependency.
func (p *PythonAdapter) References(frag fragment.Fragment) []Reference {
	var refs []Reference

	for lineNo, line := range strings.Split(frag.Content, "\n") {
		if m := pythonFromRe.FindStringSubmatch(line); m != nil {
			if ref, ok := p.fromReference(m[1], frag.Path, lineNo+1); ok {
				refs = append(refs, ref)
			}
			continue
		}
		if m := pythonImportRe.FindStringSubmatch(line); m != nil {
			for _, mod := range strings.Split(m[1], ",") {
				if ref, ok := p.moduleReference(strings.TrimSpace(mod), lineNo+1); ok {
					refs = append(refs, ref)
				}
			}
		}
	}

	return refs
}

// fromReference handles "from X import ..." where X may be relative.
func (p *PythonAdapter) fromReference(module, fragPath string, line int) (Reference, bool) {
	dots := 0
	for dots < len(module) && module[dots] == '.' {
		dots++
	}
	if dots == 0 {
		return p.moduleReference(module, line)
	}

	// Relative import: one dot is the fragment's package, each extra dot
	// walks up one level.
	dir := path.Dir(fragPath)
	if dir == "." {
		dir = ""
	}
	for i := 1; i < dots; i++ {
		if dir == "" {
			return Reference{}, false // escapes the project; the syntax check already ran
		}
		dir = path.Dir(dir)
		if dir == "." {
			dir = ""
		}
	}

	rest := strings.ReplaceAll(module[dots:], ".", "/")
	target := rest
	if dir != "" {
		target = path.Join(dir, rest)
	}

	if rest == "" {
		// "from . import x" targets the package itself.
		target = path.Join(dir, "__init__.py")
		return Reference{Raw: module, Line: line, Candidates: []string{target}}, true
	}

	return Reference{
		Raw:  module,
		Line: line,
		Candidates: []string{
			target + ".py",
			target + "/__init__.py",
		},
	}, true
}

// moduleReference handles absolute module names.
func (p *PythonAdapter) moduleReference(module string, line int) (Reference, bool) {
	top, _, _ := strings.Cut(module, ".")
	if top == "" {
		return Reference{}, false
	}
	if _, std := pythonStdlib[top]; std {
		return Reference{}, false
	}

	modPath := strings.ReplaceAll(module, ".", "/")
	return Reference{
		Raw:  module,
		Line: line,
		Candidates: []string{
			modPath + ".py",
			modPath + "/__init__.py",
			top + ".py",
			top + "/__init__.py",
		},
		Dependency: top,
	}, true
}
