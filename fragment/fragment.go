// Package fragment defines the unit of generated source content and the
// parser that splits raw oracle output into named file fragments.
package fragment

import (
	"fmt"
	"path"
	"strings"
)

// Dependency is an external package declared by a fragment, optionally
// carrying a version constraint ("flask@>=2.0" → Name "flask",
// Constraint ">=2.0").
type Dependency struct {
	Name       string `json:"name" yaml:"name"`
	Constraint string `json:"constraint,omitempty" yaml:"constraint,omitempty"`
}

// String renders the dependency back into name@constraint form.
func (d Dependency) String() string {
	if d.Constraint == "" {
		return d.Name
	}
	return d.Name + "@" + d.Constraint
}

// ParseDependency parses a "name@constraint" declaration. The constraint is
// optional; surrounding whitespace is ignored.
func ParseDependency(raw string) (Dependency, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Dependency{}, fmt.Errorf("empty dependency declaration")
	}
	name, constraint, _ := strings.Cut(raw, "@")
	name = strings.TrimSpace(name)
	if name == "" {
		return Dependency{}, fmt.Errorf("dependency %q has no name", raw)
	}
	return Dependency{Name: name, Constraint: strings.TrimSpace(constraint)}, nil
}

// Fragment is one named unit of generated source content with a
// project-relative path.
type Fragment struct {
	Path         string       `json:"path" yaml:"path"`
	Content      string       `json:"content" yaml:"content"`
	Dependencies []Dependency `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// CleanPath normalises a declared fragment path and verifies it cannot
// escape the project root. It returns the cleaned slash-separated path.
func CleanPath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	p = strings.ReplaceAll(p, `\`, "/")
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	if path.IsAbs(p) || strings.Contains(p, ":") {
		return "", fmt.Errorf("absolute path %q not allowed", raw)
	}
	p = path.Clean(p)
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("path %q escapes project root", raw)
	}
	return p, nil
}
