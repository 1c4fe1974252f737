package language

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Registry manages language adapters, keyed by canonical identifier with
// alias and extension lookup. Thread-safe for concurrent access.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter // canonical id → adapter
	aliases  map[string]string  // alias → canonical id
	extMap   map[string]string  // extension → canonical id
}

// NewRegistry creates a registry with the built-in adapters registered.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		aliases:  make(map[string]string),
		extMap:   make(map[string]string),
	}

	r.Register(NewGoAdapter(), "golang", "go-like")
	r.Register(NewPythonAdapter(), "py", "python3")
	r.Register(NewJavaScriptAdapter(), "js", "node")
	r.Register(NewTypeScriptAdapter(), "ts")

	return r
}

// Register adds an adapter under its ID plus any aliases. A later
// registration with the same ID replaces the earlier one, so configured
// external checkers can override built-ins. Extensions map to the adapter
// first registered for them.
func (r *Registry) Register(a Adapter, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := strings.ToLower(a.ID())
	r.adapters[id] = a

	for _, alias := range aliases {
		r.aliases[strings.ToLower(alias)] = id
	}
	for _, ext := range a.Extensions() {
		if _, exists := r.extMap[ext]; !exists {
			r.extMap[ext] = id
		}
	}
}

// Lookup returns the adapter for a language identifier or alias.
func (r *Registry) Lookup(languageID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id := strings.ToLower(strings.TrimSpace(languageID))
	if canonical, ok := r.aliases[id]; ok {
		id = canonical
	}
	if a, ok := r.adapters[id]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, languageID)
}

// LookupByPath returns the adapter registered for a file's extension.
func (r *Registry) LookupByPath(filename string) (Adapter, error) {
	r.mu.RLock()
	id, ok := r.extMap[strings.ToLower(filepath.Ext(filename))]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no adapter for %q", ErrUnsupportedLanguage, filename)
	}
	return r.Lookup(id)
}

// IDs returns the canonical identifiers of all registered adapters, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
