package language

import (
	"context"
	"fmt"

	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"omegacode/fragment"
)

// TypeScriptAdapter validates TypeScript fragments with tree-sitter. It
// shares reference extraction and the package.json convention with the
// JavaScript adapter.
type TypeScriptAdapter struct{}

// NewTypeScriptAdapter creates the TypeScript language adapter.
func NewTypeScriptAdapter() *TypeScriptAdapter {
	return &TypeScriptAdapter{}
}

func (t *TypeScriptAdapter) ID() string { return "typescript" }

func (t *TypeScriptAdapter) Extensions() []string { return []string{".ts"} }

func (t *TypeScriptAdapter) DefaultFileName(index int) string {
	if index == 0 {
		return "index.ts"
	}
	return fmt.Sprintf("file_%d.ts", index)
}

func (t *TypeScriptAdapter) DependencyFileName() string { return "package.json" }

func (t *TypeScriptAdapter) RenderDependencyFile(deps []fragment.Dependency) string {
	return renderPackageJSON(deps)
}

func (t *TypeScriptAdapter) Validate(ctx context.Context, frag fragment.Fragment) ([]Diagnostic, error) {
	return sitterDiagnostics(ctx, typescript.GetLanguage(), frag.Path, frag.Content)
}

func (t *TypeScriptAdapter) References(frag fragment.Fragment) []Reference {
	return ecmaReferences(frag, []string{".ts", ".js"})
}
