package language

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omegacode/fragment"
)

func TestJavaScriptAdapter_Validate(t *testing.T) {
	a := NewJavaScriptAdapter()

	t.Run("clean", func(t *testing.T) {
		diags, err := a.Validate(context.Background(), fragment.Fragment{
			Path:    "index.js",
			Content: "function add(a, b) {\n  return a + b;\n}\nmodule.exports = { add };\n",
		})
		require.NoError(t, err)
		assert.Empty(t, diags)
	})

	t.Run("unbalanced brace", func(t *testing.T) {
		diags, err := a.Validate(context.Background(), fragment.Fragment{
			Path:    "index.js",
			Content: "function add(a, b) {\n  return a + b;\n",
		})
		require.NoError(t, err)
		require.NotEmpty(t, diags)
		assert.Equal(t, SeverityError, diags[0].Severity)
	})
}

func TestTypeScriptAdapter_Validate(t *testing.T) {
	a := NewTypeScriptAdapter()
	diags, err := a.Validate(context.Background(), fragment.Fragment{
		Path:    "index.ts",
		Content: "export function add(a: number, b: number): number {\n  return a + b;\n}\n",
	})
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestEcmaReferences(t *testing.T) {
	a := NewJavaScriptAdapter()

	t.Run("relative imports produce path candidates", func(t *testing.T) {
		refs := a.References(fragment.Fragment{
			Path:    "src/app.js",
			Content: "import { add } from './math';\nconst db = require('../db/conn');\n",
		})
		require.Len(t, refs, 2)
		assert.Contains(t, refs[0].Candidates, "src/math.js")
		assert.Contains(t, refs[0].Candidates, "src/math/index.js")
		assert.Contains(t, refs[1].Candidates, "db/conn.js")
	})

	t.Run("bare specifiers map to dependency names", func(t *testing.T) {
		refs := a.References(fragment.Fragment{
			Path:    "src/app.js",
			Content: "import express from 'express';\nimport { v4 } from '@scope/pkg/sub';\n",
		})
		require.Len(t, refs, 2)
		assert.Equal(t, "express", refs[0].Dependency)
		assert.Equal(t, "@scope/pkg", refs[1].Dependency)
	})

	t.Run("builtins filtered", func(t *testing.T) {
		refs := a.References(fragment.Fragment{
			Path:    "src/app.js",
			Content: "const fs = require('fs');\nimport path from 'node:path';\n",
		})
		assert.Empty(t, refs)
	})
}

func TestRenderPackageJSON(t *testing.T) {
	out := renderPackageJSON([]fragment.Dependency{
		{Name: "express", Constraint: "^4.18"},
		{Name: "lodash"},
	})

	var parsed struct {
		Dependencies map[string]string `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &parsed))
	assert.Equal(t, "^4.18", parsed.Dependencies["express"])
	assert.Equal(t, "*", parsed.Dependencies["lodash"])
}
