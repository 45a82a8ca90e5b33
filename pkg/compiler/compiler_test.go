package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/esmlink/internal/hosttest"
	"github.com/Sumatoshi-tech/esmlink/pkg/cache"
	"github.com/Sumatoshi-tech/esmlink/pkg/compiler"
	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/manifest"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

func scenario() map[string]string {
	return map[string]string{
		"pkg/a.js":      "export default class A {}\nexport const X = \"x\";\n",
		"pkg/sub/b.js":  "export default class B {}\nexport const Y = \"y\";\n",
		"pkg/data.json": "{}\n",
		"main.js": strings.Join([]string{
			`import * as pkg from "./pkg";`,
			`import A, { X } from "./pkg/a";`,
			`export default function main() {`,
			`  return [typeof pkg.sub.b.default, pkg.sub.b.Y, typeof A, X].join(",");`,
			`}`,
		}, "\n"),
		".hidden.js":            "export const nope = 1;\n",
		"node_modules/lib/x.js": "export const vendored = 1;\n",
		"broken.js":             "import { q } from \"./missing\";\nexport const r = q;\n",
	}
}

func newCompiler(root string, opts ...compiler.Option) *compiler.Compiler {
	return compiler.New(compiler.Options{
		SourceDir:     root,
		OutDir:        filepath.Join(root, "..", filepath.Base(root)+"-out"),
		RootNamespace: "com.acme",
		Assets:        []string{"**/*.json"},
		EmitRuntime:   true,
	}, opts...)
}

func TestCompile_Scenario(t *testing.T) {
	t.Parallel()

	root := writeTree(t, scenario())

	res, err := newCompiler(root).Compile(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Artifacts))
	for _, a := range res.Artifacts {
		ids = append(ids, a.ID)
	}

	assert.Equal(t, []string{"com.acme.main", "com.acme.pkg.a", "com.acme.pkg.sub.b"}, ids)
	assert.True(t, res.Failed("com.acme.broken"))
	require.ErrorIs(t, res.Err(), diag.ErrUnresolvedSpecifier)

	assert.Equal(t, 4, res.Stats.Units)
	assert.Equal(t, 3, res.Stats.Compiled)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 1, res.Stats.Errors)

	m := res.Manifest
	require.NoError(t, m.Validate())
	assert.Equal(t, "com.acme", m.RootNamespace)
	assert.Equal(t, []string{"pkg/data.json"}, m.Assets)
	assert.Equal(t, "esmlink.runtime", m.Order[0])
	assert.Equal(t, "esmlink/runtime.js", m.Runtime.Output)

	main, ok := m.Unit("com.acme.main")
	require.True(t, ok)
	assert.Equal(t, manifest.EntryPointDefault, main.EntryPoint)
	assert.Equal(t, "com/acme/main.js", main.Output)
	assert.Equal(t, []string{"com.acme.pkg", "com.acme.pkg.a"}, main.Imports)

	a, ok := m.Unit("com.acme.pkg.a")
	require.True(t, ok)
	assert.Equal(t, []string{"X", "default"}, a.Exports)

	assert.Less(t, indexOf(m.Order, "com.acme.pkg.a"), indexOf(m.Order, "com.acme.main"))
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}

	return -1
}

func TestCompile_OutputRuns(t *testing.T) {
	t.Parallel()

	root := writeTree(t, scenario())

	res, err := newCompiler(root).Compile(context.Background())
	require.NoError(t, err)

	host := hosttest.New()
	for _, a := range res.Files() {
		require.NoError(t, host.Register(a.ID, a.Code))
	}

	exp, err := host.Run("com.acme.main")
	require.NoError(t, err)

	host.VM().Set("__main", exp)

	value, err := host.Eval("__main.default()")
	require.NoError(t, err)

	assert.Equal(t, "function,y,function,x", value.String())
	assert.Equal(t, 1, host.Lookups("com.acme.pkg.a"))
	assert.Equal(t, 1, host.Lookups("com.acme.pkg.sub.b"))
}

func TestCompile_Idempotent(t *testing.T) {
	t.Parallel()

	root := writeTree(t, scenario())
	pc := cache.NewParseCache(0)
	c := newCompiler(root, compiler.WithParseCache(pc))

	first, err := c.Compile(context.Background())
	require.NoError(t, err)

	second, err := c.Compile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Files(), second.Files())
	assert.Equal(t, first.Manifest, second.Manifest)
	assert.Positive(t, second.Stats.Cache.Hits)
}

func TestWriteAndCheck(t *testing.T) {
	t.Parallel()

	root := writeTree(t, scenario())
	c := newCompiler(root)
	manifestPath := filepath.Join(c.Options().OutDir, "manifest.yaml")

	res, err := c.Compile(context.Background())
	require.NoError(t, err)

	drifts, err := c.Check(res)
	require.NoError(t, err)
	require.Len(t, drifts, len(res.Files()))
	assert.True(t, drifts[0].Missing)

	require.NoError(t, c.Write(res, manifestPath, ""))

	data, err := os.ReadFile(manifestPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rootNamespace: com.acme")

	drifts, err = c.Check(res)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	out := filepath.Join(c.Options().OutDir, "com", "acme", "pkg", "a.js")
	require.NoError(t, os.WriteFile(out, []byte("stale\n"), 0o600))

	drifts, err = c.Check(res)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.Equal(t, "com.acme.pkg.a", drifts[0].ID)
	assert.Contains(t, drifts[0].Diff, "-stale\n")
	assert.Contains(t, drifts[0].Diff, "+(function () {\n")
}

func TestWrite_NoOutDir(t *testing.T) {
	t.Parallel()

	c := compiler.New(compiler.Options{SourceDir: t.TempDir(), RootNamespace: "a"})

	res, err := c.Compile(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Artifacts)

	require.ErrorIs(t, c.Write(res, "", ""), compiler.ErrNoOutDir)

	_, err = c.Check(res)
	require.ErrorIs(t, err, compiler.ErrNoOutDir)
}

func TestCompile_RequiresNamespace(t *testing.T) {
	t.Parallel()

	_, err := compiler.New(compiler.Options{SourceDir: t.TempDir()}).Compile(context.Background())
	require.ErrorIs(t, err, compiler.ErrMissingNamespace)
}

func TestCompile_MissingSourceDir(t *testing.T) {
	t.Parallel()

	_, err := compiler.New(compiler.Options{
		SourceDir:     filepath.Join(t.TempDir(), "absent"),
		RootNamespace: "a",
	}).Compile(context.Background())
	require.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.js": "import { b } from \"./b\";\nexport const a = () => b;\n",
		"b.js": "import { a } from \"./a\";\nexport const b = () => a;\n",
	})

	g, err := newCompiler(root).Analyze(context.Background())
	require.NoError(t, err)

	assert.Len(t, g.Units(), 2)
	assert.Len(t, g.Cycles(), 1)
}

func TestLineDiff(t *testing.T) {
	t.Parallel()

	assert.Equal(t, " a\n-b\n+c\n", compiler.LineDiff("a\nb\n", "a\nc\n"))
	assert.Equal(t, "com/acme/pkg/a.js", compiler.OutputPath("com.acme.pkg.a"))
}
