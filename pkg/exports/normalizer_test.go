package exports_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/exports"
	"github.com/Sumatoshi-tech/esmlink/pkg/graph"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
	"github.com/Sumatoshi-tech/esmlink/pkg/jsparse"
)

func normalizer(t *testing.T, files map[string]string) (*exports.Normalizer, *graph.Graph) {
	t.Helper()

	src := make([]graph.Source, 0, len(files))
	for path, content := range files {
		src = append(src, graph.Source{Path: path, Content: []byte(content)})
	}

	builder := graph.NewBuilder(graph.Config{RootNamespace: "app"}, jsparse.NewParser())
	require.NoError(t, builder.Discover(context.Background(), src))

	g := builder.Freeze()
	require.NoError(t, g.Resolve(context.Background()))
	require.NoError(t, g.Diagnostics().Err())

	return exports.New(g, g.Diagnostics(), nil), g
}

func kinds(rec *importmodel.ExportRecord) map[string]importmodel.ExportKind {
	out := make(map[string]importmodel.ExportKind, rec.Len())
	for _, name := range rec.Names() {
		desc, _ := rec.Get(name)
		out[name] = desc.Kind
	}

	return out
}

const moduleA = "export default class A {}\nexport const X = 1;\nexport function f() {}\n"

func TestLocalExports(t *testing.T) {
	t.Parallel()

	n, g := normalizer(t, map[string]string{"a.js": moduleA})

	rec, err := n.Normalize("app.a")
	require.NoError(t, err)

	assert.Equal(t, []string{"default", "X", "f"}, rec.Names())
	assert.Equal(t, map[string]importmodel.ExportKind{
		"default": importmodel.ExportClass,
		"X":       importmodel.ExportValue,
		"f":       importmodel.ExportFunction,
	}, kinds(rec))

	desc, _ := rec.Get("default")
	assert.Equal(t, "A", desc.DeclaredName)

	unit, _ := g.Unit("app.a")
	assert.Same(t, rec, unit.Exports)
}

func TestStarSkipsDefault(t *testing.T) {
	t.Parallel()

	n, _ := normalizer(t, map[string]string{
		"a.js": moduleA,
		"b.js": "export * from \"./a\";\n",
	})

	rec, err := n.Normalize("app.b")
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "f"}, rec.SortedNames())

	desc, _ := rec.Get("X")
	assert.Equal(t, importmodel.ExportReExportAll, desc.Kind)
	assert.Equal(t, "app.a", desc.From)
}

func TestExplicitDefaultReExport(t *testing.T) {
	t.Parallel()

	n, _ := normalizer(t, map[string]string{
		"a.js": moduleA,
		"b.js": "export { default } from \"./a\";\nexport * from \"./a\";\n",
	})

	rec, err := n.Normalize("app.b")
	require.NoError(t, err)

	assert.Equal(t, []string{"X", "default", "f"}, rec.SortedNames())

	desc, _ := rec.Get("default")
	assert.Equal(t, importmodel.ExportReExport, desc.Kind)
	assert.Equal(t, "default", desc.DeclaredName)
}

func TestLocalWinsOverStar(t *testing.T) {
	t.Parallel()

	n, g := normalizer(t, map[string]string{
		"a.js": moduleA,
		"b.js": "export * from \"./a\";\nexport const X = 2;\n",
	})

	rec, err := n.Normalize("app.b")
	require.NoError(t, err)

	desc, _ := rec.Get("X")
	assert.Equal(t, importmodel.ExportValue, desc.Kind)
	assert.Empty(t, desc.From)

	entries := g.Diagnostics().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, diag.SeverityWarning, entries[0].Severity)
	require.ErrorIs(t, entries[0].Err, diag.ErrShadowed)
}

func TestStarStarCollision(t *testing.T) {
	t.Parallel()

	n, g := normalizer(t, map[string]string{
		"a.js": "export const X = 1;\n",
		"c.js": "export const X = 3;\n",
		"b.js": "export * from \"./a\";\nexport * from \"./c\";\n",
	})

	_, err := n.Normalize("app.b")
	require.ErrorIs(t, err, diag.ErrDuplicateExportName)
	assert.True(t, g.Diagnostics().Failed("app.b"))
	assert.False(t, g.Diagnostics().Failed("app.a"))
}

func TestStarSameBindingTwice(t *testing.T) {
	t.Parallel()

	n, _ := normalizer(t, map[string]string{
		"a.js": "export const X = 1;\n",
		"c.js": "export * from \"./a\";\n",
		"b.js": "export * from \"./a\";\nexport * from \"./c\";\n",
	})

	rec, err := n.Normalize("app.b")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, rec.Names())
}

func TestStarCycle(t *testing.T) {
	t.Parallel()

	n, g := normalizer(t, map[string]string{
		"a.js": "export * from \"./b\";\nexport const A = 1;\n",
		"b.js": "export * from \"./a\";\nexport const B = 2;\n",
	})

	recA, err := n.Normalize("app.a")
	require.NoError(t, err)

	recB, err := n.Normalize("app.b")
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, recA.SortedNames())
	assert.Equal(t, []string{"A", "B"}, recB.SortedNames())
	assert.Zero(t, g.Diagnostics().Len())
}

func TestPackageStar(t *testing.T) {
	t.Parallel()

	n, _ := normalizer(t, map[string]string{
		"lib/a.js":     "export const a = 1;\n",
		"lib/sub/b.js": "export const b = 2;\n",
		"index.js":     "export * from \"./lib\";\n",
	})

	rec, err := n.Normalize("app.index")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "sub"}, rec.SortedNames())

	desc, _ := rec.Get("sub")
	assert.Equal(t, "app.lib", desc.From)
}

func TestExportOfImportBinding(t *testing.T) {
	t.Parallel()

	n, _ := normalizer(t, map[string]string{
		"a.js": moduleA,
		"b.js": "import A, { X as Y } from \"./a\";\nimport * as ns from \"./a\";\nexport { A, Y, ns };\n",
	})

	rec, err := n.Normalize("app.b")
	require.NoError(t, err)

	for name, remote := range map[string]string{"A": "default", "Y": "X", "ns": "*"} {
		desc, ok := rec.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, importmodel.ExportReExport, desc.Kind, name)
		assert.Equal(t, "app.a", desc.From, name)
		assert.Equal(t, remote, desc.DeclaredName, name)
	}
}

func TestDuplicateExplicitExport(t *testing.T) {
	t.Parallel()

	n, _ := normalizer(t, map[string]string{
		"a.js": "export const X = 1;\nexport { X };\n",
	})

	_, err := n.Normalize("app.a")
	require.ErrorIs(t, err, diag.ErrDuplicateExportName)
	assert.Contains(t, err.Error(), "a.js:2")
}

func TestNormalizeIsMemoized(t *testing.T) {
	t.Parallel()

	n, _ := normalizer(t, map[string]string{"a.js": moduleA})

	first, err := n.Normalize("app.a")
	require.NoError(t, err)

	second, err := n.Normalize("app.a")
	require.NoError(t, err)

	assert.Same(t, first, second)

	_, err = n.Normalize("app.missing")
	require.ErrorIs(t, err, exports.ErrUnknownModule)
}
