package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/esmlink/cmd/esmlink/commands"
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

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return stdout.String(), stderr.String(), err
}

var tree = map[string]string{
	"a.js":    "import { b } from \"./b\";\nexport default function a() { return b(); }\n",
	"b.js":    "import a from \"./a\";\nexport function b() { return typeof a; }\n",
	"pkg/c.js": "export const C = 1;\n",
}

func TestCompileCommand_WritesOutput(t *testing.T) {
	t.Parallel()

	src := writeTree(t, tree)
	out := filepath.Join(t.TempDir(), "build")
	manifestPath := filepath.Join(out, "manifest.json")
	metricsPath := filepath.Join(t.TempDir(), "esmlink.prom")

	stdout, _, err := execute(t, commands.NewCompileCommand(), src,
		"--namespace", "com.acme", "--out", out, "--manifest", manifestPath,
		"--metrics-file", metricsPath, "--no-color")
	require.NoError(t, err)

	assert.Contains(t, stdout, "compiled 3 unit(s)")
	assert.FileExists(t, filepath.Join(out, "com", "acme", "a.js"))
	assert.FileExists(t, filepath.Join(out, "com", "acme", "pkg", "c.js"))
	assert.FileExists(t, filepath.Join(out, "esmlink", "runtime.js"))
	assert.FileExists(t, manifestPath)
	assert.FileExists(t, metricsPath)

	_, _, err = execute(t, commands.NewCompileCommand(), src,
		"--namespace", "com.acme", "--out", out, "--check", "--no-color")
	require.NoError(t, err)
}

func TestCompileCommand_CheckReportsDrift(t *testing.T) {
	t.Parallel()

	src := writeTree(t, tree)
	out := filepath.Join(t.TempDir(), "build")

	stdout, _, err := execute(t, commands.NewCompileCommand(), src,
		"--namespace", "com.acme", "--out", out, "--check", "--no-runtime", "--no-color")
	require.ErrorIs(t, err, commands.ErrDrift)

	assert.Contains(t, stdout, "missing com/acme/a.js (com.acme.a)")
	assert.NotContains(t, stdout, "esmlink/runtime.js")
}

func TestCompileCommand_FailedUnit(t *testing.T) {
	t.Parallel()

	src := writeTree(t, map[string]string{
		"ok.js":  "export const ok = 1;\n",
		"bad.js": "import { nope } from \"./missing\";\nexport const bad = nope;\n",
	})
	out := filepath.Join(t.TempDir(), "build")

	stdout, _, err := execute(t, commands.NewCompileCommand(), src, "-n", "app", "-o", out, "--no-color")
	require.ErrorIs(t, err, commands.ErrCompileFailed)

	assert.Contains(t, stdout, "error: bad.js:1: unresolved specifier")
	assert.Contains(t, stdout, "1 unit(s) failed")
	assert.FileExists(t, filepath.Join(out, "app", "ok.js"))
	assert.NoFileExists(t, filepath.Join(out, "app", "bad.js"))
}

func TestCompileCommand_RequiresNamespace(t *testing.T) {
	t.Parallel()

	src := writeTree(t, tree)

	_, _, err := execute(t, commands.NewCompileCommand(), src, "--out", filepath.Join(t.TempDir(), "o"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root namespace is required")
}

func TestCompileCommand_ConfigFile(t *testing.T) {
	t.Parallel()

	src := writeTree(t, tree)
	out := filepath.Join(t.TempDir(), "build")
	cfgPath := filepath.Join(t.TempDir(), "esmlink.yaml")

	require.NoError(t, os.WriteFile(cfgPath, []byte(strings.Join([]string{
		"compiler:",
		"  source_dir: " + src,
		"  root_namespace: cfg.ns",
		"  out_dir: " + out,
		"manifest:",
		"  path: " + filepath.Join(out, "manifest.yaml"),
		"  format: yaml",
		"",
	}, "\n")), 0o600))

	_, _, err := execute(t, commands.NewCompileCommand(), "--config", cfgPath, "--no-color")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "manifest.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "rootNamespace: cfg.ns")
}

func TestGraphCommand(t *testing.T) {
	t.Parallel()

	src := writeTree(t, tree)

	stdout, _, err := execute(t, commands.NewGraphCommand(), src, "-n", "com.acme", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, stdout, "com.acme.b (module)")
	assert.Contains(t, stdout, "Total: 3 units")

	stdout, _, err = execute(t, commands.NewGraphCommand(), src, "-n", "com.acme", "--dot")
	require.NoError(t, err)
	assert.Contains(t, stdout, "digraph esmlink {")
	assert.Contains(t, stdout, `"com.acme.a" [color=red]`)

	stdout, _, err = execute(t, commands.NewGraphCommand(), src, "-n", "com.acme", "--order")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(stdout), 3)
}
