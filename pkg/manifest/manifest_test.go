package manifest_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/esmlink/pkg/manifest"
)

func sample() *manifest.Manifest {
	return &manifest.Manifest{
		Version:       "1.0.0",
		RootNamespace: "com.acme",
		Runtime:       manifest.Runtime{ID: "esmlink.runtime", Output: "esmlink/runtime.js"},
		Units: []manifest.Unit{
			{
				ID:         "com.acme.pkg.b",
				File:       "pkg/b.js",
				Output:     "com/acme/pkg/b.js",
				EntryPoint: manifest.EntryPointDefault,
				Exports:    []string{"Y", "default"},
				Imports:    []string{"com.acme.pkg.a"},
				SHA256:     manifest.Digest([]byte("b")),
			},
			{
				ID:      "com.acme.pkg.a",
				File:    "pkg/a.js",
				Output:  "com/acme/pkg/a.js",
				Exports: []string{"X"},
				SHA256:  manifest.Digest([]byte("a")),
			},
		},
		Assets: []string{"pkg/data.json"},
		Order:  []string{"com.acme.pkg.a", "com.acme.pkg.b"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, sample().Validate())
}

func TestValidate_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*manifest.Manifest)
	}{
		{"bad digest", func(m *manifest.Manifest) { m.Units[0].SHA256 = "xyz" }},
		{"bad entry point", func(m *manifest.Manifest) { m.Units[0].EntryPoint = "main" }},
		{"bad namespace", func(m *manifest.Manifest) { m.RootNamespace = "com/acme" }},
		{"no runtime", func(m *manifest.Manifest) { m.Runtime.ID = "" }},
		{"duplicate order", func(m *manifest.Manifest) { m.Order = []string{"x", "x"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := sample()
			tt.mutate(m)

			require.ErrorIs(t, m.Validate(), manifest.ErrInvalidManifest)
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	for _, format := range []string{manifest.FormatJSON, manifest.FormatYAML} {
		t.Run(format, func(t *testing.T) {
			t.Parallel()

			m := sample()
			m.Sort()

			var buf bytes.Buffer
			require.NoError(t, manifest.Encode(&buf, m, format))

			got, err := manifest.Decode(&buf, format)
			require.NoError(t, err)

			assert.Equal(t, "com.acme.pkg.a", got.Units[0].ID)
			assert.Equal(t, []string{"com.acme.pkg.a"}, got.Units[1].Imports)
			assert.Empty(t, got.Units[0].Imports)
			assert.Equal(t, m.Order, got.Order)
		})
	}
}

func TestEncode_EmptyListsAreArrays(t *testing.T) {
	t.Parallel()

	m := sample()
	m.Units = nil
	m.Order = nil

	var buf bytes.Buffer
	require.NoError(t, manifest.Encode(&buf, m, manifest.FormatJSON))

	assert.Contains(t, buf.String(), `"units": []`)
	assert.Contains(t, buf.String(), `"order": []`)
}

func TestEncode_UnknownFormat(t *testing.T) {
	t.Parallel()

	err := manifest.Encode(&bytes.Buffer{}, sample(), "xml")
	require.ErrorIs(t, err, manifest.ErrUnknownFormat)

	_, err = manifest.Decode(strings.NewReader("{}"), "xml")
	require.ErrorIs(t, err, manifest.ErrUnknownFormat)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "manifest.yml")

	require.Equal(t, manifest.FormatYAML, manifest.FormatOf(path))
	require.NoError(t, manifest.WriteFile(path, sample(), manifest.FormatOf(path)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rootNamespace: com.acme")

	m, ok := sample().Unit("com.acme.pkg.a")
	assert.True(t, ok)
	assert.Equal(t, "pkg/a.js", m.File)
}

func TestSchemaIsJSON(t *testing.T) {
	t.Parallel()

	assert.True(t, bytes.HasPrefix(manifest.Schema(), []byte("{")))
	assert.Equal(t, manifest.FormatJSON, manifest.FormatOf("m.json"))
}
