// Package manifest describes the packaging interface of a compilation: which
// units were produced, where they were written, what they export and import,
// and in which order a packager should register them.
package manifest

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// EntryPointDefault marks units whose default export is their entry point.
const EntryPointDefault = "default"

// Sentinel errors.
var (
	ErrUnknownFormat   = errors.New("unknown manifest format")
	ErrInvalidManifest = errors.New("manifest does not match schema")
)

//go:embed schema.json
var schema []byte

// Schema returns the JSON schema manifests are validated against.
func Schema() []byte {
	return bytes.Clone(schema)
}

// Manifest is the document written next to the compiled units.
type Manifest struct {
	Version       string   `json:"version"          yaml:"version"`
	RootNamespace string   `json:"rootNamespace"    yaml:"rootNamespace"`
	Runtime       Runtime  `json:"runtime"          yaml:"runtime"`
	Units         []Unit   `json:"units"            yaml:"units"`
	Assets        []string `json:"assets,omitempty" yaml:"assets,omitempty"`
	Order         []string `json:"order"            yaml:"order"`
}

// Runtime names the linkage runtime unit.
type Runtime struct {
	ID     string `json:"id"               yaml:"id"`
	Output string `json:"output,omitempty" yaml:"output,omitempty"`
}

// Unit describes one compiled module.
type Unit struct {
	ID         string   `json:"id"         yaml:"id"`
	File       string   `json:"file"       yaml:"file"`
	Output     string   `json:"output"     yaml:"output"`
	EntryPoint string   `json:"entryPoint" yaml:"entryPoint"`
	Exports    []string `json:"exports"    yaml:"exports"`
	Imports    []string `json:"imports"    yaml:"imports"`
	SHA256     string   `json:"sha256"     yaml:"sha256"`
}

// Digest returns the hex sha256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)

	return hex.EncodeToString(sum[:])
}

// Sort orders units by id so that manifests are reproducible.
func (m *Manifest) Sort() {
	sort.Slice(m.Units, func(i, j int) bool { return m.Units[i].ID < m.Units[j].ID })
	sort.Strings(m.Assets)
}

// Unit returns the unit with the given id.
func (m *Manifest) Unit(id string) (Unit, bool) {
	for _, u := range m.Units {
		if u.ID == id {
			return u, true
		}
	}

	return Unit{}, false
}

// Validate checks m against the embedded schema.
func (m *Manifest) Validate() error {
	doc, err := json.Marshal(m.normalized())
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("validate manifest: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidManifest, strings.Join(msgs, "; "))
}

// normalized replaces nil slices with empty ones so that required arrays are
// never encoded as null.
func (m *Manifest) normalized() *Manifest {
	out := *m
	if out.Order == nil {
		out.Order = []string{}
	}

	out.Units = make([]Unit, len(m.Units))
	for i, u := range m.Units {
		if u.Exports == nil {
			u.Exports = []string{}
		}

		if u.Imports == nil {
			u.Imports = []string{}
		}

		out.Units[i] = u
	}

	return &out
}

// Encode validates m and writes it to w in the given format.
func Encode(w io.Writer, m *Manifest, format string) error {
	err := m.Validate()
	if err != nil {
		return err
	}

	doc := m.normalized()

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err = enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err = enc.Encode(doc)
		if err == nil {
			err = enc.Close()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	return nil
}

// Decode reads a manifest in the given format.
func Decode(r io.Reader, format string) (*Manifest, error) {
	var m Manifest

	var err error

	switch format {
	case FormatJSON, "":
		err = json.NewDecoder(r).Decode(&m)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&m)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}

	return &m, nil
}

// FormatOf guesses the format from a file extension, defaulting to JSON.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// WriteFile encodes m into path, creating parent directories.
func WriteFile(path string, m *Manifest, format string) error {
	var buf bytes.Buffer

	err := Encode(&buf, m, format)
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}

	err = os.WriteFile(path, buf.Bytes(), 0o600)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}
