package compiler

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/esmlink/pkg/manifest"
)

// ErrNoOutDir is returned by Write and Check when no output directory is set.
var ErrNoOutDir = errors.New("output directory is required")

// Files returns every artifact of the result, the runtime first.
func (r *Result) Files() []Artifact {
	out := make([]Artifact, 0, len(r.Artifacts)+1)
	if r.Runtime != nil {
		out = append(out, *r.Runtime)
	}

	return append(out, r.Artifacts...)
}

// Write stores every artifact under the output directory and, when
// manifestPath is set, the manifest in the given format.
func (c *Compiler) Write(res *Result, manifestPath, format string) error {
	if c.opts.OutDir == "" {
		return ErrNoOutDir
	}

	for _, a := range res.Files() {
		path := filepath.Join(c.opts.OutDir, filepath.FromSlash(a.Output))

		err := os.MkdirAll(filepath.Dir(path), 0o755)
		if err != nil {
			return fmt.Errorf("create output directory for %s: %w", a.ID, err)
		}

		err = os.WriteFile(path, a.Code, 0o644) //nolint:gosec // compiled units are meant to be shared.
		if err != nil {
			return fmt.Errorf("write %s: %w", a.ID, err)
		}
	}

	if manifestPath == "" {
		return nil
	}

	if format == "" {
		format = manifest.FormatOf(manifestPath)
	}

	return manifest.WriteFile(manifestPath, res.Manifest, format)
}

// Drift describes an output file that differs from what a compilation produces.
type Drift struct {
	ID     string
	Output string
	// Missing is set when the file does not exist on disk.
	Missing bool
	// Diff is a line diff from the file on disk to the generated code.
	Diff string
}

// Check compares every artifact with the file on disk.
func (c *Compiler) Check(res *Result) ([]Drift, error) {
	if c.opts.OutDir == "" {
		return nil, ErrNoOutDir
	}

	var drifts []Drift

	for _, a := range res.Files() {
		path := filepath.Join(c.opts.OutDir, filepath.FromSlash(a.Output))

		onDisk, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			drifts = append(drifts, Drift{ID: a.ID, Output: a.Output, Missing: true})

			continue
		}

		if err != nil {
			return nil, fmt.Errorf("read %s: %w", a.Output, err)
		}

		if bytes.Equal(onDisk, a.Code) {
			continue
		}

		drifts = append(drifts, Drift{ID: a.ID, Output: a.Output, Diff: LineDiff(string(onDisk), string(a.Code))})
	}

	return drifts, nil
}

// LineDiff renders a line diff of two texts. Removed lines are prefixed with
// "-", added ones with "+" and unchanged ones with a space.
func LineDiff(before, after string) string {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder

	for _, d := range diffs {
		prefix := " "

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			sb.WriteString(prefix)
			sb.WriteString(line)

			if !strings.HasSuffix(line, "\n") {
				sb.WriteByte('\n')
			}
		}
	}

	return sb.String()
}
