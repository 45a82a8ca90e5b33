package compiler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/esmlink/pkg/graph"
)

// tree is the result of walking the source directory.
type tree struct {
	sources []graph.Source
	assets  []string
}

// walk collects every source file with the configured extension and every
// asset matching one of the asset patterns. Dot-files, dot-directories and
// vendored directories are skipped.
func walk(root, ext string, assetPatterns []string) (*tree, error) {
	out := &tree{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}

		if rel == "." {
			return nil
		}

		rel = filepath.ToSlash(rel)

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			if enry.IsVendor(rel + "/") {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		if strings.HasSuffix(rel, ext) {
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				return fmt.Errorf("read %s: %w", rel, readErr)
			}

			out.sources = append(out.sources, graph.Source{Path: rel, Content: content})

			return nil
		}

		matched, matchErr := matchAny(assetPatterns, rel)
		if matchErr != nil {
			return matchErr
		}

		if matched {
			out.assets = append(out.assets, rel)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(out.sources, func(i, j int) bool { return out.sources[i].Path < out.sources[j].Path })
	sort.Strings(out.assets)

	return out, nil
}

func matchAny(patterns []string, rel string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("asset pattern %q: %w", pattern, err)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// OutputPath returns the slash separated output path of a unit id:
// every id segment but the last becomes a directory.
func OutputPath(id string) string {
	return strings.ReplaceAll(id, ".", "/") + ".js"
}
