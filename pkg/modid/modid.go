// Package modid maps source locations and import specifiers to canonical,
// dot-delimited qualified ids.
package modid

import (
	"fmt"
	"path"
	"strings"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
)

// DefaultExtension is the conventional source extension stripped from paths and specifiers.
const DefaultExtension = ".js"

const (
	sep        = "."
	pathSep    = "/"
	currentDir = "."
	parentDir  = ".."
)

// FromPath returns the qualified id of the source file at relPath (slash
// separated, relative to the source root) under rootNamespace.
func FromPath(rootNamespace, relPath, ext string) (string, error) {
	if ext == "" {
		ext = DefaultExtension
	}

	clean := path.Clean(relPath)
	if !strings.HasSuffix(clean, ext) {
		return "", fmt.Errorf("%w: %s does not end in %s", diag.ErrInvalidModuleName, relPath, ext)
	}

	segments := strings.Split(strings.TrimSuffix(clean, ext), pathSep)
	for _, seg := range segments {
		if err := checkSegment(seg); err != nil {
			return "", fmt.Errorf("%s: %w", relPath, err)
		}
	}

	return join(rootNamespace, segments...), nil
}

// Canonical returns the qualified id named by specifier as written in the
// module importerID. It does not check that the id exists.
func Canonical(importerID, specifier, ext string) (string, error) {
	if ext == "" {
		ext = DefaultExtension
	}

	spec := strings.TrimSuffix(specifier, ext)
	if spec == "" {
		return "", fmt.Errorf("%w: empty specifier", diag.ErrUnresolvedSpecifier)
	}

	if isRelative(spec) {
		return relative(importerID, spec)
	}

	return absolute(spec)
}

func isRelative(spec string) bool {
	return spec == currentDir || spec == parentDir ||
		strings.HasPrefix(spec, currentDir+pathSep) || strings.HasPrefix(spec, parentDir+pathSep)
}

func relative(importerID, spec string) (string, error) {
	var base []string
	if pkg := parentPath(importerID); pkg != "" {
		base = strings.Split(pkg, sep)
	}

	for _, seg := range strings.Split(spec, pathSep) {
		switch seg {
		case currentDir:
		case parentDir:
			if len(base) == 0 {
				return "", fmt.Errorf("%w: %q escapes the root namespace", diag.ErrUnresolvedSpecifier, spec)
			}

			base = base[:len(base)-1]
		default:
			if err := checkSegment(seg); err != nil {
				return "", fmt.Errorf("%w: %q", diag.ErrUnresolvedSpecifier, spec)
			}

			base = append(base, seg)
		}
	}

	if len(base) == 0 {
		return "", fmt.Errorf("%w: %q names the root", diag.ErrUnresolvedSpecifier, spec)
	}

	return strings.Join(base, sep), nil
}

// absolute handles "root/sub/leaf", where root may itself be dotted.
func absolute(spec string) (string, error) {
	segments := strings.Split(spec, pathSep)

	root := segments[0]
	for _, part := range strings.Split(root, sep) {
		if part == "" {
			return "", fmt.Errorf("%w: %q", diag.ErrUnresolvedSpecifier, spec)
		}
	}

	for _, seg := range segments[1:] {
		if checkSegment(seg) != nil || seg == parentDir {
			return "", fmt.Errorf("%w: %q", diag.ErrUnresolvedSpecifier, spec)
		}
	}

	return join(root, segments[1:]...), nil
}

func checkSegment(seg string) error {
	if seg == "" || strings.Contains(seg, sep) {
		return fmt.Errorf("%w: segment %q", diag.ErrInvalidModuleName, seg)
	}

	return nil
}

func join(root string, segments ...string) string {
	if root == "" {
		return strings.Join(segments, sep)
	}

	if len(segments) == 0 {
		return root
	}

	return root + sep + strings.Join(segments, sep)
}

func parentPath(id string) string {
	if i := strings.LastIndex(id, sep); i >= 0 {
		return id[:i]
	}

	return ""
}
