package modid

import (
	"sort"
	"strings"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

// Target is a resolved import target.
type Target struct {
	ID   string
	Kind importmodel.TargetKind
}

// Index is the immutable set of discovered module ids. It is safe for concurrent use.
type Index struct {
	ext       string
	modules   map[string]struct{}
	children  map[string]*childSet
	externals []string
}

type childSet struct {
	modules  map[string]struct{}
	packages map[string]struct{}
}

// NewIndex indexes ids. Every proper dotted prefix of an id is a package path.
// externals are id prefixes provided by the host and never compiled here.
func NewIndex(ids []string, externals []string, ext string) *Index {
	idx := &Index{
		ext:       ext,
		modules:   make(map[string]struct{}, len(ids)),
		children:  make(map[string]*childSet),
		externals: append([]string(nil), externals...),
	}

	for _, id := range ids {
		idx.modules[id] = struct{}{}

		child := id
		for parent := parentPath(child); parent != ""; parent = parentPath(child) {
			set := idx.childSet(parent)
			if child == id {
				set.modules[id] = struct{}{}
			} else {
				set.packages[child] = struct{}{}
			}

			child = parent
		}
	}

	return idx
}

func (idx *Index) childSet(path string) *childSet {
	set, ok := idx.children[path]
	if !ok {
		set = &childSet{modules: make(map[string]struct{}), packages: make(map[string]struct{})}
		idx.children[path] = set
	}

	return set
}

// HasModule reports whether id is a discovered module.
func (idx *Index) HasModule(id string) bool {
	_, ok := idx.modules[id]

	return ok
}

// HasPackage reports whether path is a prefix of at least one module id.
func (idx *Index) HasPackage(path string) bool {
	_, ok := idx.children[path]

	return ok
}

// Modules returns every module id, sorted.
func (idx *Index) Modules() []string {
	return sortedKeys(idx.modules)
}

// Children returns the direct child module ids and child package paths of path, sorted.
func (idx *Index) Children(path string) (modules, packages []string) {
	set, ok := idx.children[path]
	if !ok {
		return nil, nil
	}

	return sortedKeys(set.modules), sortedKeys(set.packages)
}

// IsExternal reports whether id lies under a configured external prefix.
func (idx *Index) IsExternal(id string) bool {
	for _, prefix := range idx.externals {
		if id == prefix || strings.HasPrefix(id, prefix+sep) {
			return true
		}
	}

	return false
}

// Resolve maps specifier, written in importerID, to its target. A leaf module
// wins over a package of the same path; an unknown id under an external prefix
// is an external target; anything else is diag.ErrUnresolvedSpecifier.
func (idx *Index) Resolve(importerID, specifier string) (Target, error) {
	id, err := Canonical(importerID, specifier, idx.ext)
	if err != nil {
		return Target{}, diag.Newf(diag.ErrUnresolvedSpecifier, importerID, "%q is not a valid specifier", specifier)
	}

	switch {
	case idx.HasModule(id):
		return Target{ID: id, Kind: importmodel.TargetModule}, nil
	case idx.HasPackage(id):
		return Target{ID: id, Kind: importmodel.TargetPackage}, nil
	case idx.IsExternal(id):
		return Target{ID: id, Kind: importmodel.TargetExternal}, nil
	default:
		return Target{}, diag.Newf(diag.ErrUnresolvedSpecifier, importerID,
			"%q (as %s) matches no module or package", specifier, id)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}

	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}

	sort.Strings(out)

	return out
}
