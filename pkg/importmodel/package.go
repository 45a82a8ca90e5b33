package importmodel

import "sort"

// PackageNode is a synthetic namespace grouping the modules and sub-packages
// that share a qualified path prefix. Child slices are sorted.
type PackageNode struct {
	QualifiedPath string
	ChildModules  []string
	ChildPackages []string
}

// ChildNames returns the local names of every direct child. A name that is
// both a module and a sub-package appears once. The result is sorted.
func (p *PackageNode) ChildNames() []string {
	seen := make(map[string]bool, len(p.ChildModules)+len(p.ChildPackages))
	out := make([]string, 0, len(p.ChildModules)+len(p.ChildPackages))

	for _, list := range [][]string{p.ChildModules, p.ChildPackages} {
		for _, id := range list {
			name := LastSegment(id)
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}

	sort.Strings(out)

	return out
}
