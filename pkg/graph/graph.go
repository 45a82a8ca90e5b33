package graph

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
	"github.com/Sumatoshi-tech/esmlink/pkg/modid"
	"github.com/Sumatoshi-tech/esmlink/pkg/toposort"
)

// Graph owns every ModuleUnit and PackageNode of one compilation.
type Graph struct {
	cfg    Config
	logger *slog.Logger
	diags  *diag.List
	units  map[string]*importmodel.ModuleUnit
	index  *modid.Index
	failed *atomic.Bool

	pkgMu    sync.Mutex
	packages map[string]*importmodel.PackageNode
}

// Resolve binds every import of every unit to its target. Units are resolved
// in parallel; a unit stops at its first unresolved specifier.
func (g *Graph) Resolve(ctx context.Context) error {
	units := g.Units()

	return Parallel(ctx, g.cfg.Workers, len(units), g.stopped, func(i int) {
		g.resolveUnit(units[i])
	})
}

func (g *Graph) stopped() bool {
	return g.cfg.FailFast && g.failed.Load()
}

func (g *Graph) resolveUnit(unit *importmodel.ModuleUnit) {
	for i := range unit.Imports {
		spec := &unit.Imports[i]

		target, err := g.index.Resolve(unit.ID, spec.Specifier)
		if err != nil {
			var de *diag.Error
			if errors.As(err, &de) {
				err = de.At(unit.FilePath, spec.Line)
			}

			g.failed.Store(true)
			g.diags.Error(unit.ID, err)

			return
		}

		spec.ResolvedTargetID = target.ID
		spec.TargetKind = target.Kind

		switch target.Kind {
		case importmodel.TargetPackage:
			g.Package(target.ID)
		case importmodel.TargetModule:
			if g.index.HasPackage(target.ID) {
				g.logger.Warn("module shadows package of the same name",
					"unit", unit.ID, "target", target.ID)
				g.diags.Warn(unit.ID, diag.Newf(diag.ErrShadowed, unit.ID,
					"%q resolves to module %s, not the package of the same name", spec.Specifier, target.ID))
			}
		}
	}
}

// Package returns the PackageNode for path, synthesizing and caching it on
// first request. Repeated calls return the same node.
func (g *Graph) Package(path string) (*importmodel.PackageNode, bool) {
	g.pkgMu.Lock()
	defer g.pkgMu.Unlock()

	if node, ok := g.packages[path]; ok {
		return node, true
	}

	if !g.index.HasPackage(path) {
		return nil, false
	}

	modules, packages := g.index.Children(path)
	node := &importmodel.PackageNode{
		QualifiedPath: path,
		ChildModules:  modules,
		ChildPackages: packages,
	}
	g.packages[path] = node

	return node, true
}

// Unit returns the unit registered under id.
func (g *Graph) Unit(id string) (*importmodel.ModuleUnit, bool) {
	unit, ok := g.units[id]

	return unit, ok
}

// Units returns every unit ordered by id.
func (g *Graph) Units() []*importmodel.ModuleUnit {
	ids := g.index.Modules()

	out := make([]*importmodel.ModuleUnit, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.units[id])
	}

	return out
}

// Index returns the frozen discovery index.
func (g *Graph) Index() *modid.Index {
	return g.index
}

// Diagnostics returns the diagnostics collected by both phases.
func (g *Graph) Diagnostics() *diag.List {
	return g.diags
}

// Logger returns the logger used for graph warnings.
func (g *Graph) Logger() *slog.Logger {
	return g.logger
}

// Descendants returns every module id below path, sorted.
func (g *Graph) Descendants(path string) []string {
	modules, packages := g.index.Children(path)

	out := append([]string(nil), modules...)
	for _, pkg := range packages {
		out = append(out, g.Descendants(pkg)...)
	}

	return out
}

// Dependencies returns the module ids unit reads through its imports. A
// package target stands for every module below it; externals are skipped.
func (g *Graph) Dependencies(unit *importmodel.ModuleUnit) []string {
	seen := make(map[string]bool)

	var out []string

	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}

	for _, spec := range unit.Imports {
		switch spec.TargetKind {
		case importmodel.TargetModule:
			add(spec.ResolvedTargetID)
		case importmodel.TargetPackage:
			for _, id := range g.Descendants(spec.ResolvedTargetID) {
				add(id)
			}
		}
	}

	return out
}

// Toposort returns the import graph with an edge from each unit to every
// module it depends on.
func (g *Graph) Toposort() *toposort.Graph {
	tg := toposort.NewGraph()

	for _, unit := range g.Units() {
		tg.AddNode(unit.ID)

		for _, dep := range g.Dependencies(unit) {
			tg.AddEdge(unit.ID, dep)
		}
	}

	return tg
}

// Dependents returns the sorted ids of units that depend on id, directly or
// through a package import.
func (g *Graph) Dependents(id string) []string {
	return g.Toposort().FindParents(id)
}

// Cycles returns the import cycles of the graph. Cycles are permitted; they
// are reported for diagnostics only.
func (g *Graph) Cycles() [][]string {
	return g.Toposort().Cycles()
}

// Order returns a dependency-first registration order for the host.
func (g *Graph) Order() []string {
	tg := toposort.NewGraph()

	for _, unit := range g.Units() {
		tg.AddNode(unit.ID)

		for _, dep := range g.Dependencies(unit) {
			tg.AddEdge(dep, unit.ID)
		}
	}

	return tg.Order()
}
