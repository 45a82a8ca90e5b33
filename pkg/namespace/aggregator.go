// Package namespace builds the synthetic export records of packages: one slot
// per direct child, holding the child module's export record or the child
// package's own aggregated record.
package namespace

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
)

// DefaultMaxDepth bounds package nesting during aggregation.
const DefaultMaxDepth = 64

// ErrUnknownPackage is returned for a path that is not a package of the graph.
var ErrUnknownPackage = errors.New("unknown package")

// Source is the read side of the dependency graph.
type Source interface {
	Package(path string) (*importmodel.PackageNode, bool)
}

// Normalizer provides module export records.
type Normalizer interface {
	Normalize(id string) (*importmodel.ExportRecord, error)
}

// Child is one slot of a package record. Exactly one of Module and Package is set.
type Child struct {
	Name    string
	ID      string
	Module  *importmodel.ExportRecord
	Package *Record
}

// Record is the aggregated namespace of a package. Children are sorted by name.
type Record struct {
	Path     string
	Children []Child
}

// Get returns the child slot called name.
func (r *Record) Get(name string) (Child, bool) {
	i := sort.Search(len(r.Children), func(i int) bool { return r.Children[i].Name >= name })
	if i < len(r.Children) && r.Children[i].Name == name {
		return r.Children[i], true
	}

	return Child{}, false
}

// Names returns the slot names.
func (r *Record) Names() []string {
	out := make([]string, len(r.Children))
	for i, c := range r.Children {
		out[i] = c.Name
	}

	return out
}

// Shape returns the slot tree: module children map to their sorted export
// slot names, package children to their own shape.
func (r *Record) Shape() map[string]any {
	out := make(map[string]any, len(r.Children))

	for _, c := range r.Children {
		if c.Package != nil {
			out[c.Name] = c.Package.Shape()
		} else {
			out[c.Name] = c.Module.SortedNames()
		}
	}

	return out
}

// Layout returns the id tree used by generated code: module children map to
// their qualified id, package children to their own layout.
func (r *Record) Layout() map[string]any {
	out := make(map[string]any, len(r.Children))

	for _, c := range r.Children {
		if c.Package != nil {
			out[c.Name] = c.Package.Layout()
		} else {
			out[c.Name] = c.ID
		}
	}

	return out
}

// Aggregator computes package records lazily, once per path. It is safe for
// concurrent use; concurrent first requests for a path are serialized.
type Aggregator struct {
	src      Source
	exports  Normalizer
	diags    *diag.List
	logger   *slog.Logger
	maxDepth int

	mu   sync.Mutex
	memo map[string]*Record
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithMaxDepth sets the nesting depth beyond which aggregation fails with
// diag.ErrCircularAggregationOverflow.
func WithMaxDepth(depth int) Option {
	return func(a *Aggregator) {
		if depth > 0 {
			a.maxDepth = depth
		}
	}
}

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// New creates an Aggregator. Warnings are recorded in diags.
func New(src Source, exports Normalizer, diags *diag.List, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:      src,
		exports:  exports,
		diags:    diags,
		logger:   slog.Default(),
		maxDepth: DefaultMaxDepth,
		memo:     make(map[string]*Record),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Aggregate returns the record of the package at path.
func (a *Aggregator) Aggregate(path string) (*Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.aggregate(path, 0)
}

func (a *Aggregator) aggregate(path string, depth int) (*Record, error) {
	if rec, ok := a.memo[path]; ok {
		// Finished, or under computation further up: either way stable.
		return rec, nil
	}

	if depth > a.maxDepth {
		return nil, &diag.Error{
			Kind: diag.ErrCircularAggregationOverflow,
			Unit: path,
			Msg:  fmt.Sprintf("package nesting exceeds %d levels", a.maxDepth),
		}
	}

	node, ok := a.src.Package(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, path)
	}

	rec := &Record{Path: path}
	a.memo[path] = rec

	modules := make(map[string]bool, len(node.ChildModules))

	for _, id := range node.ChildModules {
		modules[importmodel.LastSegment(id)] = true

		exports, err := a.exports.Normalize(id)
		if exports == nil {
			// Failed units still occupy their slot so the layout stays complete.
			a.logger.Debug("child module has no export record", "package", path, "child", id, "error", err)

			exports = importmodel.NewExportRecord()
		}

		rec.Children = append(rec.Children, Child{
			Name:   importmodel.LastSegment(id),
			ID:     id,
			Module: exports,
		})
	}

	for _, sub := range node.ChildPackages {
		name := importmodel.LastSegment(sub)
		if modules[name] {
			a.logger.Warn("module shadows sub-package in namespace", "package", path, "name", name)
			a.diags.Warn(path, diag.Newf(diag.ErrShadowed, path,
				"module %s shadows sub-package of the same name", sub))

			continue
		}

		child, err := a.aggregate(sub, depth+1)
		if err != nil {
			delete(a.memo, path)

			return nil, err
		}

		rec.Children = append(rec.Children, Child{Name: name, ID: sub, Package: child})
	}

	sort.Slice(rec.Children, func(i, j int) bool { return rec.Children[i].Name < rec.Children[j].Name })

	return rec, nil
}
