// Package graph builds the dependency graph of a compilation in two phases:
// concurrent discovery of every source unit, then resolution of every import
// against the complete, frozen set of ids.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Sumatoshi-tech/esmlink/pkg/cache"
	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
	"github.com/Sumatoshi-tech/esmlink/pkg/jsparse"
	"github.com/Sumatoshi-tech/esmlink/pkg/modid"
)

// ErrFrozen is returned by Discover once the builder has been frozen.
var ErrFrozen = errors.New("graph builder is frozen")

// Source is one input file.
type Source struct {
	// Path is slash separated and relative to the source root.
	Path    string
	Content []byte
}

// Config controls graph construction.
type Config struct {
	RootNamespace string
	Extension     string
	Externals     []string
	Workers       int
	FailFast      bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithParseCache reuses parse results for identical file contents.
func WithParseCache(c *cache.ParseCache) Option {
	return func(b *Builder) {
		b.cache = c
	}
}

// WithDiagnostics collects diagnostics into list instead of a private one.
func WithDiagnostics(list *diag.List) Option {
	return func(b *Builder) {
		b.diags = list
	}
}

// Builder runs the discovery phase. Discovered units go into an append-only
// registry keyed by qualified id.
type Builder struct {
	cfg    Config
	parser *jsparse.Parser
	cache  *cache.ParseCache
	logger *slog.Logger
	diags  *diag.List

	mu     sync.Mutex
	units  map[string]*importmodel.ModuleUnit
	frozen bool
	failed atomic.Bool
}

// NewBuilder creates a Builder that parses with parser.
func NewBuilder(cfg Config, parser *jsparse.Parser, opts ...Option) *Builder {
	if cfg.Extension == "" {
		cfg.Extension = modid.DefaultExtension
	}

	b := &Builder{
		cfg:    cfg,
		parser: parser,
		logger: slog.Default(),
		diags:  &diag.List{},
		units:  make(map[string]*importmodel.ModuleUnit),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Diagnostics returns the list diagnostics are collected into.
func (b *Builder) Diagnostics() *diag.List {
	return b.diags
}

// Discover parses and registers sources concurrently. Per-unit failures are
// recorded as diagnostics; the returned error is reserved for ErrFrozen and
// context cancellation.
func (b *Builder) Discover(ctx context.Context, sources []Source) error {
	b.mu.Lock()
	frozen := b.frozen
	b.mu.Unlock()

	if frozen {
		return ErrFrozen
	}

	return Parallel(ctx, b.cfg.Workers, len(sources), b.stopped, func(i int) {
		b.discoverOne(ctx, sources[i])
	})
}

func (b *Builder) stopped() bool {
	return b.cfg.FailFast && b.failed.Load()
}

func (b *Builder) fail(unit string, err error) {
	b.failed.Store(true)
	b.diags.Error(unit, err)
}

func (b *Builder) discoverOne(ctx context.Context, src Source) {
	id, err := modid.FromPath(b.cfg.RootNamespace, src.Path, b.cfg.Extension)
	if err != nil {
		b.fail(src.Path, err)

		return
	}

	parsed, err := b.parse(ctx, src)
	if err != nil {
		var de *diag.Error
		if errors.As(err, &de) {
			de.Unit = id
			err = de
		}

		b.fail(id, err)

		return
	}

	unit := &importmodel.ModuleUnit{
		ID:          id,
		FilePath:    src.Path,
		PackagePath: importmodel.ParentPath(id),
		// Imports are resolved in place; cached parse results stay untouched.
		Imports: append([]importmodel.ImportSpec(nil), parsed.Imports...),
		Decls:   parsed.Decls,
		Source:  parsed,
	}

	b.register(unit)
}

func (b *Builder) parse(ctx context.Context, src Source) (*importmodel.Parsed, error) {
	var key cache.Key

	if b.cache != nil {
		key = cache.KeyOf(src.Content)
		if parsed := b.cache.Get(key); parsed != nil {
			return parsed, nil
		}
	}

	parsed, err := b.parser.Parse(ctx, src.Path, src.Content)
	if err != nil {
		return nil, err
	}

	if b.cache != nil {
		b.cache.Put(key, parsed)
	}

	return parsed, nil
}

func (b *Builder) register(unit *importmodel.ModuleUnit) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.units[unit.ID]; ok {
		b.fail(unit.ID, &diag.Error{
			Kind: diag.ErrDuplicateModule,
			Unit: unit.ID,
			Msg:  fmt.Sprintf("%s and %s", existing.FilePath, unit.FilePath),
		})

		return
	}

	b.units[unit.ID] = unit
}

// Freeze ends discovery and returns the graph for the resolution phase.
// The discovery index is immutable from here on.
func (b *Builder) Freeze() *Graph {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frozen = true

	ids := make([]string, 0, len(b.units))
	for id := range b.units {
		ids = append(ids, id)
	}

	return &Graph{
		cfg:      b.cfg,
		logger:   b.logger,
		diags:    b.diags,
		units:    b.units,
		index:    modid.NewIndex(ids, b.cfg.Externals, b.cfg.Extension),
		packages: make(map[string]*importmodel.PackageNode),
		failed:   &b.failed,
	}
}
