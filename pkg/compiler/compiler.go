// Package compiler drives a whole compilation: it walks the source tree,
// builds and resolves the dependency graph, normalizes exports, generates
// every unit and describes the result in a manifest.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/esmlink/pkg/cache"
	"github.com/Sumatoshi-tech/esmlink/pkg/codegen"
	"github.com/Sumatoshi-tech/esmlink/pkg/config"
	"github.com/Sumatoshi-tech/esmlink/pkg/diag"
	"github.com/Sumatoshi-tech/esmlink/pkg/exports"
	"github.com/Sumatoshi-tech/esmlink/pkg/graph"
	"github.com/Sumatoshi-tech/esmlink/pkg/importmodel"
	"github.com/Sumatoshi-tech/esmlink/pkg/jsparse"
	"github.com/Sumatoshi-tech/esmlink/pkg/manifest"
	"github.com/Sumatoshi-tech/esmlink/pkg/modid"
	"github.com/Sumatoshi-tech/esmlink/pkg/namespace"
	"github.com/Sumatoshi-tech/esmlink/pkg/observability"
	"github.com/Sumatoshi-tech/esmlink/pkg/version"
)

// Compile phases.
const (
	PhaseDiscover  = "discover"
	PhaseResolve   = "resolve"
	PhaseNormalize = "normalize"
	PhaseGenerate  = "generate"
)

// ErrMissingNamespace is returned when Options.RootNamespace is empty.
var ErrMissingNamespace = errors.New("root namespace is required")

// Options describe one compilation.
type Options struct {
	SourceDir           string
	OutDir              string
	RootNamespace       string
	Extension           string
	Externals           []string
	Assets              []string
	Workers             int
	FailFast            bool
	MaxSourceSize       int64
	MaxAggregationDepth int
	RuntimeID           string
	EmitRuntime         bool
}

// OptionsFromConfig maps the loaded configuration to compile options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SourceDir:           cfg.Compiler.SourceDir,
		OutDir:              cfg.Compiler.OutDir,
		RootNamespace:       cfg.Compiler.RootNamespace,
		Extension:           cfg.Compiler.Extension,
		Externals:           cfg.Compiler.Externals,
		Assets:              cfg.Compiler.Assets,
		Workers:             cfg.Compiler.Workers,
		FailFast:            cfg.Compiler.FailFast,
		MaxSourceSize:       cfg.Compiler.MaxSourceSizeBytes(),
		MaxAggregationDepth: cfg.Compiler.MaxAggregationDepth,
		RuntimeID:           cfg.Runtime.ModuleID,
		EmitRuntime:         cfg.Runtime.Emit,
	}
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithTracer sets the tracer compile phases are recorded with.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Compiler) {
		c.tracer = tracer
	}
}

// WithMetrics records compile metrics.
func WithMetrics(metrics *observability.CompileMetrics) Option {
	return func(c *Compiler) {
		c.metrics = metrics
	}
}

// WithParseCache reuses parse results across compilations run by this process.
func WithParseCache(pc *cache.ParseCache) Option {
	return func(c *Compiler) {
		c.cache = pc
	}
}

// Compiler runs compilations with fixed options.
type Compiler struct {
	opts    Options
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *observability.CompileMetrics
	cache   *cache.ParseCache
}

// New creates a Compiler.
func New(opts Options, options ...Option) *Compiler {
	if opts.Extension == "" {
		opts.Extension = modid.DefaultExtension
	}

	if opts.RuntimeID == "" {
		opts.RuntimeID = codegen.DefaultRuntimeID
	}

	if opts.MaxAggregationDepth <= 0 {
		opts.MaxAggregationDepth = namespace.DefaultMaxDepth
	}

	c := &Compiler{
		opts:   opts,
		logger: slog.Default(),
		tracer: nooptrace.NewTracerProvider().Tracer(""),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Options returns the effective options.
func (c *Compiler) Options() Options {
	return c.opts
}

// Artifact is one generated file.
type Artifact struct {
	ID string
	// File is the source path relative to the source directory; empty for the runtime.
	File string
	// Output is the slash separated path relative to the output directory.
	Output string
	Code   []byte
}

// Stats summarizes a compilation.
type Stats struct {
	Units       int
	Compiled    int
	Failed      int
	Errors      int
	Warnings    int
	OutputBytes int
	Cycles      int
	Cache       cache.Stats
	Duration    time.Duration
}

// Result is the in-memory outcome of a compilation. Nothing is written to
// disk until Write is called.
type Result struct {
	Graph       *graph.Graph
	Artifacts   []Artifact
	Runtime     *Artifact
	Manifest    *manifest.Manifest
	Diagnostics []diag.Entry
	Stats       Stats
	diags       *diag.List
}

// Err joins every fatal diagnostic of the compilation.
func (r *Result) Err() error {
	return r.diags.Err()
}

// Failed reports whether unit produced no artifact because of an error.
func (r *Result) Failed(unit string) bool {
	return r.diags.Failed(unit)
}

// Analyze runs discovery and resolution only.
func (c *Compiler) Analyze(ctx context.Context) (*graph.Graph, error) {
	if c.opts.RootNamespace == "" {
		return nil, ErrMissingNamespace
	}

	g, _, err := c.buildGraph(ctx, &diag.List{})

	return g, err
}

// Compile runs a full compilation in memory. Per-unit failures are reported
// through Result diagnostics; the returned error is reserved for failures of
// the compilation as a whole (unreadable source tree, cancellation).
func (c *Compiler) Compile(ctx context.Context) (*Result, error) {
	if c.opts.RootNamespace == "" {
		return nil, ErrMissingNamespace
	}

	start := time.Now()
	diags := &diag.List{}

	g, assets, err := c.buildGraph(ctx, diags)
	if err != nil {
		return nil, err
	}

	norm := exports.New(g, diags, c.logger)

	err = c.phase(ctx, PhaseNormalize, func(ctx context.Context) error {
		units := c.live(g, diags)

		return graph.Parallel(ctx, c.opts.Workers, len(units), c.stopper(diags), func(i int) {
			_, _ = norm.Normalize(units[i].ID) // Failures are recorded in diags.
		})
	})
	if err != nil {
		return nil, err
	}

	agg := namespace.New(g, norm, diags,
		namespace.WithMaxDepth(c.opts.MaxAggregationDepth),
		namespace.WithLogger(c.logger))
	gen := codegen.New(c.opts.RuntimeID, agg)

	var (
		mu        sync.Mutex
		artifacts []Artifact
	)

	err = c.phase(ctx, PhaseGenerate, func(ctx context.Context) error {
		units := c.live(g, diags)

		return graph.Parallel(ctx, c.opts.Workers, len(units), c.stopper(diags), func(i int) {
			unit := units[i]

			code, genErr := gen.Generate(unit)
			if genErr != nil {
				diags.Error(unit.ID, genErr)

				return
			}

			mu.Lock()
			artifacts = append(artifacts, Artifact{
				ID:     unit.ID,
				File:   unit.FilePath,
				Output: OutputPath(unit.ID),
				Code:   code,
			})
			mu.Unlock()
		})
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Graph: g, diags: diags}

	for _, a := range artifacts {
		if !diags.Failed(a.ID) {
			res.Artifacts = append(res.Artifacts, a)
		}
	}

	sort.Slice(res.Artifacts, func(i, j int) bool { return res.Artifacts[i].ID < res.Artifacts[j].ID })

	if c.opts.EmitRuntime {
		res.Runtime = &Artifact{
			ID:     c.opts.RuntimeID,
			Output: OutputPath(c.opts.RuntimeID),
			Code:   codegen.RuntimeSource(),
		}
	}

	res.Manifest = c.buildManifest(res, assets)
	res.Diagnostics = diags.Entries()
	res.Stats = c.stats(ctx, res, time.Since(start))

	return res, nil
}

func (c *Compiler) buildGraph(ctx context.Context, diags *diag.List) (*graph.Graph, []string, error) {
	var (
		src *tree
		g   *graph.Graph
	)

	err := c.phase(ctx, PhaseDiscover, func(ctx context.Context) error {
		var walkErr error

		src, walkErr = walk(c.opts.SourceDir, c.opts.Extension, c.opts.Assets)
		if walkErr != nil {
			return walkErr
		}

		var parserOpts []jsparse.Option
		if c.opts.MaxSourceSize > 0 {
			parserOpts = append(parserOpts, jsparse.WithMaxSourceSize(c.opts.MaxSourceSize))
		}

		opts := []graph.Option{graph.WithLogger(c.logger), graph.WithDiagnostics(diags)}
		if c.cache != nil {
			opts = append(opts, graph.WithParseCache(c.cache))
		}

		builder := graph.NewBuilder(graph.Config{
			RootNamespace: c.opts.RootNamespace,
			Extension:     c.opts.Extension,
			Externals:     c.opts.Externals,
			Workers:       c.opts.Workers,
			FailFast:      c.opts.FailFast,
		}, jsparse.NewParser(parserOpts...), opts...)

		discoverErr := builder.Discover(ctx, src.sources)
		if discoverErr != nil {
			return fmt.Errorf("discover: %w", discoverErr)
		}

		g = builder.Freeze()

		c.logger.DebugContext(ctx, "discovered sources",
			"files", len(src.sources), "units", len(g.Units()), "assets", len(src.assets))

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	err = c.phase(ctx, PhaseResolve, func(ctx context.Context) error {
		resolveErr := g.Resolve(ctx)
		if resolveErr != nil {
			return fmt.Errorf("resolve: %w", resolveErr)
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return g, src.assets, nil
}

// live returns the units without fatal diagnostics.
func (c *Compiler) live(g *graph.Graph, diags *diag.List) []*importmodel.ModuleUnit {
	failed := diags.FailedUnits()

	units := g.Units()
	out := make([]*importmodel.ModuleUnit, 0, len(units))

	for _, unit := range units {
		if !failed[unit.ID] {
			out = append(out, unit)
		}
	}

	return out
}

func (c *Compiler) stopper(diags *diag.List) func() bool {
	if !c.opts.FailFast {
		return nil
	}

	return func() bool {
		return len(diags.FailedUnits()) > 0
	}
}

// phase runs fn inside a span and records its duration.
func (c *Compiler) phase(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "esmlink."+name)
	defer span.End()

	ctx = observability.WithPhase(ctx, name)
	start := time.Now()

	err := fn(ctx)

	if c.metrics != nil {
		c.metrics.RecordPhase(ctx, name, time.Since(start))
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return err
}

func (c *Compiler) buildManifest(res *Result, assets []string) *manifest.Manifest {
	m := &manifest.Manifest{
		Version:       version.Version,
		RootNamespace: c.opts.RootNamespace,
		Runtime:       manifest.Runtime{ID: c.opts.RuntimeID},
		Assets:        assets,
	}

	if res.Runtime != nil {
		m.Runtime.Output = res.Runtime.Output
	}

	compiled := make(map[string]bool, len(res.Artifacts))

	for _, a := range res.Artifacts {
		compiled[a.ID] = true

		unit, _ := res.Graph.Unit(a.ID)

		entry := manifest.Unit{
			ID:      a.ID,
			File:    a.File,
			Output:  a.Output,
			Imports: importTargets(unit),
			SHA256:  manifest.Digest(a.Code),
		}

		if unit.Exports != nil {
			entry.Exports = unit.Exports.SortedNames()

			if unit.Exports.HasDefault() {
				entry.EntryPoint = manifest.EntryPointDefault
			}
		}

		m.Units = append(m.Units, entry)
	}

	if res.Runtime != nil {
		m.Order = append(m.Order, res.Runtime.ID)
	}

	for _, id := range res.Graph.Order() {
		if compiled[id] {
			m.Order = append(m.Order, id)
		}
	}

	m.Sort()

	return m
}

func importTargets(unit *importmodel.ModuleUnit) []string {
	seen := make(map[string]bool)

	var out []string

	for _, spec := range unit.Imports {
		if spec.ResolvedTargetID != "" && !seen[spec.ResolvedTargetID] {
			seen[spec.ResolvedTargetID] = true
			out = append(out, spec.ResolvedTargetID)
		}
	}

	sort.Strings(out)

	return out
}

func (c *Compiler) stats(ctx context.Context, res *Result, elapsed time.Duration) Stats {
	st := Stats{
		Units:    len(res.Graph.Units()),
		Compiled: len(res.Artifacts),
		Cycles:   len(res.Graph.Cycles()),
		Duration: elapsed,
	}

	st.Failed = st.Units - st.Compiled

	for _, e := range res.Diagnostics {
		if e.Severity == diag.SeverityError {
			st.Errors++
		} else {
			st.Warnings++
		}
	}

	for _, a := range res.Artifacts {
		st.OutputBytes += len(a.Code)
	}

	if c.cache != nil {
		st.Cache = c.cache.Stats()
	}

	if c.metrics != nil {
		c.metrics.RecordUnits(ctx, observability.OutcomeCompiled, st.Compiled)
		c.metrics.RecordUnits(ctx, observability.OutcomeFailed, st.Failed)
		c.metrics.RecordOutput(ctx, st.OutputBytes)
		c.metrics.RecordCache(ctx, st.Cache.Hits, st.Cache.Misses)

		for _, e := range res.Diagnostics {
			c.metrics.RecordDiagnostic(ctx, e.Severity.String(), kindOf(e.Err))
		}
	}

	return st
}

func kindOf(err error) string {
	var de *diag.Error
	if errors.As(err, &de) && de.Kind != nil {
		return de.Kind.Error()
	}

	for _, kind := range []error{
		diag.ErrParse, diag.ErrUnresolvedSpecifier, diag.ErrDuplicateExportName,
		diag.ErrCircularAggregationOverflow, diag.ErrDuplicateModule,
		diag.ErrInvalidModuleName, diag.ErrSourceTooLarge,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}

	return "other"
}
