package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/AnyUserName/derivimg/internal/cache"
	"github.com/AnyUserName/derivimg/internal/dimension"
	"github.com/AnyUserName/derivimg/internal/eligibility"
	"github.com/AnyUserName/derivimg/internal/encoder"
	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/hasher"
	"github.com/AnyUserName/derivimg/internal/metrics"
	"github.com/AnyUserName/derivimg/internal/source"
)

// GeneratorConfig wires the collaborators of a Generator. Zero values
// select the defaults.
type GeneratorConfig struct {
	Accessor  source.Accessor
	Processor encoder.Processor
	Store     cache.Store[Record]
	// MaxCacheEntryBytes keeps records whose buffer exceeds this size out
	// of the store (0 = no limit).
	MaxCacheEntryBytes int64
	Metrics            *metrics.Metrics
	Logger             *slog.Logger
}

// Generator produces derivatives for one source per call.
type Generator struct {
	accessor  source.Accessor
	processor encoder.Processor
	cache     *cache.Coordinator[Record]
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewGenerator builds a Generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	g := &Generator{
		accessor:  cfg.Accessor,
		processor: cfg.Processor,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	if g.accessor == nil {
		g.accessor = source.NewAccessor(source.AccessorConfig{})
	}
	if g.processor == nil {
		g.processor = encoder.NewProcessor(nil)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}

	opts := []cache.Option[Record]{cache.WithLogger[Record](g.logger)}
	if limit := cfg.MaxCacheEntryBytes; limit > 0 {
		opts = append(opts, cache.WithAdmit(func(r Record) bool {
			return int64(len(r.Buffer)) <= limit
		}))
	}
	g.cache = cache.NewCoordinator[Record](cfg.Store, opts...)
	return g
}

// job is one (width, format) output of a call.
type job struct {
	req      eligibility.Request
	filename string
	url      string
}

// Generate describes the source once, then produces every width x format
// output. Invalid widths or formats fail before anything is written. The
// first materialization error cancels the remaining outputs and is
// returned; outputs already written are left in place.
func (g *Generator) Generate(ctx context.Context, in source.Input, opts Options) (Result, error) {
	_, result, err := g.generate(ctx, in, opts)
	return result, err
}

func (g *Generator) generate(ctx context.Context, in source.Input, opts Options) (*source.Descriptor, Result, error) {
	src, err := source.Describe(ctx, in, g.accessor)
	if err != nil {
		return nil, nil, err
	}

	resolved, err := dimension.Resolve(opts.Widths, src.Width)
	if err != nil {
		return nil, nil, err
	}
	widths := dimension.Plan(resolved, src.Width, opts.AllowUpscale)

	formats, err := format.Resolve(opts.Formats, src.Format)
	if err != nil {
		return nil, nil, err
	}

	outDir := opts.OutputDir
	if outDir == "" {
		outDir = defaultOutputDir
	}
	outDir, err = filepath.Abs(outDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve output dir: %w", err)
	}

	namer := opts.Namer
	if namer == nil {
		namer = DefaultNamer
	}
	fingerprint := opts.fingerprint()
	id := hasher.Key(hasher.IDLength, src.Hash, fingerprint)

	jobs := make([]job, 0, len(widths)*len(formats))
	for _, w := range widths {
		for _, f := range formats {
			name := namer(id, w.Width, f)
			jobs = append(jobs, job{
				req: eligibility.Request{
					Width:    w,
					Format:   f,
					DestPath: filepath.Join(outDir, name),
				},
				filename: name,
				url:      opts.urlFor(name),
			})
		}
	}

	ectx := eligibility.Context{
		Optimize:         opts.SkipOriginalProcessing,
		TransformPresent: opts.transformPresent(),
		ForceReprocess:   opts.ForceReprocess,
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	records := make([]Record, len(jobs))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, j := range jobs {
		group.Go(func() error {
			rec, err := g.produce(gctx, src, ectx, j, opts, fingerprint)
			if err != nil {
				return fmt.Errorf("%s %dw %s: %w", in, j.req.Width.Width, j.req.Format, err)
			}
			records[i] = rec
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	result := make(Result, len(formats))
	for _, rec := range records {
		result[rec.Format] = append(result[rec.Format], rec)
	}
	return src, result, nil
}

func (g *Generator) produce(
	ctx context.Context,
	src *source.Descriptor,
	ectx eligibility.Context,
	j job,
	opts Options,
	fingerprint string,
) (Record, error) {
	decision := eligibility.Decide(src, ectx, j.req)
	g.metrics.ObserveDecision(string(decision.Action), string(decision.Reason))
	g.logger.Debug("output decision",
		"source", src.Hash,
		"width", j.req.Width.Width,
		"format", j.req.Format,
		"action", decision.Action,
		"reason", decision.Reason,
	)

	m := materializer{
		accessor:  g.accessor,
		processor: g.processor,
		metrics:   g.metrics,
		src:       src,
		job:       j,
		decision:  decision,
		opts:      opts,
	}

	if !opts.cacheable() {
		return m.run(ctx)
	}

	// The action is part of the key, so a result processed under one
	// policy is never served where the other policy would copy.
	key := hasher.Key(0,
		src.Hash,
		j.req.DestPath,
		string(j.req.Format),
		strconv.Itoa(j.req.Width.Width),
		string(decision.Action),
		fingerprint,
		strconv.FormatBool(opts.wantBuffer()),
		strconv.FormatBool(opts.DryRun),
	)
	rec, hit, err := g.cache.Do(ctx, key, m.run)
	if err != nil {
		return Record{}, err
	}
	g.metrics.ObserveCache(hit)
	// The stored record and flight followers share one buffer; callers
	// always get their own.
	rec.Buffer = bytes.Clone(rec.Buffer)
	if !hit {
		return rec, nil
	}

	if !opts.DryRun && !m.onDisk(rec) {
		g.logger.Debug("cached output missing on disk, rebuilding", "path", rec.OutputPath)
		return m.run(ctx)
	}
	rec.Cached = true
	return rec, nil
}
