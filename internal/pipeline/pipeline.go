package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/manifest"
	"github.com/AnyUserName/derivimg/internal/source"
)

// Config holds all parameters for a batch run.
type Config struct {
	Preset  string
	Options Options
	// Workers bounds the number of sources processed at once. Unless
	// Options.Workers is set, outputs within a source share the remaining
	// CPUs.
	Workers int
	Logger  *slog.Logger
}

// Pipeline runs a Generator over many sources and collects a manifest.
type Pipeline struct {
	cfg       Config
	generator *Generator
}

// New creates a configured pipeline.
func New(cfg Config, g *Generator) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Options.Workers <= 0 {
		cfg.Options.Workers = outputWorkers(cfg.Workers)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, generator: g}
}

type sourceResult struct {
	key   string
	asset manifest.Asset
	err   error
}

// Run generates outputs for every source. A failing source is logged and
// counted; the run fails only when every source failed.
func (p *Pipeline) Run(ctx context.Context, sources []Source) (*manifest.Manifest, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources")
	}
	log := p.cfg.Logger
	sources = uniqueKeys(sources, log)
	log.Debug("batch start", "sources", len(sources), "workers", p.cfg.Workers)

	results := make([]sourceResult, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			log.Debug("processing", "key", s.Key)
			results[idx] = p.runOne(ctx, s)
			if results[idx].err == nil {
				log.Debug("done", "key", s.Key, "variants", len(results[idx].asset.Variants))
			}
		}(i, src)
	}
	wg.Wait()

	m := manifest.New(p.cfg.Preset)

	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			log.Error("source failed", "key", r.key, "error", r.err)
			continue
		}
		m.Assets[r.key] = r.asset
	}
	if failed == len(sources) {
		return nil, fmt.Errorf("all %d sources failed", failed)
	}
	if failed > 0 {
		log.Warn("partial failure", "failed", failed, "total", len(sources))
	}

	m.BuildInfo = &manifest.BuildInfo{
		Workers:                p.cfg.Workers,
		SkipOriginalProcessing: p.cfg.Options.SkipOriginalProcessing,
		DryRun:                 p.cfg.Options.DryRun,
	}
	m.Stats.Failed = failed
	m.ComputeStats()
	return m, nil
}

func (p *Pipeline) runOne(ctx context.Context, s Source) sourceResult {
	res := sourceResult{key: s.Key}

	desc, result, err := p.generator.generate(ctx, s.Input, p.cfg.Options)
	if err != nil {
		res.err = fmt.Errorf("%s: %w", s.Key, err)
		return res
	}

	res.asset = assetFor(desc, result, p.cfg.Options.OutputDir)
	return res
}

// assetFor converts a Result into a manifest asset. Variant paths are
// relative to outputDir.
func assetFor(desc *source.Descriptor, result Result, outputDir string) manifest.Asset {
	asset := manifest.Asset{
		Original: manifest.OriginalInfo{
			Kind:   desc.Kind.String(),
			Width:  desc.Width,
			Height: desc.Height,
			Format: string(desc.Format),
			Size:   desc.Size,
			Hash:   desc.Hash,
		},
		AspectRatio: float64(desc.Width) / float64(desc.Height),
	}

	base, _ := filepath.Abs(outputDirOrDefault(outputDir))
	for _, f := range format.All {
		for _, r := range result[f] {
			rel := r.Filename
			if base != "" {
				if p, err := filepath.Rel(base, r.OutputPath); err == nil {
					rel = p
				}
			}
			asset.Variants = append(asset.Variants, manifest.Variant{
				Format: string(r.Format),
				Width:  r.Width,
				Height: r.Height,
				Size:   r.Size,
				Path:   filepath.ToSlash(rel),
				URL:    r.URL,
				Action: string(r.Action),
				Reason: string(r.Reason),
			})
		}
	}
	return asset
}

func outputDirOrDefault(dir string) string {
	if dir == "" {
		return defaultOutputDir
	}
	return dir
}

// GenerateDir scans dir and runs Generate for every image found, keyed like
// manifest assets. A failing file is logged and skipped; the call fails
// only when every file failed.
func (g *Generator) GenerateDir(ctx context.Context, dir string, opts Options) (map[string]Result, error) {
	sources, err := ScanImages(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}

	sources = uniqueKeys(sources, g.logger)
	out := make(map[string]Result, len(sources))
	var errs []error
	for _, s := range sources {
		res, err := g.Generate(ctx, s.Input, opts)
		if err != nil {
			g.logger.Error("source failed", "key", s.Key, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Key, err))
			continue
		}
		out[s.Key] = res
	}
	if len(errs) == len(sources) {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// outputWorkers splits the CPUs between concurrent sources so a batch runs
// about NumCPU encodes at once rather than sources x NumCPU.
func outputWorkers(sourceWorkers int) int {
	return max(1, runtime.NumCPU()/max(1, sourceWorkers))
}

// uniqueKeys makes source keys distinct so no asset overwrites another.
// Colliding keys keep their extension ("x.jpg", "x.png"); keys still
// colliding get a numeric suffix ("x.jpg-2").
func uniqueKeys(sources []Source, log *slog.Logger) []Source {
	counts := make(map[string]int, len(sources))
	for _, s := range sources {
		counts[s.Key]++
	}

	out := make([]Source, len(sources))
	used := make(map[string]bool, len(sources))
	for i, s := range sources {
		key := s.Key
		if counts[key] > 1 {
			key += sourceExt(s.Input)
		}
		if used[key] {
			base := key
			for n := 2; used[key]; n++ {
				key = base + "-" + strconv.Itoa(n)
			}
		}
		used[key] = true
		if key != s.Key {
			log.Warn("duplicate source key renamed", "source", s.Input.String(), "from", s.Key, "to", key)
		}
		out[i] = Source{Key: key, Input: s.Input}
	}
	return out
}

func sourceExt(in source.Input) string {
	if in.Kind() == source.RemoteURL {
		if u, err := url.Parse(in.String()); err == nil {
			return path.Ext(u.Path)
		}
		return ""
	}
	return filepath.Ext(in.String())
}
