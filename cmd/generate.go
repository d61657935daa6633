package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"code.cloudfoundry.org/bytefmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/derivimg/internal/cache"
	"github.com/AnyUserName/derivimg/internal/config"
	"github.com/AnyUserName/derivimg/internal/dimension"
	"github.com/AnyUserName/derivimg/internal/encoder"
	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/manifest"
	"github.com/AnyUserName/derivimg/internal/metrics"
	"github.com/AnyUserName/derivimg/internal/pipeline"
	"github.com/AnyUserName/derivimg/internal/profile"
	"github.com/AnyUserName/derivimg/internal/source"
)

var (
	genDryRun     bool
	genManifest   bool
	genMetricsOut string
)

var generateCmd = &cobra.Command{
	Use:     "generate <path|url|dir>...",
	Aliases: []string{"build"},
	Short:   "Generate width x format derivatives and a manifest",
	Long: `Generates resized derivatives for every source argument. Arguments may
be image files, http(s) URLs or directories (scanned recursively for
jpg, png, webp, gif, tiff and bmp files).

Output filenames are <id>-<width>.<ext>, where id is derived from the
source content and the options that change output bytes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringSlice("widths", nil, "widths in px; auto/original = native width (default: preset)")
	f.StringSlice("formats", nil, "output formats; auto = source format (default: preset)")
	f.Bool("skip-original", false, "copy outputs matching the native width and format instead of re-encoding")
	f.Bool("force", false, "re-encode every output even when it could be copied")
	f.Bool("upscale", false, "allow widths larger than the source")
	f.Bool("lossless", false, "lossless encoding where supported (webp)")
	f.StringP("out", "o", "./img", "output directory")
	f.String("url-path", "/img/", "public URL prefix for outputs")
	f.IntP("quality", "q", 0, "quality 1-100 (0 = preset default)")
	f.IntP("workers", "w", 0, "parallel workers (0 = NumCPU)")
	f.StringP("preset", "p", profile.Default, "width/format preset: "+strings.Join(profile.Names(), ", "))
	f.String("cache", config.CacheMemory, "output cache: memory, redis or none")
	f.String("max-bytes", "64M", "reject sources larger than this")
	f.BoolVar(&genDryRun, "dry-run", false, "compute outputs without writing files")
	f.BoolVar(&genManifest, "manifest", true, "write "+manifest.FileName+" into the output directory")
	f.StringVar(&genMetricsOut, "metrics-out", "", "write Prometheus metrics in text format to this file")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()
	cfg := settings

	prof, err := profile.Get(cfg.Preset)
	if err != nil {
		return err
	}
	opts, err := generateOptions(cfg, prof)
	if err != nil {
		return err
	}
	opts.DryRun = genDryRun

	sources, err := collectSources(args)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cmd, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	opts.UseCache = store != nil

	reg := prometheus.NewRegistry()
	gen := pipeline.NewGenerator(pipeline.GeneratorConfig{
		Accessor: source.NewAccessor(source.AccessorConfig{
			MaxBytes: cfg.Source.MaxBytes,
			Timeout:  cfg.Source.Timeout,
		}),
		Store:              store,
		MaxCacheEntryBytes: cfg.Cache.MaxEntryBytes,
		Metrics:            metrics.MustNew(reg),
		Logger:             logger,
	})

	logger.Debug("generate",
		"sources", len(sources),
		"preset", prof.Name,
		"widths", strings.Join(prof.Widths, ","),
		"formats", strings.Join(opts.Formats, ","),
		"skip_original", opts.SkipOriginalProcessing,
		"out", opts.OutputDir,
		"cache", cfg.Cache.Backend,
	)

	p := pipeline.New(pipeline.Config{
		Preset:  prof.Name,
		Options: opts,
		Workers: cfg.Workers,
		Logger:  logger,
	}, gen)

	m, err := p.Run(ctx, sources)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if genManifest && !opts.DryRun {
		path := filepath.Join(opts.OutputDir, manifest.FileName)
		if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := manifest.WriteJSON(m, path); err != nil {
			return fmt.Errorf("write manifest: %w", err)
		}
	}
	if genMetricsOut != "" {
		if err := prometheus.WriteToTextfile(genMetricsOut, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	printGenerateReport(cmd.OutOrStdout(), m, time.Since(start))
	return nil
}

// generateOptions merges the preset with explicit settings.
func generateOptions(cfg *config.Config, prof profile.Profile) (pipeline.Options, error) {
	widths := prof.Widths
	if len(cfg.Widths) > 0 {
		widths = cfg.Widths
	}
	specs, err := dimension.ParseSpecs(widths)
	if err != nil {
		return pipeline.Options{}, err
	}

	formats := prof.Formats
	if len(cfg.Formats) > 0 {
		formats = cfg.Formats
	}
	// Reject bad names before any source is read.
	for _, f := range formats {
		if f == format.Auto {
			continue
		}
		if _, err := format.Normalize(f); err != nil {
			return pipeline.Options{}, err
		}
	}

	quality := prof.Quality
	if cfg.Quality > 0 {
		quality = cfg.Quality
	}
	skip := prof.SkipOriginal
	if cfg.SkipOriginalSet {
		skip = cfg.SkipOriginal
	}

	outDir, err := filepath.Abs(cfg.OutDir)
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("resolve output path: %w", err)
	}

	return pipeline.Options{
		Widths:                 specs,
		Formats:                formats,
		SkipOriginalProcessing: skip,
		ForceReprocess:         cfg.Force,
		AllowUpscale:           cfg.AllowUpscale,
		OutputDir:              outDir,
		URLPath:                cfg.URLPath,
		Encoding:               encoder.Options{Quality: quality, Lossless: cfg.Lossless},
	}, nil
}

// collectSources expands directory arguments and keeps files and URLs as
// given.
func collectSources(args []string) ([]pipeline.Source, error) {
	var sources []pipeline.Source
	for _, arg := range args {
		if source.Parse(arg).Kind() == source.RemoteURL {
			sources = append(sources, pipeline.SourceForArg(arg))
			continue
		}
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			sources = append(sources, pipeline.SourceForArg(arg))
			continue
		}
		found, err := pipeline.ScanImages(arg)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		logger.Debug("scanned", "dir", arg, "images", len(found))
		sources = append(sources, found...)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found")
	}
	return sources, nil
}

// openStore builds the configured cache backend. A nil store disables
// caching.
func openStore(cmd *cobra.Command, cfg *config.Config) (cache.Store[pipeline.Record], func(), error) {
	noop := func() {}
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, noop, nil
	case config.CacheRedis:
		r := cfg.Cache.Redis
		store, err := cache.NewRedis[pipeline.Record](cmd.Context(), cache.RedisConfig{
			Addr:     r.Addr,
			Username: r.Username,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
			TTL:      r.TTL,
		})
		if err != nil {
			return nil, noop, fmt.Errorf("open redis cache: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := cache.NewMemory[pipeline.Record](cfg.Cache.Size)
		if err != nil {
			return nil, noop, fmt.Errorf("open memory cache: %w", err)
		}
		return store, noop, nil
	}
}

func printGenerateReport(w io.Writer, m *manifest.Manifest, elapsed time.Duration) {
	fmt.Fprintln(w)
	title := "derivimg generate complete"
	if m.BuildInfo != nil && m.BuildInfo.DryRun {
		title += " (dry run)"
	}
	fmt.Fprintf(w, "  %s\n\n", title)

	stats := m.Stats
	ratio := float64(0)
	if stats.TotalInputBytes > 0 {
		ratio = float64(stats.TotalOutputBytes) / float64(stats.TotalInputBytes) * 100
	}

	fmt.Fprintf(w, "  Assets:      %d\n", stats.TotalAssets)
	fmt.Fprintf(w, "  Outputs:     %d (%d copied, %d processed)\n",
		stats.TotalVariants, stats.Copied, stats.TotalVariants-stats.Copied)
	fmt.Fprintf(w, "  Input size:  %s\n", humanBytes(stats.TotalInputBytes))
	fmt.Fprintf(w, "  Output size: %s\n", humanBytes(stats.TotalOutputBytes))
	fmt.Fprintf(w, "  Ratio:       %.1f%% of original\n", ratio)
	if stats.Failed > 0 {
		fmt.Fprintf(w, "  Failed:      %d sources\n", stats.Failed)
	}
	fmt.Fprintf(w, "  Time:        %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintln(w)

	// Top 10 heaviest assets.
	if len(m.Assets) > 0 {
		type assetSize struct {
			key        string
			inputSize  int64
			outputSize int64
		}
		var items []assetSize
		for key, a := range m.Assets {
			var outSum int64
			for _, v := range a.Variants {
				outSum += v.Size
			}
			items = append(items, assetSize{key, a.Original.Size, outSum})
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].inputSize != items[j].inputSize {
				return items[i].inputSize > items[j].inputSize
			}
			return items[i].key < items[j].key
		})
		n := min(len(items), 10)
		fmt.Fprintf(w, "  Top %d heaviest (original -> all outputs):\n", n)
		for _, it := range items[:n] {
			fmt.Fprintf(w, "    %-40s %8s -> %8s\n",
				truncKey(it.key, 40),
				humanBytes(it.inputSize),
				humanBytes(it.outputSize),
			)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "  Formats:     %s\n", strings.Join(outputFormats(m), ", "))
	if m.BuildInfo == nil || !m.BuildInfo.DryRun {
		data, _ := json.Marshal(m)
		fmt.Fprintf(w, "  Manifest:    %s (%s)\n", manifest.FileName, humanBytes(int64(len(data))))
	}
	fmt.Fprintln(w)
}

func outputFormats(m *manifest.Manifest) []string {
	set := map[string]bool{}
	for _, a := range m.Assets {
		for _, v := range a.Variants {
			set[v.Format] = true
		}
	}
	var out []string
	for _, f := range format.All {
		if set[string(f)] {
			out = append(out, string(f))
		}
	}
	return out
}

func humanBytes(b int64) string {
	if b <= 0 {
		return "0B"
	}
	return bytefmt.ByteSize(uint64(b))
}

func truncKey(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
