package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/derivimg/internal/config"
	"github.com/AnyUserName/derivimg/internal/fixture"
	"github.com/AnyUserName/derivimg/internal/manifest"
	"github.com/AnyUserName/derivimg/internal/profile"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateValidateStats(t *testing.T) {
	work := t.TempDir()
	t.Chdir(work)
	t.Setenv("HOME", work)

	src := filepath.Join(work, "src")
	bio, err := fixture.WriteJPEG(src, "bio.jpg", 1280, 853)
	require.NoError(t, err)
	_, err = fixture.WritePNG(src, "cards/mascot.png", 815, 600)
	require.NoError(t, err)

	out := filepath.Join(work, "img")
	metricsPath := filepath.Join(work, "metrics.prom")

	report, err := execute(t, "generate", src,
		"--out", out,
		"--widths", "300,auto",
		"--formats", "auto",
		"--skip-original",
		"--cache", "memory",
		"--metrics-out", metricsPath,
	)
	require.NoError(t, err)
	assert.Contains(t, report, "4 (2 copied, 2 processed)")

	m, err := manifest.ReadJSON(filepath.Join(out, manifest.FileName))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Stats.TotalAssets)
	assert.Equal(t, 2, m.Stats.Copied)

	asset := m.Assets["bio"]
	require.Len(t, asset.Variants, 2)
	copied := asset.Variants[1]
	assert.Equal(t, manifest.ActionCopy, copied.Action)
	want, err := os.ReadFile(bio)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(out, copied.Path))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `derivimg_decisions_total{action="copy",reason="eligible"} 2`)

	report, err = execute(t, "validate", out)
	require.NoError(t, err)
	assert.Contains(t, report, "manifest is valid")

	report, err = execute(t, "stats", filepath.Join(out, manifest.FileName))
	require.NoError(t, err)
	assert.Contains(t, report, "Copied:           2")
	assert.Contains(t, report, "eligible")

	require.NoError(t, os.WriteFile(filepath.Join(out, copied.Path), []byte("truncated"), 0o644))
	_, err = execute(t, "validate", out)
	assert.Error(t, err)
}

func TestValidateManifestFlagsBadCopies(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a-1280.jpeg"), make([]byte, 10), 0o644))

	m := manifest.New("test")
	m.Assets["bio"] = manifest.Asset{
		Original:    manifest.OriginalInfo{Kind: "file", Width: 1280, Height: 853, Format: "jpeg", Size: 100},
		AspectRatio: 1.5,
		Variants: []manifest.Variant{
			{Format: "jpeg", Width: 1280, Height: 853, Size: 10, Path: "a-1280.jpeg", Action: "copy", Reason: "eligible"},
			{Format: "jpeg", Width: 300, Height: 200, Size: 5, Path: "a-300.jpeg", Action: "resize"},
		},
	}
	m.ComputeStats()

	errs := validateManifest(m, dir)
	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "copy differs from original")
	assert.Contains(t, errs[1], "unknown action")
	assert.Contains(t, errs[2], "file not found")
}

func TestGenerateOptionsMergesPreset(t *testing.T) {
	prof, err := profile.Get("minimal")
	require.NoError(t, err)

	opts, err := generateOptions(&config.Config{OutDir: "img", Workers: 8}, prof)
	require.NoError(t, err)
	assert.Len(t, opts.Widths, 3)
	assert.True(t, opts.Widths[2].IsOriginal())
	assert.Equal(t, []string{"webp", "auto"}, opts.Formats)
	assert.Equal(t, 78, opts.Encoding.Quality)
	assert.True(t, opts.SkipOriginalProcessing)
	assert.True(t, filepath.IsAbs(opts.OutputDir))
	assert.Zero(t, opts.Workers, "output workers are split by the batch pipeline")

	opts, err = generateOptions(&config.Config{
		Widths:          []string{"640"},
		Formats:         []string{"jpg"},
		Quality:         90,
		SkipOriginalSet: true,
	}, prof)
	require.NoError(t, err)
	assert.Len(t, opts.Widths, 1)
	assert.Equal(t, []string{"jpg"}, opts.Formats)
	assert.Equal(t, 90, opts.Encoding.Quality)
	assert.False(t, opts.SkipOriginalProcessing)

	_, err = generateOptions(&config.Config{Formats: []string{"jxl"}}, prof)
	assert.Error(t, err)
	_, err = generateOptions(&config.Config{Widths: []string{"wide"}}, prof)
	assert.Error(t, err)
}
