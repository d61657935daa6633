package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/derivimg/internal/eligibility"
	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/manifest"
)

var statsCmd = &cobra.Command{
	Use:   "stats <out_dir_or_manifest>",
	Short: "Display statistics for a generated output directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	path, err := manifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := manifest.ReadJSON(path)
	if err != nil {
		return err
	}
	printStats(cmd.OutOrStdout(), m)
	return nil
}

// manifestPath accepts either a manifest file or the directory holding it.
func manifestPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, manifest.FileName)
	}
	return path, nil
}

func printStats(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Manifest version: %d\n", m.Version)
	fmt.Fprintf(w, "  Generated:        %s\n", m.GeneratedAt)
	fmt.Fprintf(w, "  Preset:           %s\n", m.Preset)
	if m.BuildInfo != nil {
		fmt.Fprintf(w, "  Workers:          %d\n", m.BuildInfo.Workers)
		fmt.Fprintf(w, "  Skip original:    %t\n", m.BuildInfo.SkipOriginalProcessing)
	}
	fmt.Fprintln(w)

	s := m.Stats
	fmt.Fprintf(w, "  Total assets:     %d\n", s.TotalAssets)
	fmt.Fprintf(w, "  Total outputs:    %d\n", s.TotalVariants)
	fmt.Fprintf(w, "  Copied:           %d (%s)\n", s.Copied, humanBytes(s.CopiedBytes))
	fmt.Fprintf(w, "  Processed:        %d (%s)\n", s.TotalVariants-s.Copied, humanBytes(s.TotalOutputBytes-s.CopiedBytes))
	fmt.Fprintf(w, "  Input size:       %s\n", humanBytes(s.TotalInputBytes))
	fmt.Fprintf(w, "  Output size:      %s\n", humanBytes(s.TotalOutputBytes))
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Failed sources:   %d\n", s.Failed)
	}
	fmt.Fprintln(w)

	// Per-format breakdown.
	formatStats := map[string]struct {
		count int
		bytes int64
	}{}
	reasons := map[string]int{}
	widthStats := map[int]int{}
	for _, a := range m.Assets {
		for _, v := range a.Variants {
			fs := formatStats[v.Format]
			fs.count++
			fs.bytes += v.Size
			formatStats[v.Format] = fs
			reasons[v.Reason]++
			widthStats[v.Width]++
		}
	}

	fmt.Fprintln(w, "  Format breakdown:")
	for _, f := range format.All {
		if fs, ok := formatStats[string(f)]; ok {
			fmt.Fprintf(w, "    %-6s  %4d files  %s\n", f, fs.count, humanBytes(fs.bytes))
		}
	}
	fmt.Fprintln(w)

	var widths []int
	for width := range widthStats {
		widths = append(widths, width)
	}
	sort.Ints(widths)
	fmt.Fprintln(w, "  Width breakdown:")
	for _, width := range widths {
		fmt.Fprintf(w, "    %5dpx  %4d outputs\n", width, widthStats[width])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "  Decisions:")
	for _, r := range eligibility.Reasons {
		if n := reasons[string(r)]; n > 0 {
			fmt.Fprintf(w, "    %-22s %4d\n", r, n)
		}
	}

	// Warnings.
	var warnings []string
	for key, a := range m.Assets {
		if len(a.Variants) == 0 {
			warnings = append(warnings, fmt.Sprintf("asset %q has no outputs", key))
		}
	}
	if m.BuildInfo != nil && m.BuildInfo.SkipOriginalProcessing && s.Copied == 0 && s.TotalVariants > 0 {
		warnings = append(warnings, "skip-original was on but nothing was copied (request the native width?)")
	}
	sort.Strings(warnings)
	if len(warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  Warnings (%d):\n", len(warnings))
		for _, msg := range warnings {
			fmt.Fprintf(w, "    ! %s\n", msg)
		}
	}
	fmt.Fprintln(w)
}
