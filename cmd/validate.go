package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/AnyUserName/derivimg/internal/eligibility"
	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate <out_dir_or_manifest>",
	Short: "Validate a derivimg manifest and check referenced files exist",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, err := manifestPath(args[0])
	if err != nil {
		return err
	}
	m, err := manifest.ReadJSON(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errs := validateManifest(m, filepath.Dir(path))
	if len(errs) == 0 {
		fmt.Fprintln(out, "  ok: manifest is valid")
		fmt.Fprintf(out, "  ok: %d assets, %d outputs, all files present\n", m.Stats.TotalAssets, m.Stats.TotalVariants)
		return nil
	}

	fmt.Fprintf(out, "  manifest has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(out, "    - %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

func validateManifest(m *manifest.Manifest, baseDir string) []string {
	var errs []string

	if m.Version != manifest.SupportedManifestVersion {
		errs = append(errs, fmt.Sprintf("unsupported manifest version: %d", m.Version))
	}

	keys := make([]string, 0, len(m.Assets))
	for key := range m.Assets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	seenPaths := map[string]string{}
	copied := 0
	for _, key := range keys {
		asset := m.Assets[key]
		orig := asset.Original

		if orig.Width <= 0 || orig.Height <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid original dimensions %dx%d",
				key, orig.Width, orig.Height))
		}
		if asset.AspectRatio <= 0 {
			errs = append(errs, fmt.Sprintf("asset %q: invalid aspect ratio %.4f", key, asset.AspectRatio))
		}
		if len(asset.Variants) == 0 {
			errs = append(errs, fmt.Sprintf("asset %q: no outputs", key))
		}

		for i, v := range asset.Variants {
			if _, err := format.Normalize(v.Format); err != nil {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: %v", key, i, err))
			}
			if v.Width <= 0 || v.Height <= 0 {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: invalid dimensions %dx%d",
					key, i, v.Width, v.Height))
			}

			switch eligibility.Action(v.Action) {
			case eligibility.Copy:
				copied++
				// A copy is the source itself.
				if v.Width != orig.Width || v.Height != orig.Height || v.Size != orig.Size {
					errs = append(errs, fmt.Sprintf("asset %q output[%d]: copy differs from original (%dx%d, %d bytes)",
						key, i, v.Width, v.Height, v.Size))
				}
				if !format.Equivalent(v.Format, orig.Format) {
					errs = append(errs, fmt.Sprintf("asset %q output[%d]: copy format %s != original %s",
						key, i, v.Format, orig.Format))
				}
			case eligibility.Process:
			default:
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: unknown action %q", key, i, v.Action))
			}

			if v.Path == "" {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: missing path", key, i))
				continue
			}
			if owner, dup := seenPaths[v.Path]; dup {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: duplicate path %q (also in %q)", key, i, v.Path, owner))
			}
			seenPaths[v.Path] = key

			info, err := os.Stat(filepath.Join(baseDir, filepath.FromSlash(v.Path)))
			if err != nil {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: file not found: %s", key, i, v.Path))
			} else if info.Size() != v.Size {
				errs = append(errs, fmt.Sprintf("asset %q output[%d]: size mismatch: manifest=%d, disk=%d",
					key, i, v.Size, info.Size()))
			}
		}
	}

	// Verify stats consistency.
	variantCount := 0
	for _, a := range m.Assets {
		variantCount += len(a.Variants)
	}
	if m.Stats.TotalAssets != len(m.Assets) {
		errs = append(errs, fmt.Sprintf("stats.total_assets mismatch: %d != %d", m.Stats.TotalAssets, len(m.Assets)))
	}
	if m.Stats.TotalVariants != variantCount {
		errs = append(errs, fmt.Sprintf("stats.total_variants mismatch: %d != %d", m.Stats.TotalVariants, variantCount))
	}
	if m.Stats.Copied != copied {
		errs = append(errs, fmt.Sprintf("stats.copied mismatch: %d != %d", m.Stats.Copied, copied))
	}

	return errs
}
