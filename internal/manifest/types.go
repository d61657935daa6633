package manifest

// Manifest is the top-level output of a derivimg run.
type Manifest struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	Preset      string           `json:"preset"`
	BasePath    string           `json:"base_path"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	Assets      map[string]Asset `json:"assets"`
	Stats       Stats            `json:"stats"`
}

// BuildInfo captures run parameters for diagnostics.
type BuildInfo struct {
	Workers                int  `json:"workers"`
	SkipOriginalProcessing bool `json:"skip_original_processing"`
	DryRun                 bool `json:"dry_run,omitempty"`
}

// Asset describes a single source image and all its outputs.
type Asset struct {
	Original    OriginalInfo `json:"original"`
	AspectRatio float64      `json:"aspect_ratio"` // width / height
	Variants    []Variant    `json:"variants"`
}

// OriginalInfo holds metadata about the source image.
type OriginalInfo struct {
	Kind   string `json:"kind"` // file, buffer, url
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"` // xxhash64 of the source bytes
}

// Variant is one output of an asset at a specific width and format.
type Variant struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"` // bytes on disk
	Path   string `json:"path"` // relative to base_path
	URL    string `json:"url"`
	Action string `json:"action"` // copy or process
	Reason string `json:"reason"`
}

// Stats aggregates run metrics.
type Stats struct {
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
	TotalAssets      int   `json:"total_assets"`
	TotalVariants    int   `json:"total_variants"`
	Copied           int   `json:"copied"`
	CopiedBytes      int64 `json:"copied_bytes"`
	Failed           int   `json:"failed,omitempty"`
}

// SupportedManifestVersion is the current schema version.
const SupportedManifestVersion = 1

// FileName is the manifest name inside an output directory.
const FileName = "derivimg.manifest.json"

// ActionCopy marks a variant copied verbatim from the source.
const ActionCopy = "copy"
