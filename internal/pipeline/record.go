package pipeline

import (
	"strconv"
	"strings"

	"github.com/AnyUserName/derivimg/internal/dimension"
	"github.com/AnyUserName/derivimg/internal/eligibility"
	"github.com/AnyUserName/derivimg/internal/encoder"
	"github.com/AnyUserName/derivimg/internal/format"
)

// Record describes one produced output.
type Record struct {
	Width      int                `json:"width"`
	Height     int                `json:"height"`
	Format     format.ID          `json:"format"`
	Filename   string             `json:"filename"`
	OutputPath string             `json:"output_path"`
	URL        string             `json:"url"`
	Size       int64              `json:"size"`
	Buffer     []byte             `json:"buffer,omitempty"`
	Action     eligibility.Action `json:"action"`
	Reason     eligibility.Reason `json:"reason"`
	Cached     bool               `json:"cached,omitempty"`
}

// Result groups records by format. Within a group, records follow the
// order of the requested widths.
type Result map[format.ID][]Record

// Records flattens the result in the given format order.
func (r Result) Records(order []format.ID) []Record {
	var out []Record
	for _, f := range order {
		out = append(out, r[f]...)
	}
	return out
}

// Namer builds the output filename for one derivative. id is derived from
// the source identity and the options fingerprint.
type Namer func(id string, width int, f format.ID) string

// DefaultNamer produces "<id>-<width>.<ext>".
func DefaultNamer(id string, width int, f format.ID) string {
	return id + "-" + strconv.Itoa(width) + "." + f.Extension()
}

// Options configures one Generate call.
type Options struct {
	Widths  []dimension.Spec
	Formats []string

	// SkipOriginalProcessing copies the source verbatim for outputs whose
	// width and format match the original.
	SkipOriginalProcessing bool
	// ForceReprocess disables copying regardless of other options.
	ForceReprocess bool
	// Transform is applied to the pixels of every processed output. Its
	// presence disables copying for the whole call.
	Transform encoder.TransformFunc
	// TransformKey names Transform for cache keys and filenames. Without
	// it, calls carrying a Transform bypass the cache.
	TransformKey string

	// DryRun produces buffers without touching disk.
	DryRun bool
	// ReturnBuffer attaches output bytes to records outside dry runs too.
	ReturnBuffer bool
	UseCache     bool
	AllowUpscale bool

	OutputDir string
	URLPath   string
	Namer     Namer

	Encoding encoder.Options
	// Workers bounds concurrent outputs within the call (0 = NumCPU).
	Workers int
}

const (
	defaultOutputDir = "img"
	defaultURLPath   = "/img/"
)

func (o Options) transformPresent() bool { return o.Transform != nil }

func (o Options) wantBuffer() bool { return o.DryRun || o.ReturnBuffer }

// cacheable reports whether outputs of this call may be shared through the
// cache coordinator.
func (o Options) cacheable() bool {
	return o.UseCache && (o.Transform == nil || o.TransformKey != "")
}

// fingerprint captures every option that changes output bytes.
func (o Options) fingerprint() string {
	parts := []string{
		"skip=" + strconv.FormatBool(o.SkipOriginalProcessing),
		"force=" + strconv.FormatBool(o.ForceReprocess),
		"q=" + strconv.Itoa(o.Encoding.Quality),
		"lossless=" + strconv.FormatBool(o.Encoding.Lossless),
	}
	if o.Transform != nil {
		parts = append(parts, "transform="+o.TransformKey)
	}
	return strings.Join(parts, ";")
}

func (o Options) urlFor(filename string) string {
	base := o.URLPath
	if base == "" {
		base = defaultURLPath
	}
	return strings.TrimSuffix(base, "/") + "/" + filename
}
