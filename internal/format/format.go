// Package format resolves requested output format specifiers against the
// native format of a source image.
package format

import (
	"errors"
	"fmt"
	"strings"
)

// ID is a canonical output format identifier.
type ID string

const (
	JPEG ID = "jpeg"
	PNG  ID = "png"
	WebP ID = "webp"
	AVIF ID = "avif"
	GIF  ID = "gif"
	TIFF ID = "tiff"
	BMP  ID = "bmp"
)

// Auto requests the source's native format.
const Auto = "auto"

// ErrUnsupportedFormat matches every UnsupportedFormatError via errors.Is.
var ErrUnsupportedFormat = errors.New("unsupported format")

// UnsupportedFormatError reports an explicit format name with no entry in
// the alias table.
type UnsupportedFormatError struct {
	Name string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Name)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// aliases maps every accepted spelling to its canonical ID. Only names that
// denote byte-compatible encodings share an ID: jpg/jpeg are the same
// bitstream, and decoders report AVIF files by their HEIF container name.
// Sibling codecs (jxl, apng, jp2, heic) are not aliases.
var aliases = map[string]ID{
	"jpeg": JPEG,
	"jpg":  JPEG,
	"jpe":  JPEG,
	"jfif": JPEG,
	"png":  PNG,
	"webp": WebP,
	"avif": AVIF,
	"heif": AVIF,
	"gif":  GIF,
	"tiff": TIFF,
	"tif":  TIFF,
	"bmp":  BMP,
}

// All lists the canonical IDs in priority order.
var All = []ID{AVIF, WebP, JPEG, PNG, GIF, TIFF, BMP}

// Normalize maps a format name (any case, optional leading dot) to its
// canonical ID.
func Normalize(name string) (ID, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if id, ok := aliases[key]; ok {
		return id, nil
	}
	return "", &UnsupportedFormatError{Name: name}
}

// Equivalent reports whether two format names denote the same encoding.
// Unknown names are never equivalent to anything.
func Equivalent(a, b string) bool {
	ida, err := Normalize(a)
	if err != nil {
		return false
	}
	idb, err := Normalize(b)
	if err != nil {
		return false
	}
	return ida == idb
}

// Extension returns the file extension (without dot) used for outputs.
func (id ID) Extension() string {
	return string(id)
}

func (id ID) String() string { return string(id) }

// Resolve maps each requested specifier to a concrete ID. "auto" (or an
// empty specifier) resolves to native. Duplicates are dropped keeping the
// first occurrence, since outputs are grouped by format. An empty request
// behaves like ["auto"].
func Resolve(specs []string, native ID) ([]ID, error) {
	if len(specs) == 0 {
		specs = []string{Auto}
	}

	resolved := make([]ID, 0, len(specs))
	seen := map[ID]bool{}
	for _, s := range specs {
		var id ID
		if t := strings.ToLower(strings.TrimSpace(s)); t == Auto || t == "" {
			n, err := Normalize(string(native))
			if err != nil {
				return nil, fmt.Errorf("resolve auto format: %w", err)
			}
			id = n
		} else {
			n, err := Normalize(s)
			if err != nil {
				return nil, err
			}
			id = n
		}
		if !seen[id] {
			seen[id] = true
			resolved = append(resolved, id)
		}
	}
	return resolved, nil
}
