// Package dimension resolves requested output widths against the native
// width of a source image.
package dimension

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidWidth matches every InvalidWidthError via errors.Is.
var ErrInvalidWidth = errors.New("invalid width")

// InvalidWidthError reports a non-positive or non-integer explicit width.
type InvalidWidthError struct {
	Value string
}

func (e *InvalidWidthError) Error() string {
	return fmt.Sprintf("invalid width %q: must be a positive integer, auto or null", e.Value)
}

func (e *InvalidWidthError) Is(target error) bool {
	return target == ErrInvalidWidth
}

// Spec is a requested width: either an explicit pixel count or "original".
type Spec struct {
	px       int
	original bool
}

// Explicit requests an exact width in pixels.
func Explicit(px int) Spec { return Spec{px: px} }

// Original requests the source's native width.
func Original() Spec { return Spec{original: true} }

// IsOriginal reports whether the spec denotes the native width.
func (s Spec) IsOriginal() bool { return s.original }

func (s Spec) String() string {
	if s.original {
		return "auto"
	}
	return strconv.Itoa(s.px)
}

// originalSynonyms are the textual spellings that mean "native width".
var originalSynonyms = map[string]bool{
	"":         true,
	"auto":     true,
	"null":     true,
	"original": true,
}

// ParseSpec parses a single textual width specifier.
func ParseSpec(s string) (Spec, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	if originalSynonyms[t] {
		return Original(), nil
	}
	px, err := strconv.Atoi(t)
	if err != nil || px <= 0 {
		return Spec{}, &InvalidWidthError{Value: s}
	}
	return Explicit(px), nil
}

// ParseSpecs parses a list of textual width specifiers.
func ParseSpecs(values []string) ([]Spec, error) {
	specs := make([]Spec, 0, len(values))
	for _, v := range values {
		s, err := ParseSpec(v)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	return specs, nil
}

// Resolved is a concrete width plus whether it came from an "original"
// specifier.
type Resolved struct {
	Width    int
	Original bool
}

// Resolve maps each spec to a concrete width, in order. Duplicates are
// kept; see Plan for caller-level deduplication. An empty request resolves
// to the native width.
func Resolve(specs []Spec, nativeWidth int) ([]Resolved, error) {
	if nativeWidth <= 0 {
		return nil, fmt.Errorf("native width must be positive, got %d", nativeWidth)
	}
	if len(specs) == 0 {
		return []Resolved{{Width: nativeWidth, Original: true}}, nil
	}

	out := make([]Resolved, 0, len(specs))
	for _, s := range specs {
		if s.original {
			out = append(out, Resolved{Width: nativeWidth, Original: true})
			continue
		}
		if s.px <= 0 {
			return nil, &InvalidWidthError{Value: strconv.Itoa(s.px)}
		}
		out = append(out, Resolved{Width: s.px})
	}
	return out, nil
}

// Plan prepares resolved widths for output: widths above native are dropped
// unless allowUpscale is set (falling back to native when nothing is left),
// then duplicates are removed keeping the first position. A kept width is
// marked Original if any of its duplicates was.
func Plan(resolved []Resolved, nativeWidth int, allowUpscale bool) []Resolved {
	var out []Resolved
	index := map[int]int{}

	for _, r := range resolved {
		if !allowUpscale && r.Width > nativeWidth {
			continue
		}
		if i, ok := index[r.Width]; ok {
			out[i].Original = out[i].Original || r.Original
			continue
		}
		index[r.Width] = len(out)
		out = append(out, r)
	}

	if len(out) == 0 && nativeWidth > 0 {
		out = append(out, Resolved{Width: nativeWidth, Original: true})
	}
	return out
}
