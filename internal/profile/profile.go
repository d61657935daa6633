// Package profile holds named width/format presets for the CLI.
package profile

import (
	"fmt"
	"sort"

	"github.com/AnyUserName/derivimg/internal/dimension"
)

// Profile is a named set of requested widths and formats. Widths use the
// same spellings as the CLI ("auto" requests the native width).
type Profile struct {
	Name    string
	Widths  []string
	Formats []string
	Quality int // encoding quality 1-100
	// SkipOriginal enables verbatim copies for outputs matching the source.
	SkipOriginal bool
}

// Default is the preset used when none is named.
const Default = "responsive"

// Built-in profiles.
var profiles = map[string]Profile{
	"original": {
		Name:         "original",
		Widths:       []string{"auto"},
		Formats:      []string{"auto"},
		Quality:      82,
		SkipOriginal: true,
	},
	"responsive": {
		Name:         "responsive",
		Widths:       []string{"320", "640", "960", "1280", "auto"},
		Formats:      []string{"webp", "auto"},
		Quality:      82,
		SkipOriginal: true,
	},
	"responsive-hq": {
		Name:    "responsive-hq",
		Widths:  []string{"320", "640", "960", "1280", "1920", "auto"},
		Formats: []string{"avif", "webp", "auto"},
		Quality: 88,
	},
	"minimal": {
		Name:         "minimal",
		Widths:       []string{"320", "640", "auto"},
		Formats:      []string{"webp", "auto"},
		Quality:      78,
		SkipOriginal: true,
	},
}

// Get returns a profile by name.
func Get(name string) (Profile, error) {
	if name == "" {
		name = Default
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown preset %q (available: %v)", name, Names())
	}
	p.Widths = append([]string(nil), p.Widths...)
	p.Formats = append([]string(nil), p.Formats...)
	return p, nil
}

// Names lists the built-in profiles alphabetically.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WidthSpecs parses the profile widths.
func (p Profile) WidthSpecs() ([]dimension.Spec, error) {
	return dimension.ParseSpecs(p.Widths)
}
