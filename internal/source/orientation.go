package source

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
)

// orientation returns the EXIF orientation (1-8) of a JPEG, or 1 when the
// tag is missing or unreadable.
func orientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// transposed reports whether an orientation swaps the displayed axes.
func transposed(o int) bool { return o >= 5 }
