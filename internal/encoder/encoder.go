package encoder

import (
	"context"
	"image"

	"github.com/AnyUserName/derivimg/internal/format"
)

// DefaultQuality is used when a caller leaves quality unset.
const DefaultQuality = 82

// Options are the pass-through encoding settings.
type Options struct {
	// Quality is 1-100; 0 selects DefaultQuality. Ignored by lossless
	// formats.
	Quality int
	// Lossless asks encoders that support it (webp) for lossless output.
	Lossless bool
}

func (o Options) quality() int {
	if o.Quality <= 0 || o.Quality > 100 {
		return DefaultQuality
	}
	return o.Quality
}

// Encoder encodes an image to a specific format.
type Encoder interface {
	// Format returns the output format.
	Format() format.ID

	// Encode converts the image to bytes.
	Encode(ctx context.Context, img image.Image, opts Options) ([]byte, error)

	// Available returns true if the encoder is ready to use.
	// External encoders (avifenc) may not be installed.
	Available() bool
}
