package encoder

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/AnyUserName/derivimg/internal/format"
)

// PNGEncoder encodes images to PNG using Go's standard library.
type PNGEncoder struct{}

func (e *PNGEncoder) Format() format.ID { return format.PNG }
func (e *PNGEncoder) Available() bool   { return true }

func (e *PNGEncoder) Encode(_ context.Context, img image.Image, _ Options) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(512 * 1024)

	enc := &png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
