package encoder

import (
	"bytes"
	"context"
	"image"

	"github.com/chai2010/webp"

	"github.com/AnyUserName/derivimg/internal/format"
)

// WebPEncoder encodes images to WebP in-process through libwebp.
type WebPEncoder struct{}

func (e *WebPEncoder) Format() format.ID { return format.WebP }
func (e *WebPEncoder) Available() bool   { return true }

func (e *WebPEncoder) Encode(_ context.Context, img image.Image, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	err := webp.Encode(&buf, img, &webp.Options{
		Lossless: opts.Lossless,
		Quality:  float32(opts.quality()),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
