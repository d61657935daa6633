package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/AnyUserName/derivimg/internal/format"
)

// TransformFunc is a caller-supplied pixel transform applied after resize.
type TransformFunc func(image.Image) image.Image

// Request describes one derivative to produce.
type Request struct {
	Width     int
	Format    format.ID
	Options   Options
	Transform TransformFunc
}

// Output is an encoded derivative.
type Output struct {
	Data   []byte
	Width  int
	Height int
}

// Processor is the pixel pipeline: decode, resize, transform, encode.
type Processor interface {
	Process(ctx context.Context, src []byte, req Request) (Output, error)
}

// ImagingProcessor implements Processor with disintegration/imaging and the
// encoder registry.
type ImagingProcessor struct {
	registry *Registry
}

// NewProcessor returns an ImagingProcessor using reg (NewRegistry when nil).
func NewProcessor(reg *Registry) *ImagingProcessor {
	if reg == nil {
		reg = NewRegistry()
	}
	return &ImagingProcessor{registry: reg}
}

// Registry returns the encoder registry in use.
func (p *ImagingProcessor) Registry() *Registry { return p.registry }

func (p *ImagingProcessor) Process(ctx context.Context, src []byte, req Request) (Output, error) {
	if req.Width <= 0 {
		return Output{}, fmt.Errorf("invalid target width %d", req.Width)
	}
	enc, err := p.registry.Get(req.Format)
	if err != nil {
		return Output{}, err
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return Output{}, fmt.Errorf("decode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	if req.Width != origW {
		h := int(float64(origH)*float64(req.Width)/float64(origW) + 0.5)
		if h < 1 {
			h = 1
		}
		img = imaging.Resize(img, req.Width, h, imaging.Lanczos)
	}

	if req.Transform != nil {
		img = req.Transform(img)
		if img == nil {
			return Output{}, fmt.Errorf("transform returned nil image")
		}
	}
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	data, err := enc.Encode(ctx, img, req.Options)
	if err != nil {
		return Output{}, fmt.Errorf("encode %s: %w", req.Format, err)
	}

	out := img.Bounds()
	return Output{Data: data, Width: out.Dx(), Height: out.Dy()}, nil
}
