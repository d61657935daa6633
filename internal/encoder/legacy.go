package encoder

import (
	"bytes"
	"context"
	"image"
	"image/gif"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/AnyUserName/derivimg/internal/format"
)

// GIFEncoder encodes still GIFs with a 256 colour palette.
type GIFEncoder struct{}

func (e *GIFEncoder) Format() format.ID { return format.GIF }
func (e *GIFEncoder) Available() bool   { return true }

func (e *GIFEncoder) Encode(_ context.Context, img image.Image, _ Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, &gif.Options{NumColors: 256}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TIFFEncoder encodes deflate-compressed TIFFs.
type TIFFEncoder struct{}

func (e *TIFFEncoder) Format() format.ID { return format.TIFF }
func (e *TIFFEncoder) Available() bool   { return true }

func (e *TIFFEncoder) Encode(_ context.Context, img image.Image, _ Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BMPEncoder encodes uncompressed BMPs.
type BMPEncoder struct{}

func (e *BMPEncoder) Format() format.ID { return format.BMP }
func (e *BMPEncoder) Available() bool   { return true }

func (e *BMPEncoder) Encode(_ context.Context, img image.Image, _ Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
