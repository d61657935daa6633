// Package fixture generates deterministic source images for tests and the
// e2e smoke run.
package fixture

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

// Gradient returns an opaque w x h image with a two-axis colour ramp.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: uint8((x ^ y) & 0xff),
				A: 255,
			})
		}
	}
	return img
}

// Bordered returns a flat-colour image with a 4px white border.
func Bordered(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// JPEG encodes img at quality 95, well above the default output quality so
// that re-encoding always changes the bytes.
func JPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNG encodes img with default compression.
func PNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJPEG writes a w x h gradient JPEG to dir/name and returns its path.
func WriteJPEG(dir, name string, w, h int) (string, error) {
	data, err := JPEG(Gradient(w, h))
	if err != nil {
		return "", err
	}
	return write(dir, name, data)
}

// WritePNG writes a w x h bordered PNG to dir/name and returns its path.
func WritePNG(dir, name string, w, h int) (string, error) {
	data, err := PNG(Bordered(w, h, 60))
	if err != nil {
		return "", err
	}
	return write(dir, name, data)
}

// WithOrientation inserts a minimal EXIF APP1 segment carrying the given
// orientation tag (1-8) right after the JPEG SOI marker.
func WithOrientation(jpg []byte, orientation uint16) []byte {
	var tiff bytes.Buffer
	tiff.WriteString("MM\x00\x2a")
	be := binary.BigEndian
	_ = binary.Write(&tiff, be, uint32(8)) // IFD0 offset
	_ = binary.Write(&tiff, be, uint16(1)) // entry count
	_ = binary.Write(&tiff, be, uint16(0x0112))
	_ = binary.Write(&tiff, be, uint16(3)) // SHORT
	_ = binary.Write(&tiff, be, uint32(1))
	_ = binary.Write(&tiff, be, orientation)
	_ = binary.Write(&tiff, be, uint16(0))
	_ = binary.Write(&tiff, be, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	out := make([]byte, 0, len(jpg)+4+len(payload))
	out = append(out, jpg[:2]...)
	out = append(out, 0xff, 0xe1)
	out = be.AppendUint16(out, uint16(len(payload)+2))
	out = append(out, payload...)
	return append(out, jpg[2:]...)
}

// WriteOrientedJPEG writes a w x h gradient JPEG tagged with an EXIF
// orientation. Orientations 5-8 display as h x w.
func WriteOrientedJPEG(dir, name string, w, h int, orientation uint16) (string, error) {
	data, err := JPEG(Gradient(w, h))
	if err != nil {
		return "", err
	}
	return write(dir, name, WithOrientation(data, orientation))
}

func write(dir, name string, data []byte) (string, error) {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
