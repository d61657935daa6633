package encoder

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"strconv"
	"sync"

	"github.com/AnyUserName/derivimg/internal/format"
)

// AVIFEncoder encodes images to AVIF by shelling out to avifenc.
// Install: brew install libavif / apt install libavif-bin
type AVIFEncoder struct {
	once        sync.Once
	available   bool
	avifencPath string
}

func (e *AVIFEncoder) Format() format.ID { return format.AVIF }

func (e *AVIFEncoder) Available() bool {
	e.once.Do(func() {
		path, err := exec.LookPath("avifenc")
		if err == nil {
			e.available = true
			e.avifencPath = path
		}
	})
	return e.available
}

func (e *AVIFEncoder) Encode(ctx context.Context, img image.Image, opts Options) ([]byte, error) {
	if !e.Available() {
		return nil, fmt.Errorf("avifenc not found in PATH; install with: brew install libavif")
	}

	// avifenc quantizers run 0 (best) to 63 (worst).
	q := 63 - (opts.quality() * 63 / 100)
	speed := 6 // 0=slowest, 10=fastest

	srcFile, err := os.CreateTemp("", "derivimg_avif_src_*.png")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	srcPath := srcFile.Name()
	defer os.Remove(srcPath)

	if err := png.Encode(srcFile, img); err != nil {
		srcFile.Close()
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	if err := srcFile.Close(); err != nil {
		return nil, fmt.Errorf("close temp: %w", err)
	}

	dstFile, err := os.CreateTemp("", "derivimg_avif_dst_*.avif")
	if err != nil {
		return nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath := dstFile.Name()
	dstFile.Close()
	defer os.Remove(dstPath)

	args := []string{
		"--min", strconv.Itoa(q),
		"--max", strconv.Itoa(q),
		"--speed", strconv.Itoa(speed),
		"-j", "all",
	}
	if opts.Lossless {
		args = append(args, "--lossless")
	}
	args = append(args, srcPath, dstPath)

	cmd := exec.CommandContext(ctx, e.avifencPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("avifenc: %w: %s", err, string(out))
	}
	return os.ReadFile(dstPath)
}
