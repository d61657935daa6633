// Package source turns a file path, in-memory buffer or remote URL into an
// immutable Descriptor carrying the bytes, a content identity and the
// decoded native dimensions and format.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	_ "github.com/chai2010/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/hasher"
)

var (
	// ErrUnreadableSource is returned when the source bytes cannot be
	// obtained (missing file, network failure, size limit).
	ErrUnreadableSource = errors.New("unreadable source")

	// ErrUndecodableImage is returned when the bytes are present but the
	// dimensions or format cannot be determined.
	ErrUndecodableImage = errors.New("undecodable image")
)

// Kind identifies where a source came from.
type Kind int

const (
	FilePath Kind = iota
	Buffer
	RemoteURL
)

func (k Kind) String() string {
	switch k {
	case FilePath:
		return "file"
	case Buffer:
		return "buffer"
	case RemoteURL:
		return "url"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Input is an undescribed source as supplied by a caller.
type Input struct {
	kind Kind
	path string
	buf  []byte
	url  string
}

// FromPath builds an input backed by a file on disk.
func FromPath(path string) Input { return Input{kind: FilePath, path: path} }

// FromBuffer builds an input from bytes already in memory.
func FromBuffer(b []byte) Input { return Input{kind: Buffer, buf: b} }

// FromURL builds an input fetched over HTTP(S).
func FromURL(u string) Input { return Input{kind: RemoteURL, url: u} }

// Parse treats http:// and https:// arguments as URLs and anything else as
// a file path.
func Parse(arg string) Input {
	lower := strings.ToLower(arg)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return FromURL(arg)
	}
	return FromPath(arg)
}

// Kind returns the input kind.
func (in Input) Kind() Kind { return in.kind }

// String describes the input for logs.
func (in Input) String() string {
	switch in.kind {
	case FilePath:
		return in.path
	case RemoteURL:
		return in.url
	default:
		return fmt.Sprintf("buffer(%d bytes)", len(in.buf))
	}
}

// Descriptor is the normalized, immutable view of a source for one call.
type Descriptor struct {
	Kind   Kind
	Width  int
	Height int
	Format format.ID
	// Path is the absolute source path, set only when FileAddressable.
	Path string
	Size int64
	// Orientation is the EXIF orientation (1-8) for JPEG sources, 0 otherwise.
	Orientation int
	// Hash is the xxhash64 hex digest of the source bytes.
	Hash string

	data []byte
}

// FileAddressable reports whether the source is backed by a stable file
// that may be copied verbatim.
func (d *Descriptor) FileAddressable() bool {
	return d.Kind == FilePath && d.Path != ""
}

// Bytes returns the source bytes. Callers must not modify the slice.
func (d *Descriptor) Bytes() []byte { return d.data }

// Describe reads the input once through acc and decodes its header.
func Describe(ctx context.Context, in Input, acc Accessor) (*Descriptor, error) {
	d := &Descriptor{Kind: in.kind}

	switch in.kind {
	case FilePath:
		abs, err := filepath.Abs(in.path)
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %v", ErrUnreadableSource, in.path, err)
		}
		data, err := acc.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
		}
		d.Path = abs
		d.data = data
	case Buffer:
		if len(in.buf) == 0 {
			return nil, fmt.Errorf("%w: empty buffer", ErrUnreadableSource)
		}
		// The caller keeps its slice; processing works on a private copy.
		d.data = bytes.Clone(in.buf)
	case RemoteURL:
		data, err := acc.Fetch(ctx, in.url)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreadableSource, err)
		}
		d.data = data
	default:
		return nil, fmt.Errorf("%w: unknown source kind %s", ErrUnreadableSource, in.kind)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(d.data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodableImage, in, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %s: invalid dimensions %dx%d", ErrUndecodableImage, in, cfg.Width, cfg.Height)
	}
	id, err := format.Normalize(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUndecodableImage, in, err)
	}

	d.Width = cfg.Width
	d.Height = cfg.Height
	// Dimensions are reported as displayed. The pixel pipeline applies the
	// same EXIF orientation, which only JPEG carries.
	if id == format.JPEG {
		d.Orientation = orientation(d.data)
		if transposed(d.Orientation) {
			d.Width, d.Height = d.Height, d.Width
		}
	}
	d.Format = id
	d.Size = int64(len(d.data))
	d.Hash = hasher.ContentHash(d.data, 0)
	return d, nil
}
