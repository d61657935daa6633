package encoder

import (
	"fmt"
	"strings"

	"github.com/AnyUserName/derivimg/internal/format"
)

// Registry holds all available encoders keyed by format.
type Registry struct {
	encoders map[format.ID]Encoder
}

// NewRegistry creates a registry, probing all encoders for availability.
func NewRegistry() *Registry {
	return NewRegistryWith(
		&AVIFEncoder{},
		&WebPEncoder{},
		&JPEGEncoder{},
		&PNGEncoder{},
		&GIFEncoder{},
		&TIFFEncoder{},
		&BMPEncoder{},
	)
}

// NewRegistryWith builds a registry from the given encoders. Only
// available ones are kept; a later encoder replaces an earlier one for the
// same format.
func NewRegistryWith(encoders ...Encoder) *Registry {
	r := &Registry{encoders: make(map[format.ID]Encoder)}
	for _, enc := range encoders {
		if enc.Available() {
			r.encoders[enc.Format()] = enc
		}
	}
	return r
}

// Get returns the encoder for id.
func (r *Registry) Get(id format.ID) (Encoder, error) {
	enc, ok := r.encoders[id]
	if !ok {
		return nil, fmt.Errorf("no encoder available for %s", id)
	}
	return enc, nil
}

// Available returns all available formats in priority order.
func (r *Registry) Available() []format.ID {
	var result []format.ID
	for _, f := range format.All {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	names := make([]string, len(avail))
	for i, f := range avail {
		names[i] = string(f)
	}
	return fmt.Sprintf("encoders: %s", strings.Join(names, ", "))
}
