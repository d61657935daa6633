package hasher

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHashMatchesReader(t *testing.T) {
	data := []byte("derivimg source bytes")

	fromReader, err := ContentHashReader(bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Equal(t, ContentHash(data, 0), fromReader)
	assert.Len(t, fromReader, 16)
}

func TestContentHashTruncates(t *testing.T) {
	full := ContentHash([]byte("x"), 0)
	assert.Equal(t, full[:8], ContentHash([]byte("x"), 8))
	assert.Equal(t, full, ContentHash([]byte("x"), 64))
}

func TestKeySeparatesParts(t *testing.T) {
	assert.NotEqual(t, Key(0, "ab", "c"), Key(0, "a", "bc"))
	assert.Equal(t, Key(IDLength, "a", "b"), Key(IDLength, "a", "b"))
	assert.Len(t, Key(IDLength, "a"), IDLength)
}
