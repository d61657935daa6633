package dimension

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecSynonyms(t *testing.T) {
	for _, s := range []string{"auto", "AUTO", "null", "original", "", " auto "} {
		spec, err := ParseSpec(s)
		require.NoError(t, err, s)
		assert.True(t, spec.IsOriginal(), s)
	}

	spec, err := ParseSpec("300")
	require.NoError(t, err)
	assert.False(t, spec.IsOriginal())
	assert.Equal(t, "300", spec.String())
}

func TestParseSpecInvalid(t *testing.T) {
	for _, s := range []string{"0", "-5", "12.5", "wide"} {
		_, err := ParseSpec(s)
		require.Error(t, err, s)

		var iwe *InvalidWidthError
		assert.True(t, errors.As(err, &iwe), s)
		assert.ErrorIs(t, err, ErrInvalidWidth)
	}
}

func TestResolve(t *testing.T) {
	got, err := Resolve([]Spec{Explicit(300), Original(), Explicit(1280)}, 1280)
	require.NoError(t, err)
	assert.Equal(t, []Resolved{
		{Width: 300},
		{Width: 1280, Original: true},
		{Width: 1280},
	}, got)
}

func TestResolveEmptyMeansOriginal(t *testing.T) {
	got, err := Resolve(nil, 815)
	require.NoError(t, err)
	assert.Equal(t, []Resolved{{Width: 815, Original: true}}, got)
}

func TestResolveRejectsNonPositive(t *testing.T) {
	_, err := Resolve([]Spec{Explicit(0)}, 100)
	assert.ErrorIs(t, err, ErrInvalidWidth)
}

func TestPlan(t *testing.T) {
	resolved := []Resolved{
		{Width: 300},
		{Width: 1280},
		{Width: 2000},
		{Width: 1280, Original: true},
	}

	got := Plan(resolved, 1280, false)
	assert.Equal(t, []Resolved{{Width: 300}, {Width: 1280, Original: true}}, got)

	got = Plan(resolved, 1280, true)
	assert.Equal(t, []Resolved{{Width: 300}, {Width: 1280, Original: true}, {Width: 2000}}, got)
}

func TestPlanFallsBackToNative(t *testing.T) {
	got := Plan([]Resolved{{Width: 4000}}, 1280, false)
	assert.Equal(t, []Resolved{{Width: 1280, Original: true}}, got)
}
