package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnyUserName/derivimg/internal/dimension"
	"github.com/AnyUserName/derivimg/internal/format"
	"github.com/AnyUserName/derivimg/internal/source"
)

func fileSource() *source.Descriptor {
	return &source.Descriptor{
		Kind:   source.FilePath,
		Width:  1280,
		Height: 853,
		Format: format.JPEG,
		Path:   "/photos/bio.jpg",
	}
}

func eligibleRequest() Request {
	return Request{
		Width:    dimension.Resolved{Width: 1280},
		Format:   format.JPEG,
		DestPath: "/out/img/abc-1280.jpeg",
	}
}

var optimize = Context{Optimize: true}

func TestDecideEligible(t *testing.T) {
	d := Decide(fileSource(), optimize, eligibleRequest())
	assert.Equal(t, Decision{Action: Copy, Reason: ReasonEligible}, d)
}

func TestDecideOriginalAndExplicitNativeAreIdentical(t *testing.T) {
	explicit := eligibleRequest()
	original := eligibleRequest()
	original.Width = dimension.Resolved{Width: 1280, Original: true}

	assert.Equal(t, Decide(fileSource(), optimize, explicit), Decide(fileSource(), optimize, original))
}

func TestDecideFormatAlias(t *testing.T) {
	src := fileSource()
	src.Format = "jpg"
	d := Decide(src, optimize, eligibleRequest())
	assert.Equal(t, Copy, d.Action)
}

func TestDecideReasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*source.Descriptor, *Context, *Request)
		want   Reason
	}{
		{"optimization off", func(_ *source.Descriptor, c *Context, _ *Request) { c.Optimize = false }, ReasonOptimizationDisabled},
		{"buffer", func(s *source.Descriptor, _ *Context, _ *Request) { s.Kind = source.Buffer; s.Path = "" }, ReasonNotFileAddressable},
		{"remote url", func(s *source.Descriptor, _ *Context, _ *Request) { s.Kind = source.RemoteURL; s.Path = "" }, ReasonNotFileAddressable},
		{"one pixel narrower", func(_ *source.Descriptor, _ *Context, r *Request) { r.Width.Width = 1279 }, ReasonWidthMismatch},
		{"one pixel wider", func(_ *source.Descriptor, _ *Context, r *Request) { r.Width.Width = 1281 }, ReasonWidthMismatch},
		{"other format", func(_ *source.Descriptor, _ *Context, r *Request) { r.Format = format.WebP }, ReasonFormatMismatch},
		{"transform", func(_ *source.Descriptor, c *Context, _ *Request) { c.TransformPresent = true }, ReasonTransformPresent},
		{"forced", func(_ *source.Descriptor, c *Context, _ *Request) { c.ForceReprocess = true }, ReasonForceReprocess},
		{"self copy", func(s *source.Descriptor, _ *Context, r *Request) { r.DestPath = s.Path }, ReasonSelfCopyGuard},
		{"self copy unclean", func(_ *source.Descriptor, _ *Context, r *Request) { r.DestPath = "/photos/./x/../bio.jpg" }, ReasonSelfCopyGuard},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src, ctx, req := fileSource(), optimize, eligibleRequest()
			tc.mutate(src, &ctx, &req)

			d := Decide(src, ctx, req)
			assert.Equal(t, Process, d.Action)
			assert.Equal(t, tc.want, d.Reason)
		})
	}
}

func TestDecideNilSource(t *testing.T) {
	d := Decide(nil, optimize, eligibleRequest())
	assert.Equal(t, ReasonNotFileAddressable, d.Reason)
}

func TestTransformDisablesEveryOutput(t *testing.T) {
	ctx := Context{Optimize: true, TransformPresent: true}
	for _, w := range []int{300, 640, 1280} {
		for _, f := range []format.ID{format.JPEG, format.WebP} {
			req := Request{Width: dimension.Resolved{Width: w}, Format: f, DestPath: "/out/x"}
			assert.Equal(t, Process, Decide(fileSource(), ctx, req).Action, "%d %s", w, f)
		}
	}
}

func TestMixedFormatsOnlyNativeCopies(t *testing.T) {
	var copied []format.ID
	for _, f := range []format.ID{format.JPEG, format.WebP, format.PNG, format.AVIF} {
		req := eligibleRequest()
		req.Format = f
		if Decide(fileSource(), optimize, req).Action == Copy {
			copied = append(copied, f)
		}
	}
	assert.Equal(t, []format.ID{format.JPEG}, copied)
}
