package render

import (
	"math"

	"github.com/taigrr/glint/pkg/math3d"
)

// PixelFormat describes the storage of a render target.
type PixelFormat int

const (
	FormatRGBA8 PixelFormat = iota // 8 bits per channel, straight alpha
)

// Pixel ratio limits applied by ScaledSize.
const (
	MinPixelRatio = 1.0
	MaxPixelRatio = 3.0
)

// TargetOptions is the sampling configuration a RenderTarget keeps across
// resizes.
type TargetOptions struct {
	Format  PixelFormat
	Filter  FilterMode
	Mipmaps bool
}

// DefaultTargetOptions is RGBA, linear filtering, no mipmaps.
func DefaultTargetOptions() TargetOptions {
	return TargetOptions{Format: FormatRGBA8, Filter: FilterBilinear}
}

// RenderTarget is an offscreen color buffer the scene is rendered into and
// the post pass later samples. The pipeline owns it exclusively.
type RenderTarget struct {
	opts TargetOptions
	fb   *Framebuffer
	gen  uint64
}

// NewRenderTarget allocates a target. Dimensions below 1 are clamped to 1.
func NewRenderTarget(width, height int, opts TargetOptions) *RenderTarget {
	return &RenderTarget{
		opts: opts,
		fb:   NewFramebuffer(width, height),
		gen:  1,
	}
}

// ScaledSize returns the drawable size for a viewport: each axis is
// multiplied by the pixel ratio clamped to [1, 3] and kept at least 1.
func ScaledSize(width, height int, pixelRatio float64) (int, int) {
	r := math3d.Clamp(pixelRatio, MinPixelRatio, MaxPixelRatio)
	if math.IsNaN(pixelRatio) {
		r = MinPixelRatio
	}
	w := int(math.Floor(float64(max(width, 1)) * r))
	h := int(math.Floor(float64(max(height, 1)) * r))
	return max(w, 1), max(h, 1)
}

// Resize replaces the backing buffer with a fresh width x height one. The
// target's options survive; every TextureView handed out before is
// invalidated.
func (t *RenderTarget) Resize(width, height int) {
	t.fb = NewFramebuffer(width, height)
	t.gen++
}

// Width returns the pixel width.
func (t *RenderTarget) Width() int { return t.fb.Width }

// Height returns the pixel height.
func (t *RenderTarget) Height() int { return t.fb.Height }

// Options returns the sampling configuration.
func (t *RenderTarget) Options() TargetOptions { return t.opts }

// Framebuffer exposes the buffer for the pass that renders into the target.
func (t *RenderTarget) Framebuffer() *Framebuffer { return t.fb }

// Texture returns a read-only view of the current contents. Do not keep it
// across a Resize.
func (t *RenderTarget) Texture() *TextureView {
	return &TextureView{target: t, gen: t.gen}
}

// TextureView is a read-only handle on a RenderTarget's color buffer.
type TextureView struct {
	target *RenderTarget
	gen    uint64
}

// Valid reports whether the view still refers to the live buffer.
func (v *TextureView) Valid() bool {
	return v != nil && v.target != nil && v.target.gen == v.gen
}

// Size returns the texture dimensions, or 0, 0 for an invalid view.
func (v *TextureView) Size() (int, int) {
	if !v.Valid() {
		return 0, 0
	}
	return v.target.fb.Width, v.target.fb.Height
}

// Sample returns the filtered color at (u, v) in [0,1] floats, with
// clamp-to-edge addressing and v = 0 at the bottom. Invalid views sample
// as transparent black.
func (v *TextureView) Sample(u, w float64) math3d.Vec4 {
	if !v.Valid() {
		return math3d.Vec4{}
	}
	fb := v.target.fb
	if v.target.opts.Filter == FilterNearest {
		x := clampInt(int(u*float64(fb.Width)), 0, fb.Width-1)
		y := clampInt(int((1-w)*float64(fb.Height)), 0, fb.Height-1)
		return ColorToVec(fb.Pixels[y*fb.Width+x])
	}
	return fb.sampleLinear(u, w)
}
