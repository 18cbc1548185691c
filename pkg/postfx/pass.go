package postfx

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/render"
)

// ErrNoSource is returned when the pass runs without a live source texture.
// The destination is left untouched.
var ErrNoSource = errors.New("postfx: no source texture")

// Uniforms are set once per frame before Render. Time is supplied for
// parity with the shader interface; the blend does not read it.
type Uniforms struct {
	Time   float32
	Source *render.TextureView
}

// Pass draws a full-screen quad with the god rays shader. The quad spans
// [-0.5, 0.5] in both axes and is seen through a fixed orthographic
// camera of the same bounds, so every output pixel maps to exactly one uv.
type Pass struct {
	Uniforms Uniforms
	Mix      float32
	Workers  int // Row shards; 0 uses GOMAXPROCS

	camera *render.OrthoCamera
}

// Option configures a Pass.
type Option func(*Pass)

// WithWorkers sets the number of row shards.
func WithWorkers(n int) Option {
	return func(p *Pass) { p.Workers = n }
}

// NewPass returns a pass with the default mix.
func NewPass(opts ...Option) *Pass {
	p := &Pass{
		Mix:    DefaultMix,
		camera: render.NewOrthoCamera(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// SetUniforms replaces the per-frame uniforms.
func (p *Pass) SetUniforms(u Uniforms) { p.Uniforms = u }

// quadUV maps pixel (x, y) of a w x h target, row 0 at the top, to the
// texture coordinate of the quad fragment covering its center.
func (p *Pass) quadUV(x, y, w, h int) (u, v float64) {
	ndc := math3d.V2(
		(float64(x)+0.5)/float64(w)*2-1,
		1-(float64(y)+0.5)/float64(h)*2,
	)
	local := p.camera.Unproject(ndc.X, ndc.Y)
	left, _, bottom, _ := p.camera.Bounds()
	return local.X - left, local.Y - bottom
}

// Render shades every pixel of dst from the source texture. Rows are
// sharded across goroutines; Render returns once all rows are written.
func (p *Pass) Render(ctx context.Context, dst *render.Framebuffer) error {
	src := p.Uniforms.Source
	if !src.Valid() {
		return ErrNoSource
	}

	sample := func(u, v float32) RGBA {
		c := src.Sample(float64(u), float64(v))
		return RGBA{float32(c.X), float32(c.Y), float32(c.Z), float32(c.W)}
	}

	w, h := dst.Width, dst.Height
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, h)
	band := (h + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < h; start += band {
		end := min(start+band, h)
		g.Go(func() error {
			for y := start; y < end; y++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				fy := float32(h-y) - 0.5 // GL fragment y, origin bottom-left
				row := dst.Pixels[y*w : (y+1)*w]
				for x := range row {
					u, v := p.quadUV(x, y, w, h)
					c := Shade(sample, float32(u), float32(v), float32(x)+0.5, fy, p.Mix)
					row[x] = render.VecToColor(math3d.V4(float64(c[0]), float64(c[1]), float64(c[2]), float64(c[3])))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("god rays pass: %w", err)
	}
	return nil
}
