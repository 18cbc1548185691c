// Package postfx holds the full-screen god rays pass that turns the
// offscreen scene texture into the visible frame.
//
// Shading math is float32 throughout so results track what a GPU
// fragment shader would produce.
package postfx

import "github.com/chewxy/math32"

const (
	// Samples is the number of radial taps per pixel.
	Samples = 20
	// DefaultMix is the weight of the screen-blended rays over the scene.
	DefaultMix float32 = 0.25
	// reach is how far toward the center the last tap lands, as a fraction
	// of the pixel's distance to it.
	reach float32 = 0.5
)

// RGBA is a float color with straight alpha.
type RGBA [4]float32

// Sampler reads a filtered texel at uv, v = 0 at the bottom.
type Sampler func(u, v float32) RGBA

// Rand is the classic shader hash fract(sin(dot(fc, (12.9898, 78.233))) *
// 43758.5453) of a fragment coordinate. The result is in [0, 1).
func Rand(fx, fy float32) float32 {
	return fract(math32.Sin(fx*12.9898+fy*78.233) * 43758.5453)
}

func fract(x float32) float32 {
	return x - math32.Floor(x)
}

// Weight is the tap weight at position t along the ray: zero at both ends,
// one in the middle.
func Weight(t float32) float32 {
	return math32.Sin(t * math32.Pi)
}

// Shade computes one output pixel. uv is the pixel's texture coordinate,
// fx, fy its fragment coordinate (pixel center, origin bottom-left) and mix
// the blend weight. The hash is drawn once and reused by every tap.
func Shade(sample Sampler, u, v, fx, fy, mix float32) RGBA {
	orig := sample(u, v)
	toCenterU, toCenterV := 0.5-u, 0.5-v
	r := Rand(fx, fy)

	var acc RGBA
	var total float32
	for i := range Samples {
		t := (float32(i) + r) / Samples
		w := Weight(t)
		s := sample(u+toCenterU*t*reach, v+toCenterV*t*reach)
		s[0] *= s[3]
		s[1] *= s[3]
		s[2] *= s[3]
		for c := range 4 {
			acc[c] += s[c] * w
		}
		total += w
	}

	var blurred RGBA
	for c := range 3 {
		blurred[c] = acc[c] / total
	}
	blurred[3] = 1

	var out RGBA
	for c := range 3 {
		screen := 1 - (1-blurred[c])*(1-orig[c])
		out[c] = orig[c] + (screen-orig[c])*mix
	}
	out[3] = 1
	return out
}
