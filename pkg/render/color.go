package render

import (
	"image/color"
	"math"

	"github.com/taigrr/glint/pkg/math3d"
)

// Color is an alias for color.RGBA for convenience.
type Color = color.RGBA

// Colors for convenience
var (
	ColorBlack = color.RGBA{0, 0, 0, 255}
	ColorWhite = color.RGBA{255, 255, 255, 255}
)

// RGB creates an opaque color from RGB values.
func RGB(r, g, b uint8) color.RGBA {
	return color.RGBA{r, g, b, 255}
}

// RGBA creates a color from RGBA values.
func RGBA(r, g, b, a uint8) color.RGBA {
	return color.RGBA{r, g, b, a}
}

// ColorToVec returns the color's channels as floats in [0, 1].
func ColorToVec(c Color) math3d.Vec4 {
	return math3d.V4(
		float64(c.R)/255,
		float64(c.G)/255,
		float64(c.B)/255,
		float64(c.A)/255,
	)
}

// VecToColor quantizes a [0, 1] color to 8 bits, clamping out-of-range
// channels and rounding to nearest.
func VecToColor(v math3d.Vec4) Color {
	return Color{R: unorm8(v.X), G: unorm8(v.Y), B: unorm8(v.Z), A: unorm8(v.W)}
}

// RGBToColor quantizes an opaque linear color.
func RGBToColor(v math3d.Vec3) Color {
	return VecToColor(math3d.V4FromV3(v, 1))
}

func unorm8(f float64) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(math.Round(f * 255))
}

// lerpColor linearly interpolates between two colors.
func lerpColor(a, b Color, t float64) Color {
	return Color{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: uint8(float64(a.A) + (float64(b.A)-float64(a.A))*t),
	}
}

// SRGBToLinear decodes one sRGB-encoded channel in [0, 1].
func SRGBToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

// LinearToSRGB encodes one linear channel, clamping to [0, 1].
func LinearToSRGB(c float64) float64 {
	c = math3d.Clamp(c, 0, 1)
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

// EncodeSRGB quantizes an opaque linear color for display.
func EncodeSRGB(v math3d.Vec3) Color {
	return RGBToColor(math3d.V3(LinearToSRGB(v.X), LinearToSRGB(v.Y), LinearToSRGB(v.Z)))
}
