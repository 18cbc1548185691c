// Package envmap loads equirectangular environment maps and serves blurred
// radiance lookups for lighting and backgrounds.
//
// Radiance is stored tone mapped (x/(1+x)) in 8-bit images so the bild
// filters can build the blur chain; lookups invert the curve.
package envmap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"github.com/mdouchement/hdr"
	_ "github.com/mdouchement/hdr/codec/rgbe" // Radiance .hdr
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/render"
)

// ErrUnsupportedFormat is returned for files no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported environment map format")

const (
	// MaxWidth caps the base level; larger maps are downscaled on load.
	MaxWidth = 512
	// Levels is the length of the blur chain including the sharp level.
	Levels = 6
	// maxRadiance bounds tone mapped texels away from the curve's pole.
	maxRadiance = 254.0 / 255.0
)

// Map is an equirectangular environment with a chain of progressively
// blurred copies. Level 0 is sharp; the last level approximates irradiance.
type Map struct {
	levels []*image.RGBA
}

// Options control Load.
type Options struct {
	MaxWidth int
	Levels   int
	Logger   *zap.Logger
}

// DefaultOptions returns the options Load uses.
func DefaultOptions() Options {
	return Options{MaxWidth: MaxWidth, Levels: Levels, Logger: zap.NewNop()}
}

// Load decodes path and builds the blur chain.
func Load(ctx context.Context, path string, opts Options) (*Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open environment map: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
		}
		return nil, fmt.Errorf("decode environment map: %w", err)
	}
	if opts.Logger != nil {
		opts.Logger.Debug("decoded environment map",
			zap.String("path", path),
			zap.String("format", format),
			zap.Int("width", img.Bounds().Dx()),
			zap.Int("height", img.Bounds().Dy()),
		)
	}
	return FromImage(ctx, img, opts)
}

// FromImage builds a map from a decoded image. HDR images keep their
// radiance; LDR images are treated as sRGB.
func FromImage(ctx context.Context, img image.Image, opts Options) (*Map, error) {
	if opts.MaxWidth <= 0 {
		opts.MaxWidth = MaxWidth
	}
	if opts.Levels <= 0 {
		opts.Levels = Levels
	}

	base := encode(img)
	if w := base.Bounds().Dx(); w > opts.MaxWidth {
		h := max(1, base.Bounds().Dy()*opts.MaxWidth/w)
		base = transform.Resize(base, opts.MaxWidth, h, transform.Linear)
	}

	m := &Map{levels: make([]*image.RGBA, opts.Levels)}
	m.levels[0] = base

	width := float64(base.Bounds().Dx())
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i < opts.Levels; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.levels[i] = blur.Gaussian(base, blurRadius(width, i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("blur environment map: %w", err)
	}
	return m, nil
}

// blurRadius doubles per level, starting near 1% of the width.
func blurRadius(width float64, level int) float64 {
	return math.Max(1, width/128) * math.Pow(2, float64(level-1))
}

// encode converts img to the tone mapped RGBA storage format.
func encode(img image.Image) *image.RGBA {
	hdrImg, ok := img.(hdr.Image)
	if !ok {
		// LDR: decode sRGB so lookups return linear radiance.
		src := clone.AsRGBA(img)
		for i := 0; i+3 < len(src.Pix); i += 4 {
			for c := range 3 {
				lin := render.SRGBToLinear(float64(src.Pix[i+c]) / 255)
				src.Pix[i+c] = toneByte(lin)
			}
		}
		return src
	}

	b := hdrImg.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := hdrImg.HDRAt(x, y).HDRRGBA()
			out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{
				R: toneByte(r),
				G: toneByte(g),
				B: toneByte(bl),
				A: 255,
			})
		}
	}
	return out
}

func toneByte(x float64) uint8 {
	if !(x > 0) {
		return 0
	}
	return uint8(math.Round(math.Min(x/(1+x), maxRadiance) * 255))
}

func untone(y float64) float64 {
	y = math.Min(y, maxRadiance)
	return y / (1 - y)
}

// LevelCount returns the number of blur levels.
func (m *Map) LevelCount() int { return len(m.levels) }

// Size returns the base level dimensions.
func (m *Map) Size() (int, int) {
	b := m.levels[0].Bounds()
	return b.Dx(), b.Dy()
}

// Sample returns linear radiance in direction dir. blurriness in [0,1]
// blends through the chain from sharp to fully blurred; rotation turns the
// map about +Y in radians.
func (m *Map) Sample(dir math3d.Vec3, blurriness, rotation float64) math3d.Vec3 {
	u, v := Equirect(dir, rotation)

	level := math3d.Clamp(blurriness, 0, 1) * float64(len(m.levels)-1)
	lo := int(math.Floor(level))
	hi := min(lo+1, len(m.levels)-1)
	t := level - float64(lo)

	c := sampleBilinear(m.levels[lo], u, v)
	if t > 0 && hi != lo {
		c = c.Lerp(sampleBilinear(m.levels[hi], u, v), t)
	}
	return math3d.V3(untone(c.X), untone(c.Y), untone(c.Z))
}

// Equirect maps a direction to equirectangular texture coordinates, with
// v = 1 at +Y. rotation spins the lookup about +Y.
func Equirect(dir math3d.Vec3, rotation float64) (u, v float64) {
	d := dir.Normalize()
	if rotation != 0 {
		s, c := math.Sincos(-rotation)
		d = math3d.V3(c*d.X+s*d.Z, d.Y, -s*d.X+c*d.Z)
	}
	u = math.Atan2(d.Z, d.X)/(2*math.Pi) + 0.5
	v = math.Asin(math3d.Clamp(d.Y, -1, 1))/math.Pi + 0.5
	return u, v
}

// sampleBilinear reads img at (u, v) with u wrapping and v clamped. Values
// are tone mapped, in [0,1].
func sampleBilinear(img *image.RGBA, u, v float64) math3d.Vec3 {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	fx := u*float64(w) - 0.5
	fy := (1-v)*float64(h) - 0.5

	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)

	x1 := wrap(x0+1, w)
	x0 = wrap(x0, w)
	y1 := clampInt(y0+1, 0, h-1)
	y0 = clampInt(y0, 0, h-1)

	c00 := texel(img, x0, y0)
	c10 := texel(img, x1, y0)
	c01 := texel(img, x0, y1)
	c11 := texel(img, x1, y1)
	return c00.Lerp(c10, tx).Lerp(c01.Lerp(c11, tx), ty)
}

func texel(img *image.RGBA, x, y int) math3d.Vec3 {
	i := img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)
	p := img.Pix[i : i+3 : i+3]
	return math3d.V3(float64(p[0])/255, float64(p[1])/255, float64(p[2])/255)
}

func wrap(x, n int) int {
	x %= n
	if x < 0 {
		x += n
	}
	return x
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
