package render

import (
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/transform"
	uv "github.com/charmbracelet/ultraviolet"
)

// Presenter shows a framebuffer on a terminal screen. Each cell is an upper
// half block whose foreground is the top pixel and background the bottom
// pixel, so the viewport is cols x rows*2 pixels. Frames rendered at a
// higher pixel ratio are box-filtered down to the viewport first.
type Presenter struct {
	cols, rows int
	frame      *Framebuffer
}

// NewPresenter creates a presenter for a cols x rows cell area.
func NewPresenter(cols, rows int) *Presenter {
	p := &Presenter{}
	p.Resize(cols, rows)
	return p
}

// Resize changes the cell area. Sizes below 1 are clamped to 1.
func (p *Presenter) Resize(cols, rows int) {
	p.cols, p.rows = max(cols, 1), max(rows, 1)
}

// Viewport returns the pixel size the terminal can show.
func (p *Presenter) Viewport() (width, height int) {
	return p.cols, p.rows * 2
}

// SetFrame stages fb for the next Draw.
func (p *Presenter) SetFrame(fb *Framebuffer) {
	w, h := p.Viewport()
	if fb == nil || (fb.Width == w && fb.Height == h) {
		p.frame = fb
		return
	}
	p.frame = Downsample(fb, w, h)
}

// Frame returns the staged frame at viewport size.
func (p *Presenter) Frame() *Framebuffer { return p.frame }

// Downsample box-filters fb to width x height.
func Downsample(fb *Framebuffer, width, height int) *Framebuffer {
	img := transform.Resize(fb.ToImage(), max(width, 1), max(height, 1), transform.Box)
	return FramebufferFromImage(img)
}

// FramebufferFromImage copies an RGBA image into a new framebuffer.
func FramebufferFromImage(img *image.RGBA) *Framebuffer {
	b := img.Bounds()
	fb := NewFramebuffer(b.Dx(), b.Dy())
	for y := 0; y < fb.Height; y++ {
		for x := 0; x < fb.Width; x++ {
			fb.Pixels[y*fb.Width+x] = img.RGBAAt(b.Min.X+x, b.Min.Y+y)
		}
	}
	return fb
}

// Draw implements uv.Drawable.
func (p *Presenter) Draw(scr uv.Screen, area uv.Rectangle) {
	if p.frame == nil {
		return
	}
	fb := p.frame
	for row := area.Min.Y; row < area.Max.Y && row < p.rows; row++ {
		topY := row * 2
		botY := topY + 1

		for col := area.Min.X; col < area.Max.X && col < fb.Width; col++ {
			cell := &uv.Cell{
				Content: "▀",
				Width:   1,
				Style: uv.Style{
					Fg: cellColor(fb.GetPixel(col, topY)),
					Bg: cellColor(fb.GetPixel(col, botY)),
				},
			}
			scr.SetCell(col, row, cell)
		}
	}
}

// Area returns the full cell rectangle.
func (p *Presenter) Area() uv.Rectangle {
	return uv.Rectangle(image.Rect(0, 0, p.cols, p.rows))
}

// cellColor maps a pixel to a terminal color; transparent means default.
func cellColor(c color.RGBA) color.Color {
	if c.A == 0 {
		return nil
	}
	return c
}
