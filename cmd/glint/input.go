package main

import (
	"context"

	uv "github.com/charmbracelet/ultraviolet"
	"go.uber.org/zap"

	"github.com/taigrr/glint/pkg/frame"
	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/render"
)

// input turns terminal events into driver commands. Mouse drag state lives
// on the event goroutine; everything else is only touched inside commands,
// which run on the driver goroutine.
type input struct {
	// Event goroutine.
	mouseDown    bool
	lastX, lastY int

	// Driver goroutine.
	cols, rows int
	configPath string
	logger     *zap.Logger
	hud        *HUD
	cancel     context.CancelFunc
}

// size returns the terminal size in cells. Driver goroutine only.
func (in *input) size() (int, int) { return in.cols, in.rows }

// pointerNDC maps a cell to [-1, 1]² with y up.
func pointerNDC(x, y, cols, rows int) math3d.Vec2 {
	nx := (float64(x)+0.5)/float64(max(cols, 1))*2 - 1
	ny := 1 - (float64(y)+0.5)/float64(max(rows, 1))*2
	return math3d.V2(nx, ny).Clamp(-1, 1)
}

// handle applies one event. It returns false once the viewer should quit.
func (in *input) handle(ev uv.Event, d *frame.Driver, term *uv.Terminal, p *render.Presenter) bool {
	switch ev := ev.(type) {
	case uv.WindowSizeEvent:
		w, h := ev.Width, ev.Height
		d.Do(func(d *frame.Driver) {
			in.cols, in.rows = w, h
			term.Erase()
			term.Resize(w, h)
			p.Resize(w, h)
			d.Resize(p.Viewport())
		})

	case uv.KeyPressEvent:
		switch {
		case ev.MatchString("escape", "ctrl+c", "q"):
			in.cancel()
			return false
		case ev.MatchString("tab"):
			d.Do(func(d *frame.Driver) { d.Panel().Next() })
		case ev.MatchString("shift+tab"):
			d.Do(func(d *frame.Driver) { d.Panel().Prev() })
		case ev.MatchString("right", "l"):
			d.Do(func(d *frame.Driver) { d.Panel().Adjust(1) })
		case ev.MatchString("left", "h"):
			d.Do(func(d *frame.Driver) { d.Panel().Adjust(-1) })
		case ev.MatchString("0"):
			d.Do(func(d *frame.Driver) { d.Panel().Reset() })
		case ev.MatchString("+", "="):
			d.Do(func(d *frame.Driver) { d.Orbit.Zoom(1 / zoomStep) })
		case ev.MatchString("-", "_"):
			d.Do(func(d *frame.Driver) { d.Orbit.Zoom(zoomStep) })
		case ev.MatchString("r"):
			d.Do(func(d *frame.Driver) {
				d.Orbit.Reset()
				d.Motion.Reset()
			})
		case ev.MatchString("x"):
			// Toggle wireframe mode
			d.Do(func(d *frame.Driver) { d.Renderer.Wireframe = !d.Renderer.Wireframe })
		case ev.MatchString("p"):
			d.Do(func(d *frame.Driver) { saveParams(in.configPath, d.Params, in.logger) })
		case ev.MatchString("?"), ev.MatchString("shift+/"):
			// Toggle HUD
			d.Do(func(*frame.Driver) { in.hud.Visible = !in.hud.Visible })
		}

	case uv.MouseClickEvent:
		in.mouseDown = true
		in.lastX, in.lastY = ev.X, ev.Y

	case uv.MouseReleaseEvent:
		in.mouseDown = false

	case uv.MouseMotionEvent:
		x, y := ev.X, ev.Y
		if in.mouseDown {
			dx, dy := x-in.lastX, y-in.lastY
			in.lastX, in.lastY = x, y
			d.Do(func(d *frame.Driver) {
				d.Orbit.Rotate(-float64(dx)*dragSpeed, -float64(dy)*dragSpeed)
			})
		}
		d.Do(func(d *frame.Driver) { d.Pointer = pointerNDC(x, y, in.cols, in.rows) })

	case uv.MouseWheelEvent:
		switch ev.Button {
		case uv.MouseWheelUp:
			d.Do(func(d *frame.Driver) { d.Orbit.Zoom(1 / zoomStep) })
		case uv.MouseWheelDown:
			d.Do(func(d *frame.Driver) { d.Orbit.Zoom(zoomStep) })
		}
	}
	return true
}
