package main

import (
	"fmt"
	"strings"

	"github.com/taigrr/glint/pkg/frame"
	"github.com/taigrr/glint/pkg/models"
)

// HUD renders an overlay with frame rate, model counts and the parameter
// panel.
type HUD struct {
	Visible  bool
	filename string
	drawn    int // Panel rows drawn last frame, cleared on the next
}

// NewHUD creates a visible HUD.
func NewHUD(filename string) *HUD {
	return &HUD{filename: filename, Visible: true}
}

// statsLabel formats geometry counts the way the overlay shows them.
func statsLabel(s models.Stats) string {
	return fmt.Sprintf("%d tris / %d verts", s.Triangles, s.Vertices)
}

const helpText = "Tab: select  ←/→: adjust  0: reset  p: save  x: wireframe  ?: HUD"

// Render draws the HUD overlay directly to the terminal
func (h *HUD) Render(width, height int, d *frame.Driver) {
	// ANSI escape codes for positioning and styling
	const (
		reset     = "\x1b[0m"
		bold      = "\x1b[1m"
		dim       = "\x1b[2m"
		bgBlack   = "\x1b[40m"
		fgWhite   = "\x1b[97m"
		fgGreen   = "\x1b[92m"
		fgYellow  = "\x1b[93m"
		fgCyan    = "\x1b[96m"
		clearLine = "\x1b[2K"
	)

	// Helper to position cursor
	moveTo := func(row, col int) string {
		return fmt.Sprintf("\x1b[%d;%dH", row, col)
	}

	var b strings.Builder

	// Always clear the HUD rows (so toggling off works)
	b.WriteString(moveTo(1, 1) + clearLine)
	for i := range h.drawn {
		b.WriteString(moveTo(height-i, 1) + clearLine)
	}
	h.drawn = 0

	if !h.Visible {
		fmt.Print(b.String())
		return
	}

	// Top left: FPS
	fmt.Fprintf(&b, "%s%s%s %.0f FPS %s", moveTo(1, 1), bgBlack, fgGreen, d.FPS.FPS(), reset)

	// Top middle: filename, or load state
	title := h.filename
	if d.Loading() {
		title += " (loading)"
	}
	titleCol := max((width-len(title)-2)/2, 1)
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(1, titleCol), bold, bgBlack, fgWhite, title, reset)

	// Top right: geometry counts
	stats := statsLabel(d.Stats())
	statsCol := max(width-len(stats)-1, 1)
	fmt.Fprintf(&b, "%s%s%s%s %s %s", moveTo(1, statsCol), bgBlack, fgCyan, bold, stats, reset)

	// Bottom: parameter panel above the key hint
	lines := d.Panel().Lines()
	if d.Renderer.Wireframe {
		lines = append(lines, "  [✓] X-Ray (wireframe)")
	}
	row := height - len(lines)
	for _, line := range lines {
		if row > 1 {
			color := fgWhite
			if strings.HasPrefix(line, ">") {
				color = fgYellow
			}
			fmt.Fprintf(&b, "%s%s%s%s%s", moveTo(row, 1), bgBlack, color, line, reset)
		}
		row++
	}
	fmt.Fprintf(&b, "%s%s%s%s %s%s", moveTo(height, 1), clearLine, bgBlack, dim, helpText, reset)
	h.drawn = len(lines) + 1

	fmt.Print(b.String())
}
