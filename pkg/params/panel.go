package params

import (
	"fmt"
	"strings"
)

// Panel is the keyboard editor over a Values. It holds the selection; the
// values themselves stay with the owner and are edited in place.
type Panel struct {
	values   *Values
	selected int
}

// NewPanel edits v.
func NewPanel(v *Values) *Panel {
	return &Panel{values: v}
}

// Selected returns the knob under the cursor.
func (p *Panel) Selected() Knob { return Knobs[p.selected] }

// Next moves the cursor down, wrapping.
func (p *Panel) Next() { p.selected = (p.selected + 1) % len(Knobs) }

// Prev moves the cursor up, wrapping.
func (p *Panel) Prev() { p.selected = (p.selected + len(Knobs) - 1) % len(Knobs) }

// Adjust moves the selected knob by steps and returns the new value.
func (p *Panel) Adjust(steps int) float64 {
	k := p.Selected()
	return k.Set(p.values, k.Get(p.values)+float64(steps)*k.Step)
}

// Reset restores the selected knob to its default.
func (p *Panel) Reset() float64 {
	k := p.Selected()
	def := Defaults()
	return k.Set(p.values, k.Get(&def))
}

// Lines renders the panel, one knob per line, the selection marked.
func (p *Panel) Lines() []string {
	lines := make([]string, len(Knobs))
	for i, k := range Knobs {
		cursor := " "
		if i == p.selected {
			cursor = ">"
		}
		frac := 0.0
		if k.Max > k.Min {
			frac = (k.Get(p.values) - k.Min) / (k.Max - k.Min)
		}
		lines[i] = fmt.Sprintf("%s %-21s %6.3f %s", cursor, k.Label, k.Get(p.values), bar(frac, 10))
	}
	return lines
}

func bar(frac float64, width int) string {
	n := int(frac*float64(width) + 0.5)
	n = max(0, min(width, n))
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", width-n) + "]"
}
