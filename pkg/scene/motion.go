package scene

import (
	"fmt"
	"math"

	"github.com/taigrr/glint/pkg/math3d"
)

// IdleSmoothing is the fraction of the remaining gap closed per frame.
const IdleSmoothing = 0.03

// idleRefHz is the frame rate IdleSmoothing was tuned at.
const idleRefHz = 60

// SmoothingMode selects how IdleMotion steps toward its target.
type SmoothingMode int

const (
	// SmoothPerFrame closes IdleSmoothing of the gap every Update,
	// regardless of frame time.
	SmoothPerFrame SmoothingMode = iota
	// SmoothTimeScaled scales the step by frame time so the motion has the
	// same speed at any frame rate. It matches SmoothPerFrame at 60 FPS.
	SmoothTimeScaled
)

func (m SmoothingMode) String() string {
	switch m {
	case SmoothPerFrame:
		return "frame"
	case SmoothTimeScaled:
		return "time"
	default:
		return fmt.Sprintf("SmoothingMode(%d)", int(m))
	}
}

// ParseSmoothingMode accepts "frame" or "time".
func ParseSmoothingMode(s string) (SmoothingMode, error) {
	switch s {
	case "", "frame", "per-frame":
		return SmoothPerFrame, nil
	case "time", "time-scaled":
		return SmoothTimeScaled, nil
	}
	return 0, fmt.Errorf("unknown smoothing mode %q", s)
}

// Drift is the idle motion state: an offset from the anchor plus pitch and
// yaw in radians.
type Drift struct {
	X, Y       float64
	Pitch, Yaw float64
}

// IdleTarget is where the model drifts for a pointer in [-1, 1]² at
// elapsed seconds.
func IdleTarget(pointer math3d.Vec2, elapsed float64) Drift {
	return Drift{
		X:     -pointer.X * 0.5,
		Y:     pointer.Y*0.3 + idleFloat(elapsed),
		Pitch: pointer.Y * 0.05,
		Yaw:   pointer.X * 0.1,
	}
}

func idleFloat(t float64) float64 {
	return math.Sin(t*0.5) * 0.2
}

// IdleMotion eases the model toward the pointer-driven target.
type IdleMotion struct {
	Mode    SmoothingMode
	Current Drift
}

// Update steps every component toward the target. dt is only read in
// SmoothTimeScaled mode.
func (m *IdleMotion) Update(pointer math3d.Vec2, elapsed, dt float64) {
	f := IdleSmoothing
	if m.Mode == SmoothTimeScaled {
		f = math3d.DampFactor(IdleSmoothing, idleRefHz, dt)
	}
	target := IdleTarget(pointer, elapsed)
	m.Current.X = math3d.Approach(m.Current.X, target.X, f)
	m.Current.Y = math3d.Approach(m.Current.Y, target.Y, f)
	m.Current.Pitch = math3d.Approach(m.Current.Pitch, target.Pitch, f)
	m.Current.Yaw = math3d.Approach(m.Current.Yaw, target.Yaw, f)
}

// Transform returns the motion as a matrix: translation, then pitch about
// X, then yaw about Y.
func (m *IdleMotion) Transform() math3d.Mat4 {
	c := m.Current
	return math3d.Translate(math3d.V3(c.X, c.Y, 0)).
		Mul(math3d.RotateX(c.Pitch)).
		Mul(math3d.RotateY(c.Yaw))
}

// Reset returns the model to the anchor.
func (m *IdleMotion) Reset() { m.Current = Drift{} }
