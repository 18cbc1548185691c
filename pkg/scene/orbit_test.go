package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/render"
)

func assertVec3(t *testing.T, want, got math3d.Vec3, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, "x")
	assert.InDelta(t, want.Y, got.Y, delta, "y")
	assert.InDelta(t, want.Z, got.Z, delta, "z")
}

func TestOrbitStartsAtEye(t *testing.T) {
	eye := math3d.V3(18, 4, 0)
	o := NewOrbitControls(60, eye, Anchor)
	assertVec3(t, eye, o.Eye(), 1e-9)
	assert.InDelta(t, 18.0, o.Distance(), 1e-9)

	// Without input the springs hold still.
	for range 30 {
		o.Update()
	}
	assertVec3(t, eye, o.Eye(), 1e-9)
}

func TestOrbitRotateEases(t *testing.T) {
	o := NewOrbitControls(60, math3d.V3(0, 0, 10), math3d.Zero3())
	o.Rotate(math.Pi/2, 0)

	o.Update()
	first := o.Eye()
	assert.Greater(t, first.X, 0.0, "moves toward the goal")
	assert.Less(t, first.X, 10.0, "but not in one frame")

	for range 240 {
		o.Update()
	}
	assertVec3(t, math3d.V3(10, 0, 0), o.Eye(), 1e-3)
}

func TestOrbitPolarClamped(t *testing.T) {
	o := NewOrbitControls(60, math3d.V3(0, 0, 10), math3d.Zero3())
	o.Rotate(0, -10)
	for range 240 {
		o.Update()
	}
	eye := o.Eye()
	assert.Greater(t, eye.Y, 9.9, "near the pole")
	assert.Greater(t, math.Hypot(eye.X, eye.Z), 0.0, "never exactly on it")
}

func TestOrbitZoomClamped(t *testing.T) {
	o := NewOrbitControls(60, math3d.V3(0, 0, 10), math3d.Zero3())
	for range 100 {
		o.Zoom(0.5)
	}
	for range 240 {
		o.Update()
	}
	assert.InDelta(t, MinDistance, o.Distance(), 1e-3)

	o.Zoom(0)
	o.Zoom(math.NaN())
	for range 10 {
		o.Update()
	}
	assert.InDelta(t, MinDistance, o.Distance(), 1e-3)

	for range 100 {
		o.Zoom(2)
	}
	for range 600 {
		o.Update()
	}
	assert.InDelta(t, MaxDistance, o.Distance(), 1e-2)
}

func TestOrbitApplyAimsCamera(t *testing.T) {
	cam := render.NewCamera()
	o := NewOrbitControls(60, math3d.V3(18, 4, 0), Anchor)
	o.Apply(cam)

	assertVec3(t, math3d.V3(18, 4, 0), cam.Position, 1e-9)
	assertVec3(t, math3d.V3(-1, 0, 0), cam.Forward(), 1e-9)

	o.Rotate(1, 0.3)
	for range 20 {
		o.Update()
	}
	o.Reset()
	o.Apply(cam)
	assertVec3(t, math3d.V3(18, 4, 0), cam.Position, 1e-9)
}
