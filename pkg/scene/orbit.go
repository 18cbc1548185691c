package scene

import (
	"math"

	"github.com/charmbracelet/harmonica"

	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/render"
)

// Orbit limits.
const (
	MinDistance = 2.0
	MaxDistance = 60.0
	minPolar    = 0.01
	maxPolar    = math.Pi - 0.01
)

// orbitAxis eases one spherical coordinate toward its goal with a
// critically damped spring.
type orbitAxis struct {
	Position float64
	Goal     float64
	velocity float64
	spring   harmonica.Spring
}

func newOrbitAxis(fps int, v float64) orbitAxis {
	return orbitAxis{
		Position: v,
		Goal:     v,
		// Frequency 6 settles in about half a second without overshoot.
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 1.0),
	}
}

func (a *orbitAxis) update() {
	a.Position, a.velocity = a.spring.Update(a.Position, a.velocity, a.Goal)
}

// OrbitControls moves a camera on a sphere around a target point. Input
// changes the goal; Update eases the camera toward it once per frame.
type OrbitControls struct {
	Target math3d.Vec3

	azimuth  orbitAxis // About +Y, 0 on +Z
	polar    orbitAxis // From +Y
	distance orbitAxis

	fps  int
	home [3]float64
}

// NewOrbitControls places the controls so the camera sits at eye looking
// at target. fps is the rate Update is called at.
func NewOrbitControls(fps int, eye, target math3d.Vec3) *OrbitControls {
	fps = max(fps, 1)
	off := eye.Sub(target)
	r := max(off.Len(), MinDistance)
	az := math.Atan2(off.X, off.Z)
	pol := math3d.Clamp(math.Acos(math3d.Clamp(off.Y/r, -1, 1)), minPolar, maxPolar)

	o := &OrbitControls{Target: target, fps: fps, home: [3]float64{az, pol, r}}
	o.Reset()
	return o
}

// Reset returns the camera to its starting position immediately.
func (o *OrbitControls) Reset() {
	o.azimuth = newOrbitAxis(o.fps, o.home[0])
	o.polar = newOrbitAxis(o.fps, o.home[1])
	o.distance = newOrbitAxis(o.fps, o.home[2])
}

// Rotate turns the goal by dAzimuth and dPolar radians.
func (o *OrbitControls) Rotate(dAzimuth, dPolar float64) {
	o.azimuth.Goal += dAzimuth
	o.polar.Goal = math3d.Clamp(o.polar.Goal+dPolar, minPolar, maxPolar)
}

// Zoom scales the goal distance; factors below 1 move closer.
func (o *OrbitControls) Zoom(factor float64) {
	if !(factor > 0) {
		return
	}
	o.distance.Goal = math3d.Clamp(o.distance.Goal*factor, MinDistance, MaxDistance)
}

// Update advances the springs one frame.
func (o *OrbitControls) Update() {
	o.azimuth.update()
	o.polar.update()
	o.distance.update()
}

// Distance returns the current camera distance.
func (o *OrbitControls) Distance() float64 { return o.distance.Position }

// Eye returns the current camera position.
func (o *OrbitControls) Eye() math3d.Vec3 {
	r := o.distance.Position
	sp, cp := math.Sincos(o.polar.Position)
	sa, ca := math.Sincos(o.azimuth.Position)
	return o.Target.Add(math3d.V3(r*sp*sa, r*cp, r*sp*ca))
}

// Apply moves cam to the current position and aims it at Target.
func (o *OrbitControls) Apply(cam *render.Camera) {
	cam.SetPosition(o.Eye())
	cam.LookAt(o.Target)
}
