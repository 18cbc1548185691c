package render

import "github.com/taigrr/glint/pkg/math3d"

// Bounds of the post-process camera. They never change.
const (
	orthoLeft   = -0.5
	orthoRight  = 0.5
	orthoBottom = -0.5
	orthoTop    = 0.5
	orthoNear   = -1.0
	orthoFar    = 1.0
)

// OrthoCamera is the fixed orthographic camera of the post-process pass.
// Its view volume is exactly the unit quad centered on the origin.
type OrthoCamera struct {
	proj math3d.Mat4
	inv  math3d.Mat4
}

// NewOrthoCamera returns the camera with bounds [-0.5, 0.5] on both axes.
func NewOrthoCamera() *OrthoCamera {
	proj := math3d.Orthographic(orthoLeft, orthoRight, orthoBottom, orthoTop, orthoNear, orthoFar)
	return &OrthoCamera{proj: proj, inv: proj.Inverse()}
}

// Bounds returns left, right, bottom, top.
func (o *OrthoCamera) Bounds() (left, right, bottom, top float64) {
	return orthoLeft, orthoRight, orthoBottom, orthoTop
}

// ProjectionMatrix returns the orthographic projection.
func (o *OrthoCamera) ProjectionMatrix() math3d.Mat4 {
	return o.proj
}

// Unproject maps an NDC point on the z = 0 plane back to view space.
func (o *OrthoCamera) Unproject(ndcX, ndcY float64) math3d.Vec3 {
	return o.inv.MulVec3(math3d.V3(ndcX, ndcY, 0))
}
