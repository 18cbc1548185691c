package render

import (
	"math"

	"github.com/taigrr/glint/pkg/math3d"
)

// Vertex is a world-space vertex fed to the rasterizer.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
	UV       math3d.Vec2
}

// Fragment carries the perspective-correct interpolated attributes of one
// covered pixel.
type Fragment struct {
	X, Y     int
	Position math3d.Vec3 // World position
	Normal   math3d.Vec3 // World normal, normalized
	UV       math3d.Vec2
	Face     int // Index of the mesh face being drawn
}

// FragmentShader computes the color of a covered pixel.
type FragmentShader interface {
	Shade(f Fragment) Color
}

// ShaderFunc adapts a plain function to FragmentShader.
type ShaderFunc func(f Fragment) Color

// Shade calls fn(f).
func (fn ShaderFunc) Shade(f Fragment) Color { return fn(f) }

// MeshRenderer is the geometry view the rasterizer needs. It is declared
// here so render does not import the models package.
type MeshRenderer interface {
	VertexCount() int
	TriangleCount() int
	GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2)
	GetFace(i int) [3]int
}

// BoundedMeshRenderer extends MeshRenderer with bounds for frustum culling.
type BoundedMeshRenderer interface {
	MeshRenderer
	GetBounds() (min, max math3d.Vec3)
}

// Rasterizer draws triangles into a framebuffer with a depth test.
type Rasterizer struct {
	camera                 *Camera
	fb                     *Framebuffer
	zbuffer                []float64
	CullingStats           CullingStats // Statistics for the HUD and tests
	DisableBackfaceCulling bool         // If true, render both sides of triangles
}

// CullingStats tracks frustum culling per frame.
type CullingStats struct {
	MeshesTested int
	MeshesCulled int
	MeshesDrawn  int
	Triangles    int // Triangles submitted after mesh culling
}

// NewRasterizer creates a rasterizer drawing into fb.
func NewRasterizer(camera *Camera, fb *Framebuffer) *Rasterizer {
	r := &Rasterizer{camera: camera}
	r.SetFramebuffer(fb)
	return r
}

// SetFramebuffer points the rasterizer at a new buffer, reallocating the
// depth buffer to match. Called whenever the render target is recreated.
func (r *Rasterizer) SetFramebuffer(fb *Framebuffer) {
	r.fb = fb
	if fb == nil {
		r.zbuffer = nil
		return
	}
	if cap(r.zbuffer) >= fb.Width*fb.Height {
		r.zbuffer = r.zbuffer[:fb.Width*fb.Height]
	} else {
		r.zbuffer = make([]float64, fb.Width*fb.Height)
	}
}

// Camera returns the camera the rasterizer projects with.
func (r *Rasterizer) Camera() *Camera { return r.camera }

// Width returns the framebuffer width.
func (r *Rasterizer) Width() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Width
}

// Height returns the framebuffer height.
func (r *Rasterizer) Height() int {
	if r.fb == nil {
		return 0
	}
	return r.fb.Height
}

// ClearDepth resets the depth buffer and the culling counters. Call once
// per frame before drawing.
func (r *Rasterizer) ClearDepth() {
	r.CullingStats = CullingStats{}
	n := len(r.zbuffer)
	if n == 0 {
		return
	}
	// Copy-doubling fill.
	r.zbuffer[0] = math.MaxFloat64
	for i := 1; i < n; i *= 2 {
		copy(r.zbuffer[i:], r.zbuffer[:i])
	}
}

// IsVisible tests a local-space box, placed by transform, against the
// camera frustum.
func (r *Rasterizer) IsVisible(localBounds AABB, transform math3d.Mat4) bool {
	frustum := NewFrustumFromMatrix(r.camera.ViewProjectionMatrix())
	return frustum.IntersectAABB(localBounds.Transform(transform))
}

// culled reports whether a mesh can be skipped entirely.
func (r *Rasterizer) culled(mesh MeshRenderer, transform math3d.Mat4) bool {
	bounded, ok := mesh.(BoundedMeshRenderer)
	if !ok {
		return false
	}
	r.CullingStats.MeshesTested++
	lo, hi := bounded.GetBounds()
	if !r.IsVisible(AABB{Min: lo, Max: hi}, transform) {
		r.CullingStats.MeshesCulled++
		return true
	}
	r.CullingStats.MeshesDrawn++
	return false
}

// DrawMesh transforms a mesh to world space and rasterizes every face
// through shader.
func (r *Rasterizer) DrawMesh(mesh MeshRenderer, transform math3d.Mat4, shader FragmentShader) {
	if r.fb == nil || r.culled(mesh, transform) {
		return
	}

	// Normals go through the inverse transpose so non-uniform scale keeps
	// them perpendicular.
	normalMat := transform.Inverse()

	for i := 0; i < mesh.TriangleCount(); i++ {
		face := mesh.GetFace(i)
		var tri [3]Vertex
		for k := range 3 {
			p, n, uv := mesh.GetVertex(face[k])
			tri[k] = Vertex{
				Position: transform.MulVec3(p),
				Normal:   mulTransposeDir(normalMat, n).Normalize(),
				UV:       uv,
			}
		}
		r.CullingStats.Triangles++
		r.DrawTriangle(tri, i, shader)
	}
}

// mulTransposeDir multiplies a direction by the transpose of m.
func mulTransposeDir(m math3d.Mat4, v math3d.Vec3) math3d.Vec3 {
	return math3d.V3(
		m[0]*v.X+m[1]*v.Y+m[2]*v.Z,
		m[4]*v.X+m[5]*v.Y+m[6]*v.Z,
		m[8]*v.X+m[9]*v.Y+m[10]*v.Z,
	)
}

// screenVertex holds a vertex transformed to screen space.
type screenVertex struct {
	X, Y float64 // Screen coordinates
	Z    float64 // NDC depth
	W    float64 // Clip W, for perspective-correct interpolation
}

// edgeCoeffs returns A, B, C for the edge function A*x + B*y + C of the
// edge (x0,y0) -> (x1,y1).
func edgeCoeffs(x0, y0, x1, y1 float64) (A, B, C float64) {
	A = y0 - y1
	B = x1 - x0
	C = x0*y1 - x1*y0
	return
}

// DrawTriangle rasterizes one world-space triangle with edge functions,
// depth-tests every pixel and calls shader for the survivors. Front faces
// wind clockwise on screen; triangles touching the camera plane are dropped.
func (r *Rasterizer) DrawTriangle(tri [3]Vertex, face int, shader FragmentShader) {
	var sv [3]screenVertex
	viewProj := r.camera.ViewProjectionMatrix()
	width, height := float64(r.Width()), float64(r.Height())

	for i := range 3 {
		clip := viewProj.MulVec4(math3d.V4FromV3(tri[i].Position, 1))
		if clip.W <= 0 {
			return
		}
		invW := 1.0 / clip.W
		sv[i] = screenVertex{
			X: (clip.X*invW + 1) * 0.5 * width,
			Y: (1 - clip.Y*invW) * 0.5 * height, // Y flipped
			Z: clip.Z * invW,
			W: clip.W,
		}
	}

	edge1 := math3d.V2(sv[1].X-sv[0].X, sv[1].Y-sv[0].Y)
	edge2 := math3d.V2(sv[2].X-sv[0].X, sv[2].Y-sv[0].Y)
	area2 := edge1.Cross(edge2)
	if area2 == 0 || (area2 < 0 && !r.DisableBackfaceCulling) {
		return
	}

	minX := int(math.Max(0, math.Floor(min3(sv[0].X, sv[1].X, sv[2].X))))
	maxX := int(math.Min(width-1, math.Ceil(max3(sv[0].X, sv[1].X, sv[2].X))))
	minY := int(math.Max(0, math.Floor(min3(sv[0].Y, sv[1].Y, sv[2].Y))))
	maxY := int(math.Min(height-1, math.Ceil(max3(sv[0].Y, sv[1].Y, sv[2].Y))))
	if minX > maxX || minY > maxY {
		return
	}

	// Edge 0: v1 -> v2, Edge 1: v2 -> v0, Edge 2: v0 -> v1
	A0, B0, C0 := edgeCoeffs(sv[1].X, sv[1].Y, sv[2].X, sv[2].Y)
	A1, B1, C1 := edgeCoeffs(sv[2].X, sv[2].Y, sv[0].X, sv[0].Y)
	A2, B2, C2 := edgeCoeffs(sv[0].X, sv[0].Y, sv[1].X, sv[1].Y)
	invArea := 1.0 / area2

	invW := [3]float64{1 / sv[0].W, 1 / sv[1].W, 1 / sv[2].W}

	px := float64(minX) + 0.5
	py := float64(minY) + 0.5
	w0Row := A0*px + B0*py + C0
	w1Row := A1*px + B1*py + C1
	w2Row := A2*px + B2*py + C2

	w := r.Width()
	for y := minY; y <= maxY; y++ {
		w0, w1, w2 := w0Row, w1Row, w2Row
		for x := minX; x <= maxX; x++ {
			// Scaling by invArea makes inside-ness sign independent, which
			// covers back faces when culling is off.
			b0, b1, b2 := w0*invArea, w1*invArea, w2*invArea
			if b0 >= 0 && b1 >= 0 && b2 >= 0 {
				z := b0*sv[0].Z + b1*sv[1].Z + b2*sv[2].Z
				idx := y*w + x
				if z < r.zbuffer[idx] {
					p0, p1, p2 := b0*invW[0], b1*invW[1], b2*invW[2]
					sum := p0 + p1 + p2
					p0, p1, p2 = p0/sum, p1/sum, p2/sum

					frag := Fragment{
						X:        x,
						Y:        y,
						Position: interp3(tri[0].Position, tri[1].Position, tri[2].Position, p0, p1, p2),
						Normal:   interp3(tri[0].Normal, tri[1].Normal, tri[2].Normal, p0, p1, p2).Normalize(),
						UV: math3d.V2(
							p0*tri[0].UV.X+p1*tri[1].UV.X+p2*tri[2].UV.X,
							p0*tri[0].UV.Y+p1*tri[1].UV.Y+p2*tri[2].UV.Y,
						),
						Face: face,
					}
					r.zbuffer[idx] = z
					r.fb.Pixels[idx] = shader.Shade(frag)
				}
			}
			w0 += A0
			w1 += A1
			w2 += A2
		}
		w0Row += B0
		w1Row += B1
		w2Row += B2
	}
}

func interp3(a, b, c math3d.Vec3, wa, wb, wc float64) math3d.Vec3 {
	return math3d.V3(
		a.X*wa+b.X*wb+c.X*wc,
		a.Y*wa+b.Y*wb+c.Y*wc,
		a.Z*wa+b.Z*wb+c.Z*wc,
	)
}

func min3(a, b, c float64) float64 {
	return math.Min(a, math.Min(b, c))
}

func max3(a, b, c float64) float64 {
	return math.Max(a, math.Max(b, c))
}

// DrawMeshWireframe renders a mesh as projected edges, without depth test.
func (r *Rasterizer) DrawMeshWireframe(mesh MeshRenderer, transform math3d.Mat4, color Color) {
	if r.fb == nil || r.culled(mesh, transform) {
		return
	}

	for i := 0; i < mesh.TriangleCount(); i++ {
		face := mesh.GetFace(i)

		p0, _, _ := mesh.GetVertex(face[0])
		p1, _, _ := mesh.GetVertex(face[1])
		p2, _, _ := mesh.GetVertex(face[2])

		v0 := transform.MulVec3(p0)
		v1 := transform.MulVec3(p1)
		v2 := transform.MulVec3(p2)

		r.drawLine3D(v0, v1, color)
		r.drawLine3D(v1, v2, color)
		r.drawLine3D(v2, v0, color)
	}
}

// drawLine3D projects a world-space segment and draws it. Segments with an
// endpoint behind the camera are skipped.
func (r *Rasterizer) drawLine3D(a, b math3d.Vec3, color Color) {
	viewProj := r.camera.ViewProjectionMatrix()

	clipA := viewProj.MulVec4(math3d.V4FromV3(a, 1))
	clipB := viewProj.MulVec4(math3d.V4FromV3(b, 1))
	if clipA.W <= 0 || clipB.W <= 0 {
		return
	}
	na, nb := clipA.PerspectiveDivide(), clipB.PerspectiveDivide()

	x0 := int((na.X + 1) * 0.5 * float64(r.Width()))
	y0 := int((1 - na.Y) * 0.5 * float64(r.Height()))
	x1 := int((nb.X + 1) * 0.5 * float64(r.Width()))
	y1 := int((1 - nb.Y) * 0.5 * float64(r.Height()))

	r.fb.DrawLine(x0, y0, x1, y1, color)
}
