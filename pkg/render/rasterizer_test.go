package render

import (
	"math"
	"testing"

	"github.com/taigrr/glint/pkg/math3d"
)

// mockMesh implements MeshRenderer for testing.
type mockMesh struct {
	vertices []struct {
		pos    math3d.Vec3
		normal math3d.Vec3
		uv     math3d.Vec2
	}
	faces [][3]int
}

func (m *mockMesh) VertexCount() int     { return len(m.vertices) }
func (m *mockMesh) TriangleCount() int   { return len(m.faces) }
func (m *mockMesh) GetFace(i int) [3]int { return m.faces[i] }
func (m *mockMesh) GetVertex(i int) (pos, normal math3d.Vec3, uv math3d.Vec2) {
	v := m.vertices[i]
	return v.pos, v.normal, v.uv
}

// boundedMock adds bounds so the rasterizer frustum-culls it.
type boundedMock struct {
	*mockMesh
	min, max math3d.Vec3
}

func (b *boundedMock) GetBounds() (min, max math3d.Vec3) { return b.min, b.max }

func (m *mockMesh) add(p math3d.Vec3, uv math3d.Vec2) {
	m.vertices = append(m.vertices, struct {
		pos    math3d.Vec3
		normal math3d.Vec3
		uv     math3d.Vec2
	}{p, math3d.V3(0, 0, 1), uv})
}

// frontQuad returns a 2x2 quad at z=0 wound to face +Z.
func frontQuad() *mockMesh {
	m := &mockMesh{}
	m.add(math3d.V3(-1, -1, 0), math3d.V2(0, 0))
	m.add(math3d.V3(1, -1, 0), math3d.V2(1, 0))
	m.add(math3d.V3(1, 1, 0), math3d.V2(1, 1))
	m.add(math3d.V3(-1, 1, 0), math3d.V2(0, 1))
	m.faces = [][3]int{{0, 2, 1}, {0, 3, 2}}
	return m
}

// createTestRasterizer creates a rasterizer for testing.
func createTestRasterizer(width, height int) (*Rasterizer, *Framebuffer) {
	fb := NewFramebuffer(width, height)
	camera := NewCamera()
	camera.SetPosition(math3d.V3(0, 0, 10))
	camera.LookAt(math3d.Zero3())
	camera.SetAspectRatio(float64(width) / float64(height))
	camera.SetFOV(math.Pi / 3)
	rasterizer := NewRasterizer(camera, fb)
	return rasterizer, fb
}

func countLit(fb *Framebuffer) int {
	n := 0
	for _, c := range fb.Pixels {
		if c.R > 0 || c.G > 0 || c.B > 0 {
			n++
		}
	}
	return n
}

func solid(c Color) FragmentShader {
	return ShaderFunc(func(Fragment) Color { return c })
}

func TestDrawTriangle_BackfaceCulling(t *testing.T) {
	front := [3]Vertex{
		{Position: math3d.V3(-5, -5, 0)},
		{Position: math3d.V3(0, 5, 0)},
		{Position: math3d.V3(5, -5, 0)},
	}
	back := [3]Vertex{front[0], front[2], front[1]}

	tests := []struct {
		name        string
		tri         [3]Vertex
		doubleSided bool
		wantDrawn   bool
	}{
		{"front face", front, false, true},
		{"back face culled", back, false, false},
		{"back face double sided", back, true, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, fb := createTestRasterizer(100, 100)
			r.ClearDepth()
			fb.Clear(ColorBlack)
			r.DisableBackfaceCulling = tc.doubleSided

			r.DrawTriangle(tc.tri, 0, solid(ColorWhite))

			if got := countLit(fb) > 0; got != tc.wantDrawn {
				t.Errorf("drawn = %v, want %v (%d pixels)", got, tc.wantDrawn, countLit(fb))
			}
		})
	}
}

func TestDrawTriangle_DepthTest(t *testing.T) {
	r, fb := createTestRasterizer(64, 64)
	r.ClearDepth()
	fb.Clear(ColorBlack)

	tri := func(z float64) [3]Vertex {
		return [3]Vertex{
			{Position: math3d.V3(-3, -3, z)},
			{Position: math3d.V3(0, 3, z)},
			{Position: math3d.V3(3, -3, z)},
		}
	}

	r.DrawTriangle(tri(1), 0, solid(RGB(255, 0, 0)))
	// Farther triangle must not overwrite the nearer one.
	r.DrawTriangle(tri(-1), 1, solid(RGB(0, 255, 0)))

	c := fb.GetPixel(32, 32)
	if c.R != 255 || c.G != 0 {
		t.Errorf("center pixel = %v, want red", c)
	}
}

func TestDrawTriangle_BehindCamera(t *testing.T) {
	r, fb := createTestRasterizer(32, 32)
	r.ClearDepth()
	fb.Clear(ColorBlack)

	tri := [3]Vertex{
		{Position: math3d.V3(-1, -1, 20)},
		{Position: math3d.V3(0, 1, 20)},
		{Position: math3d.V3(1, -1, 20)},
	}
	r.DrawTriangle(tri, 0, solid(ColorWhite))

	if n := countLit(fb); n != 0 {
		t.Errorf("triangle behind camera drew %d pixels", n)
	}
}

func TestDrawMesh_InterpolatesAttributes(t *testing.T) {
	r, fb := createTestRasterizer(80, 80)
	r.ClearDepth()
	fb.Clear(ColorBlack)

	var frags []Fragment
	shader := ShaderFunc(func(f Fragment) Color {
		frags = append(frags, f)
		return ColorWhite
	})
	r.DrawMesh(frontQuad(), math3d.Identity(), shader)

	if len(frags) == 0 {
		t.Fatal("quad produced no fragments")
	}
	for _, f := range frags {
		if f.UV.X < -1e-9 || f.UV.X > 1+1e-9 || f.UV.Y < -1e-9 || f.UV.Y > 1+1e-9 {
			t.Fatalf("UV %v outside [0,1]", f.UV)
		}
		if math.Abs(f.Position.Z) > 1e-9 {
			t.Fatalf("position %v not on z=0 plane", f.Position)
		}
		if math.Abs(f.Normal.Z-1) > 1e-9 {
			t.Fatalf("normal %v, want +Z", f.Normal)
		}
	}
	if r.CullingStats.Triangles != 2 {
		t.Errorf("Triangles = %d, want 2", r.CullingStats.Triangles)
	}
}

func TestDrawMesh_NormalsFollowTransform(t *testing.T) {
	r, fb := createTestRasterizer(80, 80)
	r.ClearDepth()
	fb.Clear(ColorBlack)

	var got math3d.Vec3
	shader := ShaderFunc(func(f Fragment) Color {
		got = f.Normal
		return ColorWhite
	})
	// Rotating 30 degrees about Y keeps the quad front facing.
	transform := math3d.RotateY(math.Pi / 6)
	r.DrawMesh(frontQuad(), transform, shader)

	want := transform.MulVec3Dir(math3d.V3(0, 0, 1)).Normalize()
	if got.Sub(want).Len() > 1e-6 {
		t.Errorf("normal = %v, want %v", got, want)
	}
}

func TestDrawMesh_FrustumCulling(t *testing.T) {
	tests := []struct {
		name       string
		offset     math3d.Vec3
		wantCulled int
	}{
		{"in view", math3d.V3(0, 0, 0), 0},
		{"far left", math3d.V3(-100, 0, 0), 1},
		{"behind camera", math3d.V3(0, 0, 50), 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, fb := createTestRasterizer(40, 40)
			r.ClearDepth()
			fb.Clear(ColorBlack)

			mesh := &boundedMock{mockMesh: frontQuad(), min: math3d.V3(-1, -1, 0), max: math3d.V3(1, 1, 0)}
			r.DrawMesh(mesh, math3d.Translate(tc.offset), solid(ColorWhite))

			if r.CullingStats.MeshesTested != 1 {
				t.Errorf("MeshesTested = %d, want 1", r.CullingStats.MeshesTested)
			}
			if r.CullingStats.MeshesCulled != tc.wantCulled {
				t.Errorf("MeshesCulled = %d, want %d", r.CullingStats.MeshesCulled, tc.wantCulled)
			}
		})
	}
}

func TestDrawMeshWireframe(t *testing.T) {
	r, fb := createTestRasterizer(50, 50)
	fb.Clear(ColorBlack)

	r.DrawMeshWireframe(frontQuad(), math3d.Identity(), RGB(0, 255, 0))

	lit := countLit(fb)
	if lit == 0 {
		t.Fatal("wireframe drew nothing")
	}
	// Edges only: the quad interior stays mostly empty.
	if lit > fb.Width*fb.Height/4 {
		t.Errorf("wireframe lit %d pixels, looks filled", lit)
	}
}

func TestSetFramebufferResizesDepth(t *testing.T) {
	r, _ := createTestRasterizer(10, 10)
	r.SetFramebuffer(NewFramebuffer(30, 20))
	r.ClearDepth()

	if len(r.zbuffer) != 600 {
		t.Fatalf("zbuffer len = %d, want 600", len(r.zbuffer))
	}
	if r.Width() != 30 || r.Height() != 20 {
		t.Errorf("size = %dx%d, want 30x20", r.Width(), r.Height())
	}
	for i, z := range r.zbuffer {
		if z != math.MaxFloat64 {
			t.Fatalf("zbuffer[%d] = %v after ClearDepth", i, z)
		}
	}
}

func TestCameraViewRay(t *testing.T) {
	cam := NewCamera()
	cam.SetPosition(math3d.V3(18, 4, 0))
	cam.LookAt(math3d.V3(0, 4, 0))

	center := cam.ViewRay(0, 0)
	fwd := cam.Forward()
	if center.Sub(fwd).Len() > 1e-6 {
		t.Errorf("center ray = %v, want forward %v", center, fwd)
	}

	up := cam.ViewRay(0, 1)
	if up.Y <= 0 {
		t.Errorf("top ray should point up, got %v", up)
	}
	if math.Abs(up.Len()-1) > 1e-6 {
		t.Errorf("ray not normalized: %v", up.Len())
	}
}
