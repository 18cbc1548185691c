package scene

import (
	"math"

	"github.com/taigrr/glint/pkg/envmap"
	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/models"
	"github.com/taigrr/glint/pkg/params"
	"github.com/taigrr/glint/pkg/render"
)

// Light is a directional light. Direction points from the scene toward the
// light.
type Light struct {
	Direction math3d.Vec3
	Color     math3d.Vec3
	Intensity float64
}

// DefaultKeyLight is a white light from (5, 10, 5).
func DefaultKeyLight() Light {
	return Light{
		Direction: math3d.V3(5, 10, 5).Normalize(),
		Color:     math3d.V3(1, 1, 1),
		Intensity: 3,
	}
}

// DefaultAmbient is the intensity of the white ambient light.
const DefaultAmbient = 0.5

// Renderer draws the scene into the offscreen target: a background, then
// the model lit by the environment and the key light. It never touches the
// visible framebuffer.
type Renderer struct {
	Background    render.Color // Used when there is no environment background
	EnvBackground bool         // Draw the environment behind the model
	Wireframe     bool
	Key           Light
	Ambient       float64

	camera *render.Camera
	rast   *render.Rasterizer
	fb     *render.Framebuffer
}

// NewRenderer returns a renderer projecting through camera.
func NewRenderer(camera *render.Camera) *Renderer {
	return &Renderer{
		Background: render.ColorBlack,
		Key:        DefaultKeyLight(),
		Ambient:    DefaultAmbient,
		camera:     camera,
		rast:       render.NewRasterizer(camera, nil),
	}
}

// Camera returns the scene camera.
func (r *Renderer) Camera() *render.Camera { return r.camera }

// Stats returns the rasterizer counters of the last Render.
func (r *Renderer) Stats() render.CullingStats { return r.rast.CullingStats }

// Render clears target and draws the scene into it. model is the model's
// world transform. A missing model or environment is not an error: the
// frame shows whatever is present.
func (r *Renderer) Render(target *render.RenderTarget, assets *Assets, p params.Values, model math3d.Mat4) {
	fb := target.Framebuffer()
	if fb != r.fb {
		r.fb = fb
		r.rast.SetFramebuffer(fb)
	}
	r.rast.ClearDepth()

	env := assets.Environment()
	if env != nil && r.EnvBackground {
		r.drawEnvironment(fb, env, p)
	} else {
		fb.Clear(r.Background)
	}

	if !assets.HasModel() {
		return
	}
	mesh := assets.Mesh()
	if r.Wireframe {
		r.rast.DrawMeshWireframe(mesh, model, render.ColorWhite)
		return
	}
	r.rast.DrawMesh(mesh, model, &surfaceShader{
		mesh:    mesh,
		assets:  assets,
		env:     env,
		params:  p,
		eye:     r.camera.Position,
		key:     r.Key,
		ambient: r.Ambient,
	})
}

// drawEnvironment fills fb with the environment seen along each view ray.
func (r *Renderer) drawEnvironment(fb *render.Framebuffer, env *envmap.Map, p params.Values) {
	inv := r.camera.ViewProjectionMatrix().Inverse()
	w, h := float64(fb.Width), float64(fb.Height)
	for y := range fb.Height {
		ndcY := 1 - (float64(y)+0.5)/h*2
		row := fb.Pixels[y*fb.Width : (y+1)*fb.Width]
		for x := range row {
			ndcX := (float64(x)+0.5)/w*2 - 1
			dir := render.UnprojectRay(inv, ndcX, ndcY)
			c := env.Sample(dir, p.BackgroundBlur, p.BackgroundRotation)
			row[x] = render.EncodeSRGB(c.Scale(p.BackgroundIntensity))
		}
	}
}

// surfaceShader is a metal/roughness shader: image-based diffuse and
// specular from the environment's blur chain plus one directional and one
// ambient light. Roughness and metalness come from the live parameters.
type surfaceShader struct {
	mesh    *models.Mesh
	assets  *Assets
	env     *envmap.Map
	params  params.Values
	eye     math3d.Vec3
	key     Light
	ambient float64
}

func (s *surfaceShader) Shade(f render.Fragment) render.Color {
	base := s.baseColor(f)
	rough := math3d.Clamp(s.params.Roughness, 0, 1)
	metal := math3d.Clamp(s.params.Metalness, 0, 1)

	n := f.Normal
	v := s.eye.Sub(f.Position).Normalize()
	if n.Dot(v) < 0 {
		n = n.Negate()
	}
	nv := math.Max(n.Dot(v), 1e-4)

	f0 := math3d.V3(0.04, 0.04, 0.04).Lerp(base, metal)
	diffuse := base.Scale(1 - metal)
	fresnel := schlick(f0, nv, rough)

	var c math3d.Vec3
	if s.env != nil {
		irradiance := s.env.Sample(n, 1, s.params.EnvRotation).Scale(s.params.EnvIntensity)
		refl := v.Negate().Reflect(n)
		radiance := s.env.Sample(refl, rough, s.params.EnvRotation).Scale(s.params.EnvIntensity)
		c = diffuse.Mul(irradiance).Add(fresnel.Mul(radiance))
	}

	c = c.Add(diffuse.Scale(s.ambient))

	l := s.key.Direction
	if nl := n.Dot(l); nl > 0 {
		hv := l.Add(v).Normalize()
		shininess := 2/math.Max(math.Pow(rough, 4), 1e-4) - 2
		spec := math.Pow(math.Max(n.Dot(hv), 0), shininess) * (shininess + 8) / (8 * math.Pi)
		light := s.key.Color.Scale(s.key.Intensity * nl)
		c = c.Add(diffuse.Add(fresnel.Scale(spec)).Mul(light))
	}

	return render.EncodeSRGB(c)
}

// baseColor returns the linear base color of the fragment's material.
func (s *surfaceShader) baseColor(f render.Fragment) math3d.Vec3 {
	idx := s.mesh.GetFaceMaterial(f.Face)
	mat := s.mesh.GetMaterial(idx)
	if mat == nil {
		m := models.DefaultMaterial()
		mat = &m
	}
	base := math3d.V3(mat.BaseColor[0], mat.BaseColor[1], mat.BaseColor[2])
	if tex := s.assets.Texture(idx); tex != nil {
		t := tex.Sample(f.UV.X, f.UV.Y)
		base = base.Mul(math3d.V3(
			render.SRGBToLinear(t.X),
			render.SRGBToLinear(t.Y),
			render.SRGBToLinear(t.Z),
		))
	}
	return base
}

// schlick is Fresnel reflectance with a roughness-limited grazing term.
func schlick(f0 math3d.Vec3, nv, rough float64) math3d.Vec3 {
	k := math.Pow(1-nv, 5)
	g := math.Max(1-rough, f0.MaxComponent())
	return f0.Add(math3d.V3(g, g, g).Sub(f0).Scale(k))
}
