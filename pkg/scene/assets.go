// Package scene owns the loaded content of a glint session and draws it
// into the offscreen target: asset handoff, animation, idle motion, orbit
// controls and the environment-lit scene renderer.
package scene

import (
	"github.com/taigrr/glint/pkg/envmap"
	"github.com/taigrr/glint/pkg/math3d"
	"github.com/taigrr/glint/pkg/models"
	"github.com/taigrr/glint/pkg/render"
)

// Placement of the model in world space.
const (
	// FitSize is the largest extent a model is scaled to.
	FitSize = 8.0
)

// Anchor is where the model sits before idle motion is applied.
var Anchor = math3d.V3(0, 4, 0)

// Assets holds everything loaded for a session. The driver installs
// content through the setters once a load resolves; renderers only read.
// A nil model or environment is a valid partial scene.
type Assets struct {
	model    *models.Model
	posed    *models.Mesh
	textures []*render.Texture
	fit      math3d.Mat4
	env      *envmap.Map
}

// NewAssets returns an empty asset set.
func NewAssets() *Assets {
	return &Assets{fit: math3d.Identity()}
}

// SetModel installs a loaded model, decoding its material textures and
// computing the transform that centers it and scales it to FitSize.
func (a *Assets) SetModel(m *models.Model) {
	a.model = m
	a.posed = nil
	a.textures = nil
	a.fit = math3d.Identity()
	if m == nil || m.Mesh == nil {
		return
	}

	a.textures = make([]*render.Texture, m.Mesh.MaterialCount())
	for i := range a.textures {
		if mat := m.Mesh.GetMaterial(i); mat != nil && mat.HasTexture && mat.BaseMap != nil {
			a.textures[i] = render.TextureFromImage(mat.BaseMap)
		}
	}

	a.fit = m.Mesh.FitTransform(FitSize)
}

// SetPosedMesh installs the model's mesh as posed by its clips. Nil falls
// back to the rest mesh.
func (a *Assets) SetPosedMesh(mesh *models.Mesh) { a.posed = mesh }

// Mesh returns the mesh to draw: the posed mesh when animated, else the
// model's rest mesh. It is nil without a model.
func (a *Assets) Mesh() *models.Mesh {
	if a.posed != nil {
		return a.posed
	}
	if a.model == nil {
		return nil
	}
	return a.model.Mesh
}

// Model returns the loaded model or nil.
func (a *Assets) Model() *models.Model { return a.model }

// HasModel reports whether a model with geometry is installed.
func (a *Assets) HasModel() bool { return a.model != nil && a.model.Mesh != nil }

// Texture returns the base color texture of material i, or nil.
func (a *Assets) Texture(i int) *render.Texture {
	if i < 0 || i >= len(a.textures) {
		return nil
	}
	return a.textures[i]
}

// Fit returns the centering and scaling transform of the model.
func (a *Assets) Fit() math3d.Mat4 { return a.fit }

// ModelTransform composes the model's world transform: the anchor offset
// by idle motion, then the fit.
func (a *Assets) ModelTransform(motion math3d.Mat4) math3d.Mat4 {
	return math3d.Translate(Anchor).Mul(motion).Mul(a.fit)
}

// SetEnvironment installs the environment map.
func (a *Assets) SetEnvironment(env *envmap.Map) { a.env = env }

// Environment returns the environment map or nil.
func (a *Assets) Environment() *envmap.Map { return a.env }
