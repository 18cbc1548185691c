package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/glint/pkg/models"
)

// slideModel is the quad under a root node that one clip slides along +X
// by 4 units over 2 seconds.
func slideModel() *models.Model {
	model := quadModel()
	model.Nodes = []models.Node{{Parent: -1, Rest: models.IdentityTRS()}}
	model.Parts = []models.Part{{Node: 0, First: 0, Count: len(model.Mesh.Vertices)}}
	model.Clips = []*models.Clip{{
		Name:     "slide",
		Duration: 2,
		Channels: []models.Channel{{
			Node:   0,
			Path:   models.PathTranslation,
			Interp: models.InterpLinear,
			Times:  []float64{0, 2},
			Values: [][4]float64{{0, 0, 0}, {4, 0, 0}},
		}},
	}}
	return model
}

func TestMixerAdvancesAndLoops(t *testing.T) {
	model := slideModel()
	m := NewMixer(model)
	require.NotNil(t, m.Mesh())
	assert.InDelta(t, -1.0, m.Mesh().BoundsMin.X, 1e-9, "starts at rest")

	m.Update(0.5)
	assert.InDelta(t, 1.0, m.Pose()[0].Translation.X, 1e-9)
	assert.InDelta(t, 0.0, m.Mesh().BoundsMin.X, 1e-9, "mesh follows the pose")

	m.Update(-3)
	assert.InDelta(t, 0.5, m.Time(), 1e-12, "negative steps ignored")

	m.Update(2)
	assert.InDelta(t, 1.0, m.Pose()[0].Translation.X, 1e-9, "wraps after the clip ends")
	assert.InDelta(t, -1.0, model.Mesh.BoundsMin.X, 1e-9, "rest mesh untouched")
}

func TestMixerStillPartsCopied(t *testing.T) {
	model := slideModel()
	model.Nodes = append(model.Nodes, models.Node{Parent: -1, Rest: models.IdentityTRS()})
	model.Parts[0].Node = 1 // Geometry hangs off a node no clip moves

	m := NewMixer(model)
	m.Update(1)
	assert.Equal(t, model.Mesh.Vertices, m.Mesh().Vertices)
}
