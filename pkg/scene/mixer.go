package scene

import "github.com/taigrr/glint/pkg/models"

// Mixer plays every clip of a model, looping, from a shared time. It keeps
// the posed copy of the model's mesh current.
type Mixer struct {
	model *models.Model
	time  float64
	pose  []models.TRS
	mesh  *models.Mesh
}

// NewMixer returns a mixer at time 0 with the mesh posed there.
func NewMixer(m *models.Model) *Mixer {
	mx := &Mixer{model: m}
	mx.pose = m.Pose(0, nil)
	mx.mesh = m.Deform(mx.pose, nil)
	return mx
}

// Update advances the mixer by dt seconds and re-poses the mesh. Negative
// steps are ignored.
func (m *Mixer) Update(dt float64) {
	if dt > 0 {
		m.time += dt
	}
	m.pose = m.model.Pose(m.time, m.pose)
	m.mesh = m.model.Deform(m.pose, m.mesh)
}

// Time returns the mixer's playback time in seconds.
func (m *Mixer) Time() float64 { return m.time }

// Pose returns every node's transform at the current time.
func (m *Mixer) Pose() []models.TRS { return m.pose }

// Mesh returns the mesh posed at the current time.
func (m *Mixer) Mesh() *models.Mesh { return m.mesh }
