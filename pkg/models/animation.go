package models

import (
	"math"
	"sort"

	"github.com/taigrr/glint/pkg/math3d"
)

// Interpolation is a glTF sampler interpolation mode.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpStep
	InterpCubicSpline // Sampled as linear between key values
)

// Path is the node property a channel animates.
type Path int

const (
	PathTranslation Path = iota
	PathRotation
	PathScale
)

// TRS is a decomposed node transform.
type TRS struct {
	Translation math3d.Vec3
	Rotation    math3d.Quat
	Scale       math3d.Vec3
}

// IdentityTRS returns the rest transform.
func IdentityTRS() TRS {
	return TRS{Rotation: math3d.IdentityQuat(), Scale: math3d.V3(1, 1, 1)}
}

// Mat4 composes the transform.
func (t TRS) Mat4() math3d.Mat4 {
	return math3d.TRS(t.Translation, t.Rotation, t.Scale)
}

// Channel animates one property of one node. Values hold xyz or xyzw per
// key; times are seconds, ascending.
type Channel struct {
	Node   int
	Path   Path
	Interp Interpolation
	Times  []float64
	Values [][4]float64
}

// Clip is a named group of channels.
type Clip struct {
	Name     string
	Duration float64
	Channels []Channel
}

// Apply writes the clip's values at time t into pose, indexed by node.
// Properties without a channel keep their pose value.
func (c *Clip) Apply(t float64, pose []TRS) {
	for i := range c.Channels {
		ch := &c.Channels[i]
		if ch.Node < 0 || ch.Node >= len(pose) || len(ch.Times) == 0 {
			continue
		}
		v := ch.sample(t)
		p := &pose[ch.Node]
		switch ch.Path {
		case PathTranslation:
			p.Translation = math3d.V3(v[0], v[1], v[2])
		case PathRotation:
			p.Rotation = math3d.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}.Normalize()
		case PathScale:
			p.Scale = math3d.V3(v[0], v[1], v[2])
		}
	}
}

// sample evaluates the channel at t, clamping outside the key range.
func (ch *Channel) sample(t float64) [4]float64 {
	n := len(ch.Times)
	if t <= ch.Times[0] {
		return ch.Values[0]
	}
	if t >= ch.Times[n-1] {
		return ch.Values[n-1]
	}

	// First key strictly after t.
	next := sort.Search(n, func(i int) bool { return ch.Times[i] > t })
	prev := next - 1
	if ch.Interp == InterpStep {
		return ch.Values[prev]
	}

	span := ch.Times[next] - ch.Times[prev]
	f := 0.0
	if span > 0 {
		f = (t - ch.Times[prev]) / span
	}
	a, b := ch.Values[prev], ch.Values[next]

	if ch.Path == PathRotation {
		qa := math3d.Quat{X: a[0], Y: a[1], Z: a[2], W: a[3]}
		qb := math3d.Quat{X: b[0], Y: b[1], Z: b[2], W: b[3]}
		q := qa.Slerp(qb, f)
		return [4]float64{q.X, q.Y, q.Z, q.W}
	}

	var out [4]float64
	for i := range out {
		out[i] = a[i] + (b[i]-a[i])*f
	}
	return out
}

// duration returns the last key time across channels.
func duration(channels []Channel) float64 {
	d := 0.0
	for _, ch := range channels {
		if n := len(ch.Times); n > 0 {
			d = math.Max(d, ch.Times[n-1])
		}
	}
	return d
}

// Node is one node of the document hierarchy.
type Node struct {
	Parent int // -1 for scene roots
	Rest   TRS
	Matrix *math3d.Mat4 // Fixed local transform; clips cannot drive it
}

// Local returns the node's transform relative to its parent under pose.
func (n *Node) Local(pose TRS) math3d.Mat4 {
	if n.Matrix != nil {
		return *n.Matrix
	}
	return pose.Mat4()
}

// Part is a run of mesh vertices placed by one node.
type Part struct {
	Node  int
	First int
	Count int
}

// rig caches what deformation needs: the inverse rest world transform of
// every node and which nodes a clip moves, directly or through a parent.
type rig struct {
	order   []int
	restInv []math3d.Mat4
	moving  []bool
}

func (m *Model) rigged() *rig {
	if m.rig != nil && len(m.rig.restInv) == len(m.Nodes) {
		return m.rig
	}
	r := &rig{order: nodeOrder(m.Nodes)}

	rest := m.World(m.Pose(-1, nil))
	r.restInv = make([]math3d.Mat4, len(rest))
	for i, w := range rest {
		r.restInv[i] = w.Inverse()
	}

	r.moving = make([]bool, len(m.Nodes))
	for _, c := range m.Clips {
		for _, ch := range c.Channels {
			if ch.Node >= 0 && ch.Node < len(r.moving) {
				r.moving[ch.Node] = true
			}
		}
	}
	for _, i := range r.order {
		if p := m.Nodes[i].Parent; p >= 0 && r.moving[p] {
			r.moving[i] = true
		}
	}
	m.rig = r
	return r
}

// nodeOrder lists nodes so every parent precedes its children.
func nodeOrder(nodes []Node) []int {
	children := make([][]int, len(nodes))
	var order []int
	for i, n := range nodes {
		if n.Parent < 0 || n.Parent >= len(nodes) {
			order = append(order, i)
		} else {
			children[n.Parent] = append(children[n.Parent], i)
		}
	}
	for i := 0; i < len(order); i++ {
		order = append(order, children[order[i]]...)
	}
	return order
}

// Pose returns every node's transform with every clip applied at time t,
// reusing dst. Each clip loops on its own duration; a negative t gives the
// rest pose.
func (m *Model) Pose(t float64, dst []TRS) []TRS {
	dst = dst[:0]
	for _, n := range m.Nodes {
		dst = append(dst, n.Rest)
	}
	if t < 0 {
		return dst
	}
	for _, c := range m.Clips {
		ct := t
		if c.Duration > 0 && ct > c.Duration {
			ct = math.Mod(ct, c.Duration)
		}
		c.Apply(ct, dst)
	}
	return dst
}

// World composes pose down the hierarchy into model-space transforms.
func (m *Model) World(pose []TRS) []math3d.Mat4 {
	world := make([]math3d.Mat4, len(m.Nodes))
	for i := range world {
		world[i] = math3d.Identity()
	}
	order := nodeOrder(m.Nodes)
	if m.rig != nil {
		order = m.rig.order
	}
	for _, i := range order {
		n := &m.Nodes[i]
		local := n.Local(pose[i])
		if n.Parent >= 0 && n.Parent < len(world) {
			local = world[n.Parent].Mul(local)
		}
		world[i] = local
	}
	return world
}

// Deform writes the mesh as placed by pose into dst, which shares faces and
// materials with the rest mesh. Parts whose nodes no clip moves are copied
// unchanged. A nil dst allocates one.
func (m *Model) Deform(pose []TRS, dst *Mesh) *Mesh {
	if dst == nil {
		dst = &Mesh{Name: m.Mesh.Name}
	}
	dst.Faces = m.Mesh.Faces
	dst.Materials = m.Mesh.Materials
	dst.Vertices = append(dst.Vertices[:0], m.Mesh.Vertices...)

	r := m.rigged()
	world := m.World(pose)
	for _, p := range m.Parts {
		if p.Node < 0 || p.Node >= len(world) || !r.moving[p.Node] {
			continue
		}
		delta := world[p.Node].Mul(r.restInv[p.Node])
		inv := delta.Inverse()
		end := min(p.First+p.Count, len(dst.Vertices))
		for i := p.First; i < end; i++ {
			v := &dst.Vertices[i]
			v.Position = delta.MulVec3(v.Position)
			v.Normal = transformNormal(inv, v.Normal)
		}
	}
	dst.CalculateBounds()
	return dst
}
