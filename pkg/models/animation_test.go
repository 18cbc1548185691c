package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taigrr/glint/pkg/math3d"
)

func TestChannelSample(t *testing.T) {
	ch := Channel{
		Path:   PathTranslation,
		Times:  []float64{0, 1, 3},
		Values: [][4]float64{{0}, {10}, {30}},
	}

	tests := []struct {
		name   string
		interp Interpolation
		t      float64
		want   float64
	}{
		{"before first key", InterpLinear, -1, 0},
		{"on key", InterpLinear, 1, 10},
		{"linear between", InterpLinear, 2, 20},
		{"after last key", InterpLinear, 5, 30},
		{"step holds previous", InterpStep, 2.9, 10},
		{"cubic falls back to linear", InterpCubicSpline, 0.5, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := ch
			c.Interp = tc.interp
			assert.InDelta(t, tc.want, c.sample(tc.t)[0], 1e-9)
		})
	}
}

func TestClipApplyRotationSlerps(t *testing.T) {
	s := math.Sqrt2 / 2
	clip := &Clip{Channels: []Channel{{
		Node:   2,
		Path:   PathRotation,
		Times:  []float64{0, 1},
		Values: [][4]float64{{0, 0, 0, 1}, {0, 1, 0, 0}},
	}}}

	pose := []TRS{IdentityTRS(), IdentityTRS(), IdentityTRS()}
	clip.Apply(0.5, pose)
	assert.InDelta(t, s, pose[2].Rotation.Y, 1e-9)
	assert.InDelta(t, s, pose[2].Rotation.W, 1e-9)
	assert.Equal(t, math3d.V3(1, 1, 1), pose[2].Scale, "untouched property keeps pose")
	assert.Equal(t, IdentityTRS(), pose[1], "other nodes keep their pose")

	short := []TRS{IdentityTRS()}
	clip.Apply(0.5, short)
	assert.Equal(t, IdentityTRS(), short[0], "channels past the pose are ignored")
}

func TestNodeOrderParentsFirst(t *testing.T) {
	nodes := []Node{{Parent: 2}, {Parent: -1}, {Parent: 1}}
	assert.Equal(t, []int{1, 2, 0}, nodeOrder(nodes))
}

func TestWorldComposesHierarchy(t *testing.T) {
	fixed := math3d.Translate(math3d.V3(0, 0, 5))
	model := &Model{Nodes: []Node{
		{Parent: -1, Rest: IdentityTRS()},
		{Parent: 0, Rest: IdentityTRS(), Matrix: &fixed},
	}}
	pose := model.Pose(-1, nil)
	pose[0].Translation = math3d.V3(1, 0, 0)
	pose[1].Translation = math3d.V3(9, 9, 9) // Ignored under a matrix

	world := model.World(pose)
	assert.Equal(t, math3d.V3(1, 0, 5), world[1].MulVec3(math3d.Vec3{}))
}
