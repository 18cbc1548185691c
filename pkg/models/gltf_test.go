package models

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taigrr/glint/pkg/math3d"
)

var cubeCorners = [][3]float32{
	{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
}

// Counter-clockwise from outside, as glTF expects.
var cubeIndices = []uint16{
	4, 5, 6, 4, 6, 7, // +Z
	1, 0, 3, 1, 3, 2, // -Z
	5, 1, 2, 5, 2, 6, // +X
	0, 4, 7, 0, 7, 3, // -X
	7, 6, 2, 7, 2, 3, // +Y
	0, 1, 5, 0, 5, 4, // -Y
}

// writeCube saves a unit cube GLB, indexed or as a flat triangle list.
func writeCube(t *testing.T, indexed bool) string {
	t.Helper()

	doc := gltf.NewDocument()
	prim := &gltf.Primitive{}
	if indexed {
		prim.Attributes = map[string]int{gltf.POSITION: modeler.WritePosition(doc, cubeCorners)}
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, cubeIndices))
	} else {
		flat := make([][3]float32, len(cubeIndices))
		for i, idx := range cubeIndices {
			flat[i] = cubeCorners[idx]
		}
		prim.Attributes = map[string]int{gltf.POSITION: modeler.WritePosition(doc, flat)}
	}
	doc.Meshes = []*gltf.Mesh{{Name: "cube", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "root", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	path := filepath.Join(t.TempDir(), "cube.glb")
	require.NoError(t, gltf.SaveBinary(doc, path))
	return path
}

func TestLoadGLBInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.glb")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load("model.obj")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestGLTFLoaderCreation(t *testing.T) {
	loader := NewGLTFLoader()
	if loader == nil {
		t.Error("NewGLTFLoader returned nil")
		return
	}
	if !loader.CalculateNormals {
		t.Error("CalculateNormals should default to true")
	}
	if !loader.SmoothNormals {
		t.Error("SmoothNormals should default to true")
	}
}

func TestLoadCubeStats(t *testing.T) {
	tests := []struct {
		name          string
		indexed       bool
		wantTriangles int
		wantVertices  int
	}{
		{"indexed", true, 12, 8},
		{"non-indexed", false, 12, 36},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model, err := Load(writeCube(t, tc.indexed))
			require.NoError(t, err)

			assert.Equal(t, tc.wantTriangles, model.Stats.Triangles)
			assert.Equal(t, tc.wantVertices, model.Stats.Vertices)
			assert.Equal(t, 12, model.Mesh.TriangleCount())
			assert.Equal(t, "cube.glb", model.Mesh.Name)
			assert.Equal(t, []Part{{Node: 0, First: 0, Count: tc.wantVertices}}, model.Parts)
		})
	}
}

func TestLoadCubeBoundsAndNormals(t *testing.T) {
	model, err := Load(writeCube(t, true))
	require.NoError(t, err)
	mesh := model.Mesh

	assert.Equal(t, math3d.V3(-1, -1, -1), mesh.BoundsMin)
	assert.Equal(t, math3d.V3(1, 1, 1), mesh.BoundsMax)

	// Generated smooth normals point away from the center.
	for i, v := range mesh.Vertices {
		assert.Greater(t, v.Normal.Dot(v.Position), 0.0, "vertex %d normal points inward", i)
	}
}

func TestLoadCubeWindingIsClockwise(t *testing.T) {
	model, err := Load(writeCube(t, true))
	require.NoError(t, err)
	mesh := model.Mesh

	// The first face is on +Z. Reversed winding makes (v1-v0)x(v2-v0)
	// point into the cube.
	f := mesh.Faces[0].V
	p0 := mesh.Vertices[f[0]].Position
	n := mesh.Vertices[f[1]].Position.Sub(p0).Cross(mesh.Vertices[f[2]].Position.Sub(p0))
	assert.Less(t, n.Z, 0.0)
}

// gltfFixture is a one-triangle glTF with a material, an embedded buffer
// and a two-channel animation on the root node.
func gltfFixture(t *testing.T) string {
	t.Helper()

	var buf bytes.Buffer
	write := func(v ...float32) {
		for _, f := range v {
			require.NoError(t, binary.Write(&buf, binary.LittleEndian, f))
		}
	}
	write(0, 0, 0, 1, 0, 0, 0, 1, 0) // positions: 36 bytes
	write(0, 2)                      // times: 8 bytes at 36
	write(0, 0, 0, 2, 0, 0)          // translations: 24 bytes at 44
	write(0, 0, 0, 1, 0, 1, 0, 0)    // rotations: 32 bytes at 68

	uri := "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	doc := fmt.Sprintf(`{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [{"mesh": 0, "translation": [0, 4, 0]}],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 0}, "material": 0}]}],
  "materials": [{"name": "gold", "pbrMetallicRoughness": {"baseColorFactor": [1, 0.8, 0.2, 1], "metallicFactor": 0.8, "roughnessFactor": 0.1}}],
  "animations": [{
    "name": "flap",
    "channels": [
      {"sampler": 0, "target": {"node": 0, "path": "translation"}},
      {"sampler": 1, "target": {"node": 0, "path": "rotation"}}
    ],
    "samplers": [
      {"input": 1, "output": 2},
      {"input": 1, "output": 3, "interpolation": "STEP"}
    ]
  }],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [2]},
    {"bufferView": 2, "componentType": 5126, "count": 2, "type": "VEC3"},
    {"bufferView": 3, "componentType": 5126, "count": 2, "type": "VEC4"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 8},
    {"buffer": 0, "byteOffset": 44, "byteLength": 24},
    {"buffer": 0, "byteOffset": 68, "byteLength": 32}
  ],
  "buffers": [{"byteLength": %d, "uri": %q}]
}`, buf.Len(), uri)

	path := filepath.Join(t.TempDir(), "tri.gltf")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadMaterials(t *testing.T) {
	model, err := Load(gltfFixture(t))
	require.NoError(t, err)

	mesh := model.Mesh
	require.Equal(t, 1, mesh.MaterialCount())
	mat := mesh.GetMaterial(mesh.GetFaceMaterial(0))
	require.NotNil(t, mat)
	assert.Equal(t, "gold", mat.Name)
	assert.InDelta(t, 0.8, mat.BaseColor[1], 1e-9)
	assert.InDelta(t, 0.8, mat.Metallic, 1e-9)
	assert.InDelta(t, 0.1, mat.Roughness, 1e-9)
	assert.False(t, mat.HasTexture)
}

func TestLoadAnimation(t *testing.T) {
	model, err := Load(gltfFixture(t))
	require.NoError(t, err)

	require.Len(t, model.Clips, 1)
	clip := model.Clips[0]
	assert.Equal(t, "flap", clip.Name)
	assert.InDelta(t, 2.0, clip.Duration, 1e-9)
	require.Len(t, model.Nodes, 1)
	assert.Equal(t, math3d.V3(0, 4, 0), model.Nodes[0].Rest.Translation)
	assert.Equal(t, []Part{{Node: 0, First: 0, Count: 3}}, model.Parts)

	pose := model.Pose(1, nil)
	assert.InDelta(t, 1.0, pose[0].Translation.X, 1e-6, "linear midpoint")
	assert.Equal(t, math3d.IdentityQuat(), pose[0].Rotation, "step holds first key")

	pose = model.Pose(2, pose)
	assert.InDelta(t, 2.0, pose[0].Translation.X, 1e-6)
	assert.InDelta(t, 1.0, pose[0].Rotation.Y, 1e-6)

	pose = model.Pose(3, pose)
	assert.InDelta(t, 1.0, pose[0].Translation.X, 1e-6, "clip loops")

	rest := model.Pose(-1, pose)
	assert.Equal(t, model.Nodes[0].Rest, rest[0])
}

// hierarchyDoc has a body node at (0, 4, 0) whose child wing holds a
// triangle, and one LINEAR clip over two seconds on the given node.
func hierarchyDoc(node int, path gltf.TRSProperty, keys [][3]float32) *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	times := modeler.WriteAccessor(doc, gltf.TargetNone, []float32{0, 2})
	values := modeler.WriteAccessor(doc, gltf.TargetNone, keys)

	doc.Meshes = []*gltf.Mesh{{Name: "wing", Primitives: []*gltf.Primitive{{
		Attributes: map[string]int{gltf.POSITION: pos},
	}}}}
	doc.Nodes = []*gltf.Node{
		{Name: "body", Children: []int{1}, Translation: [3]float64{0, 4, 0}},
		{Name: "wing", Mesh: gltf.Index(0)},
	}
	doc.Scenes[0].Nodes = []int{0}
	doc.Animations = []*gltf.Animation{{
		Name: "flap",
		Channels: []*gltf.AnimationChannel{{
			Sampler: 0,
			Target:  gltf.AnimationChannelTarget{Node: gltf.Index(node), Path: path},
		}},
		Samplers: []*gltf.AnimationSampler{{Input: times, Output: values}},
	}}
	return doc
}

func TestClipsMoveNodeGeometry(t *testing.T) {
	tests := []struct {
		name string
		node int
		path gltf.TRSProperty
		keys [][3]float32
		want math3d.Vec3 // Vertex 1 at the end of the clip
	}{
		{"child translation", 1, gltf.TRSTranslation, [][3]float32{{0, 0, 0}, {2, 0, 0}}, math3d.V3(3, 4, 0)},
		{"parent scale reaches child", 0, gltf.TRSScale, [][3]float32{{1, 1, 1}, {2, 2, 2}}, math3d.V3(2, 4, 0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			model, err := NewGLTFLoader().LoadDocument(hierarchyDoc(tc.node, tc.path, tc.keys), "")
			require.NoError(t, err)
			require.Len(t, model.Clips, 1)
			assert.Equal(t, []Part{{Node: 1, First: 0, Count: 3}}, model.Parts)
			assert.Equal(t, 0, model.Nodes[1].Parent)

			// The rest mesh is baked through the hierarchy.
			assert.Equal(t, math3d.V3(1, 4, 0), model.Mesh.Vertices[1].Position)

			posed := model.Deform(model.Pose(2, nil), nil)
			assert.InDelta(t, tc.want.X, posed.Vertices[1].Position.X, 1e-6)
			assert.InDelta(t, tc.want.Y, posed.Vertices[1].Position.Y, 1e-6)
			assert.InDelta(t, tc.want.Z, posed.Vertices[1].Position.Z, 1e-6)
			assert.Equal(t, posed.Vertices[1].Position.X, posed.BoundsMax.X, "bounds follow the pose")

			assert.Equal(t, math3d.V3(1, 4, 0), model.Mesh.Vertices[1].Position, "rest mesh untouched")
			assert.Equal(t, model.Mesh.Faces, posed.Faces)

			atRest := model.Deform(model.Pose(0, nil), posed)
			assert.Same(t, posed, atRest, "target reused")
			assert.InDelta(t, 1.0, atRest.Vertices[1].Position.X, 1e-6)
		})
	}
}

func TestLoadWarnsUnusableChannels(t *testing.T) {
	doc := hierarchyDoc(1, gltf.TRSTranslation, [][3]float32{{0, 0, 0}, {2, 0, 0}})
	doc.Nodes[1].Matrix = [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 1, 0, 1}
	anim := doc.Animations[0]
	anim.Channels = append(anim.Channels,
		&gltf.AnimationChannel{Sampler: 0, Target: gltf.AnimationChannelTarget{Node: gltf.Index(0), Path: gltf.TRSWeights}},
		&gltf.AnimationChannel{Sampler: 0, Target: gltf.AnimationChannelTarget{Path: gltf.TRSTranslation}},
		&gltf.AnimationChannel{Sampler: 5, Target: gltf.AnimationChannelTarget{Node: gltf.Index(0), Path: gltf.TRSTranslation}},
	)

	core, logs := observer.New(zap.WarnLevel)
	loader := NewGLTFLoader()
	loader.Logger = zap.New(core)

	model, err := loader.LoadDocument(doc, "")
	require.NoError(t, err)
	assert.Empty(t, model.Clips, "a clip without usable channels is dropped")
	assert.Equal(t, 4, logs.FilterMessage("skip animation channel").Len())

	require.NotNil(t, model.Nodes[1].Matrix)
	assert.Equal(t, math3d.V3(1, 5, 0), model.Mesh.Vertices[1].Position, "matrix node is baked")
}

func TestLoadRejectsSharedNodes(t *testing.T) {
	doc := hierarchyDoc(1, gltf.TRSTranslation, [][3]float32{{0, 0, 0}, {2, 0, 0}})
	doc.Nodes[1].Children = []int{0}

	_, err := NewGLTFLoader().LoadDocument(doc, "")
	assert.ErrorContains(t, err, "reached twice")
}
