package models

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp" // EXT_texture_webp images

	"github.com/taigrr/glint/pkg/math3d"
)

// ErrUnsupportedFormat is returned for model files that are not glTF.
var ErrUnsupportedFormat = errors.New("unsupported model format")

// Stats are the diagnostic geometry counts of a loaded document. Per
// primitive, triangles are index_count/3 when indexed and
// position_count/3 otherwise; vertices are position_count.
type Stats struct {
	Triangles int
	Vertices  int
}

// Model is a loaded glTF scene flattened into one mesh at its rest pose.
// Nodes and Parts keep the hierarchy so clips can move the vertices each
// node placed.
type Model struct {
	Mesh  *Mesh
	Nodes []Node
	Parts []Part
	Clips []*Clip
	Stats Stats

	rig *rig
}

// GLTFLoader loads GLTF/GLB files into Mesh format.
type GLTFLoader struct {
	// Options
	CalculateNormals bool
	SmoothNormals    bool
	Logger           *zap.Logger
}

// NewGLTFLoader creates a new GLTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		SmoothNormals:    true,
		Logger:           zap.NewNop(),
	}
}

// Load loads a .glb or .gltf file with default options.
func Load(path string) (*Model, error) {
	return NewGLTFLoader().Load(path)
}

// Load loads a GLTF or GLB file.
func (l *GLTFLoader) Load(path string) (*Model, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".glb", ".gltf":
	default:
		return nil, fmt.Errorf("%w: %q (use .glb or .gltf)", ErrUnsupportedFormat, ext)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	model, err := l.LoadDocument(doc, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	model.Mesh.Name = filepath.Base(path)
	return model, nil
}

// LoadDocument converts a decoded document. dir resolves relative image
// URIs.
func (l *GLTFLoader) LoadDocument(doc *gltf.Document, dir string) (*Model, error) {
	log := l.Logger
	if log == nil {
		log = zap.NewNop()
	}

	mesh := NewMesh("")
	mesh.Materials = l.loadMaterials(doc, dir, log)
	model := &Model{Mesh: mesh}

	roots := sceneRoots(doc)
	if len(roots) == 0 {
		// No node hierarchy: take every mesh as is.
		for i, m := range doc.Meshes {
			if err := l.processMesh(doc, m, mesh, math3d.Identity(), &model.Stats); err != nil {
				return nil, fmt.Errorf("process mesh %d: %w", i, err)
			}
		}
	} else {
		nodes, reached, err := readNodes(doc, roots)
		if err != nil {
			return nil, err
		}
		model.Nodes = nodes
		model.Clips = l.loadClips(doc, nodes, log)

		world := model.World(model.Pose(-1, nil))
		for _, i := range reached {
			n := doc.Nodes[i]
			if n.Mesh == nil {
				continue
			}
			if *n.Mesh < 0 || *n.Mesh >= len(doc.Meshes) {
				return nil, fmt.Errorf("node %d: mesh index %d out of range", i, *n.Mesh)
			}
			m := doc.Meshes[*n.Mesh]
			first := len(mesh.Vertices)
			if err := l.processMesh(doc, m, mesh, world[i], &model.Stats); err != nil {
				return nil, fmt.Errorf("process mesh %q: %w", m.Name, err)
			}
			model.Parts = append(model.Parts, Part{Node: i, First: first, Count: len(mesh.Vertices) - first})
		}
	}

	hasNormals := false
	for _, v := range mesh.Vertices {
		if v.Normal.Len() > 0.001 {
			hasNormals = true
			break
		}
	}

	if l.CalculateNormals && !hasNormals {
		if l.SmoothNormals {
			mesh.CalculateSmoothNormals()
		} else {
			mesh.CalculateNormals()
		}
	}

	mesh.CalculateBounds()

	log.Debug("loaded gltf",
		zap.Int("triangles", model.Stats.Triangles),
		zap.Int("vertices", model.Stats.Vertices),
		zap.Int("materials", len(mesh.Materials)),
		zap.Int("clips", len(model.Clips)),
	)
	return model, nil
}

// processMesh extracts geometry from a GLTF mesh, baking xf into it.
func (l *GLTFLoader) processMesh(doc *gltf.Document, m *gltf.Mesh, mesh *Mesh, xf math3d.Mat4, stats *Stats) error {
	normalInv := xf.Inverse()

	for _, prim := range m.Primitives {
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}
		posAcc := doc.Accessors[posIdx]

		stats.Vertices += posAcc.Count
		if prim.Indices != nil {
			stats.Triangles += doc.Accessors[*prim.Indices].Count / 3
		} else {
			stats.Triangles += posAcc.Count / 3
		}

		if prim.Mode != gltf.PrimitiveTriangles && prim.Mode != 0 {
			// Skip non-triangle primitives (lines, points, etc)
			continue
		}

		positions, err := modeler.ReadPosition(doc, posAcc, nil)
		if err != nil {
			return fmt.Errorf("read positions: %w", err)
		}

		var normals [][3]float32
		if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
			normals, err = modeler.ReadNormal(doc, doc.Accessors[normIdx], nil)
			if err != nil {
				return fmt.Errorf("read normals: %w", err)
			}
		}

		var uvs [][2]float32
		if uvIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
			uvs, err = modeler.ReadTextureCoord(doc, doc.Accessors[uvIdx], nil)
			if err != nil {
				return fmt.Errorf("read uvs: %w", err)
			}
		}

		material := -1
		if prim.Material != nil && *prim.Material < len(mesh.Materials) {
			material = *prim.Material
		}

		baseVertex := len(mesh.Vertices)

		for i, p := range positions {
			v := MeshVertex{
				Position: xf.MulVec3(math3d.V3(float64(p[0]), float64(p[1]), float64(p[2]))),
			}
			if i < len(normals) {
				n := normals[i]
				v.Normal = transformNormal(normalInv, math3d.V3(float64(n[0]), float64(n[1]), float64(n[2])))
			}
			if i < len(uvs) {
				// GLTF uses top-left origin (V=0 at top), flip V for bottom-left origin
				v.UV = math3d.V2(float64(uvs[i][0]), 1.0-float64(uvs[i][1]))
			}
			mesh.Vertices = append(mesh.Vertices, v)
		}

		var indices []uint32
		if prim.Indices != nil {
			indices, err = modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
			if err != nil {
				return fmt.Errorf("read indices: %w", err)
			}
		} else {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		// GLTF fronts wind CCW; the rasterizer treats CW as front after
		// its Y flip, so every triangle is reversed here.
		for i := 0; i+2 < len(indices); i += 3 {
			face := [3]int{
				baseVertex + int(indices[i]),
				baseVertex + int(indices[i+2]), // swapped
				baseVertex + int(indices[i+1]), // swapped
			}
			if face[0] >= len(mesh.Vertices) || face[1] >= len(mesh.Vertices) || face[2] >= len(mesh.Vertices) {
				return fmt.Errorf("index out of range in primitive")
			}
			mesh.Faces = append(mesh.Faces, Face{V: face, Material: material})
		}
	}

	return nil
}

// loadMaterials reads metallic-roughness factors and base color images.
// Images that fail to decode leave the material untextured.
func (l *GLTFLoader) loadMaterials(doc *gltf.Document, dir string, log *zap.Logger) []Material {
	images := make(map[int]image.Image)
	materials := make([]Material, 0, len(doc.Materials))

	for i, gm := range doc.Materials {
		mat := DefaultMaterial()
		mat.Name = gm.Name
		if mat.Name == "" {
			mat.Name = fmt.Sprintf("material%d", i)
		}

		if pbr := gm.PBRMetallicRoughness; pbr != nil {
			mat.BaseColor = pbr.BaseColorFactorOrDefault()
			if pbr.MetallicFactor != nil {
				mat.Metallic = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mat.Roughness = *pbr.RoughnessFactor
			}
			if tex := pbr.BaseColorTexture; tex != nil && tex.Index >= 0 && tex.Index < len(doc.Textures) {
				if src := doc.Textures[tex.Index].Source; src != nil {
					img, ok := images[*src]
					if !ok {
						var err error
						img, err = decodeImage(doc, *src, dir)
						if err != nil {
							log.Warn("skip base color texture", zap.Int("image", *src), zap.Error(err))
						}
						images[*src] = img
					}
					if img != nil {
						mat.BaseMap = img
						mat.HasTexture = true
					}
				}
			}
		}
		materials = append(materials, mat)
	}
	return materials
}

// decodeImage decodes image i from a buffer view, a data URI or a file next
// to the document.
func decodeImage(doc *gltf.Document, i int, dir string) (image.Image, error) {
	if i < 0 || i >= len(doc.Images) {
		return nil, fmt.Errorf("image %d out of range", i)
	}
	img := doc.Images[i]

	var data []byte
	switch {
	case img.BufferView != nil:
		bv := doc.BufferViews[*img.BufferView]
		buf := doc.Buffers[bv.Buffer]
		if buf.Data == nil {
			return nil, fmt.Errorf("buffer %d has no data", bv.Buffer)
		}
		start := bv.ByteOffset
		end := start + bv.ByteLength
		if end > len(buf.Data) {
			return nil, fmt.Errorf("buffer view out of range")
		}
		data = buf.Data[start:end]
	case strings.HasPrefix(img.URI, "data:"):
		comma := strings.IndexByte(img.URI, ',')
		if comma < 0 {
			return nil, fmt.Errorf("malformed data uri")
		}
		var err error
		data, err = base64.StdEncoding.DecodeString(img.URI[comma+1:])
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
	case img.URI != "":
		var err error
		data, err = os.ReadFile(filepath.Join(dir, filepath.FromSlash(img.URI)))
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
	default:
		return nil, fmt.Errorf("image %d has no source", i)
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return decoded, nil
}

// loadClips reads every animation. Channels the viewer cannot use (morph
// weights, nodes with a fixed matrix, undecodable samplers) are skipped
// with a warning.
func (l *GLTFLoader) loadClips(doc *gltf.Document, nodes []Node, log *zap.Logger) []*Clip {
	var clips []*Clip
	for ai, ga := range doc.Animations {
		clip := &Clip{Name: ga.Name}
		if clip.Name == "" {
			clip.Name = fmt.Sprintf("clip%d", ai)
		}

		for _, gc := range ga.Channels {
			ch, err := readChannel(doc, ga, gc, nodes)
			if err != nil {
				log.Warn("skip animation channel",
					zap.String("clip", clip.Name),
					zap.Stringer("path", gc.Target.Path),
					zap.Error(err))
				continue
			}
			clip.Channels = append(clip.Channels, ch)
		}

		if len(clip.Channels) == 0 {
			continue
		}
		clip.Duration = duration(clip.Channels)
		clips = append(clips, clip)
	}
	return clips
}

func readChannel(doc *gltf.Document, ga *gltf.Animation, gc *gltf.AnimationChannel, nodes []Node) (Channel, error) {
	var ch Channel
	switch gc.Target.Path {
	case gltf.TRSTranslation:
		ch.Path = PathTranslation
	case gltf.TRSRotation:
		ch.Path = PathRotation
	case gltf.TRSScale:
		ch.Path = PathScale
	default:
		return ch, fmt.Errorf("unsupported path %s", gc.Target.Path)
	}

	if gc.Target.Node == nil {
		return ch, errors.New("channel has no target node")
	}
	ch.Node = *gc.Target.Node
	if ch.Node < 0 || ch.Node >= len(nodes) {
		return ch, fmt.Errorf("target node %d not in the scene", ch.Node)
	}
	if nodes[ch.Node].Matrix != nil {
		return ch, fmt.Errorf("target node %d has a fixed matrix", ch.Node)
	}

	if gc.Sampler < 0 || gc.Sampler >= len(ga.Samplers) {
		return ch, fmt.Errorf("sampler %d out of range", gc.Sampler)
	}
	sampler := ga.Samplers[gc.Sampler]
	switch sampler.Interpolation {
	case gltf.InterpolationLinear:
		ch.Interp = InterpLinear
	case gltf.InterpolationStep:
		ch.Interp = InterpStep
	case gltf.InterpolationCubicSpline:
		ch.Interp = InterpCubicSpline
	default:
		return ch, fmt.Errorf("unknown interpolation %s", sampler.Interpolation)
	}

	if sampler.Input < 0 || sampler.Input >= len(doc.Accessors) || sampler.Output < 0 || sampler.Output >= len(doc.Accessors) {
		return ch, fmt.Errorf("sampler accessor out of range")
	}

	in, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Input], nil)
	if err != nil {
		return ch, fmt.Errorf("read input: %w", err)
	}
	times, ok := in.([]float32)
	if !ok {
		return ch, fmt.Errorf("input type %T", in)
	}
	ch.Times = make([]float64, len(times))
	for i, t := range times {
		ch.Times[i] = float64(t)
	}

	out, err := modeler.ReadAccessor(doc, doc.Accessors[sampler.Output], nil)
	if err != nil {
		return ch, fmt.Errorf("read output: %w", err)
	}
	var values [][4]float64
	switch v := out.(type) {
	case [][3]float32:
		values = make([][4]float64, len(v))
		for i, x := range v {
			values[i] = [4]float64{float64(x[0]), float64(x[1]), float64(x[2]), 0}
		}
	case [][4]float32:
		values = make([][4]float64, len(v))
		for i, x := range v {
			values[i] = [4]float64{float64(x[0]), float64(x[1]), float64(x[2]), float64(x[3])}
		}
	default:
		return ch, fmt.Errorf("output type %T", out)
	}

	// Cubic spline keys are (in-tangent, value, out-tangent) triples.
	if ch.Interp == InterpCubicSpline {
		keys := make([][4]float64, 0, len(values)/3)
		for i := 1; i < len(values); i += 3 {
			keys = append(keys, values[i])
		}
		values = keys
	}

	if len(values) != len(ch.Times) {
		return ch, fmt.Errorf("%d keys but %d values", len(ch.Times), len(values))
	}
	ch.Values = values
	return ch, nil
}

// sceneRoots returns the top-level nodes of the default scene, or every
// node that is nobody's child when the document has no scene.
func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			scene = *doc.Scene
		}
		var roots []int
		for _, n := range doc.Scenes[scene].Nodes {
			if n >= 0 && n < len(doc.Nodes) {
				roots = append(roots, n)
			}
		}
		return roots
	}

	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(isChild) {
				isChild[c] = true
			}
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

// readNodes converts the hierarchy under roots and returns the nodes it
// reached, parents first. Nodes outside it keep Parent -1. A node reached
// twice is an error, which also rejects cycles.
func readNodes(doc *gltf.Document, roots []int) ([]Node, []int, error) {
	nodes := make([]Node, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		nodes[i] = Node{Parent: -1, Rest: nodeTRS(gn)}
		if m := gn.MatrixOrDefault(); m != gltf.DefaultMatrix {
			// glTF matrices are column-major like math3d.Mat4.
			mat := math3d.Mat4(m)
			nodes[i].Matrix = &mat
		}
	}

	seen := make([]bool, len(doc.Nodes))
	var order []int
	var visit func(node, parent int) error
	visit = func(node, parent int) error {
		if seen[node] {
			return fmt.Errorf("node %d reached twice", node)
		}
		seen[node] = true
		order = append(order, node)
		nodes[node].Parent = parent
		for _, c := range doc.Nodes[node].Children {
			if c < 0 || c >= len(doc.Nodes) {
				return fmt.Errorf("child node %d out of range", c)
			}
			if err := visit(c, node); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range roots {
		if err := visit(r, -1); err != nil {
			return nil, nil, err
		}
	}
	return nodes, order, nil
}

// nodeTRS returns the node's decomposed transform, ignoring any matrix.
func nodeTRS(n *gltf.Node) TRS {
	tr, r, sc := n.TranslationOrDefault(), n.RotationOrDefault(), n.ScaleOrDefault()
	return TRS{
		Translation: math3d.V3(tr[0], tr[1], tr[2]),
		Rotation:    math3d.Quat{X: r[0], Y: r[1], Z: r[2], W: r[3]}.Normalize(),
		Scale:       math3d.V3(sc[0], sc[1], sc[2]),
	}
}
