package bridge

import (
	"fmt"
	"math"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flywave/go-anari-bridge/anari"
	"github.com/flywave/go-anari-bridge/anari/memdev"
	"github.com/flywave/go-anari-bridge/scene"
)

func TestBuildGeometryIndexed(t *testing.T) {
	dev, errs := newCheckedDevice(nil)
	g, st := BuildGeometry(dev, quadMesh(), DefaultIndexLimit)
	require.Equal(t, GeometryBuilt, st)

	info, ok := dev.Info(anari.Object(g))
	require.True(t, ok)
	assert.Equal(t, anari.SubtypeTriangle, info.Subtype)
	assert.Equal(t, 1, info.Commits)
	assert.Empty(t, errs.messages)

	idx := committedObject(t, dev, anari.Object(g), "primitive.index")
	typ, data, dims, ok := dev.Array(idx)
	require.True(t, ok)
	assert.Equal(t, anari.TypeUInt32Vec3, typ)
	assert.Equal(t, [2]uint64{2, 1}, dims)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, data)

	pos := committedObject(t, dev, anari.Object(g), "vertex.position")
	typ, data, dims, _ = dev.Array(pos)
	assert.Equal(t, anari.TypeFloat32Vec3, typ)
	assert.Equal(t, [2]uint64{4, 1}, dims)
	assert.Equal(t, [3]float32{1, 1, 0}, data.([][3]float32)[2])

	for _, arr := range []anari.Object{idx, pos} {
		ai, _ := dev.Info(arr)
		assert.Equal(t, 0, ai.PublicRefs)
	}

	dev.Release(anari.Object(g))
	assert.Equal(t, 0, dev.Live())
}

func TestBuildGeometryNonIndexed(t *testing.T) {
	dev := memdev.NewDevice()
	m := quadMesh()
	m.Faces = nil
	m.NumVertices = 3
	g, st := BuildGeometry(dev, m, 2)
	require.Equal(t, GeometryBuilt, st)
	_, _, ok := dev.Committed(anari.Object(g), "primitive.index")
	assert.False(t, ok)
}

func TestBuildGeometrySkipsNonTriangles(t *testing.T) {
	dev := memdev.NewDevice()
	for _, pt := range []scene.PrimitiveType{
		scene.PrimitiveLine,
		scene.PrimitivePoint,
		scene.PrimitiveTriangle | scene.PrimitiveLine,
		scene.PrimitivePolygon,
		scene.PrimitiveTriangle | scene.PrimitivePolygon | scene.PrimitiveNGONEncoding,
	} {
		m := quadMesh()
		m.PrimitiveTypes = pt
		g, st := BuildGeometry(dev, m, DefaultIndexLimit)
		assert.Equal(t, GeometryNotTriangles, st)
		assert.Zero(t, g)
	}
	assert.Equal(t, 0, dev.Live())

	m := quadMesh()
	m.PrimitiveTypes = scene.PrimitiveTriangle | scene.PrimitiveNGONEncoding
	_, st := BuildGeometry(dev, m, DefaultIndexLimit)
	assert.Equal(t, GeometryBuilt, st)
}

func TestBuildGeometryIndexLimitBoundary(t *testing.T) {
	dev := memdev.NewDevice()
	_, st := BuildGeometry(dev, quadMesh(), 4)
	assert.Equal(t, GeometryBuilt, st)

	g, st := BuildGeometry(dev, quadMesh(), 3)
	assert.Equal(t, GeometryOverIndexLimit, st)
	assert.Zero(t, g)

	limit := ProbeIndexLimit(dev)
	huge := &scene.Mesh{
		PrimitiveTypes: scene.PrimitiveTriangle,
		NumVertices:    math.MaxUint32,
		Faces:          []scene.Face{{Indices: []uint32{0, 1, 2}}},
	}
	assert.Equal(t, GeometryBuilt, CheckEligibility(huge, limit))
	assert.Equal(t, GeometryOverIndexLimit, CheckEligibility(huge, limit-1))
}

func TestBuildGeometryMalformed(t *testing.T) {
	dev := memdev.NewDevice()

	quadFace := quadMesh()
	quadFace.Faces = []scene.Face{{Indices: []uint32{0, 1, 2, 3}}}

	outOfRange := quadMesh()
	outOfRange.Faces[1].Indices[2] = 4

	short := quadMesh()
	short.Vertices = short.Vertices[:3]

	notTriples := quadMesh()
	notTriples.Faces = nil

	shortNormals := quadMesh()
	shortNormals.Normals = []vec3.T{{0, 0, 1}}

	for name, m := range map[string]*scene.Mesh{
		"quad face":     quadFace,
		"out of range":  outOfRange,
		"short":         short,
		"not triples":   notTriples,
		"short normals": shortNormals,
	} {
		_, st := BuildGeometry(dev, m, DefaultIndexLimit)
		assert.Equal(t, GeometryMalformed, st, name)
	}

	empty := &scene.Mesh{PrimitiveTypes: scene.PrimitiveTriangle}
	_, st := BuildGeometry(dev, empty, DefaultIndexLimit)
	assert.Equal(t, GeometryNoPositions, st)
	_, st = BuildGeometry(dev, nil, DefaultIndexLimit)
	assert.Equal(t, GeometryNoPositions, st)
	assert.Equal(t, 0, dev.Live())
}

func TestBuildGeometryUVSets(t *testing.T) {
	dev := memdev.NewDevice()
	m := quadMesh()
	for _, set := range []int{0, 1, 3, 5, 7} {
		uv := make([]vec3.T, 4)
		for i := range uv {
			uv[i] = vec3.T{float32(set), float32(i), 9}
		}
		m.TextureCoords[set] = uv
	}
	g, st := BuildGeometry(dev, m, DefaultIndexLimit)
	require.Equal(t, GeometryBuilt, st)

	for slot, set := range []int{0, 1, 3} {
		arr := committedObject(t, dev, anari.Object(g), fmt.Sprintf("vertex.attribute%d", slot))
		typ, data, dims, ok := dev.Array(arr)
		require.True(t, ok)
		assert.Equal(t, anari.TypeFloat32Vec2, typ)
		assert.Equal(t, [2]uint64{4, 1}, dims)
		flat := data.([]float32)
		require.Len(t, flat, 8)
		assert.Equal(t, []float32{float32(set), 0, float32(set), 1}, flat[:4])
	}
	_, _, ok := dev.Committed(anari.Object(g), "vertex.attribute3")
	assert.False(t, ok)
}

func TestBuildGeometryOptionalAttributes(t *testing.T) {
	dev := memdev.NewDevice()
	m := quadMesh()
	m.Normals = []vec3.T{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}}
	m.Tangents = []vec3.T{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}, {1, 0, 0}}
	m.Bitangents = []vec3.T{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}}
	m.Colors[0] = []vec4.T{{1, 0, 0, 1}, {0, 1, 0, 1}, {0, 0, 1, 1}, {1, 1, 1, 1}}
	m.Colors[1] = []vec4.T{{0, 0, 0, 1}}

	g, st := BuildGeometry(dev, m, DefaultIndexLimit)
	require.Equal(t, GeometryBuilt, st)
	assert.Equal(t, []string{
		"primitive.index",
		"vertex.attribute3",
		"vertex.color",
		"vertex.normal",
		"vertex.position",
		"vertex.tangent",
	}, dev.ParamNames(anari.Object(g)))

	bt := committedObject(t, dev, anari.Object(g), "vertex.attribute3")
	_, data, _, _ := dev.Array(bt)
	assert.Equal(t, [3]float32{0, 1, 0}, data.([][3]float32)[0])

	col := committedObject(t, dev, anari.Object(g), "vertex.color")
	typ, data, _, _ := dev.Array(col)
	assert.Equal(t, anari.TypeFloat32Vec4, typ)
	assert.Equal(t, [4]float32{0, 0, 1, 1}, data.([][4]float32)[2])
}

func TestMeshBounds(t *testing.T) {
	bx := meshBounds(quadMesh())
	assert.Equal(t, [6]float64{0, 0, 0, 1, 1, 0}, *bx.Array())
}

func TestGeometryStatusString(t *testing.T) {
	assert.Equal(t, "over_index_limit", GeometryOverIndexLimit.String())
	assert.Equal(t, "GeometryStatus(42)", GeometryStatus(42).String())
}

func TestBuildGeometryTangentFrameHalves(t *testing.T) {
	dev, errs := newCheckedDevice(nil)
	frame := []vec3.T{{1, 0, 0}, {1, 0, 0}, {1, 0, 0}, {1, 0, 0}}

	tangents := quadMesh()
	tangents.Tangents = frame
	g, st := BuildGeometry(dev, tangents, DefaultIndexLimit)
	require.Equal(t, GeometryBuilt, st)
	assert.Equal(t, []string{"primitive.index", "vertex.position", "vertex.tangent"}, dev.ParamNames(anari.Object(g)))

	bitangents := quadMesh()
	bitangents.Bitangents = frame
	g, st = BuildGeometry(dev, bitangents, DefaultIndexLimit)
	require.Equal(t, GeometryBuilt, st)
	assert.Equal(t, []string{"primitive.index", "vertex.attribute3", "vertex.position"}, dev.ParamNames(anari.Object(g)))

	short := quadMesh()
	short.Tangents = frame[:2]
	_, st = BuildGeometry(dev, short, DefaultIndexLimit)
	assert.Equal(t, GeometryMalformed, st)
	assert.Empty(t, errs.messages)
}

func TestMeshUVLayout(t *testing.T) {
	m := quadMesh()
	assert.Equal(t, uvLayout{-1, -1, -1, -1, -1, -1, -1, -1}, meshUVLayout(m))

	for _, set := range []int{1, 2, 4, 6} {
		m.TextureCoords[set] = make([]vec3.T, 4)
	}
	l := meshUVLayout(m)
	assert.Equal(t, uvLayout{-1, 0, 1, -1, 2, -1, -1, -1}, l)
	assert.Equal(t, "attribute0", l.attribute(1))
	assert.Equal(t, "attribute2", l.attribute(4))
	assert.Equal(t, "attribute0", l.attribute(6), "sets past the third read the first attribute")
	assert.Equal(t, "attribute0", l.attribute(0))
	assert.Equal(t, "attribute0", l.attribute(99))

	m.TextureCoords = [scene.MaxTextureCoords][]vec3.T{}
	for set := 0; set < 3; set++ {
		m.TextureCoords[set] = make([]vec3.T, 4)
	}
	assert.Equal(t, directLayout, meshUVLayout(m))
}
