package bridge

import (
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flywave/go-anari-bridge/anari"
	"github.com/flywave/go-anari-bridge/anari/memdev"
	"github.com/flywave/go-anari-bridge/scene"
)

func TestBridgeEmptyScene(t *testing.T) {
	for _, sc := range []*scene.Scene{nil, {}} {
		dev, errs := newCheckedDevice(nil)
		w := Bridge(sc, dev)
		info, ok := dev.Info(anari.Object(w))
		require.True(t, ok)
		assert.Equal(t, anari.TypeWorld, info.Type)
		assert.Equal(t, 1, info.Commits)
		assert.Empty(t, dev.ParamNames(anari.Object(w)))
		assert.Equal(t, 1, dev.Live())
		assert.Empty(t, errs.messages)
	}
}

func lineMesh() *scene.Mesh {
	return &scene.Mesh{
		Name:           "wire",
		PrimitiveTypes: scene.PrimitiveLine,
		NumVertices:    2,
		Vertices:       []vec3.T{{0, 0, 0}, {5, 5, 5}},
		Faces:          []scene.Face{{Indices: []uint32{0, 1}}},
	}
}

func TestBridgeAttachesSurfaces(t *testing.T) {
	sc, path := textureScene(t)
	sc.Materials = []*scene.Material{
		scene.NewMaterial().SetName("red").SetColor3(scene.KeyColorBase, 1, 0, 0),
		scene.NewMaterial().SetName("textured").SetTexture(scene.TextureBaseColor, 0, scene.TextureRef{Path: path}),
	}
	shifted := quadMesh()
	shifted.MaterialIndex = 1
	for i := range shifted.Vertices {
		shifted.Vertices[i][2] = -2
	}
	sc.Meshes = []*scene.Mesh{quadMesh(), lineMesh(), shifted}
	sc.Cameras = []*scene.Camera{{Name: "cam"}}

	logger, logs := observedLogger()
	dev, errs := newCheckedDevice(nil)
	w, rep := NewSceneBridgeWithOptions(&Options{Logger: logger}).BridgeWithReport(sc, dev)

	assert.Equal(t, 3, rep.Meshes)
	assert.Equal(t, 2, rep.GeometriesBuilt)
	assert.Equal(t, 1, rep.SkippedBy(GeometryNotTriangles))
	assert.Equal(t, []SkippedMesh{{Index: 1, Name: "wire", Reason: GeometryNotTriangles}}, rep.Skipped)
	assert.Equal(t, 2, rep.Materials)
	assert.Equal(t, 2, rep.Surfaces)
	assert.Equal(t, 1, rep.Cameras)
	assert.Equal(t, 1, rep.Textures[TextureLoaded])
	assert.Equal(t, DefaultIndexLimit, rep.IndexLimit)
	bounds, ok := rep.Bounds()
	require.True(t, ok)
	assert.Equal(t, [6]float64{0, 0, -2, 1, 1, 0}, bounds)

	skipped := logs.FilterMessage("mesh skipped").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "not_triangles", skipped[0].ContextMap()["reason"])

	wobj := anari.Object(w)
	instances := arrayObjects(t, dev, committedObject(t, dev, wobj, "instance"))
	require.Len(t, instances, 1)
	inst := instances[0]
	info, _ := dev.Info(inst)
	assert.Equal(t, anari.SubtypeTransform, info.Subtype)
	assert.Equal(t, 0, info.PublicRefs)
	_, xf, _ := dev.Committed(inst, "transform")
	assert.Equal(t, identityTransform, xf)

	group := committedObject(t, dev, inst, "group")
	surfaces := arrayObjects(t, dev, committedObject(t, dev, group, "surface"))
	require.Len(t, surfaces, 2)

	materials := dev.LiveOfType(anari.TypeMaterial)
	require.Len(t, materials, 2)
	assert.Equal(t, materials[0], committedObject(t, dev, surfaces[0], "material"))
	assert.Equal(t, materials[1], committedObject(t, dev, surfaces[1], "material"))

	geometries := dev.LiveOfType(anari.TypeGeometry)
	require.Len(t, geometries, 2)
	assert.Equal(t, geometries[0], committedObject(t, dev, surfaces[0], "geometry"))

	for _, typ := range []anari.DataType{anari.TypeGeometry, anari.TypeMaterial, anari.TypeSampler, anari.TypeSurface, anari.TypeGroup, anari.TypeInstance, anari.TypeArray1D, anari.TypeArray2D} {
		for _, obj := range dev.LiveOfType(typ) {
			info, _ := dev.Info(obj)
			assert.Equal(t, 0, info.PublicRefs, "%s %d still held", typ, obj)
		}
	}
	assert.Empty(t, errs.messages)

	dev.Release(wobj)
	assert.Equal(t, 0, dev.Live())
}

func TestBridgeDefaultMaterial(t *testing.T) {
	a, b := quadMesh(), quadMesh()
	a.MaterialIndex = 3
	b.MaterialIndex = 7
	sc := &scene.Scene{Meshes: []*scene.Mesh{a, b}}
	dev, errs := newCheckedDevice(nil)
	w := Bridge(sc, dev)

	materials := dev.LiveOfType(anari.TypeMaterial)
	require.Len(t, materials, 1)
	info, _ := dev.Info(materials[0])
	assert.Equal(t, anari.SubtypePhysicallyBased, info.Subtype)
	assert.Equal(t, 1, info.Commits)
	assert.Len(t, dev.LiveOfType(anari.TypeSurface), 2)
	assert.Empty(t, errs.messages)

	dev.Release(anari.Object(w))
	assert.Equal(t, 0, dev.Live())
}

func TestBridgeRespectsDeviceIndexLimit(t *testing.T) {
	sc := &scene.Scene{Meshes: []*scene.Mesh{quadMesh()}}
	dev, errs := newCheckedDevice(map[string]interface{}{
		anari.PropertyGeometryMaxIndex: uint64(3),
	})
	w, rep := NewSceneBridge().BridgeWithReport(sc, dev)

	assert.Equal(t, uint64(3), rep.IndexLimit)
	assert.Equal(t, 1, rep.SkippedBy(GeometryOverIndexLimit))
	assert.Zero(t, rep.Surfaces)
	_, ok := rep.Bounds()
	assert.False(t, ok)
	assert.Empty(t, dev.ParamNames(anari.Object(w)))
	assert.Equal(t, 1, dev.Live())
	assert.Empty(t, errs.messages)
}

func TestBridgeMaterialsWithoutMeshes(t *testing.T) {
	sc := &scene.Scene{Materials: []*scene.Material{scene.NewMaterial()}}
	dev := memdev.NewDevice()
	w, rep := NewSceneBridge().BridgeWithReport(sc, dev)
	assert.Equal(t, 1, rep.Materials)
	assert.Equal(t, 1, dev.Live())
	dev.Release(anari.Object(w))
	assert.Equal(t, 0, dev.Live())
}

func TestBridgePackedUVSetsMoveSamplers(t *testing.T) {
	sc, path := textureScene(t)
	sc.Materials = []*scene.Material{
		scene.NewMaterial().SetName("detail").
			SetTexture(scene.TextureBaseColor, 0, scene.TextureRef{Path: path, UVIndex: 1}),
	}
	uv := []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	sparse := quadMesh()
	sparse.TextureCoords[1] = uv
	dense := quadMesh()
	dense.TextureCoords[0] = uv
	dense.TextureCoords[1] = uv
	again := quadMesh()
	again.TextureCoords[1] = uv
	sc.Meshes = []*scene.Mesh{sparse, dense, again}

	logger, logs := observedLogger()
	dev, errs := newCheckedDevice(nil)
	w, rep := NewSceneBridgeWithOptions(&Options{Logger: logger}).BridgeWithReport(sc, dev)

	assert.Equal(t, 1, rep.Materials)
	assert.Equal(t, 1, rep.MaterialVariants)
	assert.Equal(t, 1, rep.Textures[TextureLoaded], "variants do not recount textures")
	assert.Equal(t, 1, logs.FilterMessage("material rebuilt for packed uv sets").Len())
	assert.Len(t, dev.LiveOfType(anari.TypeMaterial), 2)

	inst := arrayObjects(t, dev, committedObject(t, dev, anari.Object(w), "instance"))[0]
	group := committedObject(t, dev, inst, "group")
	surfaces := arrayObjects(t, dev, committedObject(t, dev, group, "surface"))
	require.Len(t, surfaces, 3)

	inAttribute := func(surface anari.Object) interface{} {
		mat := committedObject(t, dev, surface, "material")
		_, v, _ := dev.Committed(committedObject(t, dev, mat, "baseColor"), "inAttribute")
		return v
	}
	geom := committedObject(t, dev, surfaces[0], "geometry")
	_, _, ok := dev.Committed(geom, "vertex.attribute0")
	assert.True(t, ok)
	_, _, ok = dev.Committed(geom, "vertex.attribute1")
	assert.False(t, ok)
	assert.Equal(t, "attribute0", inAttribute(surfaces[0]))
	assert.Equal(t, "attribute1", inAttribute(surfaces[1]))
	assert.Equal(t,
		committedObject(t, dev, surfaces[0], "material"),
		committedObject(t, dev, surfaces[2], "material"),
		"meshes with the same packing share the rebuilt material")
	assert.NotEqual(t,
		committedObject(t, dev, surfaces[0], "material"),
		committedObject(t, dev, surfaces[1], "material"))
	assert.Empty(t, errs.messages)

	dev.Release(anari.Object(w))
	assert.Equal(t, 0, dev.Live())
}
