package bridge

import (
	"fmt"

	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"

	"github.com/flywave/go-anari-bridge/anari"
	"github.com/flywave/go-anari-bridge/scene"
)

// GeometryStatus tells why a mesh did or did not become a geometry.
type GeometryStatus int

const (
	GeometryBuilt GeometryStatus = iota
	GeometryNotTriangles
	GeometryOverIndexLimit
	GeometryNoPositions
	GeometryMalformed
)

func (s GeometryStatus) String() string {
	switch s {
	case GeometryBuilt:
		return "built"
	case GeometryNotTriangles:
		return "not_triangles"
	case GeometryOverIndexLimit:
		return "over_index_limit"
	case GeometryNoPositions:
		return "no_positions"
	case GeometryMalformed:
		return "malformed"
	}
	return fmt.Sprintf("GeometryStatus(%d)", int(s))
}

// CheckEligibility applies the topology and index-limit rules. It does not
// look at the vertex data itself.
func CheckEligibility(m *scene.Mesh, indexLimit uint64) GeometryStatus {
	if m == nil {
		return GeometryNoPositions
	}
	if m.PrimitiveTypes&^scene.PrimitiveNGONEncoding != scene.PrimitiveTriangle {
		return GeometryNotTriangles
	}
	if m.HasFaces() && uint64(m.NumVertices) > indexLimit {
		return GeometryOverIndexLimit
	}
	return GeometryBuilt
}

func validateMesh(m *scene.Mesh) GeometryStatus {
	n := int(m.NumVertices)
	if !m.HasPositions() {
		return GeometryNoPositions
	}
	if len(m.Vertices) < n {
		return GeometryMalformed
	}
	if m.HasNormals() && len(m.Normals) < n {
		return GeometryMalformed
	}
	if m.HasTangents() && len(m.Tangents) < n {
		return GeometryMalformed
	}
	if m.HasBitangents() && len(m.Bitangents) < n {
		return GeometryMalformed
	}
	if m.HasVertexColors(0) && len(m.Colors[0]) < n {
		return GeometryMalformed
	}
	for i := 0; i < scene.MaxTextureCoords; i++ {
		if m.HasTextureCoords(i) && len(m.TextureCoords[i]) < n {
			return GeometryMalformed
		}
	}
	if !m.HasFaces() {
		if n%3 != 0 {
			return GeometryMalformed
		}
		return GeometryBuilt
	}
	for _, f := range m.Faces {
		if len(f.Indices) != 3 {
			return GeometryMalformed
		}
		for _, idx := range f.Indices {
			if idx >= m.NumVertices {
				return GeometryMalformed
			}
		}
	}
	return GeometryBuilt
}

// BuildGeometry converts an eligible triangle mesh into a committed
// "triangle" geometry. Ineligible meshes return the null handle and the
// reason.
func BuildGeometry(dev anari.Device, m *scene.Mesh, indexLimit uint64) (anari.Geometry, GeometryStatus) {
	if st := CheckEligibility(m, indexLimit); st != GeometryBuilt {
		return 0, st
	}
	if st := validateMesh(m); st != GeometryBuilt {
		return 0, st
	}

	n := int(m.NumVertices)
	g := dev.NewGeometry(anari.SubtypeTriangle)
	obj := anari.Object(g)

	setArray := func(name string, typ anari.DataType, data interface{}, count int) {
		arr := dev.NewArray1D(typ, data, uint64(count))
		dev.SetParameter(obj, name, anari.TypeArray1D, arr)
		dev.Release(anari.Object(arr))
	}

	setArray("vertex.position", anari.TypeFloat32Vec3, copyVec3(m.Vertices[:n]), n)
	if m.HasNormals() {
		setArray("vertex.normal", anari.TypeFloat32Vec3, copyVec3(m.Normals[:n]), n)
	}
	if m.HasTangents() {
		setArray("vertex.tangent", anari.TypeFloat32Vec3, copyVec3(m.Tangents[:n]), n)
	}
	if m.HasBitangents() {
		setArray("vertex.attribute3", anari.TypeFloat32Vec3, copyVec3(m.Bitangents[:n]), n)
	}
	if m.HasVertexColors(0) {
		setArray("vertex.color", anari.TypeFloat32Vec4, copyVec4(m.Colors[0][:n]), n)
	}

	for set, slot := range meshUVLayout(m) {
		if slot < 0 {
			continue
		}
		setArray(fmt.Sprintf("vertex.attribute%d", slot), anari.TypeFloat32Vec2, flattenUV(m.TextureCoords[set][:n]), n)
	}

	if m.HasFaces() {
		idx := make([]uint32, 0, 3*len(m.Faces))
		for _, f := range m.Faces {
			idx = append(idx, f.Indices[0], f.Indices[1], f.Indices[2])
		}
		setArray("primitive.index", anari.TypeUInt32Vec3, idx, len(m.Faces))
	}

	dev.CommitParameters(obj)
	return g, GeometryBuilt
}

// uvLayout maps each source UV set to the vertex attribute slot it lands
// in, or -1 when the set does not reach the geometry.
type uvLayout [scene.MaxTextureCoords]int

// directLayout is used when no mesh is known: set i reads attribute i.
var directLayout = uvLayout{0, 1, 2, -1, -1, -1, -1, -1}

// meshUVLayout packs the present sets of m, in order, into the first
// MaxUVAttributes slots.
func meshUVLayout(m *scene.Mesh) uvLayout {
	var l uvLayout
	slot := 0
	for i := range l {
		l[i] = -1
		if slot < MaxUVAttributes && m.HasTextureCoords(i) {
			l[i] = slot
			slot++
		}
	}
	return l
}

// attribute names the sampler input for UV set. Sets without a slot read
// attribute0.
func (l uvLayout) attribute(set uint32) string {
	if set < uint32(len(l)) && l[set] >= 0 {
		return fmt.Sprintf("attribute%d", l[set])
	}
	return "attribute0"
}

func copyVec3(src []vec3.T) [][3]float32 {
	out := make([][3]float32, len(src))
	for i := range src {
		out[i] = [3]float32(src[i])
	}
	return out
}

func copyVec4(src []vec4.T) [][4]float32 {
	out := make([][4]float32, len(src))
	for i := range src {
		out[i] = [4]float32(src[i])
	}
	return out
}

// flattenUV keeps the first two components of each coordinate.
func flattenUV(src []vec3.T) []float32 {
	out := make([]float32, 0, 2*len(src))
	for _, uv := range src {
		out = append(out, uv[0], uv[1])
	}
	return out
}

// meshBounds returns the box around the mesh positions.
func meshBounds(m *scene.Mesh) dvec3.Box {
	bx := dvec3.MinBox
	for i := 0; i < int(m.NumVertices) && i < len(m.Vertices); i++ {
		v := m.Vertices[i]
		p := dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])}
		bx.Extend(&p)
	}
	return bx
}
