package importer

import (
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"

	"github.com/flywave/go-anari-bridge/scene"
)

// meshBuilder collects triangles for one scene mesh. Vertices without a
// normal or texture coordinate get zeros when other vertices have one.
type meshBuilder struct {
	name     string
	material uint32

	vertices   []vec3.T
	normals    []vec3.T
	uvs        []vec3.T
	faces      []scene.Face
	hasNormals bool
	hasUVs     bool
}

func newMeshBuilder(name string, material uint32) *meshBuilder {
	return &meshBuilder{name: name, material: material}
}

func (b *meshBuilder) add(pos vec3.T, normal *vec3.T, uv *vec2.T) uint32 {
	idx := uint32(len(b.vertices))
	b.vertices = append(b.vertices, pos)
	if normal != nil {
		b.hasNormals = true
		b.normals = append(b.normals, *normal)
	} else {
		b.normals = append(b.normals, vec3.T{})
	}
	if uv != nil {
		b.hasUVs = true
		b.uvs = append(b.uvs, vec3.T{uv[0], uv[1], 0})
	} else {
		b.uvs = append(b.uvs, vec3.T{})
	}
	return idx
}

func (b *meshBuilder) triangle(i0, i1, i2 uint32) {
	b.faces = append(b.faces, scene.Face{Indices: []uint32{i0, i1, i2}})
}

func (b *meshBuilder) empty() bool {
	return len(b.faces) == 0
}

// mesh returns the collected triangles, filling in flat normals when no
// vertex carried one.
func (b *meshBuilder) mesh() *scene.Mesh {
	m := &scene.Mesh{
		Name:           b.name,
		PrimitiveTypes: scene.PrimitiveTriangle,
		NumVertices:    uint32(len(b.vertices)),
		Vertices:       b.vertices,
		Faces:          b.faces,
		MaterialIndex:  b.material,
	}
	if b.hasNormals {
		m.Normals = b.normals
	} else {
		m.Normals = computeNormals(b.vertices, b.faces)
	}
	if b.hasUVs {
		m.TextureCoords[0] = b.uvs
	}
	return m
}

// computeNormals averages face normals into vertex normals.
func computeNormals(vertices []vec3.T, faces []scene.Face) []vec3.T {
	normals := make([]vec3.T, len(vertices))
	for _, f := range faces {
		n := faceNormal(vertices[f.Indices[0]], vertices[f.Indices[1]], vertices[f.Indices[2]])
		for _, i := range f.Indices {
			normals[i].Add(&n)
		}
	}
	for i := range normals {
		if normals[i].Length() > 0 {
			normals[i].Normalize()
		} else {
			normals[i] = vec3.T{0, 1, 0}
		}
	}
	return normals
}

func faceNormal(v0, v1, v2 vec3.T) vec3.T {
	e1 := vec3.Sub(&v1, &v0)
	e2 := vec3.Sub(&v2, &v0)
	n := vec3.Cross(&e1, &e2)
	if l := n.Length(); l > 0 {
		return vec3.T{n[0] / l, n[1] / l, n[2] / l}
	}
	return vec3.T{0, 1, 0}
}

// fan triangulates a convex polygon given as corner indices.
func fan(corners []int) [][3]int {
	var tris [][3]int
	for i := 1; i+1 < len(corners); i++ {
		tris = append(tris, [3]int{corners[0], corners[i], corners[i+1]})
	}
	return tris
}
