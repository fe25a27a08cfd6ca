package importer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	mat4d "github.com/flywave/go3d/float64/mat4"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	fbx "github.com/flywave/ofbx"

	"github.com/flywave/go-anari-bridge/scene"
)

type FbxImporter struct {
	sc        *scene.Scene
	textures  *textureTable
	materials map[*fbx.Material]uint32
	fallback  *uint32
}

var _ Importer = (*FbxImporter)(nil)

func (cv *FbxImporter) Import(path string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := fbx.Load(f)
	if err != nil {
		return nil, err
	}
	cv.sc = &scene.Scene{}
	cv.textures = newTextureTable(cv.sc, filepath.Dir(path))
	cv.materials = make(map[*fbx.Material]uint32)
	cv.fallback = nil

	for _, mh := range doc.Meshes {
		cv.convertMesh(mh)
	}
	return cv.sc, nil
}

func (cv *FbxImporter) convertMesh(mh *fbx.Mesh) {
	g := mh.Geometry
	if g == nil {
		return
	}
	mtx := fbx.GetGlobalMatrix(mh)
	matrix := arrayToMat(mtx.ToArray())

	batches := g.Materials
	if len(batches) == 0 {
		batches = make([]int, len(g.Faces))
	}

	var uvs []vec2.T
	if len(g.UVs) > 0 {
		for _, v := range g.UVs[0] {
			uvs = append(uvs, vec2.T{float32(v[0]), float32(v[1])})
		}
	}

	var order []int
	builders := make(map[int]*meshBuilder)
	for i := 0; i < len(g.Faces) && i < len(batches); i++ {
		batch := batches[i]
		b, ok := builders[batch]
		if !ok {
			var mt *fbx.Material
			if batch >= 0 && batch < len(mh.Materials) {
				mt = mh.Materials[batch]
			}
			b = newMeshBuilder(mh.Name(), cv.materialIndex(mt))
			builders[batch] = b
			order = append(order, batch)
		}

		face := g.Faces[i]
		for _, tri := range splitPolygon(face, func(f int) *vec3d.T {
			v := g.Vertices[f]
			return &vec3d.T{float64(v[0]), float64(v[1]), float64(v[2])}
		}) {
			var idx [3]uint32
			for k, f := range tri {
				idx[k] = cv.addCorner(b, g, matrix, uvs, f)
			}
			b.triangle(idx[0], idx[1], idx[2])
		}
	}
	for _, batch := range order {
		if b := builders[batch]; !b.empty() {
			cv.sc.Meshes = append(cv.sc.Meshes, b.mesh())
		}
	}
}

func (cv *FbxImporter) addCorner(b *meshBuilder, g *fbx.Geometry, matrix *mat4d.T, uvs []vec2.T, f int) uint32 {
	vt := g.Vertices[f]
	dvt := matrix.MulVec3(&vec3d.T{float64(vt[0]), float64(vt[1]), float64(vt[2])})
	pos := vec3.T{float32(dvt[0]), float32(dvt[1]), float32(dvt[2])}

	var normal *vec3.T
	if f < len(g.Normals) {
		n := g.Normals[f]
		tn := transformNormal(matrix, vec3.T{float32(n[0]), float32(n[1]), float32(n[2])})
		normal = &tn
	}
	var uv *vec2.T
	if f < len(uvs) {
		uv = &uvs[f]
	}
	return b.add(pos, normal, uv)
}

// splitPolygon triangulates one face. Quads are cut along their shorter
// diagonal; larger polygons are fanned.
func splitPolygon(face []int, point func(int) *vec3d.T) [][]int {
	switch len(face) {
	case 0, 1, 2:
		return nil
	case 3:
		return [][]int{face}
	case 4:
		pts := make([]*vec3d.T, len(face))
		for i, f := range face {
			pts[i] = point(f)
		}
		return quadToTriangles(face, pts)
	}
	corners := make([]int, len(face))
	for i := range corners {
		corners[i] = i
	}
	var tris [][]int
	for _, t := range fan(corners) {
		tris = append(tris, []int{face[t[0]], face[t[1]], face[t[2]]})
	}
	return tris
}

func quadToTriangles(quad []int, vertices []*vec3d.T) [][]int {
	p0, p1, p2, p3 := vertices[0], vertices[1], vertices[2], vertices[3]

	if distance(p0, p2) <= distance(p1, p3) {
		return [][]int{
			{quad[0], quad[1], quad[2]},
			{quad[0], quad[2], quad[3]},
		}
	}
	return [][]int{
		{quad[0], quad[1], quad[3]},
		{quad[1], quad[2], quad[3]},
	}
}

func distance(a, b *vec3d.T) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (cv *FbxImporter) materialIndex(mt *fbx.Material) uint32 {
	if mt == nil {
		if cv.fallback == nil {
			idx := uint32(len(cv.sc.Materials))
			cv.sc.Materials = append(cv.sc.Materials, scene.NewMaterial().
				SetName("default").
				SetColor3(scene.KeyColorDiffuse, 1, 1, 1))
			cv.fallback = &idx
		}
		return *cv.fallback
	}
	if idx, ok := cv.materials[mt]; ok {
		return idx
	}
	idx := uint32(len(cv.sc.Materials))
	cv.materials[mt] = idx
	cv.sc.Materials = append(cv.sc.Materials, cv.convertMaterial(mt, idx))
	return idx
}

func (cv *FbxImporter) convertMaterial(mt *fbx.Material, idx uint32) *scene.Material {
	mat := scene.NewMaterial().SetName(fmt.Sprintf("material%d", idx))
	cl := mt.DiffuseColor
	mat.SetColor3(scene.KeyColorDiffuse, float32(cl.R), float32(cl.G), float32(cl.B))
	cl = mt.EmissiveColor
	mat.SetColor3(scene.KeyColorEmissive, float32(cl.R), float32(cl.G), float32(cl.B))
	mat.SetFloat(scene.KeyMetallicFactor, 0)
	mat.SetFloat(scene.KeyRoughnessFactor, 1)

	if t := mt.Textures[0]; t != nil {
		cv.bind(mat, scene.TextureDiffuse, t.GetRelativeFileName().String())
	}
	if t := mt.Textures[1]; t != nil {
		cv.bind(mat, scene.TextureNormals, t.GetRelativeFileName().String())
	}
	return mat
}

func (cv *FbxImporter) bind(mat *scene.Material, semantic scene.TextureType, file string) {
	file = strings.TrimRight(file, "\x00")
	if file == "" {
		return
	}
	if ref, ok := cv.textures.embedFile(file); ok {
		mat.SetTexture(semantic, 0, scene.TextureRef{Path: ref})
		return
	}
	mat.SetTexture(semantic, 0, scene.TextureRef{Path: file})
}
