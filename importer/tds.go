package importer

import (
	"fmt"
	"os"
	"path/filepath"

	tds "github.com/flywave/go-3ds"
	dmat "github.com/flywave/go3d/float64/mat4"
	quat "github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"

	"github.com/flywave/go-anari-bridge/scene"
)

type ThreeDsImporter struct {
	sc        *scene.Scene
	textures  *textureTable
	materials map[int32]uint32
}

var _ Importer = (*ThreeDsImporter)(nil)

func (cv *ThreeDsImporter) Import(path string) (*scene.Scene, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	f := tds.OpenFile(path)
	mhs := f.GetMeshs()
	mtls := f.GetMaterials()

	ndMap := make(map[string]*tds.MeshInstanceNode)
	for _, nd := range f.GetMeshInstanceNode() {
		ndMap[nd.InstanceName] = nd
	}

	cv.sc = &scene.Scene{}
	cv.textures = newTextureTable(cv.sc, filepath.Dir(path))
	cv.materials = make(map[int32]uint32)

	for i := range mhs {
		m := &mhs[i]
		mat := meshMatrix(m)
		if nd, ok := ndMap[m.Name]; ok {
			world := dmat.Ident
			world.AssignMul(instanceMatrix(nd), mat)
			mat = &world
		}
		cv.convertMesh(m, mat, mtls)
	}
	return cv.sc, nil
}

func meshMatrix(m *tds.Mesh) *dmat.T {
	mat := dmat.Ident
	for i, r := range m.Matrix {
		if i > 3 {
			break
		}
		mat[i] = dvec4.T{float64(r[0]), float64(r[1]), float64(r[2]), float64(r[3])}
	}
	return &mat
}

func instanceMatrix(nd *tds.MeshInstanceNode) *dmat.T {
	m := dmat.Ident
	q := quat.FromVec4(&dvec4.T{float64(nd.Rot[0]), float64(nd.Rot[1]), float64(nd.Rot[2]), float64(nd.Rot[3])})
	if q == (quat.T{}) {
		q = quat.Ident
	}
	m.AssignQuaternion(&q)
	m.ScaleVec3(&dvec3.T{float64(nd.Scl[0]), float64(nd.Scl[1]), float64(nd.Scl[2])})
	m.Translate(&dvec3.T{float64(nd.Pos[0]), float64(nd.Pos[1]), float64(nd.Pos[2])})
	return &m
}

func (cv *ThreeDsImporter) convertMesh(m *tds.Mesh, mat *dmat.T, mtls []tds.Material) {
	type group struct {
		b     *meshBuilder
		remap map[int]uint32
	}
	var order []int32
	groups := make(map[int32]*group)

	vertex := func(g *group, i int) uint32 {
		if idx, ok := g.remap[i]; ok {
			return idx
		}
		var pos vec3.T
		if i < len(m.Vertices) {
			v := m.Vertices[i]
			dv := mat.MulVec3(&dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])})
			pos = vec3.T{float32(dv[0]), float32(dv[1]), float32(dv[2])}
		}
		var uv *vec2.T
		if i < len(m.Texcos) {
			uv = &vec2.T{float32(m.Texcos[i][0]), float32(m.Texcos[i][1])}
		}
		idx := g.b.add(pos, nil, uv)
		g.remap[i] = idx
		return idx
	}

	for _, f := range m.Faces {
		g, ok := groups[f.Material]
		if !ok {
			g = &group{
				b:     newMeshBuilder(m.Name, cv.materialIndex(f.Material, mtls)),
				remap: make(map[int]uint32),
			}
			groups[f.Material] = g
			order = append(order, f.Material)
		}
		g.b.triangle(vertex(g, int(f.Index[0])), vertex(g, int(f.Index[1])), vertex(g, int(f.Index[2])))
	}
	for _, id := range order {
		if b := groups[id].b; !b.empty() {
			cv.sc.Meshes = append(cv.sc.Meshes, b.mesh())
		}
	}
}

func (cv *ThreeDsImporter) materialIndex(id int32, mtls []tds.Material) uint32 {
	if idx, ok := cv.materials[id]; ok {
		return idx
	}
	idx := uint32(len(cv.sc.Materials))
	cv.materials[id] = idx
	if id < 0 || int(id) >= len(mtls) {
		cv.sc.Materials = append(cv.sc.Materials, scene.NewMaterial().
			SetName("default").
			SetColor3(scene.KeyColorDiffuse, 1, 1, 1))
		return idx
	}
	cv.sc.Materials = append(cv.sc.Materials, cv.convertMtl(fmt.Sprintf("material%d", id), &mtls[id]))
	return idx
}

func cString(b []byte) string {
	for i := range b {
		if b[i] == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (cv *ThreeDsImporter) convertMtl(name string, m *tds.Material) *scene.Material {
	mat := scene.NewMaterial().SetName(name)
	mat.SetColor3(scene.KeyColorDiffuse, float32(m.Diffuse[0]), float32(m.Diffuse[1]), float32(m.Diffuse[2]))
	mat.SetColor3(scene.KeyColorAmbient, float32(m.Ambient[0]), float32(m.Ambient[1]), float32(m.Ambient[2]))
	mat.SetColor3(scene.KeyColorSpecular, float32(m.Specular[0]), float32(m.Specular[1]), float32(m.Specular[2]))
	mat.SetFloat(scene.KeyOpacity, 1-float32(m.Transparency))
	mat.SetFloat(scene.KeyShininess, float32(m.Shininess))

	if name := cString(m.Texture1Map.Name[:]); name != "" {
		if ref, ok := cv.textures.embedFile(name); ok {
			mat.SetTexture(scene.TextureDiffuse, 0, scene.TextureRef{Path: ref})
		} else {
			mat.SetTexture(scene.TextureDiffuse, 0, scene.TextureRef{Path: name})
		}
	}
	return mat
}
