package importer

import (
	"os"
	"path/filepath"
	"strings"

	gobj "github.com/flywave/go-obj"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"

	"github.com/flywave/go-anari-bridge/scene"
)

const objDefaultMaterial = "default"

type ObjImporter struct {
	currentPath string
	textures    *textureTable
}

var _ Importer = (*ObjImporter)(nil)

func (obj *ObjImporter) Import(path string) (*scene.Scene, error) {
	obj.currentPath = path
	reader := &gobj.ObjReader{}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := reader.Read(file); err != nil {
		return nil, err
	}

	sc := &scene.Scene{}
	obj.textures = newTextureTable(sc, filepath.Dir(path))

	// one mesh per material, in order of first use
	var order []string
	builders := make(map[string]*meshBuilder)
	for _, face := range reader.F {
		if len(face.Corners) < 3 {
			continue
		}
		name := face.Material
		if name == "" {
			name = objDefaultMaterial
		}
		b, ok := builders[name]
		if !ok {
			b = newMeshBuilder(name, uint32(len(order)))
			builders[name] = b
			order = append(order, name)
		}
		corners := make([]int, len(face.Corners))
		for i := range corners {
			corners[i] = i
		}
		for _, tri := range fan(corners) {
			var idx [3]uint32
			for k, c := range tri {
				idx[k] = obj.addCorner(b, reader, face.Corners[c])
			}
			b.triangle(idx[0], idx[1], idx[2])
		}
	}

	materials := obj.readMaterials(reader)
	for _, name := range order {
		if b := builders[name]; !b.empty() {
			sc.Meshes = append(sc.Meshes, b.mesh())
		}
		if m, ok := materials[name]; ok {
			sc.Materials = append(sc.Materials, obj.convertMaterial(name, m))
		} else {
			sc.Materials = append(sc.Materials, defaultObjMaterial(name))
		}
	}
	return sc, nil
}

func (obj *ObjImporter) addCorner(b *meshBuilder, reader *gobj.ObjReader, corner gobj.FaceCorner) uint32 {
	var pos vec3.T
	if corner.VertexIndex >= 0 && corner.VertexIndex < len(reader.V) {
		pos = reader.V[corner.VertexIndex]
	}
	var normal *vec3.T
	if corner.NormalIndex >= 0 && corner.NormalIndex < len(reader.VN) {
		n := reader.VN[corner.NormalIndex]
		normal = &n
	}
	var uv *vec2.T
	if corner.TexCoordIndex >= 0 && corner.TexCoordIndex < len(reader.VT) {
		t := reader.VT[corner.TexCoordIndex]
		uv = &t
	}
	return b.add(pos, normal, uv)
}

func (obj *ObjImporter) readMaterials(reader *gobj.ObjReader) map[string]*gobj.Material {
	if reader.MTL == "" {
		return nil
	}
	mtlPath := reader.MTL
	if !filepath.IsAbs(mtlPath) {
		mtlPath = filepath.Join(filepath.Dir(obj.currentPath), reader.MTL)
	}
	materials, err := gobj.ReadMaterials(mtlPath)
	if err != nil {
		return nil
	}
	return materials
}

func defaultObjMaterial(name string) *scene.Material {
	return scene.NewMaterial().
		SetName(name).
		SetColor(scene.KeyColorDiffuse, vec4.T{0.8, 0.8, 0.8, 1})
}

func objColor(c []float32) (vec4.T, bool) {
	if len(c) < 3 {
		return vec4.T{}, false
	}
	return vec4.T{c[0], c[1], c[2], 1}, true
}

func (obj *ObjImporter) convertMaterial(name string, objMat *gobj.Material) *scene.Material {
	mat := scene.NewMaterial().SetName(name)
	if c, ok := objColor(objMat.Diffuse); ok {
		mat.SetColor(scene.KeyColorDiffuse, c)
	}
	if c, ok := objColor(objMat.Ambient); ok {
		mat.SetColor(scene.KeyColorAmbient, c)
	}
	if c, ok := objColor(objMat.Specular); ok {
		mat.SetColor(scene.KeyColorSpecular, c)
	}
	if c, ok := objColor(objMat.Emissive); ok {
		mat.SetColor(scene.KeyColorEmissive, c)
	}
	mat.SetFloat(scene.KeyOpacity, float32(objMat.Opacity))
	if objMat.Shininess > 0 {
		mat.SetFloat(scene.KeyShininess, float32(objMat.Shininess))
	}

	// PBR extension statements (Pm, Pr, Pc, Pcr)
	if objMat.Metallic > 0 || objMat.Roughness > 0 {
		mat.SetFloat(scene.KeyMetallicFactor, float32(objMat.Metallic))
		mat.SetFloat(scene.KeyRoughnessFactor, float32(objMat.Roughness))
		if c, ok := objColor(objMat.Diffuse); ok {
			mat.SetColor(scene.KeyColorBase, c)
		}
	}
	if objMat.ClearcoatThickness > 0 {
		mat.SetFloat(scene.KeyClearcoatFactor, float32(objMat.ClearcoatThickness))
		mat.SetFloat(scene.KeyClearcoatRoughnessFactor, float32(objMat.ClearcoatRoughness))
	}

	obj.bind(mat, scene.TextureDiffuse, objMat.DiffuseTexture)
	obj.bind(mat, scene.TextureSpecular, objMat.SpecularTexture)
	obj.bind(mat, scene.TextureEmissive, objMat.EmissiveTexture)
	obj.bind(mat, scene.TextureNormals, objMat.BumpTexture)
	return mat
}

func (obj *ObjImporter) bind(mat *scene.Material, semantic scene.TextureType, file string) {
	file = strings.TrimSpace(file)
	if file == "" {
		return
	}
	if ref, ok := obj.textures.embedFile(file); ok {
		mat.SetTexture(semantic, 0, scene.TextureRef{Path: ref})
		return
	}
	// unresolved files keep their name so the bridge reports them as not embedded
	mat.SetTexture(semantic, 0, scene.TextureRef{Path: file})
}
