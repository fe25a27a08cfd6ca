package importer

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	jsbin "github.com/flywave/go-3jsbin"
	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"

	"github.com/flywave/go-anari-bridge/scene"
)

// ThreejsBinImporter reads three.js binary models through their mst form.
type ThreejsBinImporter struct{}

var _ Importer = (*ThreejsBinImporter)(nil)

func (cv *ThreejsBinImporter) Import(path string) (*scene.Scene, error) {
	mh, err := jsbin.ThreejsBin2Mst(path)
	if err != nil {
		return nil, err
	}
	return FromMst(mh), nil
}

// FromMst converts an mst mesh. Instanced meshes are expanded once per
// transform.
func FromMst(mh *mst.Mesh) *scene.Scene {
	sc := &scene.Scene{}
	if mh == nil {
		return sc
	}
	conv := &mstConverter{sc: sc, textures: make(map[*mst.Texture]string)}
	base := conv.materials(mh.Materials)
	for _, nd := range mh.Nodes {
		conv.node(nd, base, nil)
	}
	for _, inst := range mh.InstanceNode {
		if inst == nil || inst.Mesh == nil {
			continue
		}
		off := conv.materials(inst.Mesh.Materials)
		for _, tr := range inst.Transfors {
			for _, nd := range inst.Mesh.Nodes {
				conv.node(nd, off, tr)
			}
		}
	}
	return sc
}

type mstConverter struct {
	sc       *scene.Scene
	textures map[*mst.Texture]string
}

func (c *mstConverter) materials(mtls []mst.MeshMaterial) uint32 {
	off := uint32(len(c.sc.Materials))
	for i, m := range mtls {
		c.sc.Materials = append(c.sc.Materials, c.material(fmt.Sprintf("material%d", i), m))
	}
	return off
}

func (c *mstConverter) node(nd *mst.MeshNode, matOffset uint32, tr *dmat.T) {
	if nd == nil {
		return
	}
	for gi, fg := range nd.FaceGroup {
		b := newMeshBuilder(fmt.Sprintf("group%d", gi), matOffset+uint32(fg.Batchid))
		remap := make(map[uint32]uint32)
		vertex := func(i uint32) uint32 {
			if idx, ok := remap[i]; ok {
				return idx
			}
			var pos vec3.T
			if int(i) < len(nd.Vertices) {
				pos = nd.Vertices[i]
			}
			if tr != nil {
				dv := tr.MulVec3(&dvec3.T{float64(pos[0]), float64(pos[1]), float64(pos[2])})
				pos = vec3.T{float32(dv[0]), float32(dv[1]), float32(dv[2])}
			}
			var normal *vec3.T
			if int(i) < len(nd.Normals) {
				n := nd.Normals[i]
				if tr != nil {
					n = transformNormal(tr, n)
				}
				normal = &n
			}
			idx := b.add(pos, normal, nil)
			if int(i) < len(nd.TexCoords) {
				uv := nd.TexCoords[i]
				b.uvs[idx] = vec3.T{uv[0], uv[1], 0}
				b.hasUVs = true
			}
			remap[i] = idx
			return idx
		}
		for _, f := range fg.Faces {
			b.triangle(vertex(f.Vertex[0]), vertex(f.Vertex[1]), vertex(f.Vertex[2]))
		}
		if !b.empty() {
			c.sc.Meshes = append(c.sc.Meshes, b.mesh())
		}
	}
}

func byteColor(c [3]byte) (r, g, b float32) {
	return float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255
}

func (c *mstConverter) material(name string, m mst.MeshMaterial) *scene.Material {
	mat := scene.NewMaterial().SetName(name)
	switch mt := m.(type) {
	case *mst.PbrMaterial:
		r, g, b := byteColor(mt.Color)
		mat.SetColor(scene.KeyColorBase, vec4.T{r, g, b, 1 - mt.Transparency})
		mat.SetFloat(scene.KeyOpacity, 1-mt.Transparency)
		mat.SetFloat(scene.KeyMetallicFactor, mt.Metallic)
		mat.SetFloat(scene.KeyRoughnessFactor, mt.Roughness)
		r, g, b = byteColor(mt.Emissive)
		mat.SetColor3(scene.KeyColorEmissive, r, g, b)
		if mt.ClearCoat > 0 {
			mat.SetFloat(scene.KeyClearcoatFactor, mt.ClearCoat)
			mat.SetFloat(scene.KeyClearcoatRoughnessFactor, mt.ClearCoatRoughness)
		}
		c.bind(mat, scene.TextureBaseColor, mt.Texture)
		c.bind(mat, scene.TextureNormals, mt.Normal)
	case *mst.PhongMaterial:
		c.lambert(mat, &mt.LambertMaterial)
		r, g, b := byteColor(mt.Specular)
		mat.SetColor3(scene.KeyColorSpecular, r, g, b)
		mat.SetFloat(scene.KeyShininess, mt.Shininess)
	case *mst.LambertMaterial:
		c.lambert(mat, mt)
	case *mst.TextureMaterial:
		c.textured(mat, mt)
	case *mst.BaseMaterial:
		r, g, b := byteColor(mt.Color)
		mat.SetColor3(scene.KeyColorDiffuse, r, g, b)
		mat.SetFloat(scene.KeyOpacity, 1-mt.Transparency)
	}
	return mat
}

func (c *mstConverter) lambert(mat *scene.Material, mt *mst.LambertMaterial) {
	c.textured(mat, &mt.TextureMaterial)
	r, g, b := byteColor(mt.Diffuse)
	mat.SetColor3(scene.KeyColorDiffuse, r, g, b)
	r, g, b = byteColor(mt.Ambient)
	mat.SetColor3(scene.KeyColorAmbient, r, g, b)
	r, g, b = byteColor(mt.Emissive)
	mat.SetColor3(scene.KeyColorEmissive, r, g, b)
}

func (c *mstConverter) textured(mat *scene.Material, mt *mst.TextureMaterial) {
	r, g, b := byteColor(mt.Color)
	mat.SetColor3(scene.KeyColorDiffuse, r, g, b)
	mat.SetFloat(scene.KeyOpacity, 1-mt.Transparency)
	c.bind(mat, scene.TextureDiffuse, mt.Texture)
	c.bind(mat, scene.TextureNormals, mt.Normal)
}

func (c *mstConverter) bind(mat *scene.Material, semantic scene.TextureType, tex *mst.Texture) {
	if tex == nil {
		return
	}
	ref, ok := c.textures[tex]
	if !ok {
		et, err := embedMstTexture(tex)
		if err != nil {
			return
		}
		ref = c.sc.AddTexture(et)
		c.textures[tex] = ref
	}
	mat.SetTexture(semantic, 0, scene.TextureRef{Path: ref})
}

// embedMstTexture unpacks an RGBA mst texture into raw texels.
func embedMstTexture(tex *mst.Texture) (*scene.EmbeddedTexture, error) {
	if tex.Format != mst.TEXTURE_FORMAT_RGBA {
		return nil, fmt.Errorf("texture %d: unsupported format %d", tex.Id, tex.Format)
	}
	data := tex.Data
	if tex.Compressed == mst.TEXTURE_COMPRESSED_ZLIB {
		rd, err := zlib.NewReader(bytes.NewReader(tex.Data))
		if err != nil {
			return nil, err
		}
		defer rd.Close()
		if data, err = io.ReadAll(rd); err != nil {
			return nil, err
		}
	}
	w, h := uint32(tex.Size[0]), uint32(tex.Size[1])
	if w == 0 || h == 0 || len(data) < int(w*h*4) {
		return nil, fmt.Errorf("texture %d: %dx%d needs %d bytes, got %d", tex.Id, w, h, w*h*4, len(data))
	}
	return scene.NewRawTexture(w, h, data, fmt.Sprintf("texture%d.rgba", tex.Id)), nil
}
