package importer

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	dvec4 "github.com/flywave/go3d/float64/vec4"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
	"github.com/qmuntal/gltf"

	"github.com/flywave/go-anari-bridge/scene"
)

const (
	extTextureTransform  = "KHR_texture_transform"
	extEmissiveStrength  = "KHR_materials_emissive_strength"
	extClearcoat         = "KHR_materials_clearcoat"
	extSpecular          = "KHR_materials_specular"
	extMeshGpuInstancing = "EXT_mesh_gpu_instancing"
	maxGltfTextureCoords = 8
)

type GltfImporter struct {
	doc       *gltf.Document
	baseDir   string
	parentMap map[uint32]uint32
	textures  *textureTable
	imageRefs map[uint32]string
}

var _ Importer = (*GltfImporter)(nil)

func (g *GltfImporter) Import(path string) (*scene.Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, err
	}
	return g.FromDocument(doc, filepath.Dir(path))
}

// FromDocument converts an already decoded document. baseDir resolves image
// URIs that point at files.
func (g *GltfImporter) FromDocument(doc *gltf.Document, baseDir string) (*scene.Scene, error) {
	sc := &scene.Scene{}
	g.doc = doc
	g.baseDir = baseDir
	g.textures = newTextureTable(sc, baseDir)
	g.imageRefs = make(map[uint32]string)
	g.parentMap = make(map[uint32]uint32)
	for i, nd := range doc.Nodes {
		for _, c := range nd.Children {
			g.parentMap[c] = uint32(i)
		}
	}

	for i := range doc.Images {
		g.loadImage(uint32(i))
	}
	for _, mt := range doc.Materials {
		sc.Materials = append(sc.Materials, g.convertMaterial(mt))
	}

	for i, nd := range doc.Nodes {
		if nd.Mesh == nil || int(*nd.Mesh) >= len(doc.Meshes) {
			continue
		}
		if _, ok := nd.Extensions[extMeshGpuInstancing]; ok {
			// instancing is left to the renderer; the base mesh is kept once
			if err := g.convertMesh(sc, *nd.Mesh, &dmat.Ident); err != nil {
				return nil, err
			}
			continue
		}
		mat, err := g.toMat(uint32(i), nd)
		if err != nil {
			return nil, err
		}
		if err := g.convertMesh(sc, *nd.Mesh, mat); err != nil {
			return nil, err
		}
	}
	for _, cam := range doc.Cameras {
		sc.Cameras = append(sc.Cameras, &scene.Camera{Name: cam.Name})
	}
	return sc, nil
}

func (g *GltfImporter) loadImage(idx uint32) {
	img := g.doc.Images[idx]
	hint := mimeHint(img.MimeType)
	name := img.Name
	if img.BufferView != nil {
		view := g.doc.BufferViews[int(*img.BufferView)]
		buffer := g.doc.Buffers[int(view.Buffer)]
		end := view.ByteOffset + view.ByteLength
		if int(end) > len(buffer.Data) {
			return
		}
		data := buffer.Data[view.ByteOffset:end]
		g.imageRefs[idx] = g.textures.embedData(fmt.Sprintf("image%d", idx), data, hint, name)
		return
	}
	if img.URI == "" {
		return
	}
	if img.IsEmbeddedResource() {
		data, err := img.MarshalData()
		if err != nil {
			return
		}
		g.imageRefs[idx] = g.textures.embedData(fmt.Sprintf("image%d", idx), data, hint, name)
		return
	}
	if ref, ok := g.textures.embedFile(img.URI); ok {
		g.imageRefs[idx] = ref
	}
}

func (g *GltfImporter) textureRef(texture uint32) (string, bool) {
	if int(texture) >= len(g.doc.Textures) {
		return "", false
	}
	src := g.doc.Textures[texture].Source
	if src == nil {
		return "", false
	}
	ref, ok := g.imageRefs[*src]
	return ref, ok
}

type gltfTextureTransform struct {
	Offset   [2]float32  `json:"offset"`
	Rotation float32     `json:"rotation"`
	Scale    *[2]float32 `json:"scale"`
	TexCoord *uint32     `json:"texCoord"`
}

// extTextureInfo is a texture reference nested inside a material extension.
type extTextureInfo struct {
	Index      uint32                 `json:"index"`
	TexCoord   uint32                 `json:"texCoord"`
	Extensions map[string]interface{} `json:"extensions"`
}

type gltfClearcoat struct {
	ClearcoatFactor           *float32        `json:"clearcoatFactor"`
	ClearcoatTexture          *extTextureInfo `json:"clearcoatTexture"`
	ClearcoatRoughnessFactor  *float32        `json:"clearcoatRoughnessFactor"`
	ClearcoatRoughnessTexture *extTextureInfo `json:"clearcoatRoughnessTexture"`
	ClearcoatNormalTexture    *extTextureInfo `json:"clearcoatNormalTexture"`
}

type gltfSpecular struct {
	SpecularFactor      *float32        `json:"specularFactor"`
	SpecularTexture     *extTextureInfo `json:"specularTexture"`
	SpecularColorFactor *[3]float32     `json:"specularColorFactor"`
}

type gltfEmissiveStrength struct {
	EmissiveStrength float32 `json:"emissiveStrength"`
}

// decodeExtension reads an extension that may hold either raw JSON or an
// already decoded value.
func decodeExtension(exts map[string]interface{}, name string, v interface{}) bool {
	raw, ok := exts[name]
	if !ok {
		return false
	}
	dt, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(dt, v) == nil
}

// bindTexture stores a texture slot together with its UV channel and the
// KHR_texture_transform of the reference, when present.
func (g *GltfImporter) bindTexture(mat *scene.Material, semantic scene.TextureType, slot uint32, texture, texCoord uint32, exts map[string]interface{}) {
	path, ok := g.textureRef(texture)
	if !ok {
		return
	}
	var tr gltfTextureTransform
	hasTransform := decodeExtension(exts, extTextureTransform, &tr)
	if hasTransform && tr.TexCoord != nil {
		texCoord = *tr.TexCoord
	}
	mat.SetTexture(semantic, slot, scene.TextureRef{Path: path, UVIndex: texCoord})
	if hasTransform {
		t := scene.UVTransform{
			Translation: vec2.T{tr.Offset[0], tr.Offset[1]},
			Scaling:     vec2.T{1, 1},
			Rotation:    tr.Rotation,
		}
		if tr.Scale != nil {
			t.Scaling = vec2.T{tr.Scale[0], tr.Scale[1]}
		}
		mat.SetUVTransform(semantic, slot, t)
	}
}

func (g *GltfImporter) bindExtTexture(mat *scene.Material, semantic scene.TextureType, slot uint32, info *extTextureInfo) {
	if info == nil {
		return
	}
	g.bindTexture(mat, semantic, slot, info.Index, info.TexCoord, info.Extensions)
}

func (g *GltfImporter) convertMaterial(mt *gltf.Material) *scene.Material {
	mat := scene.NewMaterial().SetName(mt.Name)
	mat.SetColor(scene.KeyColorBase, vec4.T{1, 1, 1, 1})
	mat.SetFloat(scene.KeyMetallicFactor, 1)
	mat.SetFloat(scene.KeyRoughnessFactor, 1)

	if pbr := mt.PBRMetallicRoughness; pbr != nil {
		if f := pbr.BaseColorFactor; f != nil {
			mat.SetColor(scene.KeyColorBase, vec4.T{float32(f[0]), float32(f[1]), float32(f[2]), float32(f[3])})
			mat.SetFloat(scene.KeyOpacity, float32(f[3]))
		}
		if pbr.MetallicFactor != nil {
			mat.SetFloat(scene.KeyMetallicFactor, float32(*pbr.MetallicFactor))
		}
		if pbr.RoughnessFactor != nil {
			mat.SetFloat(scene.KeyRoughnessFactor, float32(*pbr.RoughnessFactor))
		}
		if t := pbr.BaseColorTexture; t != nil {
			g.bindTexture(mat, scene.TextureBaseColor, 0, t.Index, t.TexCoord, t.Extensions)
		}
		if t := pbr.MetallicRoughnessTexture; t != nil {
			g.bindTexture(mat, scene.TextureDiffuseRoughness, 0, t.Index, t.TexCoord, t.Extensions)
			g.bindTexture(mat, scene.TextureMetalness, 0, t.Index, t.TexCoord, t.Extensions)
		}
	}
	if t := mt.NormalTexture; t != nil && t.Index != nil {
		g.bindTexture(mat, scene.TextureNormals, 0, *t.Index, t.TexCoord, t.Extensions)
	}
	if t := mt.OcclusionTexture; t != nil && t.Index != nil {
		g.bindTexture(mat, scene.TextureAmbientOcclusion, 0, *t.Index, t.TexCoord, t.Extensions)
	}
	if t := mt.EmissiveTexture; t != nil {
		g.bindTexture(mat, scene.TextureEmissive, 0, t.Index, t.TexCoord, t.Extensions)
	}
	ef := mt.EmissiveFactor
	mat.SetColor3(scene.KeyColorEmissive, float32(ef[0]), float32(ef[1]), float32(ef[2]))

	switch mt.AlphaMode {
	case gltf.AlphaMask:
		mat.SetInt(scene.KeyBlendFunc, int32(scene.BlendDefault))
		cutoff := float32(0.5)
		if mt.AlphaCutoff != nil {
			cutoff = float32(*mt.AlphaCutoff)
		}
		mat.SetFloat(scene.KeyTransparencyFactor, cutoff)
	case gltf.AlphaBlend:
		mat.SetInt(scene.KeyBlendFunc, int32(scene.BlendAdditive))
	}
	mat.SetBool(scene.KeyTwoSided, mt.DoubleSided)

	var es gltfEmissiveStrength
	if decodeExtension(mt.Extensions, extEmissiveStrength, &es) {
		mat.SetFloat(scene.KeyEmissiveIntensity, es.EmissiveStrength)
	}
	var cc gltfClearcoat
	if decodeExtension(mt.Extensions, extClearcoat, &cc) {
		if cc.ClearcoatFactor != nil {
			mat.SetFloat(scene.KeyClearcoatFactor, *cc.ClearcoatFactor)
		}
		if cc.ClearcoatRoughnessFactor != nil {
			mat.SetFloat(scene.KeyClearcoatRoughnessFactor, *cc.ClearcoatRoughnessFactor)
		}
		g.bindExtTexture(mat, scene.TextureClearcoat, scene.ClearcoatIntensitySlot, cc.ClearcoatTexture)
		g.bindExtTexture(mat, scene.TextureClearcoat, scene.ClearcoatRoughnessSlot, cc.ClearcoatRoughnessTexture)
		g.bindExtTexture(mat, scene.TextureClearcoat, scene.ClearcoatNormalSlot, cc.ClearcoatNormalTexture)
	}
	var sp gltfSpecular
	if decodeExtension(mt.Extensions, extSpecular, &sp) {
		f := float32(1)
		if sp.SpecularFactor != nil {
			f = *sp.SpecularFactor
		}
		mat.SetFloat(scene.KeySpecularFactor, f)
		if c := sp.SpecularColorFactor; c != nil {
			mat.SetColor3(scene.KeyColorSpecular, c[0], c[1], c[2])
		}
		g.bindExtTexture(mat, scene.TextureSpecular, 0, sp.SpecularTexture)
	}
	return mat
}

// arrayToMat reads a column-major 4x4 matrix.
func arrayToMat(a [16]float64) *dmat.T {
	m := &dmat.T{}
	m[0] = dvec4.T{a[0], a[1], a[2], a[3]}
	m[1] = dvec4.T{a[4], a[5], a[6], a[7]}
	m[2] = dvec4.T{a[8], a[9], a[10], a[11]}
	m[3] = dvec4.T{a[12], a[13], a[14], a[15]}
	return m
}

func isZero3(v [3]float64) bool { return v[0] == 0 && v[1] == 0 && v[2] == 0 }

// localMat builds a node's local transform from its matrix or its TRS
// properties. Zero scale and rotation are read as their defaults.
func localMat(nd *gltf.Node) *dmat.T {
	var m [16]float64
	identity, zero := true, true
	for i := range m {
		m[i] = float64(nd.Matrix[i])
		if m[i] != 0 {
			zero = false
		}
		if (i%5 == 0 && m[i] != 1) || (i%5 != 0 && m[i] != 0) {
			identity = false
		}
	}
	if !identity && !zero {
		return arrayToMat(m)
	}

	scl := [3]float64{float64(nd.Scale[0]), float64(nd.Scale[1]), float64(nd.Scale[2])}
	if isZero3(scl) {
		scl = [3]float64{1, 1, 1}
	}
	rot := quaternion.T{float64(nd.Rotation[0]), float64(nd.Rotation[1]), float64(nd.Rotation[2]), float64(nd.Rotation[3])}
	if rot == (quaternion.T{}) {
		rot = quaternion.Ident
	}
	tra := dvec3.T{float64(nd.Translation[0]), float64(nd.Translation[1]), float64(nd.Translation[2])}
	s := dvec3.T(scl)
	return dmat.Compose(&tra, &rot, &s)
}

func (g *GltfImporter) toMat(idx uint32, nd *gltf.Node) (*dmat.T, error) {
	mat := dmat.Ident
	if pid, ok := g.parentMap[idx]; ok {
		if pid == idx {
			return nil, fmt.Errorf("node %d is its own parent", idx)
		}
		mt, err := g.toMat(pid, g.doc.Nodes[pid])
		if err != nil {
			return nil, err
		}
		mat = *mt
	}
	out := dmat.Ident
	out.AssignMul(&mat, localMat(nd))
	return &out, nil
}

func (g *GltfImporter) convertMesh(sc *scene.Scene, meshID uint32, mat *dmat.T) error {
	mh := g.doc.Meshes[meshID]
	for pi, ps := range mh.Primitives {
		m, err := g.convertPrimitive(mh.Name, ps, mat)
		if err != nil {
			return fmt.Errorf("mesh %d primitive %d: %w", meshID, pi, err)
		}
		if m != nil {
			sc.Meshes = append(sc.Meshes, m)
		}
	}
	return nil
}

func (g *GltfImporter) convertPrimitive(name string, ps *gltf.Primitive, mat *dmat.T) (*scene.Mesh, error) {
	posIdx, ok := ps.Attributes["POSITION"]
	if !ok {
		return nil, nil
	}
	positions, err := readVec3(g.doc, g.doc.Accessors[posIdx])
	if err != nil {
		return nil, err
	}
	m := &scene.Mesh{Name: name, NumVertices: uint32(len(positions))}
	m.MaterialIndex = uint32(len(g.doc.Materials))
	if ps.Material != nil {
		m.MaterialIndex = *ps.Material
	}
	for i, p := range positions {
		dv := dvec3.T{float64(p[0]), float64(p[1]), float64(p[2])}
		dv = mat.MulVec3(&dv)
		positions[i] = vec3.T{float32(dv[0]), float32(dv[1]), float32(dv[2])}
	}
	m.Vertices = positions

	if idx, ok := ps.Attributes["NORMAL"]; ok {
		normals, err := readVec3(g.doc, g.doc.Accessors[idx])
		if err != nil {
			return nil, err
		}
		for i, n := range normals {
			normals[i] = transformNormal(mat, n)
		}
		m.Normals = normals
	}
	if idx, ok := ps.Attributes["TANGENT"]; ok && m.Normals != nil {
		tangents, err := readVec4(g.doc, g.doc.Accessors[idx])
		if err != nil {
			return nil, err
		}
		for i, t := range tangents {
			tv := transformNormal(mat, vec3.T{t[0], t[1], t[2]})
			m.Tangents = append(m.Tangents, tv)
			n := m.Normals[i]
			bt := vec3.Cross(&n, &tv)
			bt.Scale(t[3])
			m.Bitangents = append(m.Bitangents, bt)
		}
	}
	if idx, ok := ps.Attributes["COLOR_0"]; ok {
		colors, err := readVec4(g.doc, g.doc.Accessors[idx])
		if err != nil {
			return nil, err
		}
		m.Colors[0] = colors
	}
	for set := 0; set < maxGltfTextureCoords; set++ {
		idx, ok := ps.Attributes[fmt.Sprintf("TEXCOORD_%d", set)]
		if !ok {
			continue
		}
		uvs, err := readVec2(g.doc, g.doc.Accessors[idx])
		if err != nil {
			return nil, err
		}
		coords := make([]vec3.T, len(uvs))
		for i, uv := range uvs {
			coords[i] = vec3.T{uv[0], uv[1], 0}
		}
		m.TextureCoords[set] = coords
	}

	var indices []uint32
	if ps.Indices != nil {
		indices, err = readIndices(g.doc, g.doc.Accessors[*ps.Indices])
		if err != nil {
			return nil, err
		}
	} else {
		indices = make([]uint32, m.NumVertices)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}

	switch ps.Mode {
	case gltf.PrimitivePoints:
		m.PrimitiveTypes = scene.PrimitivePoint
		for _, i := range indices {
			m.Faces = append(m.Faces, scene.Face{Indices: []uint32{i}})
		}
	case gltf.PrimitiveLines, gltf.PrimitiveLineLoop, gltf.PrimitiveLineStrip:
		m.PrimitiveTypes = scene.PrimitiveLine
		for i := 0; i+1 < len(indices); i += 2 {
			m.Faces = append(m.Faces, scene.Face{Indices: []uint32{indices[i], indices[i+1]}})
		}
	default:
		m.PrimitiveTypes = scene.PrimitiveTriangle
		for _, tri := range triangulate(ps.Mode, indices) {
			m.Faces = append(m.Faces, scene.Face{Indices: []uint32{tri[0], tri[1], tri[2]}})
		}
	}
	return m, nil
}

func triangulate(mode gltf.PrimitiveMode, idx []uint32) [][3]uint32 {
	var tris [][3]uint32
	switch mode {
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(idx); i++ {
			if i%2 == 0 {
				tris = append(tris, [3]uint32{idx[i], idx[i+1], idx[i+2]})
			} else {
				tris = append(tris, [3]uint32{idx[i+1], idx[i], idx[i+2]})
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(idx); i++ {
			tris = append(tris, [3]uint32{idx[0], idx[i], idx[i+1]})
		}
	default:
		for i := 0; i+2 < len(idx); i += 3 {
			tris = append(tris, [3]uint32{idx[i], idx[i+1], idx[i+2]})
		}
	}
	return tris
}

func transformNormal(mat *dmat.T, n vec3.T) vec3.T {
	dn := dvec3.T{float64(n[0]), float64(n[1]), float64(n[2])}
	dn = mat.MulVec3(&dn)
	origin := mat.MulVec3(&dvec3.T{})
	dn = dvec3.Sub(&dn, &origin)
	if l := dn.Length(); l > 0 {
		dn.Scale(1 / l)
	}
	return vec3.T{float32(dn[0]), float32(dn[1]), float32(dn[2])}
}

func componentSize(ct gltf.ComponentType) int {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	}
	return 4
}

func componentCount(at gltf.AccessorType) int {
	switch at {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4:
		return 4
	}
	return 0
}

// readDataByAccessor walks the elements of an accessor, decoding each into
// a slice of float64 components. Normalized integers are mapped to [0,1].
func readDataByAccessor(doc *gltf.Document, acc *gltf.Accessor, process func([]float64)) error {
	if acc.BufferView == nil {
		return errors.New("accessor has no buffer view")
	}
	comps := componentCount(acc.Type)
	if comps == 0 {
		return fmt.Errorf("unsupported accessor type %v", acc.Type)
	}
	bv := doc.BufferViews[*acc.BufferView]
	data := doc.Buffers[bv.Buffer].Data
	size := componentSize(acc.ComponentType)
	elem := comps * size
	stride := int(bv.ByteStride)
	if stride == 0 {
		stride = elem
	}
	start := int(bv.ByteOffset + acc.ByteOffset)
	end := int(bv.ByteOffset + bv.ByteLength)
	if end > len(data) {
		return fmt.Errorf("buffer view exceeds buffer: %d > %d", end, len(data))
	}

	out := make([]float64, comps)
	for i := 0; i < int(acc.Count); i++ {
		off := start + i*stride
		if off+elem > end {
			return fmt.Errorf("accessor element %d out of range", i)
		}
		rd := bytes.NewReader(data[off : off+elem])
		for c := 0; c < comps; c++ {
			v, err := readComponent(rd, acc.ComponentType, acc.Normalized)
			if err != nil {
				return err
			}
			out[c] = v
		}
		process(out)
	}
	return nil
}

func readComponent(rd *bytes.Reader, ct gltf.ComponentType, normalized bool) (float64, error) {
	switch ct {
	case gltf.ComponentUbyte:
		var v uint8
		err := binary.Read(rd, binary.LittleEndian, &v)
		if normalized {
			return float64(v) / 255, err
		}
		return float64(v), err
	case gltf.ComponentByte:
		var v int8
		err := binary.Read(rd, binary.LittleEndian, &v)
		if normalized {
			return float64(v) / 127, err
		}
		return float64(v), err
	case gltf.ComponentUshort:
		var v uint16
		err := binary.Read(rd, binary.LittleEndian, &v)
		if normalized {
			return float64(v) / 65535, err
		}
		return float64(v), err
	case gltf.ComponentShort:
		var v int16
		err := binary.Read(rd, binary.LittleEndian, &v)
		if normalized {
			return float64(v) / 32767, err
		}
		return float64(v), err
	case gltf.ComponentUint:
		var v uint32
		err := binary.Read(rd, binary.LittleEndian, &v)
		return float64(v), err
	}
	var v float32
	err := binary.Read(rd, binary.LittleEndian, &v)
	return float64(v), err
}

func readVec2(doc *gltf.Document, acc *gltf.Accessor) ([]vec2.T, error) {
	var out []vec2.T
	err := readDataByAccessor(doc, acc, func(c []float64) {
		out = append(out, vec2.T{float32(c[0]), float32(c[1])})
	})
	return out, err
}

func readVec3(doc *gltf.Document, acc *gltf.Accessor) ([]vec3.T, error) {
	if acc.Type != gltf.AccessorVec3 {
		return nil, fmt.Errorf("expected VEC3 accessor, got %v", acc.Type)
	}
	var out []vec3.T
	err := readDataByAccessor(doc, acc, func(c []float64) {
		out = append(out, vec3.T{float32(c[0]), float32(c[1]), float32(c[2])})
	})
	return out, err
}

// readVec4 also accepts VEC3 data, completing it with w = 1.
func readVec4(doc *gltf.Document, acc *gltf.Accessor) ([]vec4.T, error) {
	var out []vec4.T
	err := readDataByAccessor(doc, acc, func(c []float64) {
		v := vec4.T{0, 0, 0, 1}
		for i := 0; i < len(c) && i < 4; i++ {
			v[i] = float32(c[i])
		}
		out = append(out, v)
	})
	return out, err
}

func readIndices(doc *gltf.Document, acc *gltf.Accessor) ([]uint32, error) {
	if acc.Type != gltf.AccessorScalar {
		return nil, fmt.Errorf("expected SCALAR index accessor, got %v", acc.Type)
	}
	out := make([]uint32, 0, acc.Count)
	err := readDataByAccessor(doc, acc, func(c []float64) {
		out = append(out, uint32(c[0]))
	})
	return out, err
}
