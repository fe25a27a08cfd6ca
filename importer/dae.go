package importer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	dae "github.com/flywave/go-collada"
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"

	"github.com/flywave/go-anari-bridge/scene"
)

type primitiveMode int

const (
	modePolylist primitiveMode = iota
	modeTriangles
	modeTrifans
	modeTristrips
)

type DaeImporter struct {
	sc        *scene.Scene
	textures  *textureTable
	imageRefs map[string]string
	mtlMap    map[string]*dae.Material
	effectMap map[string]*dae.Effect
	materials map[string]uint32
}

var _ Importer = (*DaeImporter)(nil)

func (cv *DaeImporter) Import(path string) (*scene.Scene, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	collada, err := dae.LoadDocumentFromReader(file)
	if err != nil {
		return nil, err
	}
	cv.sc = &scene.Scene{}
	cv.textures = newTextureTable(cv.sc, filepath.Dir(path))
	cv.materials = make(map[string]uint32)

	cv.imageRefs = make(map[string]string)
	for _, libimg := range collada.LibraryImages {
		for _, img := range libimg.Image {
			if ref, ok := cv.textures.embedFile(img.InitFrom.Ref.Ref); ok {
				cv.imageRefs[string(img.HasId.Id)] = ref
			}
		}
	}
	cv.mtlMap = make(map[string]*dae.Material)
	for _, m := range collada.LibraryMaterials {
		for _, mt := range m.Material {
			cv.mtlMap[string(mt.Id)] = mt
		}
	}
	cv.effectMap = make(map[string]*dae.Effect)
	for _, ef := range collada.LibraryEffects {
		for _, e := range ef.Effect {
			cv.effectMap[string(e.Id)] = e
		}
	}
	geometries := make(map[string]*dae.Geometry)
	for _, g := range collada.LibraryGeometries {
		for _, geo := range g.Geometry {
			geometries[string(geo.Id)] = geo
		}
	}

	nodes := make(map[string]*dae.Node)
	for _, sce := range collada.LibraryVisualScenes {
		for _, vs := range sce.VisualScene {
			for _, nd := range vs.Node {
				nodes[string(nd.Id)] = nd
			}
		}
	}

	// nodes pulled in through instance_node are placed by the referencing node
	referenced := make(map[string]bool)
	for _, nd := range nodes {
		for _, inst := range nd.InstanceNode {
			referenced[inst.Url.GetId()] = true
		}
	}

	for _, sce := range collada.LibraryVisualScenes {
		for _, vs := range sce.VisualScene {
			for _, nd := range vs.Node {
				if referenced[string(nd.Id)] {
					continue
				}
				mat := nodeTransform(nd)
				if err := cv.convertNode(nd, mat, geometries); err != nil {
					return nil, err
				}
				for _, inst := range nd.InstanceNode {
					target, ok := nodes[inst.Url.GetId()]
					if !ok {
						continue
					}
					world := dmat.Ident
					world.AssignMul(mat, nodeTransform(target))
					if err := cv.convertNode(target, &world, geometries); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return cv.sc, nil
}

func (cv *DaeImporter) convertNode(nd *dae.Node, mat *dmat.T, geometries map[string]*dae.Geometry) error {
	for _, g := range nd.InstanceGeometry {
		geo, ok := geometries[g.Url.GetId()]
		if !ok {
			continue
		}
		if err := cv.convertMesh(geo, mat); err != nil {
			return fmt.Errorf("geometry %s: %w", geo.Id, err)
		}
	}
	return nil
}

// daeSource is a float array source with its accessor stride.
type daeSource struct {
	values []float64
	stride int
}

func (s *daeSource) at(idx, comp int) float64 {
	pos := idx*s.stride + comp
	if idx < 0 || comp >= s.stride || pos >= len(s.values) {
		return 0
	}
	return s.values[pos]
}

func parseFloats(strs []string) []float64 {
	out := make([]float64, 0, len(strs))
	for _, s := range strs {
		v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		out = append(out, v)
	}
	return out
}

func parseInts(strs []string) []int {
	out := make([]int, 0, len(strs))
	for _, s := range strs {
		v, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		out = append(out, int(v))
	}
	return out
}

// daeInput binds one shared input to its source and offset within a corner.
type daeInput struct {
	semantic string
	offset   int
	src      *daeSource
}

type daeMeshReader struct {
	name     string
	mat      *dmat.T
	sources  map[string]*daeSource
	position *daeSource
	normal   *daeSource
}

func (cv *DaeImporter) convertMesh(geo *dae.Geometry, mat *dmat.T) error {
	mh := geo.Mesh
	rd := &daeMeshReader{name: string(geo.Id), mat: mat, sources: make(map[string]*daeSource)}
	for _, src := range mh.Source {
		stride := int(src.TechniqueCommon.Accessor.Stride)
		if stride <= 0 {
			stride = 1
		}
		rd.sources[string(src.Id)] = &daeSource{values: parseFloats(src.FloatArray.ToSlice()), stride: stride}
	}
	for _, in := range mh.Vertices.Input {
		switch in.Semantic {
		case "POSITION":
			rd.position = rd.sources[in.Source.GetId()]
		case "NORMAL":
			rd.normal = rd.sources[in.Source.GetId()]
		}
	}
	if rd.position == nil {
		return nil
	}

	for _, p := range mh.Polylist {
		counts := parseInts(p.VCount.ToSlice())
		cv.emit(rd, p.Material, p.Input, parseInts(p.P.ToSlice()), counts, modePolylist)
	}
	for _, t := range mh.Triangles {
		cv.emit(rd, t.GetMaterial(), t.GetSharedInput(), parseInts(t.GetP().ToSlice()), nil, modeTriangles)
	}
	for _, t := range mh.Trifans {
		cv.emit(rd, t.GetMaterial(), t.GetSharedInput(), parseInts(t.GetP().ToSlice()), nil, modeTrifans)
	}
	for _, t := range mh.Tristrips {
		cv.emit(rd, t.GetMaterial(), t.GetSharedInput(), parseInts(t.GetP().ToSlice()), nil, modeTristrips)
	}
	return nil
}

// emit converts one primitive element into a scene mesh.
func (cv *DaeImporter) emit(rd *daeMeshReader, material string, shared []*dae.InputShared, idxs []int, counts []int, mode primitiveMode) {
	var inputs []daeInput
	cornerSize := 0
	for _, in := range shared {
		off := int(in.Offset)
		if off+1 > cornerSize {
			cornerSize = off + 1
		}
		var src *daeSource
		if in.Semantic != "VERTEX" {
			src = rd.sources[in.Source.GetId()]
			if src == nil {
				continue
			}
		}
		inputs = append(inputs, daeInput{semantic: in.Semantic, offset: off, src: src})
	}
	if cornerSize == 0 {
		return
	}
	corners := len(idxs) / cornerSize

	b := newMeshBuilder(rd.name, cv.materialIndex(material))
	corner := func(c int) uint32 {
		base := c * cornerSize
		var pos vec3.T
		var normal *vec3.T
		var uv *vec2.T
		for _, in := range inputs {
			idx := idxs[base+in.offset]
			switch in.semantic {
			case "VERTEX":
				dv := dvec3.T{rd.position.at(idx, 0), rd.position.at(idx, 1), rd.position.at(idx, 2)}
				dv = rd.mat.MulVec3(&dv)
				pos = vec3.T{float32(dv[0]), float32(dv[1]), float32(dv[2])}
				if rd.normal != nil && normal == nil {
					n := transformNormal(rd.mat, vec3.T{float32(rd.normal.at(idx, 0)), float32(rd.normal.at(idx, 1)), float32(rd.normal.at(idx, 2))})
					normal = &n
				}
			case "NORMAL":
				n := transformNormal(rd.mat, vec3.T{float32(in.src.at(idx, 0)), float32(in.src.at(idx, 1)), float32(in.src.at(idx, 2))})
				normal = &n
			case "TEXCOORD":
				if uv == nil {
					uv = &vec2.T{float32(in.src.at(idx, 0)), float32(in.src.at(idx, 1))}
				}
			}
		}
		return b.add(pos, normal, uv)
	}

	var polys [][]int
	switch mode {
	case modePolylist:
		next := 0
		for _, n := range counts {
			if next+n > corners {
				break
			}
			poly := make([]int, n)
			for k := range poly {
				poly[k] = next + k
			}
			polys = append(polys, poly)
			next += n
		}
	case modeTriangles:
		for c := 0; c+2 < corners; c += 3 {
			polys = append(polys, []int{c, c + 1, c + 2})
		}
	case modeTrifans:
		poly := make([]int, corners)
		for k := range poly {
			poly[k] = k
		}
		polys = append(polys, poly)
	case modeTristrips:
		for c := 0; c+2 < corners; c++ {
			if c%2 == 0 {
				polys = append(polys, []int{c, c + 1, c + 2})
			} else {
				polys = append(polys, []int{c + 1, c, c + 2})
			}
		}
	}

	for _, poly := range polys {
		for _, tri := range fan(poly) {
			b.triangle(corner(tri[0]), corner(tri[1]), corner(tri[2]))
		}
	}
	if !b.empty() {
		cv.sc.Meshes = append(cv.sc.Meshes, b.mesh())
	}
}

func (cv *DaeImporter) materialIndex(symbol string) uint32 {
	if idx, ok := cv.materials[symbol]; ok {
		return idx
	}
	idx := uint32(len(cv.sc.Materials))
	cv.materials[symbol] = idx
	cv.sc.Materials = append(cv.sc.Materials, cv.convertMtl(symbol, cv.mtlMap[symbol]))
	return idx
}

func parseColor(strs []string) (vec4.T, bool) {
	vs := parseFloats(strs)
	if len(vs) < 3 {
		return vec4.T{}, false
	}
	c := vec4.T{float32(vs[0]), float32(vs[1]), float32(vs[2]), 1}
	if len(vs) > 3 {
		c[3] = float32(vs[3])
	}
	return c, true
}

func (cv *DaeImporter) convertMtl(symbol string, mtl *dae.Material) *scene.Material {
	mat := scene.NewMaterial().SetName(symbol)
	mat.SetColor(scene.KeyColorDiffuse, vec4.T{1, 1, 1, 1})
	if mtl == nil {
		return mat
	}
	effect, ok := cv.effectMap[mtl.InstanceEffect.Url.GetId()]
	if !ok {
		return mat
	}
	common := effect.ProfileCommon
	for _, param := range common.Newparam {
		if param.Semantic.Value == "DIFFUSECOLOR" {
			switch {
			case param.Float3 != nil:
				if c, ok := parseColor(param.Float3.ToSlice()); ok {
					mat.SetColor(scene.KeyColorDiffuse, c)
				}
			case param.Float4 != nil:
				if c, ok := parseColor(param.Float4.ToSlice()); ok {
					mat.SetColor(scene.KeyColorDiffuse, c)
					mat.SetFloat(scene.KeyOpacity, c[3])
				}
			}
		} else if param.Sampler2D != nil {
			cv.bind(mat, scene.TextureDiffuse, param.Sampler2D.Source.Texture)
		}
	}
	if common.TechniqueFx == nil || common.TechniqueFx.Phone == nil {
		return mat
	}
	phg := common.TechniqueFx.Phone
	if phg.Diffuse != nil {
		if phg.Diffuse.Texture != nil {
			cv.bind(mat, scene.TextureDiffuse, phg.Diffuse.Texture.Texture)
		} else if phg.Diffuse.Color != nil {
			if c, ok := parseColor(phg.Diffuse.Color.Float3.ToSlice()); ok {
				mat.SetColor(scene.KeyColorDiffuse, c)
			}
		}
	}
	if phg.Emission != nil && phg.Emission.Color != nil {
		if c, ok := parseColor(phg.Emission.Color.Float3.ToSlice()); ok {
			mat.SetColor(scene.KeyColorEmissive, c)
		}
	}
	if phg.AmbientFx != nil && phg.AmbientFx.Color != nil {
		if c, ok := parseColor(phg.AmbientFx.Color.Float3.ToSlice()); ok {
			mat.SetColor(scene.KeyColorAmbient, c)
		}
	}
	if phg.Specular != nil && phg.Specular.Color != nil {
		if c, ok := parseColor(phg.Specular.Color.Float3.ToSlice()); ok {
			mat.SetColor(scene.KeyColorSpecular, c)
		}
	}
	if phg.Shininess != nil && phg.Shininess.Float != nil {
		mat.SetFloat(scene.KeyShininess, float32(phg.Shininess.Float.Value))
	}
	if phg.Transparency != nil && phg.Transparency.Float != nil {
		mat.SetFloat(scene.KeyOpacity, float32(phg.Transparency.Float.Value))
	}
	return mat
}

// bind resolves a sampler source through the image library.
func (cv *DaeImporter) bind(mat *scene.Material, semantic scene.TextureType, image string) {
	if ref, ok := cv.imageRefs[image]; ok {
		mat.SetTexture(semantic, 0, scene.TextureRef{Path: ref})
	}
}

func readVector(strs []string, n int) []float64 {
	v := parseFloats(strs)
	for len(v) < n {
		v = append(v, 0)
	}
	return v
}

// nodeTransform composes a node's matrices, or its translate, rotate and
// scale elements in that order. COLLADA matrices are row-major.
func nodeTransform(nd *dae.Node) *dmat.T {
	out := dmat.Ident
	if len(nd.Matrix) > 0 {
		for _, m := range nd.Matrix {
			var ay [16]float64
			copy(ay[:], readVector(m.ToSlice(), 16))
			local := arrayToMat(ay).Transpose()
			next := dmat.Ident
			next.AssignMul(&out, local)
			out = next
		}
		return &out
	}

	for _, t := range nd.Translate {
		v := readVector(t.ToSlice(), 3)
		m := dmat.Ident
		m.Translate(&dvec3.T{v[0], v[1], v[2]})
		next := dmat.Ident
		next.AssignMul(&out, &m)
		out = next
	}
	for _, r := range nd.Rotate {
		v := readVector(r.ToSlice(), 4)
		angle := v[3] * math.Pi / 180
		m := dmat.Ident
		switch {
		case v[0] != 0:
			m.AssignXRotation(math.Copysign(angle, v[0]))
		case v[1] != 0:
			m.AssignYRotation(math.Copysign(angle, v[1]))
		case v[2] != 0:
			m.AssignZRotation(math.Copysign(angle, v[2]))
		}
		next := dmat.Ident
		next.AssignMul(&out, &m)
		out = next
	}
	if len(nd.Scale) > 0 {
		v := readVector(nd.Scale[0].ToSlice(), 3)
		m := dmat.Ident
		m.ScaleVec3(&dvec3.T{v[0], v[1], v[2]})
		next := dmat.Ident
		next.AssignMul(&out, &m)
		out = next
	}
	return &out
}
