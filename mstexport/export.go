// Package mstexport writes the content of a committed ANARI world held by
// an inspectable device out as an mst mesh, so converted scenes can be
// checked with the tools that read mst files.
package mstexport

import (
	"errors"
	"fmt"
	"io"
	"os"

	mst "github.com/flywave/go-mst"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/flywave/go-anari-bridge/anari"
)

var ErrNotArray = errors.New("parameter is not an array")

// Inspector reads back committed object state. The in-memory device
// implements it.
type Inspector interface {
	Committed(obj anari.Object, name string) (anari.DataType, interface{}, bool)
	Array(obj anari.Object) (anari.DataType, interface{}, [2]uint64, bool)
}

type Exporter struct {
	dev    Inspector
	logger *zap.Logger

	materials map[anari.Object]int32
	textures  map[anari.Object]*mst.Texture
	mesh      *mst.Mesh
	bbx       dvec3.Box
}

func NewExporter(dev Inspector, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dev: dev, logger: logger}
}

// Export flattens every surface reachable from world into one mst mesh with
// instance transforms applied. It returns the mesh and its bounding box.
func (e *Exporter) Export(world anari.World) (*mst.Mesh, *[6]float64, error) {
	e.materials = make(map[anari.Object]int32)
	e.textures = make(map[anari.Object]*mst.Texture)
	e.mesh = mst.NewMesh()
	e.bbx = dvec3.MinBox

	wobj := anari.Object(world)
	if _, _, _, ok := e.dev.Array(wobj); ok {
		return nil, nil, fmt.Errorf("object %d is an array, not a world", wobj)
	}
	instances, err := e.objects(wobj, "instance")
	if err != nil && !errors.Is(err, errMissing) {
		return nil, nil, err
	}
	for _, inst := range instances {
		if err := e.exportInstance(inst); err != nil {
			return nil, nil, fmt.Errorf("instance %d: %w", inst, err)
		}
	}
	e.logger.Debug("world exported",
		zap.Int("nodes", len(e.mesh.Nodes)),
		zap.Int("materials", len(e.mesh.Materials)),
		zap.Int("textures", len(e.textures)))
	if len(e.mesh.Nodes) == 0 {
		return e.mesh, &[6]float64{}, nil
	}
	return e.mesh, e.bbx.Array(), nil
}

var errMissing = errors.New("parameter not set")

func (e *Exporter) param(obj anari.Object, name string) (interface{}, error) {
	_, v, ok := e.dev.Committed(obj, name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errMissing, name)
	}
	return v, nil
}

func (e *Exporter) object(obj anari.Object, name string) (anari.Object, error) {
	v, err := e.param(obj, name)
	if err != nil {
		return 0, err
	}
	h, ok := v.(anari.Object)
	if !ok {
		return 0, fmt.Errorf("%s is %T, not an object", name, v)
	}
	return h, nil
}

// objects follows an array-valued parameter to the handles it holds.
func (e *Exporter) objects(obj anari.Object, name string) ([]anari.Object, error) {
	arr, err := e.object(obj, name)
	if err != nil {
		return nil, err
	}
	_, data, _, ok := e.dev.Array(arr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, name)
	}
	handles, ok := data.([]anari.Object)
	if !ok {
		return nil, fmt.Errorf("%s holds %T, not objects", name, data)
	}
	return handles, nil
}

func (e *Exporter) exportInstance(inst anari.Object) error {
	xf := mgl32.Ident4()
	if v, err := e.param(inst, "transform"); err == nil {
		if m, ok := v.([16]float32); ok {
			xf = mgl32.Mat4(m)
		}
	}
	group, err := e.object(inst, "group")
	if err != nil {
		return err
	}
	surfaces, err := e.objects(group, "surface")
	if err != nil {
		return err
	}
	for _, s := range surfaces {
		if err := e.exportSurface(s, xf); err != nil {
			return fmt.Errorf("surface %d: %w", s, err)
		}
	}
	return nil
}

func (e *Exporter) exportSurface(s anari.Object, xf mgl32.Mat4) error {
	geom, err := e.object(s, "geometry")
	if err != nil {
		return err
	}
	var batch int32
	if mat, err := e.object(s, "material"); err == nil {
		batch = e.exportMaterial(mat)
	} else {
		batch = e.exportMaterial(0)
	}

	positions, err := e.vec3Array(geom, "vertex.position")
	if err != nil {
		return err
	}
	nd := &mst.MeshNode{}
	for _, p := range positions {
		v := xf.Mul4x1(mgl32.Vec4{p[0], p[1], p[2], 1})
		nd.Vertices = append(nd.Vertices, vec3.T{v[0], v[1], v[2]})
		e.bbx.Extend(&dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])})
	}
	if normals, err := e.vec3Array(geom, "vertex.normal"); err == nil {
		nm := xf.Mat3().Inv().Transpose()
		for _, n := range normals {
			v := nm.Mul3x1(mgl32.Vec3{n[0], n[1], n[2]})
			if v.Len() > 0 {
				v = v.Normalize()
			}
			nd.Normals = append(nd.Normals, vec3.T{v[0], v[1], v[2]})
		}
	}
	if uvs, err := e.floatArray(geom, "vertex.attribute0"); err == nil {
		for i := 0; i+1 < len(uvs); i += 2 {
			nd.TexCoords = append(nd.TexCoords, vec2.T{uvs[i], uvs[i+1]})
		}
	}

	fg := &mst.MeshTriangle{Batchid: batch}
	if idx, err := e.uintArray(geom, "primitive.index"); err == nil {
		for i := 0; i+2 < len(idx); i += 3 {
			fg.Faces = append(fg.Faces, &mst.Face{Vertex: [3]uint32{idx[i], idx[i+1], idx[i+2]}})
		}
	} else {
		for i := 0; i+2 < len(positions); i += 3 {
			fg.Faces = append(fg.Faces, &mst.Face{Vertex: [3]uint32{uint32(i), uint32(i + 1), uint32(i + 2)}})
		}
	}
	nd.FaceGroup = append(nd.FaceGroup, fg)
	if len(nd.Normals) == 0 {
		nd.ReComputeNormal()
	}
	e.mesh.Nodes = append(e.mesh.Nodes, nd)
	return nil
}

func (e *Exporter) arrayData(obj anari.Object, name string) (interface{}, error) {
	arr, err := e.object(obj, name)
	if err != nil {
		return nil, err
	}
	_, data, _, ok := e.dev.Array(arr)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotArray, name)
	}
	return data, nil
}

func (e *Exporter) vec3Array(obj anari.Object, name string) ([][3]float32, error) {
	data, err := e.arrayData(obj, name)
	if err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case [][3]float32:
		return v, nil
	case []float32:
		out := make([][3]float32, len(v)/3)
		for i := range out {
			out[i] = [3]float32{v[3*i], v[3*i+1], v[3*i+2]}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s holds %T", name, data)
}

func (e *Exporter) floatArray(obj anari.Object, name string) ([]float32, error) {
	data, err := e.arrayData(obj, name)
	if err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case []float32:
		return v, nil
	case [][2]float32:
		out := make([]float32, 0, 2*len(v))
		for _, uv := range v {
			out = append(out, uv[0], uv[1])
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s holds %T", name, data)
}

func (e *Exporter) uintArray(obj anari.Object, name string) ([]uint32, error) {
	data, err := e.arrayData(obj, name)
	if err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case []uint32:
		return v, nil
	case [][3]uint32:
		out := make([]uint32, 0, 3*len(v))
		for _, f := range v {
			out = append(out, f[0], f[1], f[2])
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s holds %T", name, data)
}

// WriteFile exports world and stores the result at path.
func (e *Exporter) WriteFile(world anari.World, path string) error {
	mh, _, err := e.Export(world)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	Write(f, mh)
	return f.Close()
}

func Write(w io.Writer, mh *mst.Mesh) {
	mst.MeshMarshal(w, mh)
}
