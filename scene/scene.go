// Package scene holds the importer-side description of a 3D asset: meshes,
// materials and the texture payloads embedded in the source file.
//
// The model follows the layout produced by generic asset importers after
// post-processing (triangulation, smooth normals, joined vertices, flipped
// UVs). It is read-only to the bridge.
package scene

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
)

const (
	MaxColorSets     = 8
	MaxTextureCoords = 8
)

// PrimitiveType is a bitmask of the primitive kinds found in a mesh.
type PrimitiveType uint32

const (
	PrimitivePoint    PrimitiveType = 0x1
	PrimitiveLine     PrimitiveType = 0x2
	PrimitiveTriangle PrimitiveType = 0x4
	PrimitivePolygon  PrimitiveType = 0x8

	// PrimitiveNGONEncoding marks triangles that were produced from polygons.
	PrimitiveNGONEncoding PrimitiveType = 0x10
)

type Scene struct {
	Meshes    []*Mesh
	Materials []*Material
	Textures  []*EmbeddedTexture
	Cameras   []*Camera
}

func (s *Scene) HasMeshes() bool    { return s != nil && len(s.Meshes) > 0 }
func (s *Scene) HasMaterials() bool { return s != nil && len(s.Materials) > 0 }
func (s *Scene) HasTextures() bool  { return s != nil && len(s.Textures) > 0 }
func (s *Scene) HasCameras() bool   { return s != nil && len(s.Cameras) > 0 }

// EmbeddedTexture resolves a texture path to an embedded payload. "*N"
// addresses the N-th embedded texture; any other path is matched against the
// file names recorded on the payloads, ignoring directories and case.
func (s *Scene) EmbeddedTexture(path string) (*EmbeddedTexture, bool) {
	if s == nil || path == "" {
		return nil, false
	}
	if strings.HasPrefix(path, "*") {
		idx, err := strconv.Atoi(path[1:])
		if err != nil || idx < 0 || idx >= len(s.Textures) {
			return nil, false
		}
		return s.Textures[idx], s.Textures[idx] != nil
	}
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(path, "\\", "/")))
	for _, t := range s.Textures {
		if t == nil || t.Filename == "" {
			continue
		}
		if strings.ToLower(filepath.Base(strings.ReplaceAll(t.Filename, "\\", "/"))) == base {
			return t, true
		}
	}
	return nil, false
}

// AddTexture appends an embedded payload and returns its "*N" path.
func (s *Scene) AddTexture(t *EmbeddedTexture) string {
	s.Textures = append(s.Textures, t)
	return "*" + strconv.Itoa(len(s.Textures)-1)
}

// Mesh is one triangulated surface. Per-vertex arrays are parallel and hold
// NumVertices entries when present.
type Mesh struct {
	Name           string
	PrimitiveTypes PrimitiveType
	NumVertices    uint32

	Vertices      []vec3.T
	Normals       []vec3.T
	Tangents      []vec3.T
	Bitangents    []vec3.T
	Colors        [MaxColorSets][]vec4.T
	TextureCoords [MaxTextureCoords][]vec3.T

	Faces         []Face
	MaterialIndex uint32
}

type Face struct {
	Indices []uint32
}

func (m *Mesh) HasPositions() bool { return len(m.Vertices) > 0 && m.NumVertices > 0 }
func (m *Mesh) HasNormals() bool   { return len(m.Normals) > 0 && m.NumVertices > 0 }
func (m *Mesh) HasFaces() bool     { return len(m.Faces) > 0 }

func (m *Mesh) HasTangents() bool   { return len(m.Tangents) > 0 && m.NumVertices > 0 }
func (m *Mesh) HasBitangents() bool { return len(m.Bitangents) > 0 && m.NumVertices > 0 }

func (m *Mesh) HasTangentsAndBitangents() bool {
	return m.HasTangents() && m.HasBitangents()
}

func (m *Mesh) HasVertexColors(set int) bool {
	if set < 0 || set >= MaxColorSets {
		return false
	}
	return len(m.Colors[set]) > 0 && m.NumVertices > 0
}

func (m *Mesh) HasTextureCoords(set int) bool {
	if set < 0 || set >= MaxTextureCoords {
		return false
	}
	return len(m.TextureCoords[set]) > 0 && m.NumVertices > 0
}

// NumUVChannels counts the texture coordinate sets present, wherever they sit.
func (m *Mesh) NumUVChannels() int {
	n := 0
	for i := 0; i < MaxTextureCoords; i++ {
		if m.HasTextureCoords(i) {
			n++
		}
	}
	return n
}

// Camera is carried so callers can tell a scene has cameras; its contents are
// not converted.
type Camera struct {
	Name string
}
