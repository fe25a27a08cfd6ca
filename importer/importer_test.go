package importer

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flywave/go-anari-bridge/scene"
)

func writePNG(t *testing.T, path string, c color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return buf.Bytes()
}

func TestFormatFactory(t *testing.T) {
	cases := map[string]Importer{
		THREEDS: &ThreeDsImporter{},
		DAE:     &DaeImporter{},
		FBX:     &FbxImporter{},
		GLTF:    &GltfImporter{},
		GLB:     &GltfImporter{},
		OBJ:     &ObjImporter{},
		TBIN:    &ThreejsBinImporter{},
		"OBJ":   &ObjImporter{},
	}
	for format, want := range cases {
		assert.IsType(t, want, FormatFactory(format), format)
	}
	assert.Nil(t, FormatFactory("stl"))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "glb", FormatOf("/data/models/Robot.GLB"))
	assert.Equal(t, "3jsbin", FormatOf("scene.3jsbin"))
	assert.Equal(t, "", FormatOf("README"))
}

func TestImportUnsupported(t *testing.T) {
	_, err := Import("model.ply")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestImportMissingFile(t *testing.T) {
	_, err := Import(filepath.Join(t.TempDir(), "missing.obj"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestMeshBuilderComputesNormals(t *testing.T) {
	b := newMeshBuilder("tri", 2)
	i0 := b.add(vec3.T{0, 0, 0}, nil, nil)
	i1 := b.add(vec3.T{1, 0, 0}, nil, &vec2.T{1, 0})
	i2 := b.add(vec3.T{0, 1, 0}, nil, nil)
	assert.True(t, b.empty())
	b.triangle(i0, i1, i2)
	assert.False(t, b.empty())

	m := b.mesh()
	assert.Equal(t, "tri", m.Name)
	assert.Equal(t, uint32(2), m.MaterialIndex)
	assert.Equal(t, uint32(3), m.NumVertices)
	assert.Equal(t, scene.PrimitiveTriangle, m.PrimitiveTypes)
	require.Len(t, m.Normals, 3)
	for _, n := range m.Normals {
		assert.Equal(t, vec3.T{0, 0, 1}, n)
	}
	require.Len(t, m.TextureCoords[0], 3)
	assert.Equal(t, vec3.T{1, 0, 0}, m.TextureCoords[0][1])
	assert.Equal(t, vec3.T{}, m.TextureCoords[0][0])
}

func TestMeshBuilderKeepsNormals(t *testing.T) {
	b := newMeshBuilder("tri", 0)
	up := vec3.T{0, 1, 0}
	b.triangle(b.add(vec3.T{0, 0, 0}, &up, nil), b.add(vec3.T{1, 0, 0}, &up, nil), b.add(vec3.T{0, 0, 1}, &up, nil))
	m := b.mesh()
	assert.Equal(t, []vec3.T{up, up, up}, m.Normals)
	assert.Nil(t, m.TextureCoords[0])
}

func TestFan(t *testing.T) {
	assert.Nil(t, fan([]int{0, 1}))
	assert.Equal(t, [][3]int{{0, 1, 2}}, fan([]int{0, 1, 2}))
	assert.Equal(t, [][3]int{{4, 5, 6}, {4, 6, 7}, {4, 7, 8}}, fan([]int{4, 5, 6, 7, 8}))
}

func TestTextureTableEmbedFile(t *testing.T) {
	dir := t.TempDir()
	data := writePNG(t, filepath.Join(dir, "wood.png"), color.NRGBA{R: 200, A: 255})

	sc := &scene.Scene{}
	tt := newTextureTable(sc, dir)

	ref, ok := tt.embedFile("wood.png")
	require.True(t, ok)
	assert.Equal(t, "*0", ref)

	// stored paths from other machines fall back to the file name
	ref2, ok := tt.embedFile(`C:\textures\wood.png`)
	require.True(t, ok)
	assert.Equal(t, "*1", ref2)

	again, ok := tt.embedFile("wood.png")
	require.True(t, ok)
	assert.Equal(t, ref, again)

	_, ok = tt.embedFile("missing.png")
	assert.False(t, ok)
	_, ok = tt.embedFile("  ")
	assert.False(t, ok)

	require.Len(t, sc.Textures, 2)
	assert.Equal(t, data, sc.Textures[0].Data)
	assert.Equal(t, "png", sc.Textures[0].FormatHint)
	assert.Equal(t, "wood.png", sc.Textures[0].Filename)
	assert.True(t, sc.Textures[0].IsCompressed())
}

func TestTextureTableEmbedData(t *testing.T) {
	sc := &scene.Scene{}
	tt := newTextureTable(sc, "")
	a := tt.embedData("image0", []byte{1, 2, 3}, "jpg", "")
	b := tt.embedData("image0", []byte{4}, "jpg", "")
	c := tt.embedData("image1", []byte{4}, "", "")
	assert.Equal(t, "*0", a)
	assert.Equal(t, a, b)
	assert.Equal(t, "*1", c)
	assert.Len(t, sc.Textures, 2)
}

func TestHints(t *testing.T) {
	assert.Equal(t, "tga", formatHint("a/b/Skin.TGA"))
	assert.Equal(t, "", formatHint("noext"))
	assert.Equal(t, "png", mimeHint("image/png"))
	assert.Equal(t, "jpg", mimeHint("IMAGE/JPEG"))
	assert.Equal(t, "", mimeHint("application/octet-stream"))
}
