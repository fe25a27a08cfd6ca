package scene

import (
	"testing"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/flywave/go3d/vec4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedTextureLookup(t *testing.T) {
	sc := &Scene{}
	wood := NewCompressedTexture([]byte{1, 2, 3}, "png", `C:\assets\Wood.PNG`)
	assert.Equal(t, "*0", sc.AddTexture(wood))
	assert.Equal(t, "*1", sc.AddTexture(NewCompressedTexture([]byte{4}, "jpg", "")))

	got, ok := sc.EmbeddedTexture("*0")
	require.True(t, ok)
	assert.Same(t, wood, got)

	got, ok = sc.EmbeddedTexture("textures/wood.png")
	require.True(t, ok, "file names match without directory or case")
	assert.Same(t, wood, got)

	for _, path := range []string{"", "*2", "*-1", "*x", "stone.png"} {
		_, ok := sc.EmbeddedTexture(path)
		assert.False(t, ok, path)
	}

	var none *Scene
	_, ok = none.EmbeddedTexture("*0")
	assert.False(t, ok)
	assert.False(t, none.HasMeshes())
}

func TestTextures(t *testing.T) {
	c := NewCompressedTexture([]byte{1, 2, 3}, "png", "a.png")
	assert.True(t, c.IsCompressed())
	assert.Equal(t, uint32(3), c.Width)
	assert.True(t, c.CheckFormat("png"))
	assert.False(t, c.CheckFormat("jpg"))

	r := NewRawTexture(2, 1, []byte{10, 20, 30, 40, 50, 60, 70, 80}, "raw")
	assert.False(t, r.IsCompressed())
	assert.Equal(t, []Texel{{R: 10, G: 20, B: 30, A: 40}, {R: 50, G: 60, B: 70, A: 80}}, r.Texels)

	short := NewRawTexture(2, 2, []byte{1, 2, 3, 4}, "short")
	assert.Len(t, short.Texels, 4)
	assert.Equal(t, Texel{}, short.Texels[3])
}

func TestMeshChannels(t *testing.T) {
	m := &Mesh{NumVertices: 1, Vertices: []vec3.T{{0, 0, 0}}}
	assert.True(t, m.HasPositions())
	assert.False(t, m.HasNormals())
	assert.False(t, m.HasTextureCoords(-1))
	assert.False(t, m.HasTextureCoords(MaxTextureCoords))
	assert.False(t, m.HasVertexColors(MaxColorSets))

	m.TextureCoords[1] = []vec3.T{{0, 0, 0}}
	m.TextureCoords[5] = []vec3.T{{0, 0, 0}}
	assert.Equal(t, 2, m.NumUVChannels())

	m.Tangents = []vec3.T{{1, 0, 0}}
	assert.True(t, m.HasTangents())
	assert.False(t, m.HasBitangents())
	assert.False(t, m.HasTangentsAndBitangents())
	m.Bitangents = []vec3.T{{0, 1, 0}}
	assert.True(t, m.HasTangentsAndBitangents())

	m.NumVertices = 0
	assert.False(t, m.HasPositions())
	assert.Zero(t, m.NumUVChannels())
}

func TestMaterialProperties(t *testing.T) {
	m := NewMaterial().
		SetName("steel").
		SetFloat(KeyMetallicFactor, 0.9).
		SetColor3(KeyColorBase, 0.5, 0.5, 0.5).
		SetInt(KeyBlendFunc, int32(BlendAdditive)).
		SetBool(KeyTwoSided, true)

	assert.Equal(t, "steel", m.Name())
	f, ok := m.Float(KeyMetallicFactor)
	require.True(t, ok)
	assert.Equal(t, float32(0.9), f)
	c, ok := m.Color(KeyColorBase)
	require.True(t, ok)
	assert.Equal(t, vec4.T{0.5, 0.5, 0.5, 1}, c)
	i, _ := m.Int(KeyBlendFunc)
	assert.Equal(t, int32(BlendAdditive), i)
	b, _ := m.Bool(KeyTwoSided)
	assert.True(t, b)

	_, ok = m.Float(KeyName)
	assert.False(t, ok, "strings do not read as floats")
	_, ok = m.Color(KeyMetallicFactor)
	assert.False(t, ok)

	var none *Material
	assert.Equal(t, "", none.Name())
	assert.Zero(t, none.Len())
}

func TestMaterialTextures(t *testing.T) {
	m := NewMaterial()
	m.SetTexture(TextureDiffuse, 0, TextureRef{Path: "*0"})
	m.SetTexture(TextureDiffuse, 1, TextureRef{Path: "detail.png", UVIndex: 2})
	m.SetTexture(TextureDiffuse, 3, TextureRef{Path: "gap.png"})
	m.SetUVTransform(TextureDiffuse, 1, UVTransform{Scaling: vec2.T{2, 2}})

	ref, ok := m.Texture(TextureDiffuse, 1)
	require.True(t, ok)
	assert.Equal(t, TextureRef{Path: "detail.png", UVIndex: 2}, ref)
	assert.Equal(t, uint32(2), m.TextureCount(TextureDiffuse), "counting stops at the first empty slot")

	tr, ok := m.UVTransform(TextureDiffuse, 1)
	require.True(t, ok)
	assert.Equal(t, vec2.T{2, 2}, tr.Scaling)
	_, ok = m.UVTransform(TextureDiffuse, 0)
	assert.False(t, ok)

	_, ok = m.Texture(TextureNormals, 0)
	assert.False(t, ok)
	m.SetTexture(TextureNormals, 0, TextureRef{})
	_, ok = m.Texture(TextureNormals, 0)
	assert.False(t, ok, "empty paths are no texture")

	assert.Equal(t, "base_color", TextureBaseColor.String())
	assert.Equal(t, "clearcoat", TextureClearcoat.String())
}
