package scene

import (
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec4"
)

// Material property keys, named after the importer keys they mirror.
const (
	KeyName                     = "?mat.name"
	KeyOpacity                  = "$mat.opacity"
	KeyTransparencyFactor       = "$mat.transparencyfactor"
	KeyBlendFunc                = "$mat.blend"
	KeyEmissiveIntensity        = "$mat.emissiveIntensity"
	KeySpecularFactor           = "$mat.specularFactor"
	KeyMetallicFactor           = "$mat.metallicFactor"
	KeyRoughnessFactor          = "$mat.roughnessFactor"
	KeyClearcoatFactor          = "$mat.clearcoat.factor"
	KeyClearcoatRoughnessFactor = "$mat.clearcoat.roughnessFactor"
	KeyTwoSided                 = "$mat.twosided"
	KeyShininess                = "$mat.shininess"
	KeyColorBase                = "$clr.base"
	KeyColorDiffuse             = "$clr.diffuse"
	KeyColorEmissive            = "$clr.emissive"
	KeyColorSpecular            = "$clr.specular"
	KeyColorAmbient             = "$clr.ambient"
	KeyTextureFile              = "$tex.file"
	KeyTextureUVWSrc            = "$tex.uvwsrc"
	KeyTextureUVTransform       = "$tex.uvtrafo"
)

// TextureType is the semantic slot a texture is bound to.
type TextureType uint32

const (
	TextureNone             TextureType = 0
	TextureDiffuse          TextureType = 1
	TextureSpecular         TextureType = 2
	TextureEmissive         TextureType = 4
	TextureNormals          TextureType = 6
	TextureOpacity          TextureType = 8
	TextureBaseColor        TextureType = 12
	TextureMetalness        TextureType = 15
	TextureDiffuseRoughness TextureType = 16
	TextureAmbientOcclusion TextureType = 17
	TextureClearcoat        TextureType = 20
)

// Clear-coat sub-slots share TextureClearcoat and are told apart by index.
const (
	ClearcoatIntensitySlot uint32 = 0
	ClearcoatRoughnessSlot uint32 = 1
	ClearcoatNormalSlot    uint32 = 2
)

func (t TextureType) String() string {
	switch t {
	case TextureNone:
		return "none"
	case TextureDiffuse:
		return "diffuse"
	case TextureSpecular:
		return "specular"
	case TextureEmissive:
		return "emissive"
	case TextureNormals:
		return "normals"
	case TextureOpacity:
		return "opacity"
	case TextureBaseColor:
		return "base_color"
	case TextureMetalness:
		return "metalness"
	case TextureDiffuseRoughness:
		return "diffuse_roughness"
	case TextureAmbientOcclusion:
		return "ambient_occlusion"
	case TextureClearcoat:
		return "clearcoat"
	}
	return "unknown"
}

// BlendMode mirrors the importer's blend function enum.
type BlendMode int32

const (
	BlendDefault  BlendMode = 0
	BlendAdditive BlendMode = 1
)

// UVTransform is a 2D affine texture coordinate transform.
type UVTransform struct {
	Translation vec2.T
	Scaling     vec2.T
	Rotation    float32
}

// TextureRef is what a material slot points at.
type TextureRef struct {
	Path    string
	UVIndex uint32
}

type propertyKey struct {
	key      string
	semantic TextureType
	index    uint32
}

// Material is a property bag queried by key, texture semantic and index.
// Plain properties use TextureNone and index 0.
type Material struct {
	props map[propertyKey]interface{}
}

func NewMaterial() *Material {
	return &Material{props: make(map[propertyKey]interface{})}
}

func (m *Material) get(key string, semantic TextureType, index uint32) (interface{}, bool) {
	if m == nil || m.props == nil {
		return nil, false
	}
	v, ok := m.props[propertyKey{key, semantic, index}]
	return v, ok
}

func (m *Material) set(key string, semantic TextureType, index uint32, v interface{}) *Material {
	if m.props == nil {
		m.props = make(map[propertyKey]interface{})
	}
	m.props[propertyKey{key, semantic, index}] = v
	return m
}

// Len reports the number of stored properties.
func (m *Material) Len() int {
	if m == nil {
		return 0
	}
	return len(m.props)
}

func (m *Material) Name() string {
	s, _ := m.Str(KeyName)
	return s
}

func (m *Material) Float(key string) (float32, bool) {
	v, ok := m.get(key, TextureNone, 0)
	if !ok {
		return 0, false
	}
	switch f := v.(type) {
	case float32:
		return f, true
	case float64:
		return float32(f), true
	case int32:
		return float32(f), true
	}
	return 0, false
}

// Color returns an RGBA colour; three-component colours come back with alpha 1.
func (m *Material) Color(key string) (vec4.T, bool) {
	v, ok := m.get(key, TextureNone, 0)
	if !ok {
		return vec4.T{}, false
	}
	c, ok := v.(vec4.T)
	return c, ok
}

func (m *Material) Int(key string) (int32, bool) {
	v, ok := m.get(key, TextureNone, 0)
	if !ok {
		return 0, false
	}
	i, ok := v.(int32)
	return i, ok
}

func (m *Material) Bool(key string) (bool, bool) {
	v, ok := m.get(key, TextureNone, 0)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func (m *Material) Str(key string) (string, bool) {
	v, ok := m.get(key, TextureNone, 0)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// UVTransform returns the transform declared for one texture slot.
func (m *Material) UVTransform(semantic TextureType, index uint32) (UVTransform, bool) {
	v, ok := m.get(KeyTextureUVTransform, semantic, index)
	if !ok {
		return UVTransform{}, false
	}
	t, ok := v.(UVTransform)
	return t, ok
}

// Texture returns the reference stored in a texture slot.
func (m *Material) Texture(semantic TextureType, index uint32) (TextureRef, bool) {
	v, ok := m.get(KeyTextureFile, semantic, index)
	if !ok {
		return TextureRef{}, false
	}
	path, ok := v.(string)
	if !ok || path == "" {
		return TextureRef{}, false
	}
	ref := TextureRef{Path: path}
	if uv, ok := m.get(KeyTextureUVWSrc, semantic, index); ok {
		if i, ok := uv.(uint32); ok {
			ref.UVIndex = i
		}
	}
	return ref, true
}

// TextureCount reports how many consecutive slots of a semantic are filled.
func (m *Material) TextureCount(semantic TextureType) uint32 {
	var n uint32
	for {
		if _, ok := m.get(KeyTextureFile, semantic, n); !ok {
			return n
		}
		n++
	}
}

func (m *Material) SetName(name string) *Material { return m.set(KeyName, TextureNone, 0, name) }

func (m *Material) SetFloat(key string, v float32) *Material {
	return m.set(key, TextureNone, 0, v)
}

func (m *Material) SetInt(key string, v int32) *Material {
	return m.set(key, TextureNone, 0, v)
}

func (m *Material) SetBool(key string, v bool) *Material {
	return m.set(key, TextureNone, 0, v)
}

func (m *Material) SetString(key string, v string) *Material {
	return m.set(key, TextureNone, 0, v)
}

func (m *Material) SetColor(key string, c vec4.T) *Material {
	return m.set(key, TextureNone, 0, c)
}

func (m *Material) SetColor3(key string, r, g, b float32) *Material {
	return m.SetColor(key, vec4.T{r, g, b, 1})
}

func (m *Material) SetTexture(semantic TextureType, index uint32, ref TextureRef) *Material {
	m.set(KeyTextureFile, semantic, index, ref.Path)
	return m.set(KeyTextureUVWSrc, semantic, index, ref.UVIndex)
}

func (m *Material) SetUVTransform(semantic TextureType, index uint32, t UVTransform) *Material {
	return m.set(KeyTextureUVTransform, semantic, index, t)
}
