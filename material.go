package bridge

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/flywave/go-anari-bridge/anari"
	"github.com/flywave/go-anari-bridge/scene"
)

type materialBuilder struct {
	sc              *scene.Scene
	dev             anari.Device
	strictClearcoat bool
	logger          *zap.Logger
	textures        map[TextureStatus]int
	layout          uvLayout
}

func newMaterialBuilder(sc *scene.Scene, dev anari.Device, opts *Options, textures map[TextureStatus]int) *materialBuilder {
	return &materialBuilder{
		sc:              sc,
		dev:             dev,
		strictClearcoat: opts != nil && opts.StrictClearcoat,
		logger:          opts.logger(),
		textures:        textures,
		layout:          directLayout,
	}
}

// BuildMaterial converts a scene material into a committed physicallyBased
// material. Textures that cannot be loaded are left unbound.
func BuildMaterial(sc *scene.Scene, dev anari.Device, mat *scene.Material) anari.Material {
	return newMaterialBuilder(sc, dev, DefaultOptions(), nil).build(mat)
}

// textureChannel binds a texture slot straight to a material parameter. When
// the slot is empty, fallback may bind a constant instead.
type textureChannel struct {
	param    string
	semantic scene.TextureType
	index    uint32
	fallback func(b *materialBuilder, mat anari.Material, src *scene.Material)
}

var textureChannels = []textureChannel{
	{"baseColor", scene.TextureBaseColor, 0, (*materialBuilder).baseColorFallback},
	{"normal", scene.TextureNormals, 0, nil},
	{"occlusion", scene.TextureAmbientOcclusion, 0, nil},
	{"specular", scene.TextureSpecular, 0, nil},
	{"clearcoat", scene.TextureClearcoat, scene.ClearcoatIntensitySlot, scalarFallback(scene.KeyClearcoatFactor, "clearcoat")},
	{"clearcoatRoughness", scene.TextureClearcoat, scene.ClearcoatRoughnessSlot, scalarFallback(scene.KeyClearcoatRoughnessFactor, "clearcoatRoughness")},
}

var scalarChannels = []struct {
	key   string
	param string
}{
	{scene.KeyOpacity, "opacity"},
	{scene.KeyTransparencyFactor, "alphaCutoff"},
}

func scalarFallback(key, param string) func(*materialBuilder, anari.Material, *scene.Material) {
	return func(b *materialBuilder, mat anari.Material, src *scene.Material) {
		if v, ok := src.Float(key); ok {
			b.dev.SetParameter(anari.Object(mat), param, anari.TypeFloat32, v)
		}
	}
}

// AlphaMode maps a blend function onto the material alphaMode parameter.
func AlphaMode(mode scene.BlendMode) string {
	switch mode {
	case scene.BlendDefault:
		return "mask"
	case scene.BlendAdditive:
		return "blend"
	}
	return "opaque"
}

func (b *materialBuilder) build(src *scene.Material) anari.Material {
	mat := b.dev.NewMaterial(anari.SubtypePhysicallyBased)
	obj := anari.Object(mat)
	if src == nil {
		b.dev.CommitParameters(obj)
		return mat
	}

	for _, ch := range textureChannels {
		res := b.load(src, ch.semantic, ch.index)
		if res.Present() {
			b.bindSampler(mat, ch.param, res, nil, nil)
			b.dev.Release(anari.Object(res.Image))
		} else if ch.fallback != nil {
			ch.fallback(b, mat, src)
		}
	}
	for _, ch := range scalarChannels {
		if v, ok := src.Float(ch.key); ok {
			b.dev.SetParameter(obj, ch.param, anari.TypeFloat32, v)
		}
	}

	b.metallicRoughness(mat, src)
	b.emissive(mat, src)

	if mode, ok := src.Int(scene.KeyBlendFunc); ok {
		b.dev.SetParameter(obj, "alphaMode", anari.TypeString, AlphaMode(scene.BlendMode(mode)))
	}
	if f, ok := src.Float(scene.KeySpecularFactor); ok {
		b.dev.SetParameter(obj, "specularColor", anari.TypeFloat32Vec3, [3]float32{f, f, f})
	}
	b.clearcoatNormal(mat, src)

	b.dev.CommitParameters(obj)
	return mat
}

// samplerRefs lists the texture references of src that would become samplers.
func samplerRefs(src *scene.Material) []scene.TextureRef {
	var refs []scene.TextureRef
	add := func(semantic scene.TextureType, index uint32) {
		if ref, ok := src.Texture(semantic, index); ok {
			refs = append(refs, ref)
		}
	}
	for _, ch := range textureChannels {
		add(ch.semantic, ch.index)
	}
	add(scene.TextureDiffuseRoughness, 0)
	add(scene.TextureEmissive, 0)
	add(scene.TextureClearcoat, scene.ClearcoatNormalSlot)
	return refs
}

// needsLayout reports whether any sampler of src reads a different attribute
// under l than under the direct layout.
func needsLayout(src *scene.Material, l uvLayout) bool {
	if src == nil || l == directLayout {
		return false
	}
	for _, ref := range samplerRefs(src) {
		if l.attribute(ref.UVIndex) != directLayout.attribute(ref.UVIndex) {
			return true
		}
	}
	return false
}

func (b *materialBuilder) load(src *scene.Material, semantic scene.TextureType, index uint32) TextureResult {
	res := LoadTexture(b.sc, b.dev, src, semantic, index)
	if res.Status != TextureMissing && b.textures != nil {
		b.textures[res.Status]++
	}
	switch res.Status {
	case TextureNotEmbedded:
		b.logger.Debug("texture not embedded",
			zap.String("material", src.Name()),
			zap.Stringer("slot", semantic),
			zap.String("path", res.Ref.Path))
	case TextureDecodeFailed:
		b.logger.Warn("texture decode failed",
			zap.String("material", src.Name()),
			zap.Stringer("slot", semantic),
			zap.Error(res.Err))
	}
	return res
}

// bindSampler wraps a loaded image in a committed sampler and binds it to
// param. The sampler reference is dropped once the material holds it.
func (b *materialBuilder) bindSampler(mat anari.Material, param string, res TextureResult, in, out *mgl32.Mat4) {
	s := NewImageSampler(b.dev, res.Image, b.layout.attribute(res.Ref.UVIndex))
	sobj := anari.Object(s)
	if in != nil {
		b.dev.SetParameter(sobj, "inTransform", anari.TypeFloat32Mat4, mat4Value(*in))
	}
	if out != nil {
		b.dev.SetParameter(sobj, "outTransform", anari.TypeFloat32Mat4, mat4Value(*out))
	}
	b.dev.CommitParameters(sobj)
	b.dev.SetParameter(anari.Object(mat), param, anari.TypeSampler, s)
	b.dev.Release(sobj)
}

func (b *materialBuilder) baseColorFallback(mat anari.Material, src *scene.Material) {
	c, ok := src.Color(scene.KeyColorBase)
	if !ok {
		c, ok = src.Color(scene.KeyColorDiffuse)
	}
	if ok {
		b.dev.SetParameter(anari.Object(mat), "baseColor", anari.TypeFloat32Vec3, [3]float32{c[0], c[1], c[2]})
	}
}

// metallicRoughness shares one packed image between two samplers that pick
// metalness from blue and roughness from green.
func (b *materialBuilder) metallicRoughness(mat anari.Material, src *scene.Material) {
	res := b.load(src, scene.TextureDiffuseRoughness, 0)
	if !res.Present() {
		if v, ok := src.Float(scene.KeyMetallicFactor); ok {
			b.dev.SetParameter(anari.Object(mat), "metallic", anari.TypeFloat32, v)
		}
		if v, ok := src.Float(scene.KeyRoughnessFactor); ok {
			b.dev.SetParameter(anari.Object(mat), "roughness", anari.TypeFloat32, v)
		}
		return
	}
	var in *mgl32.Mat4
	if t, ok := src.UVTransform(scene.TextureDiffuseRoughness, 0); ok {
		m := UVTransformMatrix(t)
		in = &m
	}
	metallic, roughness := MetallicTransform(), RoughnessTransform()
	b.bindSampler(mat, "metallic", res, in, &metallic)
	b.bindSampler(mat, "roughness", res, in, &roughness)
	b.dev.Release(anari.Object(res.Image))
}

func (b *materialBuilder) emissive(mat anari.Material, src *scene.Material) {
	intensity, hasIntensity := src.Float(scene.KeyEmissiveIntensity)
	res := b.load(src, scene.TextureEmissive, 0)
	if res.Present() {
		var in, out *mgl32.Mat4
		if hasIntensity {
			m := IntensityTransform(intensity)
			out = &m
		}
		if t, ok := src.UVTransform(scene.TextureEmissive, 0); ok {
			m := UVTransformMatrix(t)
			in = &m
		}
		b.bindSampler(mat, "emissive", res, in, out)
		b.dev.Release(anari.Object(res.Image))
		return
	}
	if hasIntensity {
		b.dev.SetParameter(anari.Object(mat), "emissive", anari.TypeFloat32, intensity)
		return
	}
	if c, ok := src.Color(scene.KeyColorEmissive); ok {
		b.dev.SetParameter(anari.Object(mat), "emissive", anari.TypeFloat32Vec3, [3]float32{c[0], c[1], c[2]})
	}
}

// clearcoatNormal binds clear-coat slot 2. Unless strict, it overwrites the
// clear-coat roughness.
func (b *materialBuilder) clearcoatNormal(mat anari.Material, src *scene.Material) {
	res := b.load(src, scene.TextureClearcoat, scene.ClearcoatNormalSlot)
	if !res.Present() {
		return
	}
	param := "clearcoatNormal"
	if !b.strictClearcoat {
		param = "clearcoatRoughness"
		b.logger.Warn("clearcoat normal bound to clearcoatRoughness",
			zap.String("material", src.Name()),
			zap.String("path", res.Ref.Path))
	}
	b.bindSampler(mat, param, res, nil, nil)
	b.dev.Release(anari.Object(res.Image))
}
