package bridge

import (
	"fmt"

	"github.com/flywave/go-anari-bridge/anari"
	"github.com/flywave/go-anari-bridge/scene"
)

type TextureStatus int

const (
	TextureLoaded TextureStatus = iota
	// TextureMissing means the material has nothing in the slot.
	TextureMissing
	// TextureNotEmbedded means the slot names a file the scene does not carry.
	TextureNotEmbedded
	TextureDecodeFailed
)

func (s TextureStatus) String() string {
	switch s {
	case TextureLoaded:
		return "loaded"
	case TextureMissing:
		return "missing"
	case TextureNotEmbedded:
		return "not_embedded"
	case TextureDecodeFailed:
		return "decode_failed"
	}
	return fmt.Sprintf("TextureStatus(%d)", int(s))
}

// TextureResult is the outcome of loading one material texture slot. Image is
// set only when Status is TextureLoaded, and the caller owns its reference.
type TextureResult struct {
	Image  anari.Array2D
	Ref    scene.TextureRef
	Status TextureStatus
	Err    error
}

func (r TextureResult) Present() bool {
	return r.Status == TextureLoaded && r.Image != 0
}

// LoadTexture decodes the embedded texture bound to a material slot and
// uploads it as a 2D array of UFixed8Vec4 texels.
func LoadTexture(sc *scene.Scene, dev anari.Device, mat *scene.Material, semantic scene.TextureType, index uint32) TextureResult {
	ref, ok := mat.Texture(semantic, index)
	if !ok {
		return TextureResult{Status: TextureMissing}
	}
	res := TextureResult{Ref: ref}
	tex, ok := sc.EmbeddedTexture(ref.Path)
	if !ok {
		res.Status = TextureNotEmbedded
		return res
	}
	img, err := DecodeTexture(tex)
	if err != nil {
		res.Status = TextureDecodeFailed
		res.Err = fmt.Errorf("texture %q: %w", ref.Path, err)
		return res
	}
	arr := dev.NewArray2D(anari.TypeUFixed8Vec4, img.Pixels, uint64(img.Width), uint64(img.Height))
	if arr == 0 {
		res.Status = TextureDecodeFailed
		res.Err = fmt.Errorf("texture %q: device rejected %dx%d image", ref.Path, img.Width, img.Height)
		return res
	}
	res.Image = arr
	res.Status = TextureLoaded
	return res
}

// SamplerAttribute names the vertex attribute a texture reads coordinates
// from when UV set i is stored in attribute i.
func SamplerAttribute(ref scene.TextureRef) string {
	return directLayout.attribute(ref.UVIndex)
}

// MeshSamplerAttribute names the attribute holding the texture's UV set in
// the geometry BuildGeometry makes from m.
func MeshSamplerAttribute(m *scene.Mesh, ref scene.TextureRef) string {
	return meshUVLayout(m).attribute(ref.UVIndex)
}

// NewImageSampler creates an uncommitted image2D sampler over image with
// linear filtering and repeat wrapping. The caller adds transforms, commits
// and releases it.
func NewImageSampler(dev anari.Device, image anari.Array2D, attribute string) anari.Sampler {
	s := dev.NewSampler(anari.SubtypeImage2D)
	dev.SetParameter(anari.Object(s), "image", anari.TypeArray2D, image)
	dev.SetParameter(anari.Object(s), "inAttribute", anari.TypeString, attribute)
	dev.SetParameter(anari.Object(s), "filter", anari.TypeString, "linear")
	dev.SetParameter(anari.Object(s), "wrapMode1", anari.TypeString, "repeat")
	dev.SetParameter(anari.Object(s), "wrapMode2", anari.TypeString, "repeat")
	return s
}
