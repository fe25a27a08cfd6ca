package mstexport

import (
	"fmt"

	mst "github.com/flywave/go-mst"
	"go.uber.org/zap"

	"github.com/flywave/go-anari-bridge/anari"
)

// exportMaterial converts a physicallyBased material once per handle and
// returns its batch id. Handle 0 stands for surfaces without a material.
func (e *Exporter) exportMaterial(mat anari.Object) int32 {
	if id, ok := e.materials[mat]; ok {
		return id
	}
	mtl := &mst.PbrMaterial{Metallic: 1, Roughness: 1}
	mtl.Color = [3]byte{255, 255, 255}
	if mat != 0 {
		e.convertMaterial(mat, mtl)
	}
	id := int32(len(e.mesh.Materials))
	e.mesh.Materials = append(e.mesh.Materials, mtl)
	e.materials[mat] = id
	return id
}

func (e *Exporter) convertMaterial(mat anari.Object, mtl *mst.PbrMaterial) {
	if v, err := e.param(mat, "baseColor"); err == nil {
		switch c := v.(type) {
		case [3]float32:
			mtl.Color = byteColor(c)
		case anari.Object:
			mtl.TextureMaterial.Texture = e.samplerTexture(c)
		}
	}
	if v, err := e.param(mat, "opacity"); err == nil {
		if f, ok := v.(float32); ok {
			mtl.Transparency = 1 - f
		}
	}
	if v, err := e.param(mat, "metallic"); err == nil {
		if f, ok := v.(float32); ok {
			mtl.Metallic = f
		}
	}
	if v, err := e.param(mat, "roughness"); err == nil {
		if f, ok := v.(float32); ok {
			mtl.Roughness = f
		}
	}
	if v, err := e.param(mat, "emissive"); err == nil {
		switch c := v.(type) {
		case [3]float32:
			mtl.Emissive = byteColor(c)
		case float32:
			mtl.Emissive = byteColor([3]float32{c, c, c})
		}
	}
	if v, err := e.param(mat, "normal"); err == nil {
		if s, ok := v.(anari.Object); ok {
			mtl.TextureMaterial.Normal = e.samplerTexture(s)
		}
	}
}

// samplerTexture reads the image behind an image2D sampler back into an
// mst texture. Device images are stored bottom row first.
func (e *Exporter) samplerTexture(s anari.Object) *mst.Texture {
	if tex, ok := e.textures[s]; ok {
		return tex
	}
	img, err := e.object(s, "image")
	if err != nil {
		e.logger.Debug("sampler without image", zap.Uint64("sampler", uint64(s)))
		return nil
	}
	tex, err := e.imageTexture(img)
	if err != nil {
		e.logger.Warn("sampler image not exported", zap.Uint64("sampler", uint64(s)), zap.Error(err))
		return nil
	}
	if v, err := e.param(s, "wrapMode1"); err == nil {
		tex.Repeated = v == "repeat"
	}
	e.textures[s] = tex
	return tex
}

func (e *Exporter) imageTexture(img anari.Object) (*mst.Texture, error) {
	typ, data, dims, ok := e.dev.Array(img)
	if !ok {
		return nil, ErrNotArray
	}
	px, ok := data.([]byte)
	if !ok || typ != anari.TypeUFixed8Vec4 {
		return nil, fmt.Errorf("unsupported image element type %v", typ)
	}
	w, h := int(dims[0]), int(dims[1])
	if len(px) < w*h*4 {
		return nil, fmt.Errorf("image %dx%d holds %d bytes", w, h, len(px))
	}
	row := w * 4
	buf := make([]byte, 0, row*h)
	for y := h - 1; y >= 0; y-- {
		buf = append(buf, px[y*row:(y+1)*row]...)
	}

	t := &mst.Texture{}
	t.Id = int32(len(e.textures))
	t.Format = mst.TEXTURE_FORMAT_RGBA
	t.Size = [2]uint64{uint64(w), uint64(h)}
	t.Compressed = mst.TEXTURE_COMPRESSED_ZLIB
	t.Data = mst.CompressImage(buf)
	return t, nil
}

func byteColor(c [3]float32) [3]byte {
	var out [3]byte
	for i, f := range c {
		switch {
		case f <= 0:
			out[i] = 0
		case f >= 1:
			out[i] = 255
		default:
			out[i] = byte(f*255 + 0.5)
		}
	}
	return out
}
