package scene

// Texel is one raw pixel of an uncompressed embedded texture.
type Texel struct {
	B, G, R, A uint8
}

// EmbeddedTexture is an image payload stored inside the source asset.
//
// When Height is zero the payload is a compressed container (png, jpeg, ...)
// held in Data and Width is its length in bytes. Otherwise Texels holds
// Width*Height raw pixels, row-major from the top.
type EmbeddedTexture struct {
	Width      uint32
	Height     uint32
	FormatHint string
	Data       []byte
	Texels     []Texel
	Filename   string
}

// NewCompressedTexture wraps an encoded image file.
func NewCompressedTexture(data []byte, hint string, filename string) *EmbeddedTexture {
	return &EmbeddedTexture{
		Width:      uint32(len(data)),
		FormatHint: hint,
		Data:       data,
		Filename:   filename,
	}
}

// NewRawTexture wraps already decoded pixels given as tightly packed RGBA8.
func NewRawTexture(width, height uint32, rgba []byte, filename string) *EmbeddedTexture {
	texels := make([]Texel, int(width)*int(height))
	for i := range texels {
		if 4*i+3 >= len(rgba) {
			break
		}
		texels[i] = Texel{R: rgba[4*i], G: rgba[4*i+1], B: rgba[4*i+2], A: rgba[4*i+3]}
	}
	return &EmbeddedTexture{
		Width:      width,
		Height:     height,
		FormatHint: "rgba8888",
		Texels:     texels,
		Filename:   filename,
	}
}

func (t *EmbeddedTexture) IsCompressed() bool {
	return t.Height == 0
}

// CheckFormat reports whether the format hint names the given extension.
func (t *EmbeddedTexture) CheckFormat(ext string) bool {
	return t.FormatHint == ext
}
