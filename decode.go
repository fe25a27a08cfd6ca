package bridge

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/chai2010/tiff"
	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"

	"github.com/flywave/go-anari-bridge/scene"
)

var (
	ErrEmptyTexture         = errors.New("texture has no pixels")
	ErrUnknownTextureFormat = errors.New("unknown texture format")
)

// Image is decoded RGBA8 pixel data with the first row at the bottom.
type Image struct {
	Width  int
	Height int
	Pixels []byte
}

type decoder func(io.Reader) (image.Image, error)

var signatures = []struct {
	format string
	match  func([]byte) bool
}{
	{"png", func(b []byte) bool { return bytes.HasPrefix(b, []byte("\x89PNG\r\n\x1a\n")) }},
	{"jpeg", func(b []byte) bool { return bytes.HasPrefix(b, []byte{0xff, 0xd8, 0xff}) }},
	{"gif", func(b []byte) bool { return bytes.HasPrefix(b, []byte("GIF8")) }},
	{"bmp", func(b []byte) bool { return bytes.HasPrefix(b, []byte("BM")) }},
	{"webp", func(b []byte) bool {
		return len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP"
	}},
	{"tiff", func(b []byte) bool {
		return bytes.HasPrefix(b, []byte("II*\x00")) || bytes.HasPrefix(b, []byte("MM\x00*"))
	}},
}

func decoderFor(format string) (decoder, bool) {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "jpeg", "jpg":
		return jpeg.Decode, true
	case "png":
		return png.Decode, true
	case "gif":
		return gif.Decode, true
	case "bmp":
		return bmp.Decode, true
	case "webp":
		return webp.Decode, true
	case "tif", "tiff":
		return tiff.Decode, true
	case "tga":
		return tga.Decode, true
	}
	return nil, false
}

// sniffFormat names the container of data, trusting its signature over the
// hint. Formats without a signature (tga) rely on the hint alone.
func sniffFormat(data []byte, hint string) string {
	for _, s := range signatures {
		if s.match(data) {
			return s.format
		}
	}
	return strings.ToLower(hint)
}

// DecodeTexture turns an embedded texture into RGBA8 pixels, rows flipped so
// the first row is the bottom of the picture.
func DecodeTexture(t *scene.EmbeddedTexture) (*Image, error) {
	if t == nil {
		return nil, ErrEmptyTexture
	}
	if !t.IsCompressed() {
		return decodeTexels(t)
	}
	if len(t.Data) == 0 {
		return nil, ErrEmptyTexture
	}
	format := sniffFormat(t.Data, t.FormatHint)
	dec, ok := decoderFor(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTextureFormat, t.FormatHint)
	}
	img, err := dec(bytes.NewReader(t.Data))
	if err != nil {
		return nil, fmt.Errorf("decode %s texture: %w", format, err)
	}
	return flipImage(img)
}

func flipImage(img image.Image) (*Image, error) {
	bd := img.Bounds()
	w, h := bd.Dx(), bd.Dy()
	if w == 0 || h == 0 {
		return nil, ErrEmptyTexture
	}
	buf := make([]byte, 0, 4*w*h)
	for y := h - 1; y >= 0; y-- {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(bd.Min.X+x, bd.Min.Y+y)).(color.NRGBA)
			buf = append(buf, c.R, c.G, c.B, c.A)
		}
	}
	return &Image{Width: w, Height: h, Pixels: buf}, nil
}

func decodeTexels(t *scene.EmbeddedTexture) (*Image, error) {
	w, h := int(t.Width), int(t.Height)
	if w == 0 || h == 0 {
		return nil, ErrEmptyTexture
	}
	if len(t.Texels) < w*h {
		return nil, fmt.Errorf("raw texture %dx%d holds %d texels", w, h, len(t.Texels))
	}
	buf := make([]byte, 0, 4*w*h)
	for y := h - 1; y >= 0; y-- {
		for _, tx := range t.Texels[y*w : (y+1)*w] {
			buf = append(buf, tx.R, tx.G, tx.B, tx.A)
		}
	}
	return &Image{Width: w, Height: h, Pixels: buf}, nil
}
