package bridge

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/flywave/go-anari-bridge/anari"
	"github.com/flywave/go-anari-bridge/anari/memdev"
	"github.com/flywave/go-anari-bridge/scene"
)

func encodePNG(t *testing.T, w, h int, at func(x, y int) color.NRGBA) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, at(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solidPNG(t *testing.T, c color.NRGBA) *scene.EmbeddedTexture {
	data := encodePNG(t, 2, 2, func(int, int) color.NRGBA { return c })
	return scene.NewCompressedTexture(data, "png", "solid.png")
}

func quadMesh() *scene.Mesh {
	return &scene.Mesh{
		Name:           "quad",
		PrimitiveTypes: scene.PrimitiveTriangle,
		NumVertices:    4,
		Vertices:       []vec3.T{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Faces: []scene.Face{
			{Indices: []uint32{0, 1, 2}},
			{Indices: []uint32{0, 2, 3}},
		},
	}
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

// errorCollector records every error-or-worse diagnostic a device raises.
type errorCollector struct {
	messages []string
}

func (e *errorCollector) callback(src anari.Object, typ anari.DataType, sev anari.StatusSeverity, code anari.StatusCode, msg string) {
	if sev <= anari.SeverityError {
		e.messages = append(e.messages, msg)
	}
}

func newCheckedDevice(props map[string]interface{}) (*memdev.Device, *errorCollector) {
	ec := &errorCollector{}
	dev := memdev.NewDeviceWithOptions(&memdev.Options{
		Properties:     props,
		StatusCallback: ec.callback,
	})
	return dev, ec
}

// committedObject follows an object-valued parameter as of the last commit.
func committedObject(t *testing.T, dev *memdev.Device, obj anari.Object, name string) anari.Object {
	t.Helper()
	_, v, ok := dev.Committed(obj, name)
	require.True(t, ok, "parameter %q not committed", name)
	h, ok := v.(anari.Object)
	require.True(t, ok, "parameter %q is not an object", name)
	return h
}

func arrayObjects(t *testing.T, dev *memdev.Device, arr anari.Object) []anari.Object {
	t.Helper()
	_, data, _, ok := dev.Array(arr)
	require.True(t, ok)
	objs, ok := data.([]anari.Object)
	require.True(t, ok)
	return objs
}
