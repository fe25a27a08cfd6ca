package bridge

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/flywave/go-anari-bridge/scene"
)

// Texel channel columns of a sampler output transform.
const (
	channelRed   = 0
	channelGreen = 1
	channelBlue  = 2
	channelAlpha = 3
)

// SwizzleTransform returns an output transform that copies one channel of
// the sampled texel into all four outputs.
func SwizzleTransform(channel int) mgl32.Mat4 {
	var m mgl32.Mat4
	for row := 0; row < 4; row++ {
		m.Set(row, channel, 1)
	}
	return m
}

// MetallicTransform reads metalness from the blue channel.
func MetallicTransform() mgl32.Mat4 { return SwizzleTransform(channelBlue) }

// RoughnessTransform reads roughness from the green channel.
func RoughnessTransform() mgl32.Mat4 { return SwizzleTransform(channelGreen) }

// IntensityTransform scales every channel by intensity.
func IntensityTransform(intensity float32) mgl32.Mat4 {
	return mgl32.Diag4(mgl32.Vec4{intensity, intensity, intensity, intensity})
}

// UVMatrix composes translation, rotation and scaling, applied to a
// coordinate in the reverse order.
func UVMatrix(t scene.UVTransform) mgl32.Mat3 {
	return mgl32.Translate2D(t.Translation[0], t.Translation[1]).
		Mul3(mgl32.HomogRotate2D(t.Rotation)).
		Mul3(mgl32.Scale2D(t.Scaling[0], t.Scaling[1]))
}

// UVTransformMatrix lifts UVMatrix to a 4x4 sampler input transform acting
// on (u, v, 0, 1): the 2x2 linear part stays upper-left and the translation
// moves to column 3.
func UVTransformMatrix(t scene.UVTransform) mgl32.Mat4 {
	uv := UVMatrix(t)
	m := mgl32.Ident4()
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			m.Set(row, col, uv.At(row, col))
		}
		m.Set(row, 3, uv.At(row, 2))
	}
	return m
}

func mat4Value(m mgl32.Mat4) [16]float32 {
	return [16]float32(m)
}
