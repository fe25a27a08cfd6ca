package bridge

import (
	"math"

	"go.uber.org/zap"
)

// DefaultIndexLimit is used when the device does not report how many
// vertices an indexed geometry may address.
const DefaultIndexLimit uint64 = math.MaxUint32

// MaxUVAttributes is how many texture coordinate sets reach the geometry.
const MaxUVAttributes = 3

// Options tunes a SceneBridge.
type Options struct {
	// DefaultIndexLimit replaces DefaultIndexLimit when non-zero.
	DefaultIndexLimit uint64

	// StrictClearcoat binds the clear-coat normal texture to "clearcoatNormal".
	// Left false, it lands on "clearcoatRoughness" for compatibility with
	// existing ANARI scene converters, and a warning is logged for every
	// material affected.
	StrictClearcoat bool

	// Logger receives conversion events. Nil discards them.
	Logger *zap.Logger
}

func DefaultOptions() *Options {
	return &Options{
		DefaultIndexLimit: DefaultIndexLimit,
		Logger:            zap.NewNop(),
	}
}

func (o *Options) indexLimitDefault() uint64 {
	if o == nil || o.DefaultIndexLimit == 0 {
		return DefaultIndexLimit
	}
	return o.DefaultIndexLimit
}

func (o *Options) logger() *zap.Logger {
	if o == nil || o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
