package bridge

import (
	"go.uber.org/zap"

	"github.com/flywave/go-anari-bridge/anari"
)

// ProbeIndexLimit asks the device for the largest index a geometry may use.
// Devices that do not report one get DefaultIndexLimit.
func ProbeIndexLimit(dev anari.Device) uint64 {
	return probeIndexLimit(dev, DefaultIndexLimit, zap.NewNop())
}

func probeIndexLimit(dev anari.Device, fallback uint64, logger *zap.Logger) uint64 {
	v, ok := dev.GetProperty(0, anari.PropertyGeometryMaxIndex, anari.TypeUInt64)
	if ok {
		if limit, ok := v.(uint64); ok {
			logger.Debug("index limit reported", zap.Uint64("limit", limit))
			return limit
		}
	}
	logger.Debug("index limit not reported, using default", zap.Uint64("limit", fallback))
	return fallback
}
