// Command anari-bridge imports a model file, converts it into a world on the
// in-memory ANARI device and reports what was built.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	bridge "github.com/flywave/go-anari-bridge"
	"github.com/flywave/go-anari-bridge/anari/memdev"
	"github.com/flywave/go-anari-bridge/importer"
	"github.com/flywave/go-anari-bridge/internal/config"
	"github.com/flywave/go-anari-bridge/internal/logger"
	"github.com/flywave/go-anari-bridge/mstexport"
)

func main() {
	flags := config.NewFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <model>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(flags.Args()) != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.File)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, flags.Args()[0], log); err != nil {
		log.Error("conversion failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, path string, log *zap.Logger) error {
	sc, err := importer.Import(path)
	if err != nil {
		return err
	}
	log.Info("scene imported",
		zap.String("path", path),
		zap.Int("meshes", len(sc.Meshes)),
		zap.Int("materials", len(sc.Materials)),
		zap.Int("textures", len(sc.Textures)))

	dev := memdev.NewDeviceWithOptions(&memdev.Options{Logger: log.Named("device")})
	world, rep := bridge.NewSceneBridgeWithOptions(cfg.BridgeOptions(log.Named("bridge"))).BridgeWithReport(sc, dev)

	fields := []zap.Field{
		zap.Uint64("index_limit", rep.IndexLimit),
		zap.Int("geometries", rep.GeometriesBuilt),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("materials", rep.Materials),
		zap.Int("material_variants", rep.MaterialVariants),
		zap.Int("surfaces", rep.Surfaces),
		zap.Int("cameras", rep.Cameras),
	}
	for status, n := range rep.Textures {
		fields = append(fields, zap.Int("textures_"+status.String(), n))
	}
	if bounds, ok := rep.Bounds(); ok {
		fields = append(fields, zap.Float64s("bounds", bounds[:]))
	}
	log.Info("world committed", fields...)

	if cfg.Export.MstPath != "" {
		if err := mstexport.NewExporter(dev, log.Named("mst")).WriteFile(world, cfg.Export.MstPath); err != nil {
			return fmt.Errorf("writing %s: %w", cfg.Export.MstPath, err)
		}
		log.Info("mst written", zap.String("path", cfg.Export.MstPath))
	}
	return nil
}
