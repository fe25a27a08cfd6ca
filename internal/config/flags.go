package config

import "flag"

// Flags are the command-line overrides of the driver.
type Flags struct {
	fs *flag.FlagSet

	config          *string
	debug           *bool
	strictClearcoat *bool
	maxIndex        *uint64
	mst             *string
	logFile         *string
}

// NewFlags registers the driver flags on fs.
func NewFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:              fs,
		config:          fs.String("config", "", "Path to config file"),
		debug:           fs.Bool("debug", false, "Enable debug logging"),
		strictClearcoat: fs.Bool("strict-clearcoat", false, "Bind the clear-coat normal map to clearcoatNormal"),
		maxIndex:        fs.Uint64("max-index", 0, "Index limit used when the device reports none"),
		mst:             fs.String("mst", "", "Write the committed world to this .mst file"),
		logFile:         fs.String("log-file", "", "Also log to this rotating file"),
	}
}

// ConfigPath returns the explicit config path if provided via -config.
func (f *Flags) ConfigPath() string {
	return *f.config
}

// Args returns the positional arguments left after parsing.
func (f *Flags) Args() []string {
	return f.fs.Args()
}

func (f *Flags) apply(cfg *Config) {
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.strictClearcoat {
		cfg.Bridge.StrictClearcoat = true
	}
	if *f.maxIndex > 0 {
		cfg.Bridge.MaxIndex = *f.maxIndex
	}
	if *f.mst != "" {
		cfg.Export.MstPath = *f.mst
	}
	if *f.logFile != "" {
		cfg.Logging.File.Path = *f.logFile
	}
}
