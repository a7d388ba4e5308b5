package cli

import (
	"flag"
	"fmt"
	"log/slog"

	canerr "github.com/samsamfire/gocanerr"
	"github.com/samsamfire/gocanerr/internal/logging"
	can "github.com/samsamfire/gocanerr/pkg/can"
	"github.com/samsamfire/gocanerr/pkg/config"
	log "github.com/sirupsen/logrus"

	_ "github.com/samsamfire/gocanerr/pkg/can/socketcan"
	_ "github.com/samsamfire/gocanerr/pkg/can/socketcanv2"
	_ "github.com/samsamfire/gocanerr/pkg/can/socketcanv3"
	_ "github.com/samsamfire/gocanerr/pkg/can/virtual"
)

// Flags shared by canerrdump and canerrsim
type Flags struct {
	ConfigPath string
	Backend    string
	Verbose    bool
}

// Register adds the shared flags to fs
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "c", "", "configuration file (.ini or .toml)")
	fs.StringVar(&f.Backend, "b", "", fmt.Sprintf("CAN backend %v (default from config, socketcanv2)", can.ImplementedInterfaces()))
	fs.BoolVar(&f.Verbose, "v", false, "debug logging")
}

// Config loads the configuration file if any and applies the flags on top
func (f *Flags) Config() (config.Config, error) {
	cfg := config.Default()
	if f.ConfigPath != "" {
		loaded, err := config.Load(f.ConfigPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	if f.Backend != "" {
		cfg.Bus.Interface = f.Backend
	}
	if f.Verbose {
		cfg.CLI.LogLevel = "debug"
	}
	return cfg, nil
}

// Channel splits the positional arguments into the CAN channel and its options.
// Without arguments the configured channel is used, if any
func Channel(args []string, configured string) (string, []string, bool) {
	if len(args) > 0 {
		return args[0], args[1:], true
	}
	return configured, nil, configured != ""
}

// SetupLogging configures the standard logrus logger
// and returns a slog logger writing through it
func SetupLogging(level string) (*slog.Logger, error) {
	if level == "" {
		level = "info"
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(parsed)
	return logging.New(log.StandardLogger()), nil
}

type loggerSetter interface {
	SetLogger(logger *slog.Logger)
}

// OpenBus creates the configured backend on channel and connects it
func OpenBus(backend string, channel string, logger *slog.Logger) (canerr.Bus, error) {
	bus, err := can.NewBus(backend, channel)
	if err != nil {
		return nil, err
	}
	if setter, ok := bus.(loggerSetter); ok {
		setter.SetLogger(logger)
	}
	if err := bus.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to %v : %w", channel, err)
	}
	return bus, nil
}
