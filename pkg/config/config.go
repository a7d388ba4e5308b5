package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
)

// Config of the canerrdump and canerrsim tools.
// Files use the same sections in INI and TOML flavours :
//
//	[bus]
//	interface = socketcanv2
//	channel = can0
//
//	[monitor]
//	ignore = BusError,Counters
//
//	[mqtt]
//	broker = tcp://localhost:1883
type Config struct {
	Bus       BusConfig       `ini:"bus" toml:"bus"`
	Monitor   MonitorConfig   `ini:"monitor" toml:"monitor"`
	Simulator SimulatorConfig `ini:"simulator" toml:"simulator"`
	MQTT      MQTTConfig      `ini:"mqtt" toml:"mqtt"`
	Metrics   MetricsConfig   `ini:"metrics" toml:"metrics"`
	CLI       CLIConfig       `ini:"cli" toml:"cli"`
}

type BusConfig struct {
	Interface string `ini:"interface" toml:"interface"` // backend, see pkg/can
	Channel   string `ini:"channel" toml:"channel"`
}

type MonitorConfig struct {
	Ignore   []string `ini:"ignore" delim:"," toml:"ignore"` // Ignore<Class> options
	ShowBits bool     `ini:"show_bits" toml:"show_bits"`
}

type SimulatorConfig struct {
	ShowBits bool `ini:"show_bits" toml:"show_bits"`
	Extended bool `ini:"extended" toml:"extended"`
}

type MQTTConfig struct {
	Broker   string `ini:"broker" toml:"broker"` // empty disables publishing
	ClientID string `ini:"client_id" toml:"client_id"`
	Topic    string `ini:"topic" toml:"topic"`
	Username string `ini:"username" toml:"username"`
	Password string `ini:"password" toml:"password"`
	QoS      int    `ini:"qos" toml:"qos"`
	Retain   bool   `ini:"retain" toml:"retain"`
	Timeout  string `ini:"timeout" toml:"timeout"` // e.g. "5s"
}

type MetricsConfig struct {
	Listen string `ini:"listen" toml:"listen"` // e.g. ":9120", empty disables the HTTP endpoint
}

type CLIConfig struct {
	InvalidOptionExitCode int    `ini:"invalid_option_exit_code" toml:"invalid_option_exit_code"`
	LogLevel              string `ini:"log_level" toml:"log_level"`
}

// Default configuration, used for every value missing from a file
func Default() Config {
	return Config{
		Bus: BusConfig{Interface: "socketcanv2"},
		MQTT: MQTTConfig{
			ClientID: "canerrdump",
			Topic:    "can/errors",
			Timeout:  "5s",
		},
		CLI: CLIConfig{InvalidOptionExitCode: 0, LogLevel: "info"},
	}
}

// Load reads a configuration file on top of [Default].
// The parser is chosen from the extension : .ini or .toml
func Load(path string) (Config, error) {
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".conf":
		file, err := ini.Load(path)
		if err != nil {
			return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
		}
		if err := file.MapTo(&cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q, expecting .ini or .toml", filepath.Ext(path))
	}
	cfg.Monitor.Ignore = normalize(cfg.Monitor.Ignore)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Bus.Interface) == "" {
		return fmt.Errorf("bus config missing interface")
	}
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	if _, err := cfg.MQTT.ConnectTimeout(); err != nil {
		return err
	}
	if listen := strings.TrimSpace(cfg.Metrics.Listen); listen != "" {
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return fmt.Errorf("metrics listen address: %w", err)
		}
	}
	return nil
}

// ConnectTimeout parses the timeout, 0 if not set
func (c MQTTConfig) ConnectTimeout() (time.Duration, error) {
	if strings.TrimSpace(c.Timeout) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(c.Timeout))
	if err != nil {
		return 0, fmt.Errorf("parse mqtt timeout: %w", err)
	}
	return d, nil
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
