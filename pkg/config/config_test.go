package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.Nil(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "socketcanv2", cfg.Bus.Interface)
	assert.Equal(t, 0, cfg.CLI.InvalidOptionExitCode)
	assert.Nil(t, cfg.Validate())
	timeout, err := cfg.MQTT.ConnectTimeout()
	assert.Nil(t, err)
	assert.Equal(t, 5*time.Second, timeout)
}

func TestLoadIni(t *testing.T) {
	path := writeFile(t, "canerr.ini", `
[bus]
interface = virtualcan
channel = localhost:18888

[monitor]
ignore = IgnoreBusError, IgnoreCounters
show_bits = true

[simulator]
extended = true

[mqtt]
broker = tcp://broker:1883
topic = plant/can0/errors
qos = 1
retain = true
timeout = 2s

[metrics]
listen = 127.0.0.1:9120

[cli]
invalid_option_exit_code = 2
log_level = debug
`)
	cfg, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, "virtualcan", cfg.Bus.Interface)
	assert.Equal(t, "localhost:18888", cfg.Bus.Channel)
	assert.Equal(t, []string{"IgnoreBusError", "IgnoreCounters"}, cfg.Monitor.Ignore)
	assert.True(t, cfg.Monitor.ShowBits)
	assert.False(t, cfg.Simulator.ShowBits)
	assert.True(t, cfg.Simulator.Extended)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "plant/can0/errors", cfg.MQTT.Topic)
	assert.Equal(t, "canerrdump", cfg.MQTT.ClientID)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.True(t, cfg.MQTT.Retain)
	timeout, err := cfg.MQTT.ConnectTimeout()
	assert.Nil(t, err)
	assert.Equal(t, 2*time.Second, timeout)
	assert.Equal(t, "127.0.0.1:9120", cfg.Metrics.Listen)
	assert.Equal(t, 2, cfg.CLI.InvalidOptionExitCode)
	assert.Equal(t, "debug", cfg.CLI.LogLevel)
}

func TestLoadToml(t *testing.T) {
	path := writeFile(t, "canerr.toml", `
[bus]
channel = "can1"

[monitor]
ignore = ["IgnoreRestarted"]

[simulator]
show_bits = true

[cli]
invalid_option_exit_code = 1
`)
	cfg, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, "socketcanv2", cfg.Bus.Interface)
	assert.Equal(t, "can1", cfg.Bus.Channel)
	assert.Equal(t, []string{"IgnoreRestarted"}, cfg.Monitor.Ignore)
	assert.True(t, cfg.Simulator.ShowBits)
	assert.Equal(t, "", cfg.MQTT.Broker)
	assert.Equal(t, "can/errors", cfg.MQTT.Topic)
	assert.Equal(t, 1, cfg.CLI.InvalidOptionExitCode)
	assert.Equal(t, "info", cfg.CLI.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "canerr.yaml", "bus: {}"))
	assert.NotNil(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.NotNil(t, err)

	_, err = Load(writeFile(t, "canerr.toml", "[bus\n"))
	assert.NotNil(t, err)

	_, err = Load(writeFile(t, "qos.toml", "[mqtt]\nqos = 3\n"))
	assert.NotNil(t, err)

	_, err = Load(writeFile(t, "timeout.ini", "[mqtt]\ntimeout = soon\n"))
	assert.NotNil(t, err)

	_, err = Load(writeFile(t, "metrics.toml", "[metrics]\nlisten = \"9120\"\n"))
	assert.NotNil(t, err)

	_, err = Load(writeFile(t, "bus.toml", "[bus]\ninterface = \"\"\n"))
	assert.NotNil(t, err)
}
