package mqtt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/samsamfire/gocanerr/pkg/errframe"
	"github.com/samsamfire/gocanerr/pkg/monitor"
)

const (
	DefaultClientID = "canerrdump"
	DefaultTopic    = "can/errors"
	DefaultTimeout  = 5 * time.Second
)

// Config of the broker connection
type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
	Retain   bool
	Timeout  time.Duration
}

// Payload is the JSON document published for every report
type Payload struct {
	Timestamp   time.Time `json:"timestamp"`
	Channel     string    `json:"channel"`
	ID          string    `json:"id"`
	Class       uint32    `json:"class"`
	Data        string    `json:"data"`
	Description string    `json:"description"`
	Clauses     []string  `json:"clauses"`
	Replay      []string  `json:"replay"`
}

// NewPayload builds the published document of a report
func NewPayload(report monitor.Report) Payload {
	desc := report.Descriptor
	id := fmt.Sprintf("0x%03X", uint32(desc.Class))
	if desc.Extended {
		id = fmt.Sprintf("0x%08X", uint32(desc.Class))
	}
	return Payload{
		Timestamp:   report.Time,
		Channel:     report.Channel,
		ID:          id,
		Class:       uint32(desc.Class),
		Data:        errframe.FormatBytes(desc.Data[:]),
		Description: report.Description.String(),
		Clauses:     report.Description.Tokens(),
		Replay:      report.Replay(),
	}
}

// Publisher is a [monitor.Sink] publishing reports on an MQTT topic
type Publisher struct {
	client MQTT.Client
	config Config
	logger *slog.Logger
}

func newClientOptions(config Config, logger *slog.Logger) *MQTT.ClientOptions {
	opts := MQTT.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(config.Timeout)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}
	opts.SetConnectionLostHandler(func(_ MQTT.Client, err error) {
		logger.Warn("connection lost, reconnecting", "err", err)
	})
	opts.SetOnConnectHandler(func(MQTT.Client) {
		logger.Info("connected", "broker", config.Broker)
	})
	return opts
}

func withDefaults(config Config) (Config, error) {
	if config.Broker == "" {
		return config, fmt.Errorf("mqtt broker address missing")
	}
	if !strings.Contains(config.Broker, "://") {
		config.Broker = "tcp://" + config.Broker
	}
	if config.ClientID == "" {
		config.ClientID = DefaultClientID
	}
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.QoS > 2 {
		return config, fmt.Errorf("invalid mqtt qos %v", config.QoS)
	}
	return config, nil
}

// NewPublisher wraps an existing client. The client is expected to be connected
func NewPublisher(client MQTT.Client, config Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config, err := withDefaults(config)
	if err != nil {
		return nil, err
	}
	return &Publisher{client: client, config: config, logger: logger.With("service", "[MQTT]")}, nil
}

// Dial connects to the broker and returns a ready publisher
func Dial(config Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config, err := withDefaults(config)
	if err != nil {
		return nil, err
	}
	logger = logger.With("service", "[MQTT]")
	client := MQTT.NewClient(newClientOptions(config, logger))
	token := client.Connect()
	if !token.WaitTimeout(config.Timeout) {
		return nil, fmt.Errorf("connecting to %v: timeout after %v", config.Broker, config.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %v: %w", config.Broker, err)
	}
	return &Publisher{client: client, config: config, logger: logger}, nil
}

// Report implements [monitor.Sink]
func (p *Publisher) Report(report monitor.Report) error {
	payload, err := json.Marshal(NewPayload(report))
	if err != nil {
		return err
	}
	token := p.client.Publish(p.config.Topic, p.config.QoS, p.config.Retain, payload)
	if !token.WaitTimeout(p.config.Timeout) {
		return fmt.Errorf("publishing on %v: timeout after %v", p.config.Topic, p.config.Timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing on %v: %w", p.config.Topic, err)
	}
	p.logger.Debug("published report", "topic", p.config.Topic, "payload", string(payload))
	return nil
}

// Close disconnects from the broker, waiting up to 250ms for pending work
func (p *Publisher) Close() {
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
