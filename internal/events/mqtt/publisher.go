// Package mqtt publishes recognition events to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/events"
)

var ErrNotConnected = errors.New("mqtt client is not connected")

type Config struct {
	Broker   string // tcp://host:1883
	ClientID string
	Topic    string
	Username string
	Password string
	QoS      byte
	Retain   bool
}

// Client is the part of paho.Client the publisher uses.
type Client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Publisher implements events.Publisher. Each event is sent as JSON to
// <topic>/<identity_id>.
type Publisher struct {
	client Client
	config Config
	logger *slog.Logger
}

var _ events.Publisher = (*Publisher)(nil)

// Connect dials the broker with automatic reconnection enabled.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetOnConnectHandler(func(paho.Client) {
		logger.Info("connected to mqtt broker", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})

	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}

	return NewPublisher(client, cfg, logger), nil
}

func NewPublisher(client Client, cfg Config, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, config: cfg, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, event domain.RecognitionEvent) error {
	if !p.client.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", p.config.Topic, event.IdentityID)
	token := p.client.Publish(topic, p.config.QoS, p.config.Retain, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("recognition event published", "topic", topic, "event_id", event.ID)
	return nil
}

// Close disconnects, waiting up to 250ms for in-flight messages.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
