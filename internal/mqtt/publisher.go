package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/agrismart/assistant/internal/config"
	"github.com/agrismart/assistant/internal/tools"
)

// ErrNotStarted is returned when publishing before Start.
var ErrNotStarted = errors.New("mqtt publisher not started")

// BookingEvent is the payload published for each confirmed booking.
type BookingEvent struct {
	ConversationID string        `json:"conversationId"`
	ConfirmedAt    time.Time     `json:"confirmedAt"`
	Booking        tools.Booking `json:"booking"`
}

// Publisher manages the broker connection and publishes booking events.
// It satisfies agent.BookingSink.
type Publisher struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	cm     *autopaho.ConnectionManager

	// publish sends one message; it is the connection manager's Publish
	// once started.
	publish func(ctx context.Context, msg *paho.Publish) error
	now     func() time.Time
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// before publishing.
func New(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "agrismart"
	}
	return &Publisher{
		cfg:    cfg,
		logger: logger.With("component", "mqtt"),
		now:    time.Now,
	}
}

// Start connects to the broker and returns once the first connection
// attempt has settled. autopaho keeps reconnecting in the background
// until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.availabilityTopic()
	clientID := p.cfg.ClientID
	if clientID == "" {
		clientID = p.cfg.TopicPrefix + "-assistant"
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm
	p.publish = func(ctx context.Context, msg *paho.Publish) error {
		_, err := cm.Publish(ctx, msg)
		return err
	}

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes "offline" to the availability topic and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

// BookingConfirmed publishes b to the booking's topic with QoS 1. The
// message is not retained: each booking is a one-off event.
func (p *Publisher) BookingConfirmed(ctx context.Context, conversationID string, b tools.Booking) error {
	if p.publish == nil {
		return ErrNotStarted
	}

	payload, err := json.Marshal(BookingEvent{
		ConversationID: conversationID,
		ConfirmedAt:    p.now().UTC(),
		Booking:        b,
	})
	if err != nil {
		return fmt.Errorf("marshal booking event: %w", err)
	}

	topic := BookingTopic(p.cfg.TopicPrefix, b.BookingID)
	if err := p.publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.logger.Info("booking event published",
		"topic", topic,
		"booking_id", b.BookingID,
		"item", b.ItemName,
	)
	return nil
}

// BookingTopic returns the topic a booking is published to.
func BookingTopic(prefix, bookingID string) string {
	return prefix + "/bookings/" + bookingID
}

func (p *Publisher) availabilityTopic() string {
	return p.cfg.TopicPrefix + "/availability"
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
	} else {
		p.logger.Debug("mqtt availability published", "status", status)
	}
}
