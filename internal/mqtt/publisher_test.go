package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/agrismart/assistant/internal/config"
	"github.com/agrismart/assistant/internal/tools"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBookingTopic(t *testing.T) {
	if got := BookingTopic("agrismart", "RNT-4821"); got != "agrismart/bookings/RNT-4821" {
		t.Errorf("BookingTopic() = %q", got)
	}
}

func TestNew_DefaultPrefix(t *testing.T) {
	p := New(config.MQTTConfig{Broker: "mqtt://localhost:1883"}, nil)
	if got := p.availabilityTopic(); got != "agrismart/availability" {
		t.Errorf("availabilityTopic() = %q", got)
	}
}

func TestBookingConfirmed_NotStarted(t *testing.T) {
	p := New(config.MQTTConfig{Broker: "mqtt://localhost:1883"}, discardLogger())
	err := p.BookingConfirmed(context.Background(), "c", tools.Booking{BookingID: "RNT-1"})
	if !errors.Is(err, ErrNotStarted) {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
}

func TestBookingConfirmed_Publishes(t *testing.T) {
	p := New(config.MQTTConfig{TopicPrefix: "farm"}, discardLogger())
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	var got []*paho.Publish
	p.publish = func(_ context.Context, msg *paho.Publish) error {
		got = append(got, msg)
		return nil
	}

	booking := tools.Booking{
		Success:   true,
		BookingID: "RNT-4821",
		ItemID:    2,
		ItemName:  "Drone",
		Duration:  5,
	}
	if err := p.BookingConfirmed(context.Background(), "farm-7", booking); err != nil {
		t.Fatalf("BookingConfirmed() error: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("published %d messages, want 1", len(got))
	}
	msg := got[0]
	if msg.Topic != "farm/bookings/RNT-4821" {
		t.Errorf("Topic = %q", msg.Topic)
	}
	if msg.QoS != 1 || msg.Retain {
		t.Errorf("QoS/Retain = %d/%v, want 1/false", msg.QoS, msg.Retain)
	}

	var ev BookingEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if ev.ConversationID != "farm-7" || !ev.ConfirmedAt.Equal(fixed) {
		t.Errorf("event = %+v", ev)
	}
	if ev.Booking.ItemName != "Drone" || ev.Booking.Duration != 5 {
		t.Errorf("booking = %+v", ev.Booking)
	}
}

func TestBookingConfirmed_PublishError(t *testing.T) {
	p := New(config.MQTTConfig{}, discardLogger())
	broker := errors.New("connection lost")
	p.publish = func(context.Context, *paho.Publish) error { return broker }

	err := p.BookingConfirmed(context.Background(), "c", tools.Booking{BookingID: "RNT-9"})
	if !errors.Is(err, broker) {
		t.Fatalf("err = %v, want wrapped broker error", err)
	}
}

func TestStart_BadBrokerURL(t *testing.T) {
	p := New(config.MQTTConfig{Broker: "://nope"}, discardLogger())
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail for an unparsable broker URL")
	}
}

func TestStop_NotStarted(t *testing.T) {
	p := New(config.MQTTConfig{}, discardLogger())
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop() = %v, want nil", err)
	}
}
