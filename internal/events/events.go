package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	UserRegistered = "user.registered"
	UserLoggedIn   = "user.logged_in"
	UserLoggedOut  = "user.logged_out"
	UserDeleted    = "user.deleted"
	UserUndeleted  = "user.undeleted"
)

const publishTimeout = 5 * time.Second

// Event describes a change in a user account's lifecycle.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON, keyed by user id so that one user's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
	log    logrus.FieldLogger
}

func NewKafkaPublisher(brokers []string, topic string, log logrus.FieldLogger) *KafkaPublisher {
	return NewKafkaPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, log)
}

func NewKafkaPublisherWithWriter(w MessageWriter, log logrus.FieldLogger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log.WithField("component", "events")}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: data,
		Time:  event.OccurredAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write failed: %w", err)
	}

	p.log.WithFields(logrus.Fields{"type": event.Type, "user_id": event.UserID}).Debug("event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// New picks a Kafka publisher when brokers are configured and a no-op one otherwise.
func New(brokers []string, topic string, log logrus.FieldLogger) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic, log)
}
