package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	EventStateSync    = "state_sync"
	EventNotification = "notification"
)

// Envelope is the Kafka payload of a forwarded signal.
type Envelope struct {
	Type         string               `json:"type"`
	Session      string               `json:"session"`
	State        *domain.StateSync    `json:"state,omitempty"`
	Notification *domain.Notification `json:"notification,omitempty"`
	PublishedAt  time.Time            `json:"published_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink forwards bus signals to a Kafka topic. Signals are queued so a slow broker
// never blocks a store mutation; when the queue is full the signal is dropped and logged.
type KafkaSink struct {
	writer messageWriter
	queue  chan kafka.Message
	log    *slog.Logger
	unsubs []func()
}

func NewKafkaSink(topic string, log *slog.Logger, brokers ...string) *KafkaSink {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafkaSink(w, 1024, log)
}

func newKafkaSink(w messageWriter, buffer int, log *slog.Logger) *KafkaSink {
	return &KafkaSink{
		writer: w,
		queue:  make(chan kafka.Message, buffer),
		log:    log,
	}
}

// Attach subscribes the sink to both signal kinds of the bus.
func (k *KafkaSink) Attach(bus *Bus) {
	k.unsubs = append(k.unsubs,
		bus.SubscribeState(func(s domain.StateSync) {
			k.enqueue(Envelope{Type: EventStateSync, Session: s.Session, State: &s, PublishedAt: time.Now()})
		}),
		bus.SubscribeNotifications(func(n domain.Notification) {
			k.enqueue(Envelope{Type: EventNotification, Session: n.Session, Notification: &n, PublishedAt: time.Now()})
		}),
	)
}

func (k *KafkaSink) enqueue(env Envelope) {
	value, err := json.Marshal(env)
	if err != nil {
		k.log.Error("failed to encode event", slog.Any("error", err))
		return
	}
	msg := kafka.Message{Key: []byte(env.Session), Value: value}
	select {
	case k.queue <- msg:
	default:
		k.log.Warn("event queue full, dropping event",
			slog.String("type", env.Type), slog.String("session", env.Session))
	}
}

// Run drains the queue until ctx is cancelled.
func (k *KafkaSink) Run(ctx context.Context) {
	for {
		select {
		case msg := <-k.queue:
			k.publish(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (k *KafkaSink) publish(ctx context.Context, msg kafka.Message) {
	batch := []kafka.Message{msg}
	for len(batch) < 100 {
		select {
		case m := <-k.queue:
			batch = append(batch, m)
			continue
		default:
		}
		break
	}

	if err := k.writer.WriteMessages(ctx, batch...); err != nil {
		k.log.Error("failed to publish events", slog.Int("count", len(batch)), slog.Any("error", err))
	}
}

func (k *KafkaSink) Close() {
	for _, unsub := range k.unsubs {
		unsub()
	}
	if err := k.writer.Close(); err != nil {
		k.log.Error("error closing kafka writer", slog.Any("error", err))
	}
}
