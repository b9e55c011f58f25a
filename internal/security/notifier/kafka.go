// Package notifier publishes raised security signals to downstream consumers.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"reloop/internal/platform/kafka/producer"
	"reloop/internal/security/models"
)

const (
	DefaultTopic   = "reloop.security-signals"
	defaultTimeout = 5 * time.Second

	HeaderSignalType = "signal_type"
	HeaderSeverity   = "severity"
)

// Publisher is satisfied by *producer.Producer.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Kafka publishes each signal as a JSON record keyed by user ID, so one user's signals
// land on one partition in raise order.
type Kafka struct {
	publisher Publisher
	topic     string
	timeout   time.Duration
}

type Option func(*Kafka)

func WithTopic(topic string) Option {
	return func(k *Kafka) {
		if topic != "" {
			k.topic = topic
		}
	}
}

// WithTimeout bounds each publish.
func WithTimeout(d time.Duration) Option {
	return func(k *Kafka) {
		if d > 0 {
			k.timeout = d
		}
	}
}

func NewKafka(publisher Publisher, opts ...Option) *Kafka {
	k := &Kafka{
		publisher: publisher,
		topic:     DefaultTopic,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// SignalMessage is the record value.
type SignalMessage struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	ActivityID  string            `json:"activityId,omitempty"`
	Type        string            `json:"type"`
	Severity    string            `json:"severity"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Timestamp   time.Time         `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func NewSignalMessage(s *models.Signal) SignalMessage {
	msg := SignalMessage{
		ID:          s.ID.String(),
		UserID:      s.UserID.String(),
		Type:        string(s.Type),
		Severity:    string(s.Severity),
		Title:       s.Title,
		Description: s.Description,
		Timestamp:   s.Timestamp.UTC(),
		Metadata:    s.Metadata,
	}
	if !s.ActivityID.IsNil() {
		msg.ActivityID = s.ActivityID.String()
	}
	return msg
}

func (k *Kafka) Notify(ctx context.Context, signal *models.Signal) error {
	value, err := json.Marshal(NewSignalMessage(signal))
	if err != nil {
		return fmt.Errorf("encode signal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	err = k.publisher.Produce(ctx, &producer.Message{
		Topic: k.topic,
		Key:   []byte(signal.UserID.String()),
		Value: value,
		Headers: map[string]string{
			HeaderSignalType: string(signal.Type),
			HeaderSeverity:   string(signal.Severity),
		},
	})
	if err != nil {
		return fmt.Errorf("publish signal %s: %w", signal.ID, err)
	}
	return nil
}
