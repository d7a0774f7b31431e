package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	invdomain "orgsession/internal/invitation/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications as JSON to a topic keyed by invitation ID.
// A mail worker consumes the topic and performs the actual delivery.
type KafkaNotifier struct {
	writer messageWriter
}

// NewKafkaNotifier returns a notifier writing to topic on brokers.
func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka notifier: brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaNotifier{writer: w}, nil
}

func (k *KafkaNotifier) Notify(ctx context.Context, n invdomain.Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(n.InvitationID), Value: value})
}

// Close flushes and closes the writer.
func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// NewReader returns a consumer-group reader for the invitation topic.
func NewReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: time.Second,
	})
}

// Consume reads notifications from r and hands each to n until ctx ends.
// Undecodable messages and delivery failures are logged and skipped.
func Consume(ctx context.Context, r messageReader, n Notifier, logger zerolog.Logger) error {
	log := logger.With().Str("component", "notify_consumer").Logger()
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error().Err(err).Msg("kafka read failed")
			continue
		}
		var note invdomain.Notification
		if err := json.Unmarshal(msg.Value, &note); err != nil {
			log.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed notification")
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := n.Notify(sendCtx, note); err != nil {
			log.Error().Err(err).Str("invitation_id", note.InvitationID).Msg("delivery failed")
		}
		cancel()
	}
}
