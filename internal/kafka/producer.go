package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/vendhub/marketplace/internal/event"
)

// Producer publishes event envelopes to a single Kafka topic through a
// buffered inbox so request handlers never block on the broker.
type Producer struct {
	w       *kafka.Writer
	name    string
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic, producerName string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        true,
		},
		name:    producerName,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.drain()
				_ = p.w.Close()
				close(p.closeCh)
				return
			case m := <-p.inbox:
				p.write(m)
			}
		}
	}()
}

// drain flushes whatever is buffered at shutdown. The inbox stays open so a
// straggling Publish cannot panic; late messages are simply dropped.
func (p *Producer) drain() {
	for {
		select {
		case m := <-p.inbox:
			p.write(m)
		default:
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		log.Error().Err(err).Str("key", string(m.Key)).Msg("kafka: failed to write message")
	}
}

// Publish implements event.Publisher.
func (p *Producer) Publish(ctx context.Context, eventType string, key string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("kafka: failed to marshal event payload")
		return
	}

	eventID, err := uuid.NewV4()
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("kafka: failed to generate event id")
		return
	}

	env := event.Envelope{
		EventID:    eventID.String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Producer:   p.name,
		Payload:    raw,
	}

	value, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("kafka: failed to marshal event envelope")
		return
	}

	select {
	case p.inbox <- kafka.Message{Key: []byte(key), Value: value, Time: time.Now()}:
	default:
		log.Warn().Str("event_type", eventType).Msg("kafka: inbox full, dropping event")
	}
}

// WaitClosed blocks until the flush goroutine has finished.
func (p *Producer) WaitClosed() { <-p.closeCh }
