package events

import (
	"context"
	"encoding/json"

	"github.com/fathima-sithara/chat-core/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Producer emits a message.created event after every accepted send, for
// downstream consumers outside this service. Delivery here is best-effort:
// a broker error never fails the send that triggered it.
type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

type messageCreated struct {
	Message domain.Message `json:"message"`
}

func (p *Producer) PublishMessageCreated(ctx context.Context, m domain.Message) error {
	b, err := json.Marshal(messageCreated{Message: m})
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		// key by pair so one conversation stays on one partition, in order
		Key:   []byte(pairTopicKey(m.FromID, m.ToID)),
		Value: b,
		Time:  m.Timestamp,
	})
}

func pairTopicKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
