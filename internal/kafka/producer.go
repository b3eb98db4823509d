package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event names.
const (
	EventTicketCreated = "ticket.created"
	EventTicketUpdated = "ticket.updated"
	EventTicketDeleted = "ticket.deleted"
	EventTicketSynced  = "ticket.synced"
)

// TicketEvent is the message body; the message key is the ticket id.
type TicketEvent struct {
	Event      string    `json:"event"`
	TicketID   string    `json:"ticket_id"`
	Status     string    `json:"status,omitempty"`
	Technician string    `json:"technician,omitempty"`
	Revenue    int64     `json:"revenue"`
	Debt       int64     `json:"debt"`
	Actor      string    `json:"actor,omitempty"`
	At         time.Time `json:"at"`
}

// TicketEventProducer lets tests swap the broker out.
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, ev TicketEvent)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes ticket events to a topic. Failures are logged and dropped.
type Producer struct {
	writer messageWriter
	log    *zap.Logger
}

// NewProducer returns a no-op producer when brokers or topic are empty.
func NewProducer(brokers []string, topic string, log *zap.Logger) *Producer {
	if log == nil {
		log = zap.NewNop()
	}
	if len(brokers) == 0 || topic == "" {
		return &Producer{log: log}
	}
	return &Producer{
		log: log,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Producer) Enabled() bool { return p.writer != nil }

func (p *Producer) ProduceTicketEvent(ctx context.Context, ev TicketEvent) {
	if p.writer == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("kafka: marshal ticket event", zap.Error(err))
		return
	}
	msg := kafka.Message{Key: []byte(ev.TicketID), Value: body}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("kafka: write ticket event",
			zap.String("event", ev.Event),
			zap.String("ticket_id", ev.TicketID),
			zap.Error(err))
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092".
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
