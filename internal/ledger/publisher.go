package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/ursol-insurance/internal/metrics"
)

// TransferQueue is the durable queue carrying simulated transfer events.
const TransferQueue = "ledger.transfer"

// PublishTimeout bounds one AMQPSink.Publish call, dial included.
const PublishTimeout = 3 * time.Second

const dialTimeout = 2 * time.Second

// Sink receives every transfer recorded by a Publisher.
type Sink interface {
	Publish(ctx context.Context, ev TransferEvent) error
}

// Publisher decorates a Service and forwards each simulated transfer to a
// Sink. Sink failures are logged and never fail the transfer.
type Publisher struct {
	Service
	sink Sink
	log  *slog.Logger
}

// NewPublisher wraps next so that transfers are also sent to sink.
func NewPublisher(next Service, sink Sink, log *slog.Logger) *Publisher {
	return &Publisher{Service: next, sink: sink, log: log}
}

func (p *Publisher) SimulateTransfer(ctx context.Context, ev TransferEvent) (TransferEvent, error) {
	out, err := p.Service.SimulateTransfer(ctx, ev)
	if err != nil {
		return out, err
	}
	if err := p.sink.Publish(ctx, out); err != nil {
		metrics.RecordLedgerEvent("publish_failed")
		p.log.Warn("ledger event publish failed", "reference", out.Reference, "error", err)
		return out, nil
	}
	metrics.RecordLedgerEvent("published")
	return out, nil
}

// AMQPSink publishes transfer events to RabbitMQ, dialing a connection per
// publish. A publish never takes longer than PublishTimeout.
type AMQPSink struct {
	URL   string
	Queue string
}

// NewAMQPSink returns a sink publishing to TransferQueue on url.
func NewAMQPSink(url string) *AMQPSink {
	return &AMQPSink{URL: url, Queue: TransferQueue}
}

// Publish sends ev as a persistent JSON message to the default exchange,
// routed by queue name.
func (s *AMQPSink) Publish(ctx context.Context, ev TransferEvent) error {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	conn, err := amqp.DialConfig(s.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(dialTimeout),
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		s.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", s.Queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.Reference,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}
