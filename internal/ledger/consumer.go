package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iliyamo/ursol-insurance/internal/metrics"
)

// NewRotatingLog opens the audit log at path, rotating at 10 MB and keeping
// five compressed backups for 30 days.
func NewRotatingLog(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
}

// AuditWriter appends one line per consumed transfer event. Writes are
// serialized so lines never interleave.
type AuditWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewAuditWriter wraps w, typically a lumberjack.Logger.
func NewAuditWriter(w io.Writer) *AuditWriter { return &AuditWriter{w: w} }

// Handle decodes a message body and appends its audit line.
func (a *AuditWriter) Handle(body []byte) error {
	var ev TransferEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Reference == "" {
		return ErrNoReference
	}
	line := fmt.Sprintf("[%s] Transfer observed | reference=%s | from=%s | to=%s | amount=%s %s | token=%s | tx=%s | block=%d\n",
		ev.ObservedAt.UTC().Format(time.RFC3339), ev.Reference, ev.From, ev.To, ev.Amount, ev.Currency,
		ev.Token, ev.TxHash, ev.BlockNumber)

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := io.WriteString(a.w, line); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// StartTransferConsumer consumes TransferQueue until ctx is cancelled,
// handing each message to audit. Broker failures trigger a reconnect with
// exponential backoff capped at 30s. Messages that fail to decode are
// rejected without requeue.
func StartTransferConsumer(ctx context.Context, url string, audit *AuditWriter, log *slog.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn("ledger consumer: dial failed", "error", err, "retry_in", backoff)
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, audit, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn("ledger consumer: consume loop ended, reconnecting", "error", err)
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, audit *AuditWriter, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("ledger consumer: set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(TransferQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(TransferQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := audit.Handle(d.Body); err != nil {
				log.Error("ledger consumer: handle message failed", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			metrics.RecordLedgerEvent("consumed")
			_ = d.Ack(false)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
