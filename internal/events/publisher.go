package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — единственный exchange воркера, topic.
const Exchange = "scriptum.events"

// Типы событий (совпадают с routing key).
const (
	TypeRowProcessed = "row.processed"
	TypeRowFailed    = "row.failed"
)

// Event — конверт события.
type Event struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Timestamp time.Time  `json:"timestamp"`
	Payload   RowPayload `json:"payload"`
}

// RowPayload — данные о строке в событии.
type RowPayload struct {
	RunID     string `json:"run_id"`
	Tab       string `json:"tab"`
	Row       int    `json:"row"`
	Status    string `json:"status"`
	Iteration int    `json:"iteration,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Publisher публикует события строк. Nil-Publisher безопасен:
// все публикации становятся no-op (брокер не сконфигурирован).
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher поверх соединения.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// declareExchange объявляет exchange событий. Идемпотентно.
func declareExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}
	return nil
}

// RowProcessed публикует событие об успешно обработанной строке.
func (p *Publisher) RowProcessed(ctx context.Context, payload RowPayload) {
	p.publish(ctx, TypeRowProcessed, payload)
}

// RowFailed публикует событие о строке, завершившейся ошибкой.
func (p *Publisher) RowFailed(ctx context.Context, payload RowPayload) {
	p.publish(ctx, TypeRowFailed, payload)
}

// publish отправляет событие best-effort: сбой публикации логируется,
// но не влияет на обработку строк.
func (p *Publisher) publish(ctx context.Context, eventType string, payload RowPayload) {
	if p == nil || p.conn == nil {
		return
	}

	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshal event", "type", eventType, "error", err)
		return
	}

	ch, err := p.conn.getChannel()
	if err != nil {
		p.logger.Warn("publish event", "type", eventType, "error", err)
		return
	}

	err = ch.PublishWithContext(ctx,
		Exchange,
		eventType, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		p.logger.Warn("publish event", "type", eventType, "error", err)
		return
	}

	p.logger.Debug("event published", "type", eventType, "tab", payload.Tab, "row", payload.Row)
}
