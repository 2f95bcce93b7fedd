package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zapflow/zapflow/logger"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// AmqpEmitter publishes lifecycle events to a topic exchange, routing key =
// event name.
type AmqpEmitter struct {
	conn     *amqp.Connection
	exchange string
}

var _ Emitter = new(AmqpEmitter)

func NewAmqpEmitter(url, exchange string) (*AmqpEmitter, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	return &AmqpEmitter{conn: conn, exchange: exchange}, nil
}

func (e *AmqpEmitter) Emit(name string, payload map[string]any) {
	body, err := json.Marshal(Event{Name: name, OccurredAt: time.Now(), Payload: payload})
	if err != nil {
		logger.Error("error encoding event", zap.String("event", name), zap.Error(err))
		return
	}
	ch, err := e.conn.Channel()
	if err != nil {
		logger.Warn("event dropped, no amqp channel", zap.String("event", name), zap.Error(err))
		return
	}
	defer ch.Close()
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, e.exchange, name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		logger.Warn("event dropped", zap.String("event", name), zap.Error(err))
	}
}

func (e *AmqpEmitter) Close() error {
	return e.conn.Close()
}
