package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger, now: time.Now}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishFlowTriggered ставит flow в очередь на выполнение.
// Потребитель: runner.
func (p *Publisher) PublishFlowTriggered(ctx context.Context, payload FlowTriggeredPayload) error {
	msg, err := NewMessage(MessageTypeFlowTriggered, payload, p.now())
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeFlows, RoutingKeyTriggered, msg)
}

// PublishExecutionCompleted публикует итог выполнения.
func (p *Publisher) PublishExecutionCompleted(ctx context.Context, payload ExecutionCompletedPayload) error {
	msg, err := NewMessage(MessageTypeExecutionCompleted, payload, p.now())
	if err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeExecutions, RoutingKeyCompleted, msg)
}
