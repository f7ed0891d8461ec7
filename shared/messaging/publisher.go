package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrPublisherClosed - канал издателя уже закрыт.
var ErrPublisherClosed = errors.New("publisher channel is closed")

// Publisher отправляет JSON-сообщение в брокер.
type Publisher interface {
	Publish(ctx context.Context, payload interface{}, correlationID string) error
}

// AMQPChannel - часть *amqp091.Channel, нужная издателю.
type AMQPChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// RabbitMQPublisher публикует либо в именованную durable-очередь (через default exchange),
// либо в fanout exchange. Публикация сериализована: amqp-канал не потокобезопасен.
type RabbitMQPublisher struct {
	ch         AMQPChannel
	exchange   string
	routingKey string
	persistent bool
	logger     *zap.Logger
	mu         sync.Mutex
}

// NewQueuePublisher объявляет durable-очередь и публикует в нее постоянные сообщения.
func NewQueuePublisher(conn *amqp091.Connection, queue string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel for publisher: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	logger.Info("Queue publisher ready", zap.String("queue", queue))
	return NewChannelPublisher(ch, "", queue, true, logger.Named("QueuePublisher")), nil
}

// NewFanoutPublisher объявляет fanout exchange и публикует в него без сохранения на диск.
func NewFanoutPublisher(conn *amqp091.Connection, exchange string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("rabbitmq connection is nil")
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel for publisher: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare exchange '%s': %w", exchange, err)
	}
	logger.Info("Fanout publisher ready", zap.String("exchange", exchange))
	return NewChannelPublisher(ch, exchange, "", false, logger.Named("FanoutPublisher")), nil
}

// NewChannelPublisher собирает издателя поверх уже настроенного канала.
func NewChannelPublisher(ch AMQPChannel, exchange, routingKey string, persistent bool, logger *zap.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		ch:         ch,
		exchange:   exchange,
		routingKey: routingKey,
		persistent: persistent,
		logger:     logger,
	}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, payload interface{}, correlationID string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	msg := amqp091.Publishing{
		ContentType:   "application/json",
		CorrelationId: correlationID,
		Body:          body,
		Timestamp:     time.Now(),
	}
	if p.persistent {
		msg.DeliveryMode = amqp091.Persistent
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return ErrPublisherClosed
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, p.routingKey, false, false, msg); err != nil {
		p.logger.Error("Failed to publish message", zap.String("exchange", p.exchange), zap.String("routing_key", p.routingKey), zap.Error(err))
		return fmt.Errorf("failed to publish message: %w", err)
	}
	p.logger.Debug("Message published", zap.String("correlation_id", correlationID), zap.Int("size_bytes", len(body)))
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	return err
}
