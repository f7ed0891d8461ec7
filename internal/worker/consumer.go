package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"campaign-server/internal/metrics"
	"campaign-server/shared/messaging"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DeliveryHandler - обработчик одной задачи.
type DeliveryHandler interface {
	HandleDelivery(ctx context.Context, msg amqp091.Delivery) Disposition
}

// TaskConsumer читает очередь задач и обрабатывает до concurrency задач одновременно.
type TaskConsumer struct {
	conn        *amqp091.Connection
	queue       string
	concurrency int
	handler     DeliveryHandler
	logger      *zap.Logger
}

func NewTaskConsumer(conn *amqp091.Connection, queue string, concurrency int, handler DeliveryHandler, logger *zap.Logger) *TaskConsumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &TaskConsumer{
		conn:        conn,
		queue:       queue,
		concurrency: concurrency,
		handler:     handler,
		logger:      logger.Named("TaskConsumer"),
	}
}

// Run блокируется до отмены ctx или закрытия канала брокером и дожидается начатых задач.
func (c *TaskConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(c.queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare task queue %s: %w", c.queue, err)
	}
	c.logger.Info("Task queue declared", zap.String("queue", q.Name), zap.Int("messages", q.Messages), zap.Int("consumers", q.Consumers))

	// Брокер не отдаст больше задач, чем воркер готов обрабатывать.
	if err := ch.Qos(c.concurrency, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}
	c.logger.Info("Consumer started, waiting for campaign tasks...", zap.Int("concurrency", c.concurrency))

	c.serve(ctx, msgs)
	return nil
}

func (c *TaskConsumer) serve(ctx context.Context, msgs <-chan amqp091.Delivery) {
	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			log := c.logger.With(zap.Int("slot", slot))
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						log.Warn("Delivery channel closed by RabbitMQ")
						return
					}
					c.settle(log, msg, c.handler.HandleDelivery(ctx, msg))
				}
			}
		}(i)
	}
	wg.Wait()
	c.logger.Info("Task consumer stopped")
}

func (c *TaskConsumer) settle(log *zap.Logger, msg amqp091.Delivery, d Disposition) {
	var err error
	switch d {
	case Ack:
		err = msg.Ack(false)
	case Requeue:
		err = msg.Nack(false, true)
	default:
		// Повторный запуск снова тронул бы кредиты и провайдеров, поэтому без requeue.
		err = msg.Nack(false, false)
	}
	if err != nil {
		log.Error("Failed to settle delivery", zap.Uint64("delivery_tag", msg.DeliveryTag), zap.Int("disposition", int(d)), zap.Error(err))
	}
}

// CancelConsumer слушает fanout-обмен отмен. Каждый воркер получает свою временную очередь.
type CancelConsumer struct {
	conn     *amqp091.Connection
	exchange string
	runs     *RunRegistry
	logger   *zap.Logger
}

func NewCancelConsumer(conn *amqp091.Connection, exchange string, runs *RunRegistry, logger *zap.Logger) *CancelConsumer {
	return &CancelConsumer{conn: conn, exchange: exchange, runs: runs, logger: logger.Named("CancelConsumer")}
}

func (c *CancelConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(c.exchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", c.exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare cancel queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue '%s' to exchange '%s': %w", q.Name, c.exchange, err)
	}

	// Потеря отмены не критична: запуск просто доработает до конца.
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register cancel consumer: %w", err)
	}
	c.logger.Info("Cancel consumer started", zap.String("exchange", c.exchange), zap.String("queue", q.Name))

	c.serve(ctx, msgs)
	return nil
}

func (c *CancelConsumer) serve(ctx context.Context, msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Warn("Cancel channel closed by RabbitMQ")
				return
			}
			c.handle(msg.Body)
		}
	}
}

func (c *CancelConsumer) handle(body []byte) {
	var payload messaging.CampaignCancelPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.TaskID == "" {
		c.logger.Error("Failed to unmarshal cancel request", zap.Error(err), zap.ByteString("body", body))
		return
	}
	matched := c.runs.Cancel(payload.TaskID)
	metrics.CancelRequests.WithLabelValues(strconv.FormatBool(matched)).Inc()
	c.logger.Info("Cancel request received", zap.String("task_id", payload.TaskID), zap.Bool("matched_local_run", matched))
}
