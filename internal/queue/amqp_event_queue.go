package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

const amqpPrefetchCount = 50

// AMQPEventQueueImpl RabbitMQ 版 EventQueue，使用 default exchange 直接投遞到 durable queue
type AMQPEventQueueImpl struct {
	conn      *amqp.Connection
	queueName string

	mu    sync.Mutex
	pubCh *amqp.Channel
}

func NewAMQPEventQueue(url, queueName string) (*AMQPEventQueueImpl, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}

	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	return &AMQPEventQueueImpl{
		conn:      conn,
		queueName: queueName,
		pubCh:     ch,
	}, nil
}

func (q *AMQPEventQueueImpl) Publish(ctx context.Context, event *model.DomainEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	// amqp.Channel 不可併發 publish
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.pubCh.PublishWithContext(ctx, "", q.queueName, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (q *AMQPEventQueueImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}

	if err := ch.Qos(amqpPrefetchCount, 0, false); err != nil {
		logger.WithComponent("mq").Warn("set QoS failed", zap.Error(err))
	}

	msgs, err := ch.Consume(q.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue consume: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer func() { _ = ch.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.WithComponent("mq").Warn("amqp deliveries channel closed")
					return
				}

				var event model.DomainEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					logger.WithComponent("mq").Warn("unmarshal event failed", zap.String("message_id", msg.MessageId), zap.Error(err))
					_ = msg.Nack(false, false)
					continue
				}

				d := Delivery{
					Data: &event,
					Ack: func() {
						if err := msg.Ack(false); err != nil {
							logger.WithComponent("mq").Error("amqp ack failed", zap.String("message_id", msg.MessageId), zap.Error(err))
						}
					},
					Nack: func(requeue bool) {
						if err := msg.Nack(false, requeue); err != nil {
							logger.WithComponent("mq").Error("amqp nack failed", zap.String("message_id", msg.MessageId), zap.Error(err))
						}
					},
				}

				select {
				case out <- d:
				case <-ctx.Done():
					_ = msg.Nack(false, true)
					return
				}
			}
		}
	}()

	return out, nil
}

func (q *AMQPEventQueueImpl) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pubCh != nil {
		_ = q.pubCh.Close()
	}
	return q.conn.Close()
}
