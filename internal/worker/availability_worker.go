package worker

import (
	"context"

	"github.com/xavierau/event-platform-sub006/internal/cache"
	"github.com/xavierau/event-platform-sub006/internal/queue"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

type AvailabilityWorker interface {
	// 訂閱 domain event，讓受影響票種的可用量快取失效
	Start(ctx context.Context) error
}

type AvailabilityWorkerImpl struct {
	cache cache.AvailabilityCache
	queue queue.EventQueue
}

func NewAvailabilityWorker(availabilityCache cache.AvailabilityCache, eventQueue queue.EventQueue) AvailabilityWorker {
	return &AvailabilityWorkerImpl{
		cache: availabilityCache,
		queue: eventQueue,
	}
}

func (w *AvailabilityWorkerImpl) Start(ctx context.Context) error {
	msgs, err := w.queue.Subscribe(ctx)
	if err != nil {
		return err
	}

	log := logger.WithComponent("availability_worker")

	go func() {
		for msg := range msgs {
			event := msg.Data
			if len(event.TicketDefinitionIDs) == 0 {
				msg.Ack()
				continue
			}

			if err := w.cache.Invalidate(ctx, event.TicketDefinitionIDs...); err != nil {
				// Redis 暫時不可用時重試，TTL 仍是最後防線
				log.Warn("failed to invalidate availability cache",
					zap.String("event_id", event.ID.String()),
					zap.String("type", string(event.Type)),
					zap.Error(err),
				)
				msg.Nack(true)
				continue
			}

			log.Debug("availability cache invalidated",
				zap.String("type", string(event.Type)),
				zap.Ints("ticket_definition_ids", event.TicketDefinitionIDs),
			)
			msg.Ack()
		}
	}()

	return nil
}
