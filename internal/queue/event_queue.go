package queue

import (
	"context"

	"github.com/xavierau/event-platform-sub006/internal/model"
)

type Delivery struct {
	Data *model.DomainEvent
	Ack  func()
	Nack func(requeue bool)
}

type EventQueue interface {
	// 發送 domain event 到隊列
	Publish(ctx context.Context, event *model.DomainEvent) error
	// 訂閱 domain event
	Subscribe(ctx context.Context) (<-chan Delivery, error)
}

type MemoryEventQueueImpl struct {
	// 使用 Go channel 來模擬 MQ 隊列
	ch chan *model.DomainEvent
}

func NewMemoryEventQueue(bufferSize int) EventQueue {
	return &MemoryEventQueueImpl{
		ch: make(chan *model.DomainEvent, bufferSize),
	}
}

// Publish 不會在請求路徑上無限阻塞，buffer 滿時等到 ctx 結束為止
func (q *MemoryEventQueueImpl) Publish(ctx context.Context, event *model.DomainEvent) error {
	select {
	case q.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryEventQueueImpl) Subscribe(ctx context.Context) (<-chan Delivery, error) {
	out := make(chan Delivery)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-q.ch:
				if !ok {
					return
				}

				d := Delivery{
					Data: event,
					Ack:  func() {},
					Nack: func(requeue bool) {
						if !requeue {
							return
						}
						select {
						case q.ch <- event:
						default:
						}
					},
				}

				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
