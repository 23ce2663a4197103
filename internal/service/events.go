package service

import (
	"context"
	"time"

	"github.com/xavierau/event-platform-sub006/internal/model"
	"github.com/xavierau/event-platform-sub006/internal/queue"
	"github.com/xavierau/event-platform-sub006/pkg/logger"
	"go.uber.org/zap"
)

const publishTimeout = 2 * time.Second

// publishAfterCommit 只能在交易 commit 之後呼叫；失敗只記 log，不影響已完成的操作
func publishAfterCommit(ctx context.Context, eventQueue queue.EventQueue, event *model.DomainEvent) {
	if eventQueue == nil || event == nil {
		return
	}

	// 使用者斷線不應該讓事件丟失
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := eventQueue.Publish(pubCtx, event); err != nil {
		logger.WithComponent("events").Warn("failed to publish domain event",
			zap.String("event_id", event.ID.String()),
			zap.String("type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func ticketDefinitionIDs(allocations []*model.HoldAllocation) []int {
	ids := make([]int, 0, len(allocations))
	for _, a := range allocations {
		ids = append(ids, a.TicketDefinitionID)
	}
	return ids
}
