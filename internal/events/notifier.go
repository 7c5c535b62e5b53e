package events

import (
	"context"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"go.uber.org/zap"
)

// Notifier публикует события после успешных операций транспорта.
// Переход уже зафиксирован в БД, поэтому ошибка публикации только логируется.
type Notifier struct {
	publisher Publisher
	now       func() time.Time
	logger    *zap.Logger
}

func NewNotifier(publisher Publisher, logger *zap.Logger) *Notifier {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Notifier{publisher: publisher, now: time.Now, logger: logger}
}

// SlotChanged отправляет событие eventType по состоянию slot
func (n *Notifier) SlotChanged(ctx context.Context, eventType string, slot *model.ScheduleSlot) {
	if n == nil || slot == nil {
		return
	}

	ev := NewSlotEvent(eventType, slot, n.now())
	if err := n.publisher.Publish(ctx, ev); err != nil {
		n.logger.Error("Failed to publish slot event",
			zap.String("type", eventType),
			zap.String("slot_id", slot.ID),
			zap.Error(err),
		)
	}
}
