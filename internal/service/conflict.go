package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
)

// ConflictDetector ищет пересечения кандидата с уже существующими слотами оператора.
// Проверка не атомарна со вставкой: окончательно пересечения отсекает ограничение БД.
type ConflictDetector struct {
	repo SlotRepository
}

func NewConflictDetector(repo SlotRepository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// HasConflict сообщает, пересекается ли [start,end) с каким-либо слотом оператора на дату
func (d *ConflictDetector) HasConflict(ctx context.Context, operatorID, date, start, end, excludeSlotID string) (bool, error) {
	slot, err := d.FindConflict(ctx, operatorID, date, start, end, excludeSlotID)
	if err != nil {
		return false, err
	}
	return slot != nil, nil
}

// FindConflict возвращает первый пересекающийся слот или nil
func (d *ConflictDetector) FindConflict(ctx context.Context, operatorID, date, start, end, excludeSlotID string) (*model.ScheduleSlot, error) {
	siblings, err := d.repo.FindByOperatorAndDate(ctx, operatorID, date)
	if err != nil {
		return nil, fmt.Errorf("load operator day: %w", err)
	}

	for _, other := range siblings {
		if other.ID == excludeSlotID || !other.Status.Valid() {
			continue
		}
		// соседи отсортированы по началу: дальше пересечений нет
		if other.StartTime >= end {
			break
		}
		if model.Overlaps(start, end, other.StartTime, other.EndTime) {
			return other, nil
		}
	}

	return nil, nil
}
