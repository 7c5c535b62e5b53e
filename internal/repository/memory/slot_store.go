// Package memory хранит слоты в памяти процесса.
// Повторяет ограничения схемы schedule_slots: уникальность начала и запрет пересечений
// в пределах оператора и даты. Используется в тестах и при STORAGE=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
)

type SlotStore struct {
	mu    sync.RWMutex
	slots map[string]*model.ScheduleSlot
}

func NewSlotStore() *SlotStore {
	return &SlotStore{slots: make(map[string]*model.ScheduleSlot)}
}

// Insert сохраняет слот, если он не пересекается с соседями
func (s *SlotStore) Insert(ctx context.Context, slot *model.ScheduleSlot) (*model.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slots[slot.ID]; ok {
		return nil, &model.SlotConflictError{
			OperatorID: slot.OperatorID, Date: slot.Date,
			StartTime: slot.StartTime, EndTime: slot.EndTime, ConflictingSlotID: slot.ID,
		}
	}
	if other := s.overlapLocked(slot.OperatorID, slot.Date, slot.StartTime, slot.EndTime, ""); other != nil {
		return nil, &model.SlotConflictError{
			OperatorID: slot.OperatorID, Date: slot.Date,
			StartTime: slot.StartTime, EndTime: slot.EndTime, ConflictingSlotID: other.ID,
		}
	}

	stored := slot.Clone()
	stored.Version = 1
	stored.UpdatedAt = stored.CreatedAt
	s.slots[stored.ID] = stored

	return stored.Clone(), nil
}

// FindByID получает слот по ID
func (s *SlotStore) FindByID(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return slot.Clone(), nil
}

// FindByOperatorAndDate все слоты оператора на дату по возрастанию начала
func (s *SlotStore) FindByOperatorAndDate(ctx context.Context, operatorID, date string) ([]*model.ScheduleSlot, error) {
	return s.FindByOperatorAndDateRange(ctx, operatorID, date, date)
}

// FindByOperatorAndDateRange все слоты оператора в диапазоне дат включительно
func (s *SlotStore) FindByOperatorAndDateRange(ctx context.Context, operatorID, dateFrom, dateTo string) ([]*model.ScheduleSlot, error) {
	return s.collect(ctx, func(slot *model.ScheduleSlot) bool {
		return slot.OperatorID == operatorID && slot.Date >= dateFrom && slot.Date <= dateTo
	}, 0)
}

// FindAvailablePage страница свободных слотов после курсора
func (s *SlotStore) FindAvailablePage(ctx context.Context, operatorID, dateFrom, dateTo string, after *model.Cursor, limit int) ([]*model.ScheduleSlot, error) {
	return s.collect(ctx, func(slot *model.ScheduleSlot) bool {
		if slot.OperatorID != operatorID || slot.Status != model.SlotStatusAvailable {
			return false
		}
		if slot.Date < dateFrom || slot.Date > dateTo {
			return false
		}
		if after != nil && !afterCursor(slot, after) {
			return false
		}
		return true
	}, limit)
}

// UpdateStatus условно меняет статус: только если текущий равен expected
func (s *SlotStore) UpdateStatus(ctx context.Context, slotID string, expected, next model.SlotStatus, bookingRef *string, at time.Time) (*model.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if slot.Status != expected {
		return nil, &model.StaleStateError{SlotID: slotID, Expected: expected, Actual: slot.Status}
	}

	slot.Status = next
	slot.BookingRef = nil
	if bookingRef != nil {
		ref := *bookingRef
		slot.BookingRef = &ref
	}
	slot.Version++
	slot.UpdatedAt = at

	return slot.Clone(), nil
}

// UpdateTimeRange переносит слот; условие по статусу и версии
func (s *SlotStore) UpdateTimeRange(ctx context.Context, slotID string, expected model.SlotStatus, expectedVersion int64, start, end string, at time.Time) (*model.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return nil, model.ErrNotFound
	}
	if slot.Status != expected || slot.Version != expectedVersion {
		return nil, &model.StaleStateError{SlotID: slotID, Expected: expected, Actual: slot.Status}
	}
	if other := s.overlapLocked(slot.OperatorID, slot.Date, start, end, slot.ID); other != nil {
		return nil, &model.SlotConflictError{
			OperatorID: slot.OperatorID, Date: slot.Date,
			StartTime: start, EndTime: end, ConflictingSlotID: other.ID,
		}
	}

	slot.StartTime = start
	slot.EndTime = end
	slot.Version++
	slot.UpdatedAt = at

	return slot.Clone(), nil
}

// Delete удаляет слот, если его статус всё ещё expected
func (s *SlotStore) Delete(ctx context.Context, slotID string, expected model.SlotStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return model.ErrNotFound
	}
	if slot.Status != expected {
		return &model.StaleStateError{SlotID: slotID, Expected: expected, Actual: slot.Status}
	}

	delete(s.slots, slotID)
	return nil
}

func (s *SlotStore) overlapLocked(operatorID, date, start, end, excludeID string) *model.ScheduleSlot {
	for _, other := range s.slots {
		if other.ID == excludeID || other.OperatorID != operatorID || other.Date != date {
			continue
		}
		if model.Overlaps(start, end, other.StartTime, other.EndTime) {
			return other
		}
	}
	return nil
}

func (s *SlotStore) collect(ctx context.Context, match func(*model.ScheduleSlot) bool, limit int) ([]*model.ScheduleSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []*model.ScheduleSlot
	for _, slot := range s.slots {
		if match(slot) {
			out = append(out, slot.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func afterCursor(slot *model.ScheduleSlot, c *model.Cursor) bool {
	if slot.Date != c.Date {
		return slot.Date > c.Date
	}
	return slot.StartTime > c.StartTime
}
