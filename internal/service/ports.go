package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
)

// SlotRepository граница хранения слотов.
// UpdateStatus, UpdateTimeRange и Delete условные: при несовпадении ожидаемого
// состояния возвращают *model.StaleStateError, при отсутствии слота model.ErrNotFound.
// Insert возвращает *model.SlotConflictError при нарушении уникальности или пересечении.
type SlotRepository interface {
	FindByID(ctx context.Context, slotID string) (*model.ScheduleSlot, error)
	FindByOperatorAndDate(ctx context.Context, operatorID, date string) ([]*model.ScheduleSlot, error)
	FindByOperatorAndDateRange(ctx context.Context, operatorID, dateFrom, dateTo string) ([]*model.ScheduleSlot, error)
	FindAvailablePage(ctx context.Context, operatorID, dateFrom, dateTo string, after *model.Cursor, limit int) ([]*model.ScheduleSlot, error)
	Insert(ctx context.Context, slot *model.ScheduleSlot) (*model.ScheduleSlot, error)
	UpdateStatus(ctx context.Context, slotID string, expected, next model.SlotStatus, bookingRef *string, at time.Time) (*model.ScheduleSlot, error)
	UpdateTimeRange(ctx context.Context, slotID string, expected model.SlotStatus, expectedVersion int64, start, end string, at time.Time) (*model.ScheduleSlot, error)
	Delete(ctx context.Context, slotID string, expected model.SlotStatus) error
}

// AvailabilityCache кэш списка свободных слотов оператора.
// Get возвращает ключ, под которым Set сохранит результат чтения из БД: ключ
// фиксируется до чтения, чтобы запись после Invalidate не попала в новое поколение.
// Пустой ключ означает "не сохранять". Ошибки кэша не ломают чтение.
type AvailabilityCache interface {
	Get(ctx context.Context, operatorID, dateFrom, dateTo string) (slots []*model.ScheduleSlot, key string, ok bool)
	Set(ctx context.Context, key string, slots []*model.ScheduleSlot)
	Invalidate(ctx context.Context, operatorID string)
}
