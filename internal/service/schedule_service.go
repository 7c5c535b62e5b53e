package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventBook    = "book"
	EventCancel  = "cancel"
	EventBlock   = "block"
	EventUnblock = "unblock"
)

type transition struct {
	event string
	from  model.SlotStatus
	to    model.SlotStatus
}

var transitions = map[string]transition{
	EventBook:    {EventBook, model.SlotStatusAvailable, model.SlotStatusBooked},
	EventCancel:  {EventCancel, model.SlotStatusBooked, model.SlotStatusAvailable},
	EventBlock:   {EventBlock, model.SlotStatusAvailable, model.SlotStatusBlocked},
	EventUnblock: {EventUnblock, model.SlotStatusBlocked, model.SlotStatusAvailable},
}

// IsKnownEvent true для book, cancel, block и unblock
func IsKnownEvent(event string) bool {
	_, ok := transitions[event]
	return ok
}

// ScheduleService единственный писатель статусов слотов
type ScheduleService struct {
	repo     SlotRepository
	detector *ConflictDetector
	cache    AvailabilityCache
	now      func() time.Time
	logger   *zap.Logger
}

// NewScheduleService создаёт сервис; cache может быть nil, now по умолчанию time.Now
func NewScheduleService(
	repo SlotRepository,
	cache AvailabilityCache,
	now func() time.Time,
	logger *zap.Logger,
) *ScheduleService {
	if now == nil {
		now = time.Now
	}
	return &ScheduleService{
		repo:     repo,
		detector: NewConflictDetector(repo),
		cache:    cache,
		now:      now,
		logger:   logger,
	}
}

// CreateSlot создаёт слот AVAILABLE или BLOCKED, если он не пересекается с соседями
func (s *ScheduleService) CreateSlot(ctx context.Context, operatorID, date, startTime, endTime string, status model.SlotStatus) (*model.ScheduleSlot, error) {
	slot, err := model.ValidateSlot(model.SlotInput{
		OperatorID: operatorID,
		Date:       date,
		StartTime:  startTime,
		EndTime:    endTime,
		Status:     string(status),
	})
	if err != nil {
		return nil, err
	}

	// BOOKED появляется только через бронирование
	if slot.Status == model.SlotStatusBooked {
		return nil, &model.ValidationError{Field: "status", Reason: "new slots must be AVAILABLE or BLOCKED"}
	}

	conflicting, err := s.detector.FindConflict(ctx, slot.OperatorID, slot.Date, slot.StartTime, slot.EndTime, "")
	if err != nil {
		return nil, fmt.Errorf("check conflicts: %w", err)
	}
	if conflicting != nil {
		return nil, &model.SlotConflictError{
			OperatorID:        slot.OperatorID,
			Date:              slot.Date,
			StartTime:         slot.StartTime,
			EndTime:           slot.EndTime,
			ConflictingSlotID: conflicting.ID,
		}
	}

	now := s.now().UTC()
	slot.ID = uuid.NewString()
	slot.CreatedAt = now
	slot.UpdatedAt = now

	created, err := s.repo.Insert(ctx, slot)
	if err != nil {
		if errors.Is(err, model.ErrSlotConflict) {
			s.logger.Warn("Slot conflict detected by storage",
				zap.String("operator_id", slot.OperatorID),
				zap.String("date", slot.Date),
				zap.String("start_time", slot.StartTime),
			)
			return nil, err
		}
		return nil, fmt.Errorf("insert slot: %w", err)
	}

	s.invalidate(ctx, created.OperatorID)

	s.logger.Info("Slot created",
		zap.String("slot_id", created.ID),
		zap.String("operator_id", created.OperatorID),
		zap.String("date", created.Date),
		zap.String("start_time", created.StartTime),
		zap.String("end_time", created.EndTime),
		zap.String("status", string(created.Status)),
	)

	return created, nil
}

// BookSlot бронирует свободный слот; пустой bookingRef заменяется сгенерированным
func (s *ScheduleService) BookSlot(ctx context.Context, slotID, bookingRef string) (*model.ScheduleSlot, error) {
	if bookingRef == "" {
		bookingRef = uuid.NewString()
	}
	return s.apply(ctx, slotID, transitions[EventBook], &bookingRef)
}

// CancelBooking освобождает забронированный слот обратно в AVAILABLE
func (s *ScheduleService) CancelBooking(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	return s.apply(ctx, slotID, transitions[EventCancel], nil)
}

// BlockSlot закрывает свободный слот оператором
func (s *ScheduleService) BlockSlot(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	return s.apply(ctx, slotID, transitions[EventBlock], nil)
}

// UnblockSlot возвращает заблокированный слот в AVAILABLE
func (s *ScheduleService) UnblockSlot(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	return s.apply(ctx, slotID, transitions[EventUnblock], nil)
}

// Transition применяет событие по имени (book, cancel, block, unblock)
func (s *ScheduleService) Transition(ctx context.Context, slotID, event string) (*model.ScheduleSlot, error) {
	switch event {
	case EventBook:
		return s.BookSlot(ctx, slotID, "")
	case EventCancel:
		return s.CancelBooking(ctx, slotID)
	case EventBlock:
		return s.BlockSlot(ctx, slotID)
	case EventUnblock:
		return s.UnblockSlot(ctx, slotID)
	}
	return nil, &model.ValidationError{Field: "event", Reason: "must be one of book, cancel, block, unblock"}
}

// GetSlot получает слот по ID
func (s *ScheduleService) GetSlot(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	if !validSlotID(slotID) {
		return nil, model.ErrNotFound
	}
	return s.repo.FindByID(ctx, slotID)
}

// ListSchedule все слоты оператора за период, в любом статусе
func (s *ScheduleService) ListSchedule(ctx context.Context, operatorID, dateFrom, dateTo string) ([]*model.ScheduleSlot, error) {
	if err := model.ValidateDateRange(dateFrom, dateTo); err != nil {
		return nil, err
	}
	slots, err := s.repo.FindByOperatorAndDateRange(ctx, operatorID, dateFrom, dateTo)
	if err != nil {
		return nil, fmt.Errorf("list schedule: %w", err)
	}
	return slots, nil
}

// RescheduleSlot меняет время свободного или заблокированного слота.
// Забронированный слот не переносится: сначала нужно отменить бронь.
func (s *ScheduleService) RescheduleSlot(ctx context.Context, slotID, startTime, endTime string) (*model.ScheduleSlot, error) {
	current, err := s.load(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if current.Status == model.SlotStatusBooked {
		return nil, &model.TransitionError{SlotID: slotID, From: current.Status, Event: "reschedule"}
	}
	if err := model.ValidateRange(startTime, endTime); err != nil {
		return nil, err
	}

	conflicting, err := s.detector.FindConflict(ctx, current.OperatorID, current.Date, startTime, endTime, current.ID)
	if err != nil {
		return nil, fmt.Errorf("check conflicts: %w", err)
	}
	if conflicting != nil {
		return nil, &model.SlotConflictError{
			OperatorID:        current.OperatorID,
			Date:              current.Date,
			StartTime:         startTime,
			EndTime:           endTime,
			ConflictingSlotID: conflicting.ID,
		}
	}

	updated, err := s.repo.UpdateTimeRange(ctx, slotID, current.Status, current.Version, startTime, endTime, s.now().UTC())
	if err != nil {
		var conflict *model.SlotConflictError
		if errors.As(err, &conflict) {
			conflict.OperatorID = current.OperatorID
			conflict.Date = current.Date
		}
		return nil, fmt.Errorf("reschedule slot: %w", err)
	}

	s.invalidate(ctx, updated.OperatorID)

	s.logger.Info("Slot rescheduled",
		zap.String("slot_id", slotID),
		zap.String("operator_id", updated.OperatorID),
		zap.String("start_time", updated.StartTime),
		zap.String("end_time", updated.EndTime),
	)

	return updated, nil
}

// DeleteSlot удаляет свободный или заблокированный слот
func (s *ScheduleService) DeleteSlot(ctx context.Context, slotID string) error {
	current, err := s.load(ctx, slotID)
	if err != nil {
		return err
	}
	if current.Status == model.SlotStatusBooked {
		return &model.TransitionError{SlotID: slotID, From: current.Status, Event: "delete"}
	}

	if err := s.repo.Delete(ctx, slotID, current.Status); err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	s.invalidate(ctx, current.OperatorID)

	s.logger.Info("Slot deleted",
		zap.String("slot_id", slotID),
		zap.String("operator_id", current.OperatorID),
	)

	return nil
}

// apply проводит переход через условное обновление статуса
func (s *ScheduleService) apply(ctx context.Context, slotID string, t transition, bookingRef *string) (*model.ScheduleSlot, error) {
	current, err := s.load(ctx, slotID)
	if err != nil {
		return nil, err
	}

	if current.Status != t.from {
		// занятый слот нельзя заблокировать напрямую, только после отмены
		if t.event == EventBlock && current.Status == model.SlotStatusBooked {
			return nil, &model.TransitionError{SlotID: slotID, From: current.Status, Event: t.event}
		}
		return nil, &model.StaleStateError{SlotID: slotID, Expected: t.from, Actual: current.Status}
	}

	updated, err := s.repo.UpdateStatus(ctx, slotID, t.from, t.to, bookingRef, s.now().UTC())
	if err != nil {
		if errors.Is(err, model.ErrStaleState) {
			s.logger.Warn("Slot transition lost a race",
				zap.String("slot_id", slotID),
				zap.String("event", t.event),
			)
		}
		return nil, fmt.Errorf("%s slot: %w", t.event, err)
	}

	s.invalidate(ctx, updated.OperatorID)

	s.logger.Info("Slot status changed",
		zap.String("slot_id", slotID),
		zap.String("operator_id", updated.OperatorID),
		zap.String("event", t.event),
		zap.String("from", string(t.from)),
		zap.String("to", string(t.to)),
		zap.Int64("version", updated.Version),
	)

	return updated, nil
}

// load читает слот и перепроверяет его инварианты перед изменением
func (s *ScheduleService) load(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	if !validSlotID(slotID) {
		return nil, model.ErrNotFound
	}

	current, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get slot: %w", err)
	}

	if err := current.Validate(); err != nil {
		return nil, fmt.Errorf("stored slot %s is invalid: %v", slotID, err)
	}

	return current, nil
}

// validSlotID принимает только каноническую форму 8-4-4-4-12; urn:uuid: и {...} хранилище не примет
func validSlotID(slotID string) bool {
	parsed, err := uuid.Parse(slotID)
	return err == nil && strings.EqualFold(parsed.String(), slotID)
}

func (s *ScheduleService) invalidate(ctx context.Context, operatorID string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, operatorID)
	}
}
