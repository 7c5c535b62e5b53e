package service

import (
	"context"
	"fmt"
	"iter"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500
)

// ListAvailability свободные слоты оператора за период, по (date, start_time)
func (s *ScheduleService) ListAvailability(ctx context.Context, operatorID, dateFrom, dateTo string) ([]*model.ScheduleSlot, error) {
	if err := model.ValidateDateRange(dateFrom, dateTo); err != nil {
		return nil, err
	}

	var cacheKey string
	if s.cache != nil {
		slots, key, ok := s.cache.Get(ctx, operatorID, dateFrom, dateTo)
		if ok {
			return slots, nil
		}
		cacheKey = key
	}

	slots := make([]*model.ScheduleSlot, 0)
	for slot, err := range s.Availability(ctx, operatorID, dateFrom, dateTo, DefaultPageSize) {
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}

	if s.cache != nil && cacheKey != "" {
		s.cache.Set(ctx, cacheKey, slots)
	}

	return slots, nil
}

// AvailabilityPage одна страница свободных слотов и курсор следующей (nil на последней)
func (s *ScheduleService) AvailabilityPage(ctx context.Context, operatorID, dateFrom, dateTo string, after *model.Cursor, limit int) ([]*model.ScheduleSlot, *model.Cursor, error) {
	if err := model.ValidateDateRange(dateFrom, dateTo); err != nil {
		return nil, nil, err
	}
	if after != nil {
		if err := after.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	// запрашиваем на один больше, чтобы понять, есть ли следующая страница
	page, err := s.repo.FindAvailablePage(ctx, operatorID, dateFrom, dateTo, after, limit+1)
	if err != nil {
		return nil, nil, fmt.Errorf("find available page: %w", err)
	}

	var next *model.Cursor
	if len(page) > limit {
		page = page[:limit]
		next = model.After(page[len(page)-1])
	}

	return page, next, nil
}

// Availability ленивая последовательность свободных слотов.
// Каждый range начинает обход заново, страницы читаются по мере потребления.
func (s *ScheduleService) Availability(ctx context.Context, operatorID, dateFrom, dateTo string, pageSize int) iter.Seq2[*model.ScheduleSlot, error] {
	return func(yield func(*model.ScheduleSlot, error) bool) {
		var cursor *model.Cursor
		for {
			page, next, err := s.AvailabilityPage(ctx, operatorID, dateFrom, dateTo, cursor, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, slot := range page {
				if !yield(slot, nil) {
					return
				}
			}
			if next == nil {
				return
			}
			cursor = next
		}
	}
}
