package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/Freeeeeet/slot_scheduler/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const slotColumns = `
	id::text, operator_id,
	to_char(slot_date, 'YYYY-MM-DD'),
	to_char(start_time, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'),
	status, booking_ref, version, created_at, updated_at
`

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

// Insert сохраняет новый слот; пересечение с существующим отклоняет БД
func (r *SlotRepository) Insert(ctx context.Context, slot *model.ScheduleSlot) (*model.ScheduleSlot, error) {
	query := `
		INSERT INTO schedule_slots
			(id, operator_id, slot_date, start_time, end_time, status, booking_ref, version, created_at, updated_at)
		VALUES ($1::text::uuid, $2, $3::text::date, $4::text::time, $5::text::time, $6, $7, 1, $8, $8)
		RETURNING ` + slotColumns

	created, err := scanSlot(r.QueryRow(
		ctx, query,
		slot.ID,
		slot.OperatorID,
		slot.Date,
		slot.StartTime,
		slot.EndTime,
		slot.Status,
		slot.BookingRef,
		slot.CreatedAt,
	))
	if err != nil {
		if base.IsConstraintConflict(err) {
			return nil, &model.SlotConflictError{
				OperatorID: slot.OperatorID,
				Date:       slot.Date,
				StartTime:  slot.StartTime,
				EndTime:    slot.EndTime,
			}
		}
		if base.IsCheckViolation(err) {
			return nil, &model.ValidationError{Field: "end_time", Reason: "must be after start_time"}
		}
		return nil, fmt.Errorf("insert slot: %w", err)
	}

	return created, nil
}

// FindByID получает слот по ID
func (r *SlotRepository) FindByID(ctx context.Context, slotID string) (*model.ScheduleSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM schedule_slots WHERE id = $1::text::uuid`

	slot, err := scanSlot(r.QueryRow(ctx, query, slotID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find slot by id: %w", err)
	}

	return slot, nil
}

// FindByOperatorAndDate все слоты оператора на дату по возрастанию начала
func (r *SlotRepository) FindByOperatorAndDate(ctx context.Context, operatorID, date string) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE operator_id = $1
		  AND slot_date = $2::text::date
		ORDER BY start_time
	`

	rows, err := r.Query(ctx, query, operatorID, date)
	if err != nil {
		return nil, fmt.Errorf("find slots by operator and date: %w", err)
	}

	return collectSlots(rows)
}

// FindByOperatorAndDateRange все слоты оператора в диапазоне дат включительно
func (r *SlotRepository) FindByOperatorAndDateRange(ctx context.Context, operatorID, dateFrom, dateTo string) ([]*model.ScheduleSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE operator_id = $1
		  AND slot_date BETWEEN $2::text::date AND $3::text::date
		ORDER BY slot_date, start_time
	`

	rows, err := r.Query(ctx, query, operatorID, dateFrom, dateTo)
	if err != nil {
		return nil, fmt.Errorf("find slots by operator and date range: %w", err)
	}

	return collectSlots(rows)
}

// FindAvailablePage страница свободных слотов после курсора
func (r *SlotRepository) FindAvailablePage(ctx context.Context, operatorID, dateFrom, dateTo string, after *model.Cursor, limit int) ([]*model.ScheduleSlot, error) {
	var afterDate, afterStart *string
	if after != nil {
		afterDate, afterStart = &after.Date, &after.StartTime
	}

	query := `
		SELECT ` + slotColumns + `
		FROM schedule_slots
		WHERE operator_id = $1
		  AND status = 'AVAILABLE'
		  AND slot_date BETWEEN $2::text::date AND $3::text::date
		  AND ($4::text IS NULL OR (slot_date, start_time) > ($4::text::date, $5::text::time))
		ORDER BY slot_date, start_time
		LIMIT $6
	`

	rows, err := r.Query(ctx, query, operatorID, dateFrom, dateTo, afterDate, afterStart, limit)
	if err != nil {
		return nil, fmt.Errorf("find available slots: %w", err)
	}

	return collectSlots(rows)
}

// UpdateStatus условно меняет статус: только если текущий равен expected
func (r *SlotRepository) UpdateStatus(ctx context.Context, slotID string, expected, next model.SlotStatus, bookingRef *string, at time.Time) (*model.ScheduleSlot, error) {
	query := `
		UPDATE schedule_slots
		SET status = $3, booking_ref = $4, version = version + 1, updated_at = $5
		WHERE id = $1::text::uuid AND status = $2
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.QueryRow(ctx, query, slotID, expected, next, bookingRef, at))
	if err == nil {
		return slot, nil
	}
	if !base.IsNotFound(err) {
		return nil, fmt.Errorf("update slot status: %w", err)
	}

	return nil, r.missedUpdate(ctx, slotID, expected)
}

// UpdateTimeRange переносит слот; условие по статусу и версии
func (r *SlotRepository) UpdateTimeRange(ctx context.Context, slotID string, expected model.SlotStatus, expectedVersion int64, start, end string, at time.Time) (*model.ScheduleSlot, error) {
	query := `
		UPDATE schedule_slots
		SET start_time = $4::text::time, end_time = $5::text::time, version = version + 1, updated_at = $6
		WHERE id = $1::text::uuid AND status = $2 AND version = $3
		RETURNING ` + slotColumns

	slot, err := scanSlot(r.QueryRow(ctx, query, slotID, expected, expectedVersion, start, end, at))
	if err == nil {
		return slot, nil
	}
	if base.IsConstraintConflict(err) {
		return nil, &model.SlotConflictError{StartTime: start, EndTime: end}
	}
	if !base.IsNotFound(err) {
		return nil, fmt.Errorf("update slot time range: %w", err)
	}

	return nil, r.missedUpdate(ctx, slotID, expected)
}

// Delete удаляет слот, если его статус всё ещё expected
func (r *SlotRepository) Delete(ctx context.Context, slotID string, expected model.SlotStatus) error {
	affected, err := r.ExecAffected(ctx,
		`DELETE FROM schedule_slots WHERE id = $1::text::uuid AND status = $2`,
		slotID, expected,
	)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}

	if affected == 0 {
		return r.missedUpdate(ctx, slotID, expected)
	}

	return nil
}

// missedUpdate различает "слот исчез" и "статус уже другой"
func (r *SlotRepository) missedUpdate(ctx context.Context, slotID string, expected model.SlotStatus) error {
	current, err := r.FindByID(ctx, slotID)
	if err != nil {
		return err
	}
	return &model.StaleStateError{SlotID: slotID, Expected: expected, Actual: current.Status}
}

func scanSlot(row pgx.Row) (*model.ScheduleSlot, error) {
	var slot model.ScheduleSlot
	err := row.Scan(
		&slot.ID,
		&slot.OperatorID,
		&slot.Date,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&slot.BookingRef,
		&slot.Version,
		&slot.CreatedAt,
		&slot.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

func collectSlots(rows pgx.Rows) ([]*model.ScheduleSlot, error) {
	defer rows.Close()

	var slots []*model.ScheduleSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots: %w", err)
	}

	return slots, nil
}
