package model

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrSlotConflict        = errors.New("slot overlaps an existing slot")
	ErrStaleState          = errors.New("slot is no longer in the expected state")
	ErrNotFound            = errors.New("slot not found")
	ErrForbiddenTransition = errors.New("transition is not allowed")
)

// ValidationError некорректное значение поля
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// SlotConflictError пересечение с существующим слотом оператора
type SlotConflictError struct {
	OperatorID        string
	Date              string
	StartTime         string
	EndTime           string
	ConflictingSlotID string // пусто, если конфликт обнаружила БД
}

func (e *SlotConflictError) Error() string {
	if e.ConflictingSlotID == "" {
		return fmt.Sprintf("slot %s %s-%s for operator %s overlaps an existing slot",
			e.Date, e.StartTime, e.EndTime, e.OperatorID)
	}
	return fmt.Sprintf("slot %s %s-%s for operator %s overlaps slot %s",
		e.Date, e.StartTime, e.EndTime, e.OperatorID, e.ConflictingSlotID)
}

func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}

// StaleStateError условное обновление проиграло гонку
type StaleStateError struct {
	SlotID   string
	Expected SlotStatus
	Actual   SlotStatus // пусто, если актуальный статус неизвестен
}

func (e *StaleStateError) Error() string {
	if e.Actual == "" {
		return fmt.Sprintf("slot %s is no longer %s", e.SlotID, e.Expected)
	}
	return fmt.Sprintf("slot %s is %s, expected %s", e.SlotID, e.Actual, e.Expected)
}

func (e *StaleStateError) Is(target error) bool {
	return target == ErrStaleState
}

// TransitionError запрещённый переход state machine
type TransitionError struct {
	SlotID string
	From   SlotStatus
	Event  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s slot %s in status %s", e.Event, e.SlotID, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrForbiddenTransition
}
