package model

import (
	"regexp"
	"strings"
	"time"
)

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// SlotInput сырые значения полей слота до валидации
type SlotInput struct {
	OperatorID string
	Date       string
	StartTime  string
	EndTime    string
	Status     string
}

// ValidateSlot проверяет поля и собирает слот без идентификатора и таймстемпов
func ValidateSlot(in SlotInput) (*ScheduleSlot, error) {
	operatorID := strings.TrimSpace(in.OperatorID)
	if operatorID == "" {
		return nil, &ValidationError{Field: "operator_id", Reason: "must not be empty"}
	}

	if err := ValidateDate("date", in.Date); err != nil {
		return nil, err
	}

	if err := ValidateRange(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}

	status := SlotStatus(in.Status)
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "must be one of AVAILABLE, BOOKED, BLOCKED"}
	}

	return &ScheduleSlot{
		OperatorID: operatorID,
		Date:       in.Date,
		StartTime:  in.StartTime,
		EndTime:    in.EndTime,
		Status:     status,
	}, nil
}

// ValidateDate проверяет формат YYYY-MM-DD и что дата существует в календаре
func ValidateDate(field, value string) error {
	if !dateRe.MatchString(value) {
		return &ValidationError{Field: field, Reason: "must match YYYY-MM-DD"}
	}
	if _, err := time.Parse(DateLayout, value); err != nil {
		return &ValidationError{Field: field, Reason: "not a calendar date"}
	}
	return nil
}

// ValidateTime проверяет формат HH:MM (00-23:00-59)
func ValidateTime(field, value string) error {
	if !timeRe.MatchString(value) {
		return &ValidationError{Field: field, Reason: "must match HH:MM (00-23:00-59)"}
	}
	return nil
}

// ValidateRange проверяет HH:MM у обеих границ и start < end
func ValidateRange(start, end string) error {
	if err := ValidateTime("start_time", start); err != nil {
		return err
	}
	if err := ValidateTime("end_time", end); err != nil {
		return err
	}
	// строки дополнены нулями, лексикографическое сравнение совпадает с временным
	if start >= end {
		return &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	return nil
}

// ValidateDateRange проверяет границы диапазона дат включительно
func ValidateDateRange(from, to string) error {
	if err := ValidateDate("date_from", from); err != nil {
		return err
	}
	if err := ValidateDate("date_to", to); err != nil {
		return err
	}
	if from > to {
		return &ValidationError{Field: "date_to", Reason: "must not be before date_from"}
	}
	return nil
}

// Validate перепроверяет инварианты уже собранного слота
func (s *ScheduleSlot) Validate() error {
	_, err := ValidateSlot(SlotInput{
		OperatorID: s.OperatorID,
		Date:       s.Date,
		StartTime:  s.StartTime,
		EndTime:    s.EndTime,
		Status:     string(s.Status),
	})
	return err
}

// Validate проверяет курсор страницы: дата и время в тех же форматах, что у слота
func (c *Cursor) Validate() error {
	if err := ValidateDate("after", c.Date); err != nil {
		return err
	}
	return ValidateTime("after", c.StartTime)
}
