package model

import "time"

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "AVAILABLE"
	SlotStatusBooked    SlotStatus = "BOOKED"
	SlotStatusBlocked   SlotStatus = "BLOCKED"
)

// Valid проверяет что статус входит в перечисление
func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusAvailable, SlotStatusBooked, SlotStatusBlocked:
		return true
	}
	return false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

type ScheduleSlot struct {
	ID         string     `json:"id"`
	OperatorID string     `json:"operator_id"`
	Date       string     `json:"date"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	Status     SlotStatus `json:"status"`
	BookingRef *string    `json:"booking_ref,omitempty"` // заполнен только у BOOKED
	Version    int64      `json:"version"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Clone возвращает независимую копию слота
func (s *ScheduleSlot) Clone() *ScheduleSlot {
	if s == nil {
		return nil
	}
	c := *s
	if s.BookingRef != nil {
		ref := *s.BookingRef
		c.BookingRef = &ref
	}
	return &c
}

// Overlaps проверяет пересечение полуоткрытых интервалов [s1,e1) и [s2,e2)
func Overlaps(s1, e1, s2, e2 string) bool {
	return s1 < e2 && s2 < e1
}

// Cursor позиция для keyset-пагинации по (date, start_time)
type Cursor struct {
	Date      string
	StartTime string
}

// After возвращает курсор, указывающий на слот
func After(slot *ScheduleSlot) *Cursor {
	return &Cursor{Date: slot.Date, StartTime: slot.StartTime}
}
