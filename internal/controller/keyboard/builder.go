package keyboard

import (
	"fmt"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/go-telegram/bot/models"
)

// CallbackBookSlot префикс кнопки бронирования: book_slot:<slot_id>
const CallbackBookSlot = "book_slot:"

// MaxSlotButtons ограничение на число кнопок под одним сообщением
const MaxSlotButtons = 20

// Builder упрощает создание inline клавиатур
type Builder struct {
	rows [][]models.InlineKeyboardButton
}

// NewBuilder создаёт новый builder клавиатуры
func NewBuilder() *Builder {
	return &Builder{
		rows: make([][]models.InlineKeyboardButton, 0),
	}
}

// Row добавляет новый ряд кнопок
func (b *Builder) Row(buttons ...models.InlineKeyboardButton) *Builder {
	if len(buttons) > 0 {
		b.rows = append(b.rows, buttons)
	}
	return b
}

// Button создаёт кнопку
func Button(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// Build создаёт финальную клавиатуру
func (b *Builder) Build() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: b.rows,
	}
}

// Empty true, если кнопок нет
func (b *Builder) Empty() bool {
	return len(b.rows) == 0
}

// BookSlots клавиатура бронирования, по две кнопки в ряд
func BookSlots(slots []*model.ScheduleSlot) *models.InlineKeyboardMarkup {
	b := NewBuilder()

	if len(slots) > MaxSlotButtons {
		slots = slots[:MaxSlotButtons]
	}

	row := make([]models.InlineKeyboardButton, 0, 2)
	for _, slot := range slots {
		label := fmt.Sprintf("%s %s", slot.Date[5:], slot.StartTime)
		row = append(row, Button(label, CallbackBookSlot+slot.ID))
		if len(row) == 2 {
			b.Row(row...)
			row = make([]models.InlineKeyboardButton, 0, 2)
		}
	}
	b.Row(row...)

	if b.Empty() {
		return nil
	}
	return b.Build()
}
