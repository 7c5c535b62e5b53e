package formatting

import "github.com/Freeeeeet/slot_scheduler/internal/model"

// SlotStatusDisplay представляет отображение статуса слота
type SlotStatusDisplay struct {
	Emoji string
	Text  string
}

var slotStatusDisplays = map[model.SlotStatus]SlotStatusDisplay{
	model.SlotStatusAvailable: {"🟢", "Свободен"},
	model.SlotStatusBooked:    {"🔴", "Занят"},
	model.SlotStatusBlocked:   {"⛔️", "Заблокирован"},
}

// GetSlotStatusDisplay возвращает emoji и текст для статуса слота
func GetSlotStatusDisplay(status model.SlotStatus) SlotStatusDisplay {
	if display, ok := slotStatusDisplays[status]; ok {
		return display
	}
	return SlotStatusDisplay{"❓", "Неизвестно"}
}
