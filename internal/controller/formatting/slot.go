package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
)

// FormatDate переводит YYYY-MM-DD в 02.01.2006; некорректную строку возвращает как есть
func FormatDate(date string) string {
	t, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02.01.2006")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end string) string {
	return fmt.Sprintf("%s-%s", start, end)
}

// FormatSlot карточка одного слота
func FormatSlot(slot *model.ScheduleSlot) string {
	display := GetSlotStatusDisplay(slot.Status)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s\n", display.Emoji, FormatDate(slot.Date), FormatTimeRange(slot.StartTime, slot.EndTime))
	fmt.Fprintf(&sb, "📊 Статус: %s\n", display.Text)
	if slot.BookingRef != nil {
		fmt.Fprintf(&sb, "🧾 Бронь: %s\n", *slot.BookingRef)
	}
	fmt.Fprintf(&sb, "🆔 %s", slot.ID)
	return sb.String()
}

// FormatSlotList список слотов, сгруппированный по датам
func FormatSlotList(title string, slots []*model.ScheduleSlot) string {
	if len(slots) == 0 {
		return title + "\n\nСвободных слотов нет."
	}

	var sb strings.Builder
	sb.WriteString(title)

	currentDate := ""
	for _, slot := range slots {
		if slot.Date != currentDate {
			currentDate = slot.Date
			fmt.Fprintf(&sb, "\n\n📅 %s", FormatDate(slot.Date))
		}
		display := GetSlotStatusDisplay(slot.Status)
		fmt.Fprintf(&sb, "\n%s %s", display.Emoji, FormatTimeRange(slot.StartTime, slot.EndTime))
	}
	return sb.String()
}
