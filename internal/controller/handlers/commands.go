package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/slot_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/slot_scheduler/internal/controller/keyboard"
	"github.com/Freeeeeet/slot_scheduler/internal/events"
	"github.com/Freeeeeet/slot_scheduler/internal/metrics"
	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/Freeeeeet/slot_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const helpText = "📚 Справка по командам:\n\n" +
	"/slots <оператор> <YYYY-MM-DD> [YYYY-MM-DD] - свободные слоты\n" +
	"/book <slot_id> [номер брони] - забронировать слот\n" +
	"/cancel <slot_id> - отменить бронь\n" +
	"/block <slot_id> - заблокировать слот\n" +
	"/unblock <slot_id> - разблокировать слот\n" +
	"/help - показать эту справку"

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	h.send(ctx, b, update.Message.Chat.ID, reply{Text: greeting(update.Message) + helpText})
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.send(ctx, b, update.Message.Chat.ID, reply{Text: helpText})
}

// HandleSlots обрабатывает /slots <operator_id> <date_from> [date_to]
func (h *Handlers) HandleSlots(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.send(ctx, b, update.Message.Chat.ID, h.slotsReply(ctx, commandArgs(update.Message.Text)))
}

// HandleBook обрабатывает /book <slot_id> [booking_ref]
func (h *Handlers) HandleBook(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleTransition(ctx, b, update, service.EventBook)
}

// HandleCancel обрабатывает /cancel <slot_id>
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleTransition(ctx, b, update, service.EventCancel)
}

// HandleBlock обрабатывает /block <slot_id>
func (h *Handlers) HandleBlock(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleTransition(ctx, b, update, service.EventBlock)
}

// HandleUnblock обрабатывает /unblock <slot_id>
func (h *Handlers) HandleUnblock(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleTransition(ctx, b, update, service.EventUnblock)
}

// HandleBookCallback обрабатывает нажатие кнопки book_slot:<slot_id>
func (h *Handlers) HandleBookCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	slotID := strings.TrimPrefix(callback.Data, keyboard.CallbackBookSlot)
	r, ok := h.transitionReply(ctx, service.EventBook, []string{slotID}, callback.From.ID)
	if !ok {
		h.answerCallback(ctx, b, callback, r.Text, true)
		return
	}

	h.answerCallback(ctx, b, callback, "✅ Забронировано", false)
	if callback.Message.Message != nil {
		h.send(ctx, b, callback.Message.Message.Chat.ID, r)
	}
}

func (h *Handlers) handleTransition(ctx context.Context, b *bot.Bot, update *models.Update, event string) {
	if update.Message == nil {
		return
	}

	// посты каналов и анонимные админы приходят без From
	telegramID, ok := senderID(update.Message)
	if !ok {
		return
	}

	r, _ := h.transitionReply(ctx, event, commandArgs(update.Message.Text), telegramID)
	h.send(ctx, b, update.Message.Chat.ID, r)
}

func (h *Handlers) slotsReply(ctx context.Context, args []string) reply {
	if len(args) < 2 || len(args) > 3 {
		return reply{Text: "Использование: /slots <оператор> <YYYY-MM-DD> [YYYY-MM-DD]"}
	}

	operatorID, from := args[0], args[1]
	to := from
	if len(args) == 3 {
		to = args[2]
	}

	slots, err := h.scheduleService.ListAvailability(ctx, operatorID, from, to)
	if err != nil {
		return reply{Text: h.errorText(err)}
	}

	title := fmt.Sprintf("🗓 Свободные слоты %s", operatorID)
	if len(slots) > keyboard.MaxSlotButtons {
		title += fmt.Sprintf(" (кнопки для первых %d)", keyboard.MaxSlotButtons)
	}

	return reply{
		Text:   formatting.FormatSlotList(title, slots),
		Markup: keyboard.BookSlots(slots),
	}
}

// transitionReply выполняет событие над слотом; ok=false при ошибке
func (h *Handlers) transitionReply(ctx context.Context, event string, args []string, telegramID int64) (reply, bool) {
	if len(args) == 0 || (event != service.EventBook && len(args) > 1) || len(args) > 2 {
		return reply{Text: fmt.Sprintf("Использование: /%s <slot_id>", event)}, false
	}
	slotID := args[0]

	var (
		slot *model.ScheduleSlot
		err  error
	)
	if event == service.EventBook {
		ref := fmt.Sprintf("tg:%d", telegramID)
		if len(args) == 2 {
			ref = args[1]
		}
		slot, err = h.scheduleService.BookSlot(ctx, slotID, ref)
	} else {
		slot, err = h.scheduleService.Transition(ctx, slotID, event)
	}

	metrics.ObserveSlotOperation(event, err)
	if err != nil {
		h.logger.Info("Slot command rejected",
			zap.String("event", event),
			zap.String("slot_id", slotID),
			zap.Int64("telegram_id", telegramID),
			zap.Error(err),
		)
		return reply{Text: h.errorText(err)}, false
	}

	h.notifier.SlotChanged(ctx, events.TypeForTransition(event), slot)

	return reply{Text: successTitle(event) + "\n\n" + formatting.FormatSlot(slot)}, true
}

func successTitle(event string) string {
	switch event {
	case service.EventBook:
		return "✅ Слот забронирован"
	case service.EventCancel:
		return "✅ Бронь отменена"
	case service.EventBlock:
		return "⛔️ Слот заблокирован"
	case service.EventUnblock:
		return "🟢 Слот снова доступен"
	}
	return "✅ Готово"
}
