package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/Freeeeeet/slot_scheduler/internal/metrics"
	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// commandArgs аргументы команды без самой команды: "/book abc" -> ["abc"]
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// senderID ID отправителя; false, если From не заполнен
func senderID(msg *models.Message) (int64, bool) {
	if msg == nil || msg.From == nil {
		return 0, false
	}
	return msg.From.ID, true
}

// greeting приветствие для /start
func greeting(msg *models.Message) string {
	if msg.From == nil || msg.From.FirstName == "" {
		return "👋 Привет!\n\nЭто бот записи на свободные слоты.\n\n"
	}
	return "👋 Привет, " + msg.From.FirstName + "!\n\nЭто бот записи на свободные слоты.\n\n"
}

// send отправляет ответ в чат
func (h *Handlers) send(ctx context.Context, b *bot.Bot, chatID int64, r reply) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   r.Text,
	}
	if r.Markup != nil {
		params.ReplyMarkup = r.Markup
	}

	if _, err := b.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// errorText переводит ошибку сервиса в сообщение пользователю
func (h *Handlers) errorText(err error) string {
	switch metrics.Outcome(err) {
	case metrics.OutcomeInvalid:
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return "❌ Некорректное значение " + verr.Field + ": " + verr.Reason
		}
		return "❌ Некорректные данные."
	case metrics.OutcomeConflict:
		return "❌ Слот пересекается с другим слотом оператора."
	case metrics.OutcomeStale:
		return "⚠️ Слот уже изменился. Обновите список через /slots."
	case metrics.OutcomeForbidden:
		return "🚫 Это действие недоступно для слота в текущем статусе."
	case metrics.OutcomeNotFound:
		return "❌ Слот не найден."
	}

	h.logger.Error("Slot operation failed", zap.Error(err))
	return "❌ Произошла ошибка. Попробуйте позже."
}

// answerCallback отвечает на callback query
func (h *Handlers) answerCallback(ctx context.Context, b *bot.Bot, callback *models.CallbackQuery, text string, alert bool) {
	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            text,
		ShowAlert:       alert,
	}); err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}
}
