package handlers

import (
	"github.com/Freeeeeet/slot_scheduler/internal/events"
	"github.com/Freeeeeet/slot_scheduler/internal/service"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	scheduleService *service.ScheduleService
	notifier        *events.Notifier
	logger          *zap.Logger
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	scheduleService *service.ScheduleService,
	notifier *events.Notifier,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		scheduleService: scheduleService,
		notifier:        notifier,
		logger:          logger,
	}
}

// reply ответ бота до отправки
type reply struct {
	Text   string
	Markup *models.InlineKeyboardMarkup
}
