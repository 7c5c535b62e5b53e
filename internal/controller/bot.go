package controller

import (
	"context"

	"github.com/Freeeeeet/slot_scheduler/internal/controller/handlers"
	"github.com/Freeeeeet/slot_scheduler/internal/controller/keyboard"
	"github.com/Freeeeeet/slot_scheduler/internal/events"
	"github.com/Freeeeeet/slot_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotController struct {
	bot      *bot.Bot
	handlers *handlers.Handlers
	logger   *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	scheduleService *service.ScheduleService,
	notifier *events.Notifier,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:      botInstance,
		handlers: handlers.NewHandlers(scheduleService, notifier, logger),
		logger:   logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.handlers.HandleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.handlers.HandleHelp)

	// команды с аргументами
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/slots", bot.MatchTypePrefix, c.handlers.HandleSlots)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/book", bot.MatchTypePrefix, c.handlers.HandleBook)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/cancel", bot.MatchTypePrefix, c.handlers.HandleCancel)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/block", bot.MatchTypePrefix, c.handlers.HandleBlock)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/unblock", bot.MatchTypePrefix, c.handlers.HandleUnblock)

	// кнопки бронирования под списком /slots
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, keyboard.CallbackBookSlot, bot.MatchTypePrefix, c.handlers.HandleBookCallback)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "slots", Description: "🗓 Свободные слоты оператора"},
		{Command: "book", Description: "✅ Забронировать слот"},
		{Command: "cancel", Description: "↩️ Отменить бронь"},
		{Command: "block", Description: "⛔️ Заблокировать слот"},
		{Command: "unblock", Description: "🟢 Разблокировать слот"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Start запускает long polling и блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot")
	c.bot.Start(ctx)
	return nil
}
