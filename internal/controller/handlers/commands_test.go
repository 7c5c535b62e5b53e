package handlers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/events"
	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/Freeeeeet/slot_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/slot_scheduler/internal/service"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.SlotEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.SlotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func setupHandlers(t *testing.T) (*Handlers, *service.ScheduleService, *recordingPublisher) {
	t.Helper()

	logger := zap.NewNop()
	now := func() time.Time { return time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC) }
	svc := service.NewScheduleService(memory.NewSlotStore(), nil, now, logger)
	pub := &recordingPublisher{}

	return NewHandlers(svc, events.NewNotifier(pub, logger), logger), svc, pub
}

func mustCreate(t *testing.T, svc *service.ScheduleService, start, end string) *model.ScheduleSlot {
	t.Helper()
	slot, err := svc.CreateSlot(context.Background(), "op1", "2025-06-01", start, end, model.SlotStatusAvailable)
	require.NoError(t, err)
	return slot
}

func TestCommandArgs(t *testing.T) {
	assert.Nil(t, commandArgs("/slots"))
	assert.Equal(t, []string{"op1", "2025-06-01"}, commandArgs("/slots  op1 2025-06-01 "))
}

func TestSenderID_MissingFrom(t *testing.T) {
	_, ok := senderID(&models.Message{Text: "/book abc"})
	assert.False(t, ok)

	_, ok = senderID(nil)
	assert.False(t, ok)

	id, ok := senderID(&models.Message{From: &models.User{ID: 42}})
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestGreeting_MissingFrom(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Contains(t, greeting(&models.Message{}), "Привет!")
	})
	assert.Contains(t, greeting(&models.Message{From: &models.User{FirstName: "Ann"}}), "Привет, Ann!")
}

func TestHandleBook_ChannelPostWithoutSender(t *testing.T) {
	h, svc, pub := setupHandlers(t)
	slot := mustCreate(t, svc, "09:00", "09:30")

	update := &models.Update{Message: &models.Message{
		Text: "/book " + slot.ID,
		Chat: models.Chat{ID: -100},
	}}

	// без From команда игнорируется до обращения к боту
	assert.NotPanics(t, func() { h.HandleBook(context.Background(), nil, update) })

	stored, err := svc.GetSlot(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusAvailable, stored.Status)
	assert.Empty(t, pub.events)
}

func TestSlotsReply(t *testing.T) {
	h, svc, _ := setupHandlers(t)
	ctx := context.Background()

	first := mustCreate(t, svc, "09:00", "09:30")
	mustCreate(t, svc, "09:30", "10:00")
	_, err := svc.BlockSlot(ctx, first.ID)
	require.NoError(t, err)

	r := h.slotsReply(ctx, []string{"op1", "2025-06-01"})
	assert.Contains(t, r.Text, "09:30-10:00")
	assert.NotContains(t, r.Text, "09:00-09:30")
	require.NotNil(t, r.Markup)
	require.Len(t, r.Markup.InlineKeyboard, 1)
	assert.Len(t, r.Markup.InlineKeyboard[0], 1)
}

func TestSlotsReply_Errors(t *testing.T) {
	h, _, _ := setupHandlers(t)
	ctx := context.Background()

	assert.Contains(t, h.slotsReply(ctx, []string{"op1"}).Text, "Использование")
	assert.Contains(t, h.slotsReply(ctx, []string{"op1", "01.06.2025"}).Text, "Некорректное значение")

	r := h.slotsReply(ctx, []string{"op1", "2025-06-01", "2025-06-03"})
	assert.Contains(t, r.Text, "Свободных слотов нет")
	assert.Nil(t, r.Markup)
}

func TestTransitionReply_BookAndCancel(t *testing.T) {
	h, svc, pub := setupHandlers(t)
	ctx := context.Background()
	slot := mustCreate(t, svc, "09:00", "09:30")

	r, ok := h.transitionReply(ctx, service.EventBook, []string{slot.ID}, 42)
	require.True(t, ok, r.Text)
	assert.Contains(t, r.Text, "tg:42")

	// второй раз слот уже занят
	r, ok = h.transitionReply(ctx, service.EventBook, []string{slot.ID}, 43)
	assert.False(t, ok)
	assert.Contains(t, r.Text, "Слот уже изменился")

	r, ok = h.transitionReply(ctx, service.EventBlock, []string{slot.ID}, 42)
	assert.False(t, ok)
	assert.Contains(t, r.Text, "недоступно")

	r, ok = h.transitionReply(ctx, service.EventCancel, []string{slot.ID}, 42)
	require.True(t, ok, r.Text)
	assert.Contains(t, r.Text, "Бронь отменена")

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.TypeSlotBooked, pub.events[0].Type)
	assert.Equal(t, events.TypeBookingCanceled, pub.events[1].Type)
}

func TestTransitionReply_CustomBookingRef(t *testing.T) {
	h, svc, _ := setupHandlers(t)
	slot := mustCreate(t, svc, "09:00", "09:30")

	r, ok := h.transitionReply(context.Background(), service.EventBook, []string{slot.ID, "order-7"}, 42)
	require.True(t, ok, r.Text)

	stored, err := svc.GetSlot(context.Background(), slot.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.BookingRef)
	assert.Equal(t, "order-7", *stored.BookingRef)
}

func TestTransitionReply_BadInput(t *testing.T) {
	h, _, pub := setupHandlers(t)
	ctx := context.Background()

	r, ok := h.transitionReply(ctx, service.EventBlock, nil, 42)
	assert.False(t, ok)
	assert.Contains(t, r.Text, "/block <slot_id>")

	r, ok = h.transitionReply(ctx, service.EventUnblock, []string{"a", "b"}, 42)
	assert.False(t, ok)
	assert.Contains(t, r.Text, "Использование")

	r, ok = h.transitionReply(ctx, service.EventCancel, []string{"missing"}, 42)
	assert.False(t, ok)
	assert.Contains(t, r.Text, "не найден")

	assert.Empty(t, pub.events)
}

func TestErrorText_Unexpected(t *testing.T) {
	h, _, _ := setupHandlers(t)
	assert.Contains(t, h.errorText(context.DeadlineExceeded), "Попробуйте позже")
}
