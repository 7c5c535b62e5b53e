package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "schedule.slot-events"

const (
	TypeSlotCreated     = "slot.created"
	TypeSlotRescheduled = "slot.rescheduled"
	TypeSlotDeleted     = "slot.deleted"
	TypeSlotBooked      = "slot.booked"
	TypeBookingCanceled = "slot.booking_canceled"
	TypeSlotBlocked     = "slot.blocked"
	TypeSlotUnblocked   = "slot.unblocked"
)

// SlotEvent событие об изменении слота для внешних потребителей (уведомления, аналитика)
type SlotEvent struct {
	EventID    string           `json:"event_id"`
	Type       string           `json:"type"`
	SlotID     string           `json:"slot_id"`
	OperatorID string           `json:"operator_id"`
	Date       string           `json:"date"`
	StartTime  string           `json:"start_time"`
	EndTime    string           `json:"end_time"`
	Status     model.SlotStatus `json:"status"`
	BookingRef *string          `json:"booking_ref,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewSlotEvent собирает событие по состоянию слота после перехода
func NewSlotEvent(eventType string, slot *model.ScheduleSlot, at time.Time) SlotEvent {
	return SlotEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		SlotID:     slot.ID,
		OperatorID: slot.OperatorID,
		Date:       slot.Date,
		StartTime:  slot.StartTime,
		EndTime:    slot.EndTime,
		Status:     slot.Status,
		BookingRef: slot.BookingRef,
		OccurredAt: at.UTC(),
	}
}

// TypeForTransition тип события для имени перехода (book, cancel, block, unblock)
func TypeForTransition(event string) string {
	switch event {
	case "book":
		return TypeSlotBooked
	case "cancel":
		return TypeBookingCanceled
	case "block":
		return TypeSlotBlocked
	case "unblock":
		return TypeSlotUnblocked
	}
	return "slot." + event
}

type Publisher interface {
	Publish(ctx context.Context, ev SlotEvent) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher пишет события в Kafka; ключ сообщения operator_id, чтобы
// события одного оператора попадали в одну партицию по порядку
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaPublisher(brokers, topic string, logger *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(SplitBrokers(brokers)...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, logger: logger}
}

// Publish отправляет событие
func (p *KafkaPublisher) Publish(ctx context.Context, ev SlotEvent) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write slot event: %w", err)
	}

	p.logger.Debug("Slot event published",
		zap.String("event_id", ev.EventID),
		zap.String("type", ev.Type),
		zap.String("slot_id", ev.SlotID),
	)
	return nil
}

// Close закрывает writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(ev SlotEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal slot event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.OperatorID),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.EventID)},
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}, nil
}

// NopPublisher используется, когда брокеры не настроены
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SlotEvent) error { return nil }
func (NopPublisher) Close() error                             { return nil }

func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
