package events

//go:generate go run go.uber.org/mock/mockgen -source=./events.go -destination=./mocks/events_mock.go -package=mocks

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"slotbook/config"
	"slotbook/infras/kafka"
	"slotbook/infras/otel"
	"slotbook/shared/constant"
	"slotbook/shared/timezone"
)

const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	SlotID     string    `json:"slot_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewBookingEvent(eventType, bookingID, userID, slotID string) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  bookingID,
		UserID:     userID,
		SlotID:     slotID,
		OccurredAt: timezone.Now(),
	}
}

type Publisher interface {
	PublishBookingEvent(ctx context.Context, event BookingEvent) error
}

type publisherImpl struct {
	kafka kafka.Client
	cfg   *config.Config
	otel  otel.Otel
}

func NewPublisher(kafkaClient kafka.Client, cfg *config.Config, otel otel.Otel) Publisher {
	return &publisherImpl{
		kafka: kafkaClient,
		cfg:   cfg,
		otel:  otel,
	}
}

func (p *publisherImpl) PublishBookingEvent(ctx context.Context, event BookingEvent) (err error) {
	ctx, scope := p.otel.NewScope(ctx, constant.OtelEventScopeName, constant.OtelEventScopeName+".PublishBookingEvent")
	defer scope.End()
	defer scope.TraceIfError(err)

	message := kafka.Message{
		Key:   event.BookingID,
		Value: event,
	}

	if err = p.kafka.SendMessages(ctx, p.cfg.Kafka.BookingTopic, message); err != nil {
		log.Error().
			Err(err).
			Str("type", event.Type).
			Str("booking_id", event.BookingID).
			Msg("failed to publish booking event")

		return fmt.Errorf("failed to publish booking event: %w", err)
	}

	return nil
}
