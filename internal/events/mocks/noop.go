package mocks

import (
	"context"

	"slotbook/internal/events"
)

// noopPublisher drops every event. Service tests use it so the publish
// goroutine never touches a gomock controller after the test ends.
type noopPublisher struct{}

func NewNoopPublisher() events.Publisher {
	return &noopPublisher{}
}

func (n *noopPublisher) PublishBookingEvent(_ context.Context, _ events.BookingEvent) error {
	return nil
}
