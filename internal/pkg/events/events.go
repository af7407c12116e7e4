// Package events publishes booking lifecycle events to downstream consumers.
// Publishing is best effort: callers log failures and never roll back on them.
package events

import (
	"context"
	"time"
)

// Queue names. Each event type goes to its own durable queue.
const (
	QueueBookingConfirmed = "booking.confirmed"
	QueueBookingCancelled = "booking.cancelled"
)

// BookingEvent is the JSON payload sent for booking state changes.
type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	SeatID     string    `json:"seat_id"`
	SlotID     string    `json:"slot_id"`
	SeatNumber string    `json:"seat_number,omitempty"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers an event to the named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, event BookingEvent) error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, BookingEvent) error { return nil }
