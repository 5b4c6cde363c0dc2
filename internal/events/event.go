// Package events carries booking domain events to interested sinks: the live
// SSE fan-out and the durable message broker.
package events

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	TypeSessionCreated   Type = "session.created"
	TypeSessionCancelled Type = "session.cancelled"
	TypeSeatReserved     Type = "seat.reserved"
	TypeSeatReleased     Type = "seat.released"
)

type Event struct {
	Type             Type      `json:"type"`
	SessionID        string    `json:"sessionId"`
	UserID           string    `json:"userId,omitempty"`
	ParticipantCount int       `json:"participantCount"`
	MaxParticipants  int       `json:"maxParticipants"`
	StartAt          time.Time `json:"startAt,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// Publisher delivers an event. Callers treat delivery as best effort: the
// booking has already committed when Publish is called.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

// Nop discards every event.
var Nop Publisher = nopPublisher{}

// Fanout publishes to every sink and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
