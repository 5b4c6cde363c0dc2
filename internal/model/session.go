package model

import (
	"time"
)

type FocusSession struct {
	ID              string        `db:"id" json:"id"`
	HostID          string        `db:"host_id" json:"hostId"`
	Title           string        `db:"title" json:"title"`
	Task            string        `db:"task" json:"task"`
	Kind            SessionKind   `db:"kind" json:"kind"`
	StartAt         time.Time     `db:"start_at" json:"startAt"`
	EndAt           time.Time     `db:"end_at" json:"endAt"`
	DurationMinutes int           `db:"duration_minutes" json:"durationMinutes"`
	MaxParticipants int           `db:"max_participants" json:"maxParticipants"`
	Status          SessionStatus `db:"status" json:"status"`
	RoomID          *string       `db:"room_id" json:"roomId,omitempty"`
	RoomName        *string       `db:"room_name" json:"roomName,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

// EffectiveStatus derives the status from the wall clock. The stored status
// is advisory; cancelled and completed are terminal.
func (s *FocusSession) EffectiveStatus(now time.Time) SessionStatus {
	switch s.Status {
	case SessionStatusCancelled, SessionStatusCompleted:
		return s.Status
	}
	if !now.Before(s.EndAt) {
		return SessionStatusCompleted
	}
	if s.Contains(now) {
		return SessionStatusActive
	}
	return SessionStatusScheduled
}

// Contains reports whether t falls inside [StartAt, EndAt).
func (s *FocusSession) Contains(t time.Time) bool {
	return !t.Before(s.StartAt) && t.Before(s.EndAt)
}

func (s *FocusSession) HasRoom() bool {
	return s.RoomID != nil && *s.RoomID != ""
}

// SessionSummary is a listing row joined with its seat count and host name.
type SessionSummary struct {
	FocusSession
	ParticipantCount int    `db:"participant_count" json:"participantCount"`
	HostDisplayName  string `db:"host_display_name" json:"hostDisplayName"`
	// CallerRole is the listing user's seat role, empty when they hold none.
	CallerRole Role `db:"caller_role" json:"-"`
}

type CreateFocusSessionParams struct {
	HostID          string
	Title           string
	Task            string
	Kind            SessionKind
	StartAt         time.Time
	EndAt           time.Time
	DurationMinutes int
	MaxParticipants int
	RoomID          *string
	RoomName        *string
}

type ListSessionsParams struct {
	From             time.Time
	To               time.Time
	Now              time.Time
	IncludeCancelled bool
	UserID           string
	Limit            int
	Offset           int
}
