package model

import "time"

type Participant struct {
	SessionID string    `db:"session_id" json:"sessionId"`
	UserID    string    `db:"user_id" json:"userId"`
	Role      Role      `db:"role" json:"role"`
	JoinedAt  time.Time `db:"joined_at" json:"joinedAt"`
}

// ClaimResult is what a seat claim reports back, regardless of outcome.
type ClaimResult struct {
	Outcome          ClaimOutcome  `json:"outcome"`
	ParticipantCount int           `json:"participantCount"`
	MaxParticipants  int           `json:"maxParticipants"`
	Role             Role          `json:"role,omitempty"`
	SessionStatus    SessionStatus `json:"sessionStatus,omitempty"`
}
