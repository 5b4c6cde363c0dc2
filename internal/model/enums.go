package model

type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCancelled SessionStatus = "cancelled"
	SessionStatusCompleted SessionStatus = "completed"
)

// Open reports whether seats may still be claimed in this status.
func (s SessionStatus) Open() bool {
	return s == SessionStatusScheduled || s == SessionStatusActive
}

type SessionKind string

const (
	// SessionKindFocus is a curated focus session with fixed capacity and durations.
	SessionKindFocus SessionKind = "focus"
	// SessionKindRoom is the generic study room flavor.
	SessionKindRoom SessionKind = "room"
)

type Role string

const (
	RoleHost        Role = "host"
	RoleParticipant Role = "participant"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleParticipant
}

// ClaimOutcome is the result code of a seat claim. Every claim resolves to
// exactly one outcome.
type ClaimOutcome string

const (
	OutcomeReserved           ClaimOutcome = "reserved"
	OutcomeAlreadyParticipant ClaimOutcome = "already_participant"
	OutcomeNotFound           ClaimOutcome = "not_found"
	OutcomeSessionUnavailable ClaimOutcome = "session_unavailable"
	OutcomeHostConflict       ClaimOutcome = "host_conflict"
	OutcomeActiveConflict     ClaimOutcome = "active_conflict"
	OutcomeOverlapConflict    ClaimOutcome = "overlap_conflict"
	OutcomeSessionFull        ClaimOutcome = "session_full"
	OutcomeInvalidRole        ClaimOutcome = "invalid_role"
)

// Success reports whether the caller holds a seat after the claim.
func (o ClaimOutcome) Success() bool {
	return o == OutcomeReserved || o == OutcomeAlreadyParticipant
}
