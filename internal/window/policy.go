// Package window holds the time-window rules for reserving and joining a
// focus session. All functions are pure; callers pass the current time.
package window

import (
	"errors"
	"time"
)

const (
	ReservationLead = 5 * time.Minute
	JoinLead        = 10 * time.Minute
	JoinGrace       = 5 * time.Minute
)

var (
	ErrJoinNotOpen  = errors.New("join window has not opened yet")
	ErrSessionEnded = errors.New("session has ended")
)

// ReservationCutoff is the instant after which the reserve path refuses new
// reservations and cancellations.
func ReservationCutoff(startAt time.Time) time.Time {
	return startAt.Add(-ReservationLead)
}

// CanReserve reports whether now is strictly before the reservation cutoff.
func CanReserve(startAt, now time.Time) bool {
	return now.Before(ReservationCutoff(startAt))
}

func JoinOpensAt(startAt time.Time) time.Time {
	return startAt.Add(-JoinLead)
}

// JoinClosesAt is the canonical close boundary with a grace period after the end.
func JoinClosesAt(endAt time.Time) time.Time {
	return endAt.Add(JoinGrace)
}

// StrictJoinClosesAt closes joining exactly at the session end.
func StrictJoinClosesAt(endAt time.Time) time.Time {
	return endAt
}

// Policy selects between the grace and strict close boundaries.
type Policy struct {
	Grace bool
}

// Default is the canonical policy.
var Default = Policy{Grace: true}

func (p Policy) ClosesAt(endAt time.Time) time.Time {
	if p.Grace {
		return JoinClosesAt(endAt)
	}
	return StrictJoinClosesAt(endAt)
}

// CheckJoin returns nil when joinOpenAt <= now <= joinCloseAt.
func (p Policy) CheckJoin(startAt, endAt, now time.Time) error {
	if now.Before(JoinOpensAt(startAt)) {
		return ErrJoinNotOpen
	}
	if now.After(p.ClosesAt(endAt)) {
		return ErrSessionEnded
	}
	return nil
}

// CheckJoin applies the canonical policy.
func CheckJoin(startAt, endAt, now time.Time) error {
	return Default.CheckJoin(startAt, endAt, now)
}
