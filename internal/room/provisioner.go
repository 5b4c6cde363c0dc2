// Package room talks to the external video room provider.
package room

import (
	"context"
)

type Room struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type AccessToken struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expiresIn"`
}

// Provisioner creates rooms and mints role-scoped access tokens. Failures are
// returned to the caller, which may retry; implementations do not retry.
type Provisioner interface {
	CreateRoom(ctx context.Context, name string, capacity int) (*Room, error)
	MintAccessToken(ctx context.Context, roomID, userID, role string) (*AccessToken, error)
}
