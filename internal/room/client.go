package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const maxErrorBodyBytes = 1024

type Config struct {
	BaseURL     string
	APIKey      string
	TokenSecret string
	TokenTTL    time.Duration
	Timeout     time.Duration
}

// Client provisions rooms over the provider's REST API and signs access
// tokens locally with the shared secret.
type Client struct {
	baseURL     string
	apiKey      string
	tokenSecret []byte
	tokenTTL    time.Duration
	http        *http.Client
	now         func() time.Time
}

var _ Provisioner = (*Client)(nil)

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		tokenSecret: []byte(cfg.TokenSecret),
		tokenTTL:    cfg.TokenTTL,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

type createRoomRequest struct {
	Name       string         `json:"name"`
	Privacy    string         `json:"privacy"`
	Properties roomProperties `json:"properties"`
}

type roomProperties struct {
	MaxParticipants int `json:"max_participants"`
}

type createRoomResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (c *Client) CreateRoom(ctx context.Context, name string, capacity int) (*Room, error) {
	body, err := json.Marshal(createRoomRequest{
		Name:       name,
		Privacy:    "private",
		Properties: roomProperties{MaxParticipants: capacity},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal room request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().
			Err(err).
			Str("roomName", name).
			Dur("elapsed", elapsed).
			Msg("room provider request error")
		return nil, fmt.Errorf("create room request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		log.Error().
			Str("roomName", name).
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Dur("elapsed", elapsed).
			Msg("room provider rejected create room")
		return nil, fmt.Errorf("create room failed with status %d", resp.StatusCode)
	}

	var out createRoomResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode room response: %w", err)
	}
	if out.Name == "" {
		out.Name = name
	}
	if out.ID == "" {
		out.ID = out.Name
	}

	log.Info().
		Str("roomId", out.ID).
		Str("roomName", out.Name).
		Int("capacity", capacity).
		Dur("elapsed", elapsed).
		Msg("room created")

	return &Room{ID: out.ID, Name: out.Name}, nil
}

// AccessClaims is the payload of a room access token.
type AccessClaims struct {
	RoomID  string `json:"room"`
	Role    string `json:"role"`
	IsOwner bool   `json:"is_owner"`
	jwt.RegisteredClaims
}

func (c *Client) MintAccessToken(ctx context.Context, roomID, userID, role string) (*AccessToken, error) {
	if roomID == "" || userID == "" {
		return nil, fmt.Errorf("roomID and userID are required")
	}

	now := c.now().UTC()
	claims := AccessClaims{
		RoomID:  roomID,
		Role:    role,
		IsOwner: role == "host",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.tokenTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.tokenSecret)
	if err != nil {
		return nil, fmt.Errorf("sign room token: %w", err)
	}

	return &AccessToken{
		Token:     signed,
		ExpiresIn: int(c.tokenTTL.Seconds()),
	}, nil
}
