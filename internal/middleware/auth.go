package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/studyhall/focus-server/internal/audit"
	apperrors "github.com/studyhall/focus-server/internal/errors"
	"github.com/studyhall/focus-server/internal/httputil"
)

type contextKey string

const UserContextKey contextKey = "user"

// Identity is the authenticated caller. Tokens are issued elsewhere; this
// service only verifies them.
type Identity struct {
	UserID      string
	DisplayName string
}

type identityClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func GetIdentity(ctx context.Context) *Identity {
	if id, ok := ctx.Value(UserContextKey).(*Identity); ok {
		return id
	}
	return nil
}

// GetUserID returns the caller's user ID or "" when unauthenticated.
func GetUserID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.UserID
	}
	return ""
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, UserContextKey, id)
}

type AuthMiddleware struct {
	secret []byte
}

func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteError(w, apperrors.Unauthorized("Missing authentication token"))
			return
		}

		id, err := m.verify(token)
		if err != nil {
			log.Warn().Err(err).Msg("auth middleware: invalid token attempt")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"reason": err.Error()},
			})
			httputil.WriteError(w, apperrors.InvalidToken("Invalid token"))
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (m *AuthMiddleware) verify(raw string) (*Identity, error) {
	var claims identityClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &Identity{UserID: claims.Subject, DisplayName: claims.Name}, nil
}

// extractToken reads the bearer header, falling back to the query string for
// EventSource clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	if r.Method == http.MethodGet {
		return r.URL.Query().Get("token")
	}
	return ""
}
