package handler

import (
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/studyhall/focus-server/internal/errors"
	"github.com/studyhall/focus-server/internal/service"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// parseListQuery reads ?from&to&includeCancelled&limit&offset. Bad paging
// values fall back to defaults; bad timestamps are rejected.
func parseListQuery(r *http.Request) (service.ListSessionsInput, error) {
	q := r.URL.Query()
	input := service.ListSessionsInput{Limit: DefaultLimit}

	var ok bool
	if input.From, ok = parseTime(q.Get("from")); !ok {
		return input, apperrors.InvalidInput("from", "must be an RFC 3339 timestamp")
	}
	if input.To, ok = parseTime(q.Get("to")); !ok {
		return input, apperrors.InvalidInput("to", "must be an RFC 3339 timestamp")
	}
	input.IncludeCancelled, _ = strconv.ParseBool(q.Get("includeCancelled"))

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 && limit <= MaxLimit {
		input.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		input.Offset = offset
	}

	return input, nil
}

func parseTime(raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}
