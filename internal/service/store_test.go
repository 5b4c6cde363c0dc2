package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studyhall/focus-server/internal/database"
	"github.com/studyhall/focus-server/internal/model"
	"github.com/studyhall/focus-server/internal/repository"
)

// memStore is an in-memory stand-in for Postgres. Transactions are fully
// serialized, which gives the same observable ordering as the row and user
// locks of the real store.
type memStore struct {
	txMu sync.Mutex

	mu       sync.Mutex
	sessions map[string]*model.FocusSession
	seats    map[string]map[string]model.Participant
	profiles map[string]string

	failUpsert error
	failCreate error
	failFind   error
	// failFindOnce fails the next session read only.
	failFindOnce error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]*model.FocusSession),
		seats:    make(map[string]map[string]model.Participant),
		profiles: make(map[string]string),
	}
}

var _ database.TxRunner = (*memStore)(nil)

func (m *memStore) WithTx(ctx context.Context, fn database.TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(nil)
}

func (m *memStore) sessionRepo() repository.FocusSessionRepository { return &memSessionRepo{m} }
func (m *memStore) participantRepo() repository.ParticipantRepository {
	return &memParticipantRepo{m}
}

// addSession inserts a scheduled session directly, bypassing validation. The
// host is not seated; tests seat it explicitly when they need to.
func (m *memStore) addSession(hostID string, start time.Time, minutes, capacity int) *model.FocusSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.FocusSession{
		ID:              uuid.NewString(),
		HostID:          hostID,
		Title:           "Focus",
		Task:            "deep-work",
		Kind:            model.SessionKindFocus,
		StartAt:         start,
		EndAt:           start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		MaxParticipants: capacity,
		Status:          model.SessionStatusScheduled,
	}
	m.sessions[s.ID] = s
	m.seats[s.ID] = map[string]model.Participant{}
	cp := *s
	return &cp
}

func (m *memStore) addSeat(sessionID, userID string, role model.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seats[sessionID][userID] = model.Participant{SessionID: sessionID, UserID: userID, Role: role}
}

func (m *memStore) count(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seats[sessionID])
}

func (m *memStore) seat(sessionID, userID string) (model.Participant, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.seats[sessionID][userID]
	return p, ok
}

func (m *memStore) session(id string) *model.FocusSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

// overlaps reports whether [StartAt, EndAt) intersects [start, end).
func overlaps(s *model.FocusSession, start, end time.Time) bool {
	return s.StartAt.Before(end) && start.Before(s.EndAt)
}

func live(s *model.FocusSession) bool {
	return s.Status == model.SessionStatusScheduled || s.Status == model.SessionStatusActive
}

type memSessionRepo struct{ m *memStore }

func (r *memSessionRepo) WithTx(*sqlx.Tx) repository.FocusSessionRepository { return r }

func (r *memSessionRepo) FindByID(ctx context.Context, id string) (*model.FocusSession, error) {
	if r.m.failFind != nil {
		return nil, r.m.failFind
	}
	r.m.mu.Lock()
	once := r.m.failFindOnce
	r.m.failFindOnce = nil
	r.m.mu.Unlock()
	if once != nil {
		return nil, once
	}
	return r.m.session(id), nil
}

func (r *memSessionRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.FocusSession, error) {
	return r.FindByID(ctx, id)
}

func (r *memSessionRepo) FindSummary(ctx context.Context, id string) (*model.SessionSummary, error) {
	s := r.m.session(id)
	if s == nil {
		return nil, nil
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return &model.SessionSummary{
		FocusSession:     *s,
		ParticipantCount: len(r.m.seats[id]),
		HostDisplayName:  r.m.profiles[s.HostID],
	}, nil
}

func (r *memSessionRepo) List(ctx context.Context, p model.ListSessionsParams) ([]model.SessionSummary, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := []model.SessionSummary{}
	for _, s := range r.m.sessions {
		if s.StartAt.Before(p.From) || s.StartAt.After(p.To) || !s.EndAt.After(p.Now) {
			continue
		}
		if !p.IncludeCancelled && s.Status == model.SessionStatusCancelled {
			continue
		}
		out = append(out, model.SessionSummary{
			FocusSession:     *s,
			ParticipantCount: len(r.m.seats[s.ID]),
			HostDisplayName:  r.m.profiles[s.HostID],
			CallerRole:       r.m.seats[s.ID][p.UserID].Role,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartAt.Equal(out[j].StartAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartAt.Before(out[j].StartAt)
	})
	if p.Offset >= len(out) {
		return []model.SessionSummary{}, nil
	}
	out = out[p.Offset:]
	if p.Limit > 0 && len(out) > p.Limit {
		out = out[:p.Limit]
	}
	return out, nil
}

func (r *memSessionRepo) Create(ctx context.Context, p model.CreateFocusSessionParams) (*model.FocusSession, error) {
	if r.m.failCreate != nil {
		return nil, r.m.failCreate
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	s := &model.FocusSession{
		ID:              uuid.NewString(),
		HostID:          p.HostID,
		Title:           p.Title,
		Task:            p.Task,
		Kind:            p.Kind,
		StartAt:         p.StartAt,
		EndAt:           p.EndAt,
		DurationMinutes: p.DurationMinutes,
		MaxParticipants: p.MaxParticipants,
		Status:          model.SessionStatusScheduled,
		RoomID:          p.RoomID,
		RoomName:        p.RoomName,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	r.m.sessions[s.ID] = s
	r.m.seats[s.ID] = map[string]model.Participant{}
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) Delete(ctx context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.sessions, id)
	delete(r.m.seats, id)
	return nil
}

func (r *memSessionRepo) Cancel(ctx context.Context, id string) (*model.FocusSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok || s.Status != model.SessionStatusScheduled {
		return nil, nil
	}
	s.Status = model.SessionStatusCancelled
	cp := *s
	return &cp, nil
}

func (r *memSessionRepo) SetRoomIfAbsent(ctx context.Context, id, roomID, roomName string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok || s.HasRoom() {
		return false, nil
	}
	s.RoomID = &roomID
	s.RoomName = &roomName
	return true, nil
}

func (r *memSessionRepo) HostsActiveAt(ctx context.Context, userID, excludeID string, now time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.sessions {
		if s.HostID == userID && s.ID != excludeID && live(s) && s.Contains(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSessionRepo) HostsOverlapping(ctx context.Context, userID, excludeID string, start, end, now time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.sessions {
		if s.HostID == userID && s.ID != excludeID && live(s) && overlaps(s, start, end) && s.EndAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memSessionRepo) MarkCompleted(ctx context.Context, endedBefore time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.sessions {
		if live(s) && s.EndAt.Before(endedBefore) {
			s.Status = model.SessionStatusCompleted
			n++
		}
	}
	return n, nil
}

type memParticipantRepo struct{ m *memStore }

func (r *memParticipantRepo) WithTx(*sqlx.Tx) repository.ParticipantRepository { return r }

func (r *memParticipantRepo) Find(ctx context.Context, sessionID, userID string) (*model.Participant, error) {
	p, ok := r.m.seat(sessionID, userID)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *memParticipantRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	return r.m.count(sessionID), nil
}

func (r *memParticipantRepo) Upsert(ctx context.Context, sessionID, userID string, role model.Role) error {
	if r.m.failUpsert != nil {
		return r.m.failUpsert
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if role == model.RoleHost {
		for uid, p := range r.m.seats[sessionID] {
			if uid != userID && p.Role == model.RoleHost {
				return repository.ErrDuplicateHost
			}
		}
	}
	if r.m.seats[sessionID] == nil {
		r.m.seats[sessionID] = map[string]model.Participant{}
	}
	r.m.seats[sessionID][userID] = model.Participant{
		SessionID: sessionID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now(),
	}
	return nil
}

func (r *memParticipantRepo) DeleteParticipant(ctx context.Context, sessionID, userID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.seats[sessionID][userID]
	if !ok || p.Role != model.RoleParticipant {
		return false, nil
	}
	delete(r.m.seats[sessionID], userID)
	return true, nil
}

func (r *memParticipantRepo) seated(userID, excludeID string, match func(*model.FocusSession) bool) bool {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, seats := range r.m.seats {
		if id == excludeID {
			continue
		}
		if _, ok := seats[userID]; !ok {
			continue
		}
		if s := r.m.sessions[id]; s != nil && live(s) && match(s) {
			return true
		}
	}
	return false
}

func (r *memParticipantRepo) SeatsActiveAt(ctx context.Context, userID, excludeID string, now time.Time) (bool, error) {
	return r.seated(userID, excludeID, func(s *model.FocusSession) bool { return s.Contains(now) }), nil
}

func (r *memParticipantRepo) SeatsOverlapping(ctx context.Context, userID, excludeID string, start, end, now time.Time) (bool, error) {
	return r.seated(userID, excludeID, func(s *model.FocusSession) bool {
		return overlaps(s, start, end) && s.EndAt.After(now)
	}), nil
}
