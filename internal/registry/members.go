package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
)

// JoinRoom opens a new session for user. The same user may join repeatedly;
// every join adds a list entry and a session.
func (r *Registry) JoinRoom(ctx context.Context, roomID, user string) (*domain.Session, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}

	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	if !room.Active() {
		r.mu.Unlock()
		return nil, domain.ErrRoomEnded
	}
	if len(room.Participants) >= room.MaxSize {
		r.mu.Unlock()
		return nil, domain.ErrRoomFull
	}

	s := &domain.Session{
		ID: r.uniqueID(func(id string) bool {
			_, ok := r.sessions[id]
			return ok
		}),
		RoomID:   roomID,
		User:     user,
		JoinedAt: r.now().UTC(),
		CameraOn: true,
		MicOn:    true,
	}
	peak := max(room.PeakParticipants, len(room.Participants)+1)
	if err := r.store.CreateSession(ctx, s, peak); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("store.CreateSession: %w", err)
	}
	room.Participants = append(room.Participants, user)
	room.PeakParticipants = peak
	r.sessions[s.ID] = s
	r.byRoom[roomID] = append(r.byRoom[roomID], s)
	out := *s
	count := len(room.Participants)
	r.mu.Unlock()

	slog.Info("peer joined", "room", roomID, "user", user, "session", s.ID, "count", count)
	r.emit(domain.Event{Type: domain.EventPeerJoined, RoomID: roomID, User: user, SessionID: s.ID, At: s.JoinedAt})
	return &out, nil
}

// LeaveRoom removes the first list entry for user and closes that user's
// oldest open session.
func (r *Registry) LeaveRoom(ctx context.Context, roomID, user string) (*domain.Session, error) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	if !slices.Contains(room.Participants, user) {
		r.mu.Unlock()
		return nil, domain.ErrNotInRoom
	}
	var target *domain.Session
	for _, s := range r.byRoom[roomID] {
		if s.User == user && s.Current() {
			target = s
			break
		}
	}
	if target == nil {
		r.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	out, err := r.closeLocked(ctx, room, target)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.emitLeft(out)
	return out, nil
}

// LeaveSession closes exactly the given session.
func (r *Registry) LeaveSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok || !s.Current() {
		r.mu.Unlock()
		return nil, domain.ErrSessionNotFound
	}
	room, ok := r.rooms[s.RoomID]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	out, err := r.closeLocked(ctx, room, s)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	r.emitLeft(out)
	return out, nil
}

// ToggleMedia applies upd to the user's newest open session in the room.
func (r *Registry) ToggleMedia(ctx context.Context, roomID, user string, upd domain.MediaUpdate) (*domain.Session, error) {
	r.mu.Lock()
	if _, ok := r.rooms[roomID]; !ok {
		r.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	var target *domain.Session
	list := r.byRoom[roomID]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].User == user && list[i].Current() {
			target = list[i]
			break
		}
	}
	if target == nil {
		r.mu.Unlock()
		return nil, domain.ErrNotInRoom
	}

	next := *target
	upd.Apply(&next)
	if err := r.store.UpdateMedia(ctx, next.ID, next.CameraOn, next.MicOn); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("store.UpdateMedia: %w", err)
	}
	target.CameraOn, target.MicOn = next.CameraOn, next.MicOn
	r.mu.Unlock()

	slog.Debug("media changed", "room", roomID, "user", user, "camera", next.CameraOn, "mic", next.MicOn)
	r.emit(domain.Event{
		Type:      domain.EventMediaChanged,
		RoomID:    roomID,
		User:      user,
		SessionID: next.ID,
		CameraOn:  &next.CameraOn,
		MicOn:     &next.MicOn,
		At:        r.now().UTC(),
	})
	return &next, nil
}

// closeLocked stamps the leave time on s and drops one list entry for its
// user. Must be called with mu held.
func (r *Registry) closeLocked(ctx context.Context, room *domain.Room, s *domain.Session) (*domain.Session, error) {
	leftAt := r.now().UTC()
	if err := r.store.CloseSession(ctx, s.ID, leftAt); err != nil {
		return nil, fmt.Errorf("store.CloseSession: %w", err)
	}
	s.LeftAt = &leftAt
	if i := slices.Index(room.Participants, s.User); i >= 0 {
		room.Participants = slices.Delete(room.Participants, i, i+1)
	}
	out := *s
	out.LeftAt = copyTime(s.LeftAt)
	return &out, nil
}

func (r *Registry) emitLeft(s *domain.Session) {
	slog.Info("peer left", "room", s.RoomID, "user", s.User, "session", s.ID)
	r.emit(domain.Event{Type: domain.EventPeerLeft, RoomID: s.RoomID, User: s.User, SessionID: s.ID, At: *s.LeftAt})
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
