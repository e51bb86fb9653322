package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/cwrk-planet/meet-service/internal/domain"

	"github.com/samber/lo"
)

// CreateRoom opens a new active room and returns it with its join URL.
// maxSize <= 0 falls back to the registry default.
func (r *Registry) CreateRoom(ctx context.Context, name, host string, maxSize int) (*domain.Room, string, error) {
	if maxSize <= 0 {
		maxSize = r.defaultMax
	}

	r.mu.Lock()
	room := &domain.Room{
		ID: r.uniqueID(func(id string) bool {
			_, ok := r.rooms[id]
			return ok
		}),
		Name:         strings.TrimSpace(name),
		Host:         strings.TrimSpace(host),
		Participants: []string{},
		MaxSize:      maxSize,
		Status:       domain.RoomActive,
		CreatedAt:    r.now().UTC(),
	}
	if err := r.store.CreateRoom(ctx, room); err != nil {
		r.mu.Unlock()
		return nil, "", fmt.Errorf("store.CreateRoom: %w", err)
	}
	r.rooms[room.ID] = room
	out := cloneRoom(room)
	r.mu.Unlock()

	slog.Info("room created", "room", room.ID, "host", room.Host, "max", room.MaxSize)
	r.emit(domain.Event{Type: domain.EventRoomCreated, RoomID: room.ID, User: room.Host, At: room.CreatedAt})
	return out, r.JoinURL(room.ID), nil
}

// EndRoom moves the room to ended. Calling it again overwrites the end time
// and recording URL.
func (r *Registry) EndRoom(ctx context.Context, roomID, recordingURL string) (*domain.Room, error) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	endedAt := r.now().UTC()
	if err := r.store.EndRoom(ctx, roomID, endedAt, recordingURL); err != nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("store.EndRoom: %w", err)
	}
	room.Status = domain.RoomEnded
	room.EndedAt = &endedAt
	room.RecordingURL = recordingURL
	out := cloneRoom(room)
	r.mu.Unlock()

	slog.Info("room ended", "room", roomID, "duration_min", lo.FromPtr(out.DurationMinutes()))
	r.emit(domain.Event{Type: domain.EventRoomEnded, RoomID: roomID, At: endedAt})
	return out, nil
}

// GetRoom returns a snapshot of the room, false if unknown.
func (r *Registry) GetRoom(roomID string) (domain.RoomSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return domain.RoomSnapshot{}, false
	}
	return r.snapshot(room), true
}

// ActiveRooms lists every active room, oldest first.
func (r *Registry) ActiveRooms() []domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := lo.Filter(lo.Values(r.rooms), func(rm *domain.Room, _ int) bool {
		return rm.Active()
	})
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})
	return lo.Map(active, func(rm *domain.Room, _ int) domain.RoomSnapshot {
		return r.snapshot(rm)
	})
}

// UserHistory lists ended rooms the user ever had a session in, newest first,
// at most n (n <= 0 means DefaultHistoryLimit).
func (r *Registry) UserHistory(user string, n int) []domain.RoomSnapshot {
	if n <= 0 {
		n = DefaultHistoryLimit
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var ended []*domain.Room
	for id, rm := range r.rooms {
		if rm.Active() {
			continue
		}
		if lo.ContainsBy(r.byRoom[id], func(s *domain.Session) bool { return s.User == user }) {
			ended = append(ended, rm)
		}
	}
	sort.Slice(ended, func(i, j int) bool {
		if ended[i].CreatedAt.Equal(ended[j].CreatedAt) {
			return ended[i].ID > ended[j].ID
		}
		return ended[i].CreatedAt.After(ended[j].CreatedAt)
	})
	if len(ended) > n {
		ended = ended[:n]
	}
	return lo.Map(ended, func(rm *domain.Room, _ int) domain.RoomSnapshot {
		return r.snapshot(rm)
	})
}

// RoomStats reports the true peak, the duration and the number of join
// events the store has recorded for the room.
func (r *Registry) RoomStats(ctx context.Context, roomID string) (domain.RoomStats, error) {
	r.mu.Lock()
	room, ok := r.rooms[roomID]
	if !ok {
		r.mu.Unlock()
		return domain.RoomStats{}, domain.ErrRoomNotFound
	}
	stats := domain.RoomStats{
		PeakParticipants: room.PeakParticipants,
		DurationMinutes:  lo.FromPtr(room.DurationMinutes()),
	}
	r.mu.Unlock()

	joins, err := r.store.CountSessions(ctx, roomID)
	if err != nil {
		return domain.RoomStats{}, fmt.Errorf("store.CountSessions: %w", err)
	}
	stats.JoinEvents = joins
	return stats, nil
}

// snapshot must be called with mu held.
func (r *Registry) snapshot(room *domain.Room) domain.RoomSnapshot {
	media := make([]domain.SessionMedia, 0, len(room.Participants))
	for _, s := range r.byRoom[room.ID] {
		if !s.Current() {
			continue
		}
		media = append(media, domain.SessionMedia{
			SessionID: s.ID,
			User:      s.User,
			CameraOn:  s.CameraOn,
			MicOn:     s.MicOn,
		})
	}

	return domain.RoomSnapshot{
		ID:               room.ID,
		Name:             room.Name,
		Host:             room.Host,
		Participants:     append([]string{}, room.Participants...),
		MaxSize:          room.MaxSize,
		Status:           room.Status,
		CreatedAt:        room.CreatedAt,
		EndedAt:          copyTime(room.EndedAt),
		RecordingURL:     room.RecordingURL,
		DurationMinutes:  room.DurationMinutes(),
		PeakParticipants: room.PeakParticipants,
		Media:            media,
	}
}

func cloneRoom(room *domain.Room) *domain.Room {
	c := *room
	c.Participants = append([]string{}, room.Participants...)
	c.EndedAt = copyTime(room.EndedAt)
	return &c
}
