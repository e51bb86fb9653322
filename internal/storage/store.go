// Package storage defines the durable mirror behind the room registry.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
)

var ErrNotFound = errors.New("storage: not found")

// Store persists rooms and participant sessions. Every method is its own
// atomic unit; there is no transaction spanning calls.
type Store interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	EndRoom(ctx context.Context, roomID string, endedAt time.Time, recordingURL string) error
	// CreateSession inserts the session and records the room's new peak together.
	CreateSession(ctx context.Context, s *domain.Session, peak int) error
	CloseSession(ctx context.Context, sessionID string, leftAt time.Time) error
	UpdateMedia(ctx context.Context, sessionID string, cameraOn, micOn bool) error
	CountSessions(ctx context.Context, roomID string) (int, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	Close() error
}
