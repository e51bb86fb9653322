// Package postgres is the pgx-backed store, selected with storage.driver=postgres.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	pool  *pgxpool.Pool
	rooms *RoomRepository
	parts *ParticipantRepository
}

// Open connects, applies the schema and returns a ready store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return NewStore(pool), nil
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:  pool,
		rooms: NewRoomRepository(pool),
		parts: NewParticipantRepository(pool),
	}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room) error {
	if err := s.rooms.Create(ctx, room); err != nil {
		return fmt.Errorf("roomRepo.Create: %w", err)
	}
	return nil
}

func (s *Store) EndRoom(ctx context.Context, roomID string, endedAt time.Time, recordingURL string) error {
	if err := s.rooms.End(ctx, roomID, endedAt, recordingURL); err != nil {
		return fmt.Errorf("roomRepo.End: %w", err)
	}
	return nil
}

// CreateSession inserts the session and the new peak in one transaction.
func (s *Store) CreateSession(ctx context.Context, p *domain.Session, peak int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := NewParticipantRepository(tx).Create(ctx, p); err != nil {
		return fmt.Errorf("participantRepo.Create: %w", err)
	}
	if err := NewRoomRepository(tx).SetPeak(ctx, p.RoomID, peak); err != nil {
		return fmt.Errorf("roomRepo.SetPeak: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) CloseSession(ctx context.Context, sessionID string, leftAt time.Time) error {
	if err := s.parts.Close(ctx, sessionID, leftAt); err != nil {
		return fmt.Errorf("participantRepo.Close: %w", err)
	}
	return nil
}

func (s *Store) UpdateMedia(ctx context.Context, sessionID string, cameraOn, micOn bool) error {
	if err := s.parts.UpdateMedia(ctx, sessionID, cameraOn, micOn); err != nil {
		return fmt.Errorf("participantRepo.UpdateMedia: %w", err)
	}
	return nil
}

func (s *Store) CountSessions(ctx context.Context, roomID string) (int, error) {
	return s.parts.CountInRoom(ctx, roomID)
}

func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	return s.rooms.List(ctx)
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.parts.List(ctx)
}
