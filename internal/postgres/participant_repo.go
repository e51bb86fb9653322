package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/storage"
)

type ParticipantRepository struct {
	q querier
}

func NewParticipantRepository(q querier) *ParticipantRepository {
	return &ParticipantRepository{q: q}
}

func (r *ParticipantRepository) Create(ctx context.Context, p *domain.Session) error {
	_, err := r.q.Exec(ctx, queryCreateSession,
		p.ID,
		p.RoomID,
		p.User,
		p.JoinedAt,
		p.LeftAt,
		boolToSmallint(p.CameraOn),
		boolToSmallint(p.MicOn),
	)
	return err
}

func (r *ParticipantRepository) Close(ctx context.Context, id string, leftAt time.Time) error {
	cmd, err := r.q.Exec(ctx, queryCloseSession, leftAt, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *ParticipantRepository) UpdateMedia(ctx context.Context, id string, cameraOn, micOn bool) error {
	cmd, err := r.q.Exec(ctx, queryUpdateMedia, boolToSmallint(cameraOn), boolToSmallint(micOn), id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *ParticipantRepository) CountInRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, queryCountSessions, roomID).Scan(&count)
	return count, err
}

func (r *ParticipantRepository) List(ctx context.Context) ([]domain.Session, error) {
	rows, err := r.q.Query(ctx, queryListSessions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []domain.Session
	for rows.Next() {
		var (
			p           domain.Session
			camera, mic int16
		)
		if err := rows.Scan(&p.ID, &p.RoomID, &p.User, &p.JoinedAt, &p.LeftAt, &camera, &mic); err != nil {
			return nil, err
		}
		p.CameraOn = camera != 0
		p.MicOn = mic != 0
		list = append(list, p)
	}
	return list, rows.Err()
}

func boolToSmallint(b bool) int16 {
	if b {
		return 1
	}
	return 0
}
