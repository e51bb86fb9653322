package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/storage"
)

type RoomRepository struct {
	q querier
}

func NewRoomRepository(q querier) *RoomRepository {
	return &RoomRepository{q: q}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	_, err := r.q.Exec(ctx, queryCreateRoom,
		room.ID,
		room.Name,
		room.Host,
		room.MaxSize,
		string(room.Status),
		room.CreatedAt,
		room.EndedAt,
		room.RecordingURL,
		room.PeakParticipants,
	)
	return err
}

func (r *RoomRepository) End(ctx context.Context, id string, endedAt time.Time, recordingURL string) error {
	cmd, err := r.q.Exec(ctx, queryEndRoom, string(domain.RoomEnded), endedAt, recordingURL, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *RoomRepository) SetPeak(ctx context.Context, id string, peak int) error {
	cmd, err := r.q.Exec(ctx, queryUpdatePeak, peak, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *RoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.q.Query(ctx, queryListRooms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []domain.Room
	for rows.Next() {
		var (
			rm        domain.Room
			status    string
			recording *string
		)
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.Host, &rm.MaxSize, &status,
			&rm.CreatedAt, &rm.EndedAt, &recording, &rm.PeakParticipants); err != nil {
			return nil, err
		}
		rm.Status = domain.RoomStatus(status)
		if recording != nil {
			rm.RecordingURL = *recording
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}
