// Package sqlite provides the default file-backed store for rooms and sessions.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/sqlite/migrations"
	"github.com/cwrk-planet/meet-service/internal/storage"

	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// DefaultPath is ~/.blackroad/meet.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".blackroad", "meet.db"), nil
}

// Open opens (creating if needed) the database file at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer keeps WAL happy and statements strictly ordered
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) CreateRoom(ctx context.Context, room *domain.Room) error {
	_, err := s.db.ExecContext(ctx, queryCreateRoom,
		room.ID,
		room.Name,
		room.Host,
		room.MaxSize,
		string(room.Status),
		formatTime(room.CreatedAt),
		formatTimePtr(room.EndedAt),
		room.RecordingURL,
		room.PeakParticipants,
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

func (s *Store) EndRoom(ctx context.Context, roomID string, endedAt time.Time, recordingURL string) error {
	res, err := s.db.ExecContext(ctx, queryEndRoom,
		string(domain.RoomEnded), formatTime(endedAt), recordingURL, roomID)
	if err != nil {
		return fmt.Errorf("end room: %w", err)
	}
	return expectOne(res)
}

func (s *Store) CreateSession(ctx context.Context, p *domain.Session, peak int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, queryCreateSession,
		p.ID,
		p.RoomID,
		p.User,
		formatTime(p.JoinedAt),
		formatTimePtr(p.LeftAt),
		boolToInt(p.CameraOn),
		boolToInt(p.MicOn),
	); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryUpdatePeak, peak, p.RoomID); err != nil {
		return fmt.Errorf("update peak: %w", err)
	}
	return tx.Commit()
}

func (s *Store) CloseSession(ctx context.Context, sessionID string, leftAt time.Time) error {
	res, err := s.db.ExecContext(ctx, queryCloseSession, formatTime(leftAt), sessionID)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return expectOne(res)
}

func (s *Store) UpdateMedia(ctx context.Context, sessionID string, cameraOn, micOn bool) error {
	res, err := s.db.ExecContext(ctx, queryUpdateMedia, boolToInt(cameraOn), boolToInt(micOn), sessionID)
	if err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	return expectOne(res)
}

func (s *Store) CountSessions(ctx context.Context, roomID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, queryCountSessions, roomID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

func (s *Store) ListRooms(ctx context.Context) ([]domain.Room, error) {
	rows, err := s.db.QueryContext(ctx, queryListRooms)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var out []domain.Room
	for rows.Next() {
		var (
			r         domain.Room
			status    string
			createdAt string
			endedAt   sql.NullString
			recording sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Host, &r.MaxSize, &status,
			&createdAt, &endedAt, &recording, &r.PeakParticipants); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		r.Status = domain.RoomStatus(status)
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if r.EndedAt, err = parseTimePtr(endedAt); err != nil {
			return nil, err
		}
		r.RecordingURL = recording.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, queryListSessions)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var (
			p        domain.Session
			joinedAt string
			leftAt   sql.NullString
			camera   int
			mic      int
		)
		if err := rows.Scan(&p.ID, &p.RoomID, &p.User, &joinedAt, &leftAt, &camera, &mic); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if p.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, err
		}
		if p.LeftAt, err = parseTimePtr(leftAt); err != nil {
			return nil, err
		}
		p.CameraOn = camera != 0
		p.MicOn = mic != 0
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- helpers ---

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// timeLayout is fixed-width ISO-8601 so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// naiveLayout reads zone-less timestamps written by older tools into the
// same file. They are local wall-clock times.
const naiveLayout = "2006-01-02T15:04:05.999999"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(naiveLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
