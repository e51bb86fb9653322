package domain

import "time"

type RoomStatus string

const (
	RoomActive RoomStatus = "active"
	RoomEnded  RoomStatus = "ended"
)

const DefaultMaxSize = 50

type Room struct {
	ID               string     `db:"id"`
	Name             string     `db:"name"`
	Host             string     `db:"host"`
	Participants     []string   `db:"-"`
	MaxSize          int        `db:"max_size"`
	Status           RoomStatus `db:"status"`
	CreatedAt        time.Time  `db:"created_at"`
	EndedAt          *time.Time `db:"ended_at"`
	RecordingURL     string     `db:"recording_url"`
	PeakParticipants int        `db:"peak_participants"`
}

func (r *Room) Active() bool { return r.Status == RoomActive }

// DurationMinutes is the whole number of minutes between creation and end,
// nil while the room is still active.
func (r *Room) DurationMinutes() *int {
	if r.EndedAt == nil {
		return nil
	}
	secs := r.EndedAt.Sub(r.CreatedAt) / time.Second
	if secs < 0 {
		secs = 0
	}
	m := int(secs / 60)
	return &m
}

// SessionMedia is the media state of one current session.
type SessionMedia struct {
	SessionID string `json:"session_id"`
	User      string `json:"user"`
	CameraOn  bool   `json:"camera_on"`
	MicOn     bool   `json:"mic_on"`
}

type RoomSnapshot struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Host             string         `json:"host"`
	Participants     []string       `json:"participants"`
	MaxSize          int            `json:"max_size"`
	Status           RoomStatus     `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	EndedAt          *time.Time     `json:"ended_at"`
	RecordingURL     string         `json:"recording_url"`
	DurationMinutes  *int           `json:"duration_minutes"`
	PeakParticipants int            `json:"peak_participants"`
	Media            []SessionMedia `json:"media"`
}

type RoomStats struct {
	PeakParticipants int `json:"peak_participants"`
	DurationMinutes  int `json:"duration_min"`
	JoinEvents       int `json:"join_events"`
}
