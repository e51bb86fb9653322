package domain

import "time"

// Session is one user's join-to-leave interval within a room.
type Session struct {
	ID       string     `db:"id"`
	RoomID   string     `db:"room_id"`
	User     string     `db:"user"`
	JoinedAt time.Time  `db:"joined_at"`
	LeftAt   *time.Time `db:"left_at"`
	CameraOn bool       `db:"camera_on"`
	MicOn    bool       `db:"mic_on"`
}

func (s *Session) Current() bool { return s.LeftAt == nil }

// MediaUpdate carries independent optional camera/mic changes.
type MediaUpdate struct {
	Camera *bool
	Mic    *bool
}

func (u MediaUpdate) Empty() bool { return u.Camera == nil && u.Mic == nil }

func (u MediaUpdate) Apply(s *Session) {
	if u.Camera != nil {
		s.CameraOn = *u.Camera
	}
	if u.Mic != nil {
		s.MicOn = *u.Mic
	}
}
