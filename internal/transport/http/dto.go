package http

import (
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Host    string `json:"host" validate:"required,max=200"`
	MaxSize int    `json:"max_size" validate:"gte=0,lte=10000"`
}

type CreateRoomResponse struct {
	Room    domain.RoomSnapshot `json:"room"`
	JoinURL string              `json:"join_url"`
}

type MemberRequest struct {
	User string `json:"user" validate:"required,max=200"`
}

type MediaRequest struct {
	User   string `json:"user" validate:"required,max=200"`
	Camera *bool  `json:"camera"`
	Mic    *bool  `json:"mic"`
}

type EndRoomRequest struct {
	RecordingURL string `json:"recording_url" validate:"omitempty,url"`
}

type RoomsListResponse struct {
	Items []domain.RoomSnapshot `json:"items"`
}

type SessionItem struct {
	ID       string     `json:"id"`
	RoomID   string     `json:"room_id"`
	User     string     `json:"user"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at"`
	CameraOn bool       `json:"camera_on"`
	MicOn    bool       `json:"mic_on"`
}

func toSessionItem(s *domain.Session) SessionItem {
	return SessionItem{
		ID:       s.ID,
		RoomID:   s.RoomID,
		User:     s.User,
		JoinedAt: s.JoinedAt,
		LeftAt:   s.LeftAt,
		CameraOn: s.CameraOn,
		MicOn:    s.MicOn,
	}
}
