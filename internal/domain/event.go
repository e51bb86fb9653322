package domain

import "time"

type EventType string

const (
	EventRoomCreated  EventType = "room_created"
	EventPeerJoined   EventType = "peer_joined"
	EventPeerLeft     EventType = "peer_left"
	EventMediaChanged EventType = "media_changed"
	EventRoomEnded    EventType = "room_ended"
)

type Event struct {
	Type      EventType `json:"type"`
	RoomID    string    `json:"room_id"`
	User      string    `json:"user,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	CameraOn  *bool     `json:"camera_on,omitempty"`
	MicOn     *bool     `json:"mic_on,omitempty"`
	At        time.Time `json:"at"`
}
