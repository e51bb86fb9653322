package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomEnded       = errors.New("room has ended")
	ErrNotInRoom       = errors.New("user not in the room")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidInput    = errors.New("invalid input")
)
