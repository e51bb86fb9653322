package ws

import "github.com/cwrk-planet/meet-service/internal/domain"

// TypeState is sent once on connect; every other frame carries a domain event
// and uses the event type as its message type.
const TypeState = "state"

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

func eventMessage(ev domain.Event) Message {
	return Message{Type: string(ev.Type), Payload: ev}
}
