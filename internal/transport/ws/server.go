package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

type RoomReader interface {
	GetRoom(roomID string) (domain.RoomSnapshot, bool)
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	rooms    RoomReader

	pingEvery time.Duration
}

func NewServer(hub *Hub, rooms RoomReader) *Server {
	return &Server{
		hub:   hub,
		rooms: rooms,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		pingEvery: 15 * time.Second,
	}
}

// HandleWS streams the events of one room: GET /ws/rooms/{id}
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if _, ok := s.rooms.GetRoom(roomID); !ok {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		slog.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, roomID)
	// subscribe before the snapshot: events racing with it are queued behind
	// the state frame and at worst repeat what the snapshot already shows
	s.hub.Add(c)
	slog.Debug("ws connected", "room", roomID, "watchers", s.hub.Count(roomID))

	snap, _ := s.rooms.GetRoom(roomID)
	if err := c.write(Message{Type: TypeState, Payload: snap}); err != nil {
		slog.Warn("ws send initial state failed", "room", roomID, "err", err)
	}

	ctx, cancel := context.WithCancel(r.Context())
	go s.writeLoop(ctx, c)
	s.readLoop(c)
	cancel()

	s.hub.Remove(c)
	if err := c.Close(); err != nil {
		slog.Debug("ws close failed", "room", roomID, "err", err)
	}
}

// readLoop drains client frames so pongs and close frames are processed.
func (s *Server) readLoop(c *wsConn) {
	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.pingEvery))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer once the state frame is out.
func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case msg := <-c.out:
			if err := c.write(msg); err != nil {
				slog.Debug("ws write failed", "room", c.roomID, "err", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

const (
	writeWait = 5 * time.Second
	sendQueue = 64
)

var (
	errConnClosed   = errors.New("ws: connection closed")
	errSlowConsumer = errors.New("ws: send queue full")
)

type wsConn struct {
	conn      *websocket.Conn
	roomID    string
	out       chan Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newWsConn(c *websocket.Conn, roomID string) *wsConn {
	return &wsConn{
		conn:   c,
		roomID: roomID,
		out:    make(chan Message, sendQueue),
		closed: make(chan struct{}),
	}
}

// Send queues msg without blocking. A peer that lets the queue fill up is
// disconnected.
func (c *wsConn) Send(msg Message) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	default:
		_ = c.Close()
		return errSlowConsumer
	}
}

func (c *wsConn) write(msg Message) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) RoomID() string { return c.roomID }
