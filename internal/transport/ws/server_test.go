package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type staticRooms struct {
	mu   sync.Mutex
	snap domain.RoomSnapshot
	// onGet runs inside GetRoom after the first call, to race an event with it
	onGet func()
	calls int
}

func (r *staticRooms) GetRoom(id string) (domain.RoomSnapshot, bool) {
	r.mu.Lock()
	r.calls++
	hook := r.onGet
	calls := r.calls
	snap := r.snap
	r.mu.Unlock()
	if id != snap.ID {
		return domain.RoomSnapshot{}, false
	}
	if calls > 1 && hook != nil {
		hook()
	}
	return snap, true
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestHandleWS_StateFrameComesFirst(t *testing.T) {
	req := require.New(t)
	hub := NewHub()
	rooms := &staticRooms{snap: domain.RoomSnapshot{ID: "room0001", Participants: []string{"alice"}}}
	// an event published while the snapshot is being taken must still reach the
	// client, and only after the state frame
	rooms.onGet = func() {
		hub.Publish(domain.Event{Type: domain.EventPeerJoined, RoomID: "room0001", User: "bob", At: time.Now()})
	}

	r := chi.NewRouter()
	r.Get("/ws/rooms/{id}", NewServer(hub, rooms).HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/rooms/room0001"), nil)
	req.NoError(err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first, second map[string]any
	req.NoError(conn.ReadJSON(&first))
	req.Equal(TypeState, first["type"])
	req.NoError(conn.ReadJSON(&second))
	req.Equal(string(domain.EventPeerJoined), second["type"])
}

func TestWsConn_SlowConsumerIsDropped(t *testing.T) {
	req := require.New(t)

	serverSide := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverSide <- c
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/"), nil)
	req.NoError(err)
	defer client.Close()

	// no writer is draining the queue, as with a peer that stopped reading
	c := newWsConn(<-serverSide, "a")
	hub := NewHub()
	hub.Add(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendQueue+10; i++ {
			hub.Publish(domain.Event{Type: domain.EventPeerJoined, RoomID: "a", At: time.Now()})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled connection")
	}

	select {
	case <-c.closed:
	default:
		t.Fatal("overflowing connection was not closed")
	}
	req.ErrorIs(c.Send(Message{Type: "late"}), errConnClosed)
}
