package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/logger"
	"github.com/cwrk-planet/meet-service/internal/registry"
	"github.com/cwrk-planet/meet-service/internal/sqlite"
	"github.com/cwrk-planet/meet-service/internal/transport/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newTestRouter(t *testing.T) (http.Handler, *registry.Registry) {
	t.Helper()
	st, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "meet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	reg := registry.New(st, registry.WithBaseURL("http://meet.test"))
	hub := ws.NewHub()
	reg.Subscribe(hub.Publish)

	return NewRouter(NewHandler(reg, 10), ws.NewServer(hub, reg), nil), reg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	r := httptest.NewRequest(method, path, rd)
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createRoom(t *testing.T, h http.Handler, body string) CreateRoomResponse {
	t.Helper()
	w := do(t, h, http.MethodPost, "/rooms", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody[CreateRoomResponse](t, w)
}

func TestHealthz(t *testing.T) {
	h, _ := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestCreateRoom_HTTP(t *testing.T) {
	req := require.New(t)
	h, _ := newTestRouter(t)

	out := createRoom(t, h, `{"name":"Standup","host":"alice","max_size":3}`)
	req.Len(out.Room.ID, 8)
	req.Equal("http://meet.test/r/"+out.Room.ID, out.JoinURL)
	req.Equal(3, out.Room.MaxSize)
	req.Equal(domain.RoomActive, out.Room.Status)

	// default capacity
	out = createRoom(t, h, `{"name":"Sync","host":"bob"}`)
	req.Equal(domain.DefaultMaxSize, out.Room.MaxSize)

	w := do(t, h, http.MethodPost, "/rooms", `{"host":"alice"}`)
	req.Equal(http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/rooms", `not json`)
	req.Equal(http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/rooms", "")
	req.Equal(http.StatusOK, w.Code)
	req.Len(decodeBody[RoomsListResponse](t, w).Items, 2)
}

func TestMembership_HTTP(t *testing.T) {
	req := require.New(t)
	h, _ := newTestRouter(t)
	id := createRoom(t, h, `{"name":"r","host":"alice","max_size":1}`).Room.ID

	w := do(t, h, http.MethodPost, "/rooms/"+id+"/join", `{"user":"bob"}`)
	req.Equal(http.StatusOK, w.Code, w.Body.String())
	sess := decodeBody[SessionItem](t, w)
	req.Equal("bob", sess.User)
	req.True(sess.CameraOn)
	req.True(sess.MicOn)

	w = do(t, h, http.MethodPost, "/rooms/"+id+"/join", `{"user":"carol"}`)
	req.Equal(http.StatusConflict, w.Code)

	w = do(t, h, http.MethodPost, "/rooms/missing/join", `{"user":"carol"}`)
	req.Equal(http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPatch, "/rooms/"+id+"/media", `{"user":"bob","camera":false}`)
	req.Equal(http.StatusOK, w.Code, w.Body.String())
	sess = decodeBody[SessionItem](t, w)
	req.False(sess.CameraOn)
	req.True(sess.MicOn)

	w = do(t, h, http.MethodGet, "/rooms/"+id, "")
	req.Equal(http.StatusOK, w.Code)
	snap := decodeBody[domain.RoomSnapshot](t, w)
	req.Equal([]string{"bob"}, snap.Participants)
	req.Len(snap.Media, 1)
	req.False(snap.Media[0].CameraOn)

	w = do(t, h, http.MethodPost, "/rooms/"+id+"/leave", `{"user":"bob"}`)
	req.Equal(http.StatusOK, w.Code)
	req.NotNil(decodeBody[SessionItem](t, w).LeftAt)

	w = do(t, h, http.MethodPost, "/rooms/"+id+"/leave", `{"user":"bob"}`)
	req.Equal(http.StatusNotFound, w.Code)
}

func TestLeaveSession_HTTP(t *testing.T) {
	req := require.New(t)
	h, _ := newTestRouter(t)
	id := createRoom(t, h, `{"name":"r","host":"alice"}`).Room.ID

	w := do(t, h, http.MethodPost, "/rooms/"+id+"/join", `{"user":"bob"}`)
	req.Equal(http.StatusOK, w.Code)
	sid := decodeBody[SessionItem](t, w).ID

	w = do(t, h, http.MethodPost, "/sessions/"+sid+"/leave", "")
	req.Equal(http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/sessions/"+sid+"/leave", "")
	req.Equal(http.StatusNotFound, w.Code)
}

func TestEndRoom_StatsAndHistory_HTTP(t *testing.T) {
	req := require.New(t)
	h, _ := newTestRouter(t)
	id := createRoom(t, h, `{"name":"r","host":"alice"}`).Room.ID

	for _, u := range []string{"bob", "carol"} {
		w := do(t, h, http.MethodPost, "/rooms/"+id+"/join", `{"user":"`+u+`"}`)
		req.Equal(http.StatusOK, w.Code)
	}

	w := do(t, h, http.MethodPost, "/rooms/"+id+"/end", `{"recording_url":"notaurl"}`)
	req.Equal(http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/rooms/"+id+"/end", `{"recording_url":"https://rec.example/1"}`)
	req.Equal(http.StatusOK, w.Code, w.Body.String())
	snap := decodeBody[domain.RoomSnapshot](t, w)
	req.Equal(domain.RoomEnded, snap.Status)
	req.Equal("https://rec.example/1", snap.RecordingURL)
	req.Equal([]string{"bob", "carol"}, snap.Participants)
	req.NotNil(snap.DurationMinutes)

	// ending again without a body keeps the room ended
	w = do(t, h, http.MethodPost, "/rooms/"+id+"/end", "")
	req.Equal(http.StatusOK, w.Code)

	w = do(t, h, http.MethodPost, "/rooms/"+id+"/join", `{"user":"dave"}`)
	req.Equal(http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, "/rooms/"+id+"/stats", "")
	req.Equal(http.StatusOK, w.Code)
	stats := decodeBody[domain.RoomStats](t, w)
	req.Equal(2, stats.PeakParticipants)
	req.Equal(2, stats.JoinEvents)

	w = do(t, h, http.MethodGet, "/rooms/missing/stats", "")
	req.Equal(http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/users/bob/history", "")
	req.Equal(http.StatusOK, w.Code)
	hist := decodeBody[RoomsListResponse](t, w)
	req.Len(hist.Items, 1)
	req.Equal(id, hist.Items[0].ID)

	w = do(t, h, http.MethodGet, "/users/bob/history?n=zero", "")
	req.Equal(http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/users/nobody/history", "")
	req.Equal(http.StatusOK, w.Code)
	req.Empty(decodeBody[RoomsListResponse](t, w).Items)
}

func TestCORS_Preflight(t *testing.T) {
	h, _ := newTestRouter(t)
	r := httptest.NewRequest(http.MethodOptions, "/rooms", nil)
	r.Header.Set("Origin", "http://app.test")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocket_StreamsRoomEvents(t *testing.T) {
	req := require.New(t)
	h, reg := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx := context.Background()
	room, _, err := reg.CreateRoom(ctx, "r", "alice", 0)
	req.NoError(err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + room.ID
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.NoError(err)
	defer conn.Close()
	req.Equal(http.StatusSwitchingProtocols, resp.StatusCode)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	req.NoError(conn.ReadJSON(&msg))
	req.Equal(ws.TypeState, msg.Type)
	var snap domain.RoomSnapshot
	req.NoError(json.Unmarshal(msg.Payload, &snap))
	req.Equal(room.ID, snap.ID)

	_, err = reg.JoinRoom(ctx, room.ID, "bob")
	req.NoError(err)

	req.NoError(conn.ReadJSON(&msg))
	req.Equal(string(domain.EventPeerJoined), msg.Type)
	var ev domain.Event
	req.NoError(json.Unmarshal(msg.Payload, &ev))
	req.Equal("bob", ev.User)
	req.Equal(room.ID, ev.RoomID)
}

func TestWebSocket_UnknownRoom(t *testing.T) {
	h, _ := newTestRouter(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/missing"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTracing_SpanPerRequestAndTraceIDInLogs(t *testing.T) {
	req := require.New(t)

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	var logs bytes.Buffer
	logger.Init(logger.Config{
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &logs,
	})
	t.Cleanup(func() { logger.Init(logger.Config{Output: io.Discard}) })

	h, _ := newTestRouter(t)
	created := createRoom(t, h, `{"name":"Standup","host":"alice"}`)
	w := do(t, h, http.MethodGet, "/rooms/"+created.Room.ID+"/stats", "")
	req.Equal(http.StatusOK, w.Code)

	spans := rec.Ended()
	req.Len(spans, 2)
	req.True(strings.HasPrefix(spans[0].Name(), "POST /rooms"), spans[0].Name())
	req.Equal(trace.SpanKindServer, spans[0].SpanKind())
	req.Equal("GET /rooms/{id}/stats", spans[1].Name())

	traceIDs := map[string]bool{}
	for _, s := range spans {
		traceIDs[s.SpanContext().TraceID().String()] = true
	}

	var logged int
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var m map[string]any
		req.NoError(json.Unmarshal([]byte(line), &m), line)
		if m["msg"] != "http request" {
			continue
		}
		logged++
		id, _ := m["trace_id"].(string)
		req.True(traceIDs[id], "access log trace_id %q does not match a request span", id)
	}
	req.Equal(2, logged)
}
