package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Registry interface {
	CreateRoom(ctx context.Context, name, host string, maxSize int) (*domain.Room, string, error)
	JoinRoom(ctx context.Context, roomID, user string) (*domain.Session, error)
	LeaveRoom(ctx context.Context, roomID, user string) (*domain.Session, error)
	LeaveSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ToggleMedia(ctx context.Context, roomID, user string, upd domain.MediaUpdate) (*domain.Session, error)
	EndRoom(ctx context.Context, roomID, recordingURL string) (*domain.Room, error)
	GetRoom(roomID string) (domain.RoomSnapshot, bool)
	ActiveRooms() []domain.RoomSnapshot
	UserHistory(user string, n int) []domain.RoomSnapshot
	RoomStats(ctx context.Context, roomID string) (domain.RoomStats, error)
}

type Handler struct {
	reg          Registry
	validate     *validator.Validate
	historyLimit int
}

func NewHandler(reg Registry, historyLimit int) *Handler {
	return &Handler{
		reg:          reg,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		historyLimit: historyLimit,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json response failed", slog.Any("err", err))
	}
}

// writeErr maps domain errors onto status codes; anything else is a 500.
func writeErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve validator.ValidationErrors
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNotInRoom):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomEnded):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput), errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		logger.Ctx(r.Context()).Error("handler."+op, slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

// decode reads a JSON body into dst and validates it.
func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Join(domain.ErrInvalidInput, errors.New("invalid json"))
	}
	return h.validate.Struct(dst)
}

// POST /rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := h.decode(r, &req); err != nil {
		writeErr(w, r, "CreateRoom", err)
		return
	}
	room, url, err := h.reg.CreateRoom(r.Context(), req.Name, req.Host, req.MaxSize)
	if err != nil {
		writeErr(w, r, "CreateRoom", err)
		return
	}
	snap, _ := h.reg.GetRoom(room.ID)

	writeJSON(w, http.StatusCreated, CreateRoomResponse{Room: snap, JoinURL: url})
}

// GET /rooms
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RoomsListResponse{Items: h.reg.ActiveRooms()})
}

// GET /rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.reg.GetRoom(chi.URLParam(r, "id"))
	if !ok {
		writeErr(w, r, "GetRoom", domain.ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// POST /rooms/{id}/join
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if err := h.decode(r, &req); err != nil {
		writeErr(w, r, "JoinRoom", err)
		return
	}
	s, err := h.reg.JoinRoom(r.Context(), chi.URLParam(r, "id"), req.User)
	if err != nil {
		writeErr(w, r, "JoinRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionItem(s))
}

// POST /rooms/{id}/leave
func (h *Handler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if err := h.decode(r, &req); err != nil {
		writeErr(w, r, "LeaveRoom", err)
		return
	}
	s, err := h.reg.LeaveRoom(r.Context(), chi.URLParam(r, "id"), req.User)
	if err != nil {
		writeErr(w, r, "LeaveRoom", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionItem(s))
}

// POST /sessions/{id}/leave
func (h *Handler) LeaveSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.reg.LeaveSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, "LeaveSession", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionItem(s))
}

// PATCH /rooms/{id}/media
func (h *Handler) ToggleMedia(w http.ResponseWriter, r *http.Request) {
	var req MediaRequest
	if err := h.decode(r, &req); err != nil {
		writeErr(w, r, "ToggleMedia", err)
		return
	}
	s, err := h.reg.ToggleMedia(r.Context(), chi.URLParam(r, "id"), req.User,
		domain.MediaUpdate{Camera: req.Camera, Mic: req.Mic})
	if err != nil {
		writeErr(w, r, "ToggleMedia", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionItem(s))
}

// POST /rooms/{id}/end
func (h *Handler) EndRoom(w http.ResponseWriter, r *http.Request) {
	var req EndRoomRequest
	if r.ContentLength != 0 {
		if err := h.decode(r, &req); err != nil {
			writeErr(w, r, "EndRoom", err)
			return
		}
	}
	room, err := h.reg.EndRoom(r.Context(), chi.URLParam(r, "id"), req.RecordingURL)
	if err != nil {
		writeErr(w, r, "EndRoom", err)
		return
	}
	snap, _ := h.reg.GetRoom(room.ID)
	writeJSON(w, http.StatusOK, snap)
}

// GET /rooms/{id}/stats
func (h *Handler) RoomStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reg.RoomStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, r, "RoomStats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GET /users/{user}/history?n=
func (h *Handler) UserHistory(w http.ResponseWriter, r *http.Request) {
	n := h.historyLimit
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid n"})
			return
		}
		n = v
	}
	writeJSON(w, http.StatusOK, RoomsListResponse{Items: h.reg.UserHistory(chi.URLParam(r, "user"), n)})
}
