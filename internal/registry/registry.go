// Package registry holds live room and participant state and mirrors every
// mutation into a storage.Store before it becomes visible in memory.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cwrk-planet/meet-service/internal/domain"
	"github.com/cwrk-planet/meet-service/internal/storage"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL      = "https://meet.blackroad.io"
	DefaultHistoryLimit = 10

	idLen = 8
)

type Registry struct {
	mu       sync.Mutex
	store    storage.Store
	rooms    map[string]*domain.Room
	sessions map[string]*domain.Session
	byRoom   map[string][]*domain.Session // join order

	subMu sync.RWMutex
	subs  []func(domain.Event)

	baseURL    string
	defaultMax int
	now        func() time.Time
	newID      func() string
}

type Option func(*Registry)

func WithBaseURL(u string) Option {
	return func(r *Registry) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			r.baseURL = u
		}
	}
}

func WithDefaultMaxSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.defaultMax = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

func New(store storage.Store, opts ...Option) *Registry {
	r := &Registry{
		store:      store,
		rooms:      make(map[string]*domain.Room),
		sessions:   make(map[string]*domain.Session),
		byRoom:     make(map[string][]*domain.Session),
		baseURL:    DefaultBaseURL,
		defaultMax: domain.DefaultMaxSize,
		now:        time.Now,
		newID:      func() string { return uuid.NewString()[:idLen] },
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Load replaces the in-memory state with what the store holds. Current
// sessions rebuild each room's participant list in join order.
func (r *Registry) Load(ctx context.Context) error {
	rooms, err := r.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	sessions, err := r.store.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].JoinedAt.Before(sessions[j].JoinedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()

	r.rooms = make(map[string]*domain.Room, len(rooms))
	r.sessions = make(map[string]*domain.Session, len(sessions))
	r.byRoom = make(map[string][]*domain.Session, len(rooms))

	for i := range rooms {
		rm := rooms[i]
		rm.Participants = []string{}
		r.rooms[rm.ID] = &rm
	}
	for i := range sessions {
		s := sessions[i]
		rm, ok := r.rooms[s.RoomID]
		if !ok {
			slog.Warn("registry: session for unknown room", "session", s.ID, "room", s.RoomID)
			continue
		}
		r.sessions[s.ID] = &s
		r.byRoom[s.RoomID] = append(r.byRoom[s.RoomID], &s)
		if s.Current() {
			rm.Participants = append(rm.Participants, s.User)
		}
	}
	for _, rm := range r.rooms {
		if n := len(rm.Participants); n > rm.PeakParticipants {
			rm.PeakParticipants = n
		}
	}

	slog.Info("registry loaded", "rooms", len(r.rooms), "sessions", len(r.sessions))
	return nil
}

// Subscribe registers fn to receive every event after the mutation is stored.
func (r *Registry) Subscribe(fn func(domain.Event)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subs = append(r.subs, fn)
}

func (r *Registry) emit(ev domain.Event) {
	r.subMu.RLock()
	subs := r.subs
	r.subMu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// JoinURL is the public link for a room id.
func (r *Registry) JoinURL(roomID string) string {
	return r.baseURL + "/r/" + roomID
}

// uniqueID must be called with mu held.
func (r *Registry) uniqueID(taken func(string) bool) string {
	for {
		id := r.newID()
		if !taken(id) {
			return id
		}
	}
}
