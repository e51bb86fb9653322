package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/meet-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/meet-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *Handler, wsServer *ws.Server, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)
	r.Use(httpmw.RequestID)
	r.Use(httpmw.Tracing)
	r.Use(httpmw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Traceparent", httpmw.HeaderRequestID},
		ExposedHeaders:   []string{httpmw.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WS endpoint, kept outside the timeout group
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/rooms", func(rm chi.Router) {
			rm.Post("/", h.CreateRoom)
			rm.Get("/", h.ListRooms)

			rm.Route("/{id}", func(rr chi.Router) {
				rr.Get("/", h.GetRoom)
				rr.Post("/join", h.JoinRoom)
				rr.Post("/leave", h.LeaveRoom)
				rr.Patch("/media", h.ToggleMedia)
				rr.Post("/end", h.EndRoom)
				rr.Get("/stats", h.RoomStats)
			})
		})

		pr.Post("/sessions/{id}/leave", h.LeaveSession)
		pr.Get("/users/{user}/history", h.UserHistory)
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
