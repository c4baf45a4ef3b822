package http

import (
	"net/http"

	"github.com/SteamVC/OfficeHours_Town/internal/handlers"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h *handlers.TownHandler, wsHandler *handlers.WebSocketHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Session-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/api/v1/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api/v1/towns", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{townId}", h.Get)
		r.Delete("/{townId}", h.Delete)
		r.Post("/{townId}/join", h.Join)
		r.Post("/{townId}/touch", h.Touch)
		r.Get("/{townId}/tas", h.TAs)
		r.Get("/{townId}/officehours/{areaId}", h.OfficeHours)
		r.Get("/{townId}/officehours/{areaId}/queue", h.Queue)
		// WebSocketエンドポイント（?token=セッショントークン）
		r.Get("/{townId}/ws", wsHandler.HandleWebSocket)
	})

	return r
}
