package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

// NewRouter wires the websocket endpoint and the admin API.
func NewRouter(admin *AdminHandler, ws *WSHandler, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", admin.Health)
	r.Get("/info", admin.Info)
	r.Get("/ws/{sessionId}", ws.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/join", admin.Join)
		r.Get("/leaderboard/{id}", admin.Leaderboard)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", admin.CreateSession)
			r.Get("/", admin.ListSessions)
			r.Get("/{id}", admin.GetSession)
			r.Delete("/{id}", admin.DeleteSession)
			r.Post("/{id}/{action}", admin.Control)
		})
	})

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	return c.Handler(r)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
