package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/EgorLis/wslogon/internal/observability"
	"github.com/EgorLis/wslogon/internal/session"
)

// sessionStatus: то, что admin-эндпоинт отдаёт о сессии.
type sessionStatus interface {
	ID() string
	State() session.State
	Authenticated() bool
	Pending() int
}

type healthResponse struct {
	Session       string `json:"session"`
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
	Pending       int    `json:"pending"`
}

func adminRouter(s sessionStatus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", observability.MetricsHandler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{
			Session:       s.ID(),
			State:         s.State().String(),
			Authenticated: s.Authenticated(),
			Pending:       s.Pending(),
		}
		w.Header().Set("Content-Type", "application/json")
		if !resp.Authenticated {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return r
}

func serveAdmin(addr string, s sessionStatus, logger zerolog.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: adminRouter(s), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("admin server")
		}
	}()
	logger.Info().Str("addr", addr).Msg("admin listening")
	return srv
}
