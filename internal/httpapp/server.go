package httpapp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/songpipe/internal/logger"
)

const shutdownTimeout = 5 * time.Second

// Server runs the status endpoints next to a continuous pipeline run.
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.RegisterRoutes(r)
	return r
}

func NewServer(addr string, h *Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(h),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: h.Logger,
	}
}

// Start listens in the background until Shutdown is called.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Status server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server error", "error", err)
		}
	}()
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
