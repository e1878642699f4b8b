package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server streams note transitions as server-sent events on /sse.
type Server struct {
	Addr      string
	Heartbeat time.Duration

	router *chi.Mux
	hub    *Broadcaster
	logger *charmlog.Logger
}

func NewServer(addr string, heartbeat time.Duration, hub *Broadcaster, logger *charmlog.Logger) *Server {
	s := &Server{
		Addr:      addr,
		Heartbeat: heartbeat,
		router:    chi.NewRouter(),
		hub:       hub,
		logger:    logger,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/sse", s.handleSSE)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","subscribers":%d}`, s.hub.Subscribers())
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}
	lines, leave, err := s.hub.Subscribe(16)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer leave()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	fmt.Fprint(w, "data: connected\n\n")
	flusher.Flush()
	s.logger.Info("client connected", "remote", r.RemoteAddr, "subscribers", s.hub.Subscribers())

	heartbeat := time.NewTicker(s.Heartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("client gone", "remote", r.RemoteAddr)
			return
		case line := <-lines:
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ":\n\n")
			flusher.Flush()
		}
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.Addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			s.logger.Error("shutdown", "err", err)
		}
	}()
	s.logger.Info("listening", "addr", s.Addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
