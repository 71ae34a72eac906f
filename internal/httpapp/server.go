// Package httpapp is the JSON API the jukebox clients talk to.
package httpapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vheinola/utuputki/internal/config"
	"github.com/vheinola/utuputki/internal/jukebox"
	"github.com/vheinola/utuputki/internal/logger"
)

type Server struct {
	srv *http.Server
	log *logger.Logger
}

func New(cfg config.WebServer, jb *jukebox.Jukebox, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.Default()
	}
	log = log.WithComponent("httpapp")

	router, err := newRouter(cfg, jb, log)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.SetKeepAlivesEnabled(cfg.KeepAlive)
	if cfg.KeepAlive && cfg.KeepAliveTimeoutMS > 0 {
		srv.IdleTimeout = time.Duration(cfg.KeepAliveTimeoutMS) * time.Millisecond
	}

	return &Server{srv: srv, log: log}, nil
}

func newRouter(cfg config.WebServer, jb *jukebox.Jukebox, log *logger.Logger) (chi.Router, error) {
	acl, err := parseACL(cfg.ACL)
	if err != nil {
		return nil, fmt.Errorf("invalid acl: %w", err)
	}

	forwarders := make(map[string]struct{}, len(cfg.Forwarders))
	for _, f := range cfg.Forwarders {
		forwarders[f] = struct{}{}
	}

	h := &handler{jukebox: jb, debug: cfg.Debug, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if acl != nil {
		r.Use(acl.middleware)
	}
	r.Use(clientIdentity(jb, forwarders))

	r.Route("/api", func(r chi.Router) {
		r.Post("/media", h.addMedia)
		r.Get("/media", h.listMedia)
		r.Get("/playlist", h.playlist)
		r.Get("/history", h.history)
		r.Get("/nowplaying", h.nowPlaying)
		r.Post("/skip", h.skip)
	})

	return r, nil
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start begins serving in the background. Listen errors other than a clean
// shutdown are reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Web server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Web server shutting down")
	return s.srv.Shutdown(ctx)
}
