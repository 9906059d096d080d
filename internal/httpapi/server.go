// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Matchday Contributors

// Package httpapi exposes the credential lifecycle over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/matchday/matchday/internal/auth"
	"github.com/matchday/matchday/internal/observability"
)

// Server serves the public auth API.
type Server struct {
	addr       string
	listener   net.Listener
	httpServer *http.Server
	handler    *AuthHandler
	running    atomic.Bool
}

// NewServer creates the API server.
// addr is a "host:port" listen address (e.g. ":8080").
func NewServer(
	addr string,
	service *auth.CredentialService,
	codec *auth.TokenCodec,
	limiter *auth.SlidingWindowLimiter,
	metrics *observability.Metrics,
) *Server {
	return &Server{
		addr:    addr,
		handler: NewAuthHandler(service, codec, limiter, metrics),
	}
}

// Router builds the chi router. Exposed so tests can drive the full
// middleware stack through httptest without binding a port.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	s.handler.Mount(r)
	return r
}

// Start begins serving the API. It returns an error channel that receives
// any post-start HTTP server error; the channel is closed on graceful
// stop. Callers should monitor it.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("api server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.With("addr", s.addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			slog.Error("api server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	slog.Info("api server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.running.Store(true)
			return oops.With("operation", "shutdown api server").Wrap(err)
		}
	}

	slog.Info("api server stopped")
	return nil
}

// Addr returns the bound listen address, or "" if not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
