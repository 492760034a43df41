// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api serves the diploma registry over HTTP: read-only queries plus
// submission of signed transactions.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

const DefaultListenAddress = ":8080"

// Config holds the API server settings
type Config struct {
	ListenAddress string
	// ShutdownTimeout bounds the graceful shutdown after the Start context ends
	ShutdownTimeout time.Duration
}

// Server is the registry REST API server.
type Server struct {
	config     Config
	logger     *slog.Logger
	node       RegistryNode
	httpServer *http.Server
	listenAddr net.Addr
	handler    http.Handler
	wg         sync.WaitGroup
	mu         sync.Mutex
}

// New creates a new API server instance.
func New(
	cfg Config,
	node RegistryNode,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	s := &Server{
		config: cfg,
		logger: logger,
		node:   node,
	}
	s.handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/registry", s.handleRegistry)
	mux.HandleFunc("GET /v1/diplomas", s.handleListDiplomas)
	mux.HandleFunc("GET /v1/diplomas/{id}", s.handleDiploma)
	mux.HandleFunc("GET /v1/diplomas/{id}/history", s.handleDiplomaHistory)
	mux.HandleFunc("POST /v1/transactions", s.handleSubmitTransaction)
	return mux
}

// Handler returns the API routes without a listener
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the bound listen address while the server is running
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listenAddr
}

// Start starts the HTTP server in a background goroutine. The server shuts
// down when ctx is done or Stop is called
func (s *Server) Start(
	ctx context.Context,
) error {
	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	server := &http.Server{
		Addr: s.config.ListenAddress,
		// Use h2c so we can serve HTTP/2 without TLS
		Handler:           h2c.NewHandler(s.handler, &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	done := s.serverDone(server)
	// Bind first so port conflicts are reported to the caller
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen for API server: %w", err)
	}
	s.httpServer = server
	s.listenAddr = ln.Addr()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	s.logger.Info(
		"API listener started on " + ln.Addr().String(),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		s.logger.Debug("context cancelled, shutting down API server")
		//nolint:contextcheck
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.config.ShutdownTimeout,
		)
		defer cancel()
		//nolint:contextcheck
		if err := s.shutdown(shutdownCtx, server); err != nil {
			s.logger.Error(
				"failed to shutdown API server on context cancellation",
				"error", err,
			)
		}
	}()
	return nil
}

// serverDone returns a channel closed once the server has been shut down
func (s *Server) serverDone(server *http.Server) <-chan struct{} {
	ch := make(chan struct{})
	server.RegisterOnShutdown(func() { close(ch) })
	return ch
}

func (s *Server) shutdown(ctx context.Context, server *http.Server) error {
	s.mu.Lock()
	if s.httpServer != server {
		// Already stopped
		s.mu.Unlock()
		return nil
	}
	s.httpServer = nil
	s.listenAddr = nil
	s.mu.Unlock()
	return server.Shutdown(ctx)
}

// Stop gracefully shuts down the HTTP server and waits for its goroutines
func (s *Server) Stop(
	ctx context.Context,
) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		s.logger.Debug("shutting down API server")
		if err := s.shutdown(ctx, srv); err != nil {
			return fmt.Errorf("failed to shutdown API server: %w", err)
		}
	}
	s.wg.Wait()
	return nil
}
