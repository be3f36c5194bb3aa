// Package server assembles the MCP server and runs it over the configured
// transport: stdio for a single local client, or streamable HTTP with the
// health and metrics endpoints alongside.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/m4xw311/telegram-mcp/auth"
	"github.com/m4xw311/telegram-mcp/config"
	"github.com/m4xw311/telegram-mcp/errors"
	"github.com/m4xw311/telegram-mcp/logger"
	"github.com/m4xw311/telegram-mcp/session"
	"github.com/m4xw311/telegram-mcp/telegram"
	"github.com/m4xw311/telegram-mcp/telemetry"
	"github.com/m4xw311/telegram-mcp/tools"
)

const (
	serverName    = "telegram-mcp"
	serverVersion = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

// Server ties the session pool, the tool surface and a transport together.
type Server struct {
	cfg      *config.Config
	sessions *session.Manager
	mcp      *server.MCPServer
	started  time.Time
}

// New builds the server. The connector decides which platform client backs
// the sessions; it is injected so tests and test mode can swap it.
func New(cfg *config.Config, connector telegram.Connector) *Server {
	// The durations were validated at config load.
	idleTTL, _ := cfg.IdleTTL()
	cleanupInterval, _ := cfg.CleanupInterval()
	connectTimeout, _ := cfg.ConnectTimeout()
	sessions := session.NewManager(cfg, connector, session.Options{
		IdleTTL:         idleTTL,
		CleanupInterval: cleanupInterval,
		ConnectTimeout:  connectTimeout,
		MaxSessions:     cfg.Sessions.MaxSessions,
	})

	// Bearer auth only makes sense on a network transport.
	authRequired := cfg.AuthRequired && cfg.Transport == config.TransportHTTP

	mcpServer := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	tools.NewHandler(cfg, sessions, authRequired).Register(mcpServer)

	return &Server{cfg: cfg, sessions: sessions, mcp: mcpServer, started: time.Now()}
}

// Run serves until ctx is cancelled, then tears down every session.
func (s *Server) Run(ctx context.Context) error {
	s.sessions.Start(ctx)
	defer func() {
		s.sessions.Stop()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.sessions.Cleanup(cleanupCtx)
	}()

	switch s.cfg.Transport {
	case config.TransportStdio:
		return s.runStdio(ctx)
	case config.TransportHTTP:
		return s.runHTTP(ctx)
	default:
		return errors.NewKind(errors.KindValidation, "unknown transport %q", s.cfg.Transport)
	}
}

func (s *Server) runStdio(ctx context.Context) error {
	logger.Infow("serving on stdio", "server", serverName, "version", serverVersion)
	stdio := server.NewStdioServer(s.mcp)
	if err := stdio.Listen(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return errors.Wrapf(err, "stdio server failed")
	}
	return nil
}

func (s *Server) runHTTP(ctx context.Context) error {
	streamable := server.NewStreamableHTTPServer(s.mcp,
		server.WithEndpointPath("/mcp"),
		server.WithHTTPContextFunc(auth.HTTPContextFunc),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", telemetry.Handler())
	r.Handle("/mcp", streamable)
	r.Handle("/mcp/*", streamable)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("serving on http", "addr", addr, "auth_required", s.cfg.AuthRequired)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrapf(err, "http server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrapf(err, "http shutdown failed")
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := s.sessions.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"server":         serverName,
		"version":        serverVersion,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"sessions":       stats,
	})
}
