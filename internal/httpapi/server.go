// Package httpapi is the external interfaces layer of spec.md §6: REST
// routes for DraftStore CRUD, QueueController job submission/control, and
// MergeView reads, plus a WebSocket endpoint relaying EventBus activity.
// Built the way vire/internal/server wraps net/http: a thin Server struct
// over http.ServeMux and a shared middleware stack.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/eventbus"
	"github.com/bobmcallan/gardensync/internal/mergeview"
	"github.com/bobmcallan/gardensync/internal/queuecontroller"
	"github.com/bobmcallan/gardensync/internal/signerauth"
)

// Server wraps the HTTP server and its wired dependencies.
type Server struct {
	drafts  coreiface.DraftStore
	queue   *queuecontroller.Controller
	merge   *mergeview.View
	bus     *eventbus.Bus
	wshub   *eventbus.WSHub
	config  *common.Config
	logger  *common.Logger
	server  *http.Server
}

// NewServer wires every collaborator into an http.Server ready to Start.
func NewServer(drafts coreiface.DraftStore, queue *queuecontroller.Controller, merge *mergeview.View, bus *eventbus.Bus, wshub *eventbus.WSHub, provider signerauth.Provider, config *common.Config, logger *common.Logger) *Server {
	s := &Server{
		drafts: drafts,
		queue:  queue,
		merge:  merge,
		bus:    bus,
		wshub:  wshub,
		config: config,
		logger: logger,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, logger, config, provider)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler, for testing with httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting gardensync HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
