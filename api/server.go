// Package api serves the read-side query endpoints for the governance
// engine: proposal listings, single-proposal detail with derived
// participation rates, recorded votes, health and metrics.
package api

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadastrelabs/landgov/store"
)

// Server provides the HTTP query endpoints.
type Server struct {
	logger zerolog.Logger
	store  *store.ProposalStore
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(logger zerolog.Logger, proposals *store.ProposalStore, port int) *Server {
	s := &Server{
		logger: logger.With().Str("component", "query_server").Logger(),
		store:  proposals,
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.setupRoutes(),
	}

	return s
}

// Start starts the HTTP server. It verifies the port can be bound before
// returning so wiring errors surface at startup rather than on first query.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("query server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch err {
		case nil:
			s.logger.Info().Msg("Query server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("Query server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("Query server error")
		}
	}()

	select {
	case err := <-startupChan:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}
