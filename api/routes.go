package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes for the query server.
func (s *Server) setupRoutes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	router.HandleFunc("/api/v1/proposals", s.handleListProposals).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/proposals/{id}", s.handleGetProposal).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/proposals/{id}/votes", s.handleListVotes).Methods(http.MethodGet)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return router
}
