package httpapi

import (
	"net/http"
)

// registerRoutes sets up all REST + WebSocket routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)

	mux.HandleFunc("/api/drafts", s.handleDrafts)
	mux.HandleFunc("/api/drafts/", s.routeDrafts)
	mux.HandleFunc("/api/images/", s.handleImageDelete)

	mux.HandleFunc("/api/jobs", s.handleJobsCreate)
	mux.HandleFunc("/api/jobs/", s.routeJobs)
	mux.HandleFunc("/api/flush", s.handleFlush)
	mux.HandleFunc("/api/stats", s.handleStats)

	mux.HandleFunc("/api/mergeview/", s.handleMergeView)

	mux.HandleFunc("/ws", s.handleWebSocket)
}
