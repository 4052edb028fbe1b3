package httpapi

import "net/http"

// handleWebSocket serves GET /ws, upgrading the connection and scoping it to
// the authenticated user's queue events via WSHub.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}
	s.wshub.ServeWS(uc.UserAddress, w, r)
}
