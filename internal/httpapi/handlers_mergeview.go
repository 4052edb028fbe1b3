package httpapi

import (
	"net/http"
	"strconv"
)

// handleMergeView serves GET /api/mergeview/{resourceId}?chainId=... —
// the merged confirmed/recently-submitted/queued timeline of spec.md §4.8.
func (s *Server) handleMergeView(w http.ResponseWriter, r *http.Request) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	resourceID := PathParam(r, "/api/mergeview/", "")
	if resourceID == "" {
		WriteError(w, http.StatusBadRequest, "resource id required")
		return
	}

	chainID := uc.ChainID
	if raw := r.URL.Query().Get("chainId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid chainId")
			return
		}
		chainID = parsed
	}

	items, err := s.merge.ForResource(r.Context(), chainID, resourceID, uc.UserAddress)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to build merge view: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, items)
}
