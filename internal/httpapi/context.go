package httpapi

import (
	"net/http"

	"github.com/bobmcallan/gardensync/internal/common"
)

// requireUserContext returns the authenticated UserContext attached by
// bearerTokenMiddleware, writing a 401 and returning false if absent —
// which should not happen for any route behind applyMiddleware, but is
// checked defensively since handlers must never trust an empty user address.
func requireUserContext(w http.ResponseWriter, r *http.Request) (*common.UserContext, bool) {
	uc := common.UserContextFromContext(r.Context())
	if uc == nil || uc.UserAddress == "" {
		WriteError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return uc, true
}
