package common

import "context"

// AuthMode distinguishes wallet-mode (DirectSubmitter) from sponsored-mode
// (SponsoredSubmitter) sessions, carried per spec.md §4.4/§5's auto-flush
// policy: sponsored-mode users are auto-flushed on reconnect, wallet-mode
// users are not.
type AuthMode string

const (
	AuthModeDirect    AuthMode = "direct"
	AuthModeSponsored AuthMode = "sponsored"
)

// UserContext holds per-request identity resolved from the Authorization
// bearer token, injected into the request context by httpapi's auth
// middleware. When absent (nil), the request is unauthenticated and the
// core refuses any operation that requires a signer.
type UserContext struct {
	UserAddress string
	ChainID     int64
	Mode        AuthMode
}

type contextKey int

const userContextKey contextKey = iota

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// ResolveUserAddress returns the UserAddress from context, or "" if no user
// context is present.
func ResolveUserAddress(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil {
		return uc.UserAddress
	}
	return ""
}

// ResolveAuthMode returns the auth mode from context, defaulting to
// AuthModeDirect when absent.
func ResolveAuthMode(ctx context.Context) AuthMode {
	if uc := UserContextFromContext(ctx); uc != nil && uc.Mode != "" {
		return uc.Mode
	}
	return AuthModeDirect
}
