package signerauth

import (
	"context"
	"sync"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
)

// Provider resolves the signer capability for an authenticated user, the
// concrete "authentication layer supplies a signer capability" external
// collaborator of spec.md §6. httpapi's bearer-token middleware calls this
// once per request after verifying the JWT, then attaches the result to the
// request context with WithSigner/WithSmartAccountClient.
type Provider interface {
	ForUser(ctx context.Context, userAddress string, mode common.AuthMode) (coreiface.Signer, coreiface.SmartAccountClient, error)
}

// Registry is an in-memory Provider keyed by user address, the wiring point
// a real wallet-connect/bundler integration registers against at login time.
// It is deliberately simple — actual wallet/bundler session management is
// outside the Submission & Sync Core's scope.
type Registry struct {
	mu           sync.RWMutex
	signers      map[string]coreiface.Signer
	smartClients map[string]coreiface.SmartAccountClient
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		signers:      make(map[string]coreiface.Signer),
		smartClients: make(map[string]coreiface.SmartAccountClient),
	}
}

// RegisterSigner attaches a wallet-mode signer for userAddress.
func (r *Registry) RegisterSigner(userAddress string, signer coreiface.Signer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signers[userAddress] = signer
}

// RegisterSmartAccountClient attaches a sponsored-mode client for userAddress.
func (r *Registry) RegisterSmartAccountClient(userAddress string, client coreiface.SmartAccountClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.smartClients[userAddress] = client
}

// Forget removes any registered capability for userAddress, e.g. on logout
// or wallet disconnect.
func (r *Registry) Forget(userAddress string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.signers, userAddress)
	delete(r.smartClients, userAddress)
}

// ForUser implements Provider.
func (r *Registry) ForUser(_ context.Context, userAddress string, mode common.AuthMode) (coreiface.Signer, coreiface.SmartAccountClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if mode == common.AuthModeSponsored {
		if client, ok := r.smartClients[userAddress]; ok {
			return nil, client, nil
		}
		return nil, nil, ErrNoSigner
	}
	if signer, ok := r.signers[userAddress]; ok {
		return signer, nil, nil
	}
	return nil, nil, ErrNoSigner
}
