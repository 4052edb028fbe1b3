// Package signerauth is the auth layer contract: it resolves the signer
// capability described in spec.md §6 out of a request-scoped context,
// generalizing vire/internal/common/userctx.go's
// WithUserContext/UserContextFromContext pair and ResolveUserID's
// context-or-default resolution pattern.
package signerauth

import (
	"context"
	"errors"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
)

// ErrNoSigner is returned when a request has no authenticated signer
// attached — the job's current step boundary must treat this as a reason
// to re-queue rather than fail.
var ErrNoSigner = errors.New("signerauth: no signer available for context")

type contextKey int

const (
	signerKey             contextKey = iota
	smartAccountClientKey contextKey = iota
)

// WithSigner attaches a wallet-mode Signer to the context, as the auth
// layer would after a successful wallet connection.
func WithSigner(ctx context.Context, signer coreiface.Signer) context.Context {
	return context.WithValue(ctx, signerKey, signer)
}

// WithSmartAccountClient attaches a sponsored-mode SmartAccountClient to the
// context.
func WithSmartAccountClient(ctx context.Context, client coreiface.SmartAccountClient) context.Context {
	return context.WithValue(ctx, smartAccountClientKey, client)
}

// ResolveSigner returns the wallet-mode signer attached to ctx, or
// ErrNoSigner if absent. Each call re-resolves from ctx rather than caching.
// QueueController resolves the submitter once per claimed job, so a signer
// change takes effect from the next job, not between the steps of a job
// that is already running.
func ResolveSigner(ctx context.Context) (coreiface.Signer, error) {
	signer, _ := ctx.Value(signerKey).(coreiface.Signer)
	if signer == nil {
		return nil, ErrNoSigner
	}
	return signer, nil
}

// ResolveSmartAccountClient returns the sponsored-mode client attached to
// ctx, or ErrNoSigner if absent.
func ResolveSmartAccountClient(ctx context.Context) (coreiface.SmartAccountClient, error) {
	client, _ := ctx.Value(smartAccountClientKey).(coreiface.SmartAccountClient)
	if client == nil {
		return nil, ErrNoSigner
	}
	return client, nil
}

// ResolveForMode resolves whichever capability matches the UserContext's
// auth mode, returning exactly one of the two non-nil.
func ResolveForMode(ctx context.Context) (coreiface.Signer, coreiface.SmartAccountClient, error) {
	mode := common.ResolveAuthMode(ctx)
	switch mode {
	case common.AuthModeSponsored:
		client, err := ResolveSmartAccountClient(ctx)
		return nil, client, err
	default:
		signer, err := ResolveSigner(ctx)
		return signer, nil, err
	}
}
