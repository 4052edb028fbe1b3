// Package onlinesignal implements coreiface.OnlineSignal with a
// periodically-refreshed HTTP reachability probe against the chain RPC
// endpoint, built the way chainclient.Client holds a shared *http.Client
// with an explicit timeout rather than relying on http.DefaultClient.
package onlinesignal

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/bobmcallan/gardensync/internal/common"
)

// Prober reports whether the chain RPC endpoint currently answers, caching
// the result between probes so QueueController's per-call IsOnline checks
// never block on a network round trip.
type Prober struct {
	url        string
	httpClient *http.Client
	logger     *common.Logger
	online     atomic.Bool

	cancel context.CancelFunc
}

// New builds a Prober targeting url (typically the chain RPC base URL) and
// assumes online until the first probe says otherwise.
func New(url string, logger *common.Logger) *Prober {
	p := &Prober{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
	p.online.Store(true)
	return p
}

// IsOnline implements coreiface.OnlineSignal.
func (p *Prober) IsOnline() bool {
	return p.online.Load()
}

// Start launches the background probe loop at the given interval.
func (p *Prober) Start(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			p.probe(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the probe loop.
func (p *Prober) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
}

func (p *Prober) probe(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, p.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, p.url, nil)
	if err != nil {
		p.online.Store(false)
		return
	}

	resp, err := p.httpClient.Do(req)
	wasOnline := p.online.Load()
	if err != nil {
		p.online.Store(false)
		if wasOnline {
			p.logger.Warn().Err(err).Str("url", p.url).Msg("Chain endpoint unreachable, marking offline")
		}
		return
	}
	resp.Body.Close()

	p.online.Store(true)
	if !wasOnline {
		p.logger.Info().Str("url", p.url).Msg("Chain endpoint reachable again, marking online")
	}
}
