// Package queuecontroller is the singleton coordinator of spec.md §4.6: it
// accepts new jobs, drains the queue for authenticated-and-online users, and
// emits every state transition through the EventBus. It generalizes vire's
// jobmanager/manager.go (Start/Stop, safeGo panic-recovering goroutines) and
// jobmanager/queue.go (enqueue/dequeue/complete plus broadcast) to a
// per-user single-writer worker loop gated by a cross-tab lease rather than
// a free-running processor pool — spec.md §5 rules out background worker
// threads, so draining only happens inside an explicit AddJob/ProcessJob/
// Flush call, driven by the caller's goroutine and context.
package queuecontroller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/eventbus"
	"github.com/bobmcallan/gardensync/internal/jobrunner"
	"github.com/bobmcallan/gardensync/internal/models"
	"github.com/bobmcallan/gardensync/internal/signerauth"
	"github.com/bobmcallan/gardensync/internal/submitter"
)

const (
	defaultLeaseTTL = 20 * time.Second
	defaultPurgeAge = 24 * time.Hour
	purgeScanPeriod = 10 * time.Minute
)

// Controller is the QueueController singleton.
type Controller struct {
	drafts coreiface.DraftStore
	jobs   coreiface.JobStore
	leases coreiface.LeaseStore
	chain  coreiface.ChainRPC
	online coreiface.OnlineSignal
	runner *jobrunner.Runner
	bus    *eventbus.Bus
	logger *common.Logger

	holderID string
	leaseTTL time.Duration
	purgeAge time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Controller. A fresh, random holderID identifies this
// process's lease ownership, mirroring the way a browser tab's lease
// identity is tied to its own lifetime.
func New(drafts coreiface.DraftStore, jobs coreiface.JobStore, leases coreiface.LeaseStore, chain coreiface.ChainRPC, online coreiface.OnlineSignal, runner *jobrunner.Runner, bus *eventbus.Bus, logger *common.Logger) *Controller {
	return &Controller{
		drafts:   drafts,
		jobs:     jobs,
		leases:   leases,
		chain:    chain,
		online:   online,
		runner:   runner,
		bus:      bus,
		logger:   logger,
		holderID: uuid.New().String(),
		leaseTTL: defaultLeaseTTL,
		purgeAge: defaultPurgeAge,
	}
}

// safeGo launches a goroutine with panic recovery and logging, matching
// jobmanager.JobManager.safeGo.
func (c *Controller) safeGo(name string, fn func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in queue controller goroutine")
			}
		}()
		fn()
	}()
}

// Start resets any jobs orphaned by a crashed prior process back to pending
// and launches the background succeeded-job purge sweep. It does not launch
// any job-processing loop — spec.md §5 rules out background worker threads;
// processing only happens inside AddJob/ProcessJob/Flush.
func (c *Controller) Start(ctx context.Context) {
	if c.cancel != nil {
		c.Stop()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if count, err := c.jobs.ResetOrphanedProcessing(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to reset orphaned processing jobs")
	} else if count > 0 {
		c.logger.Info().Int("count", count).Msg("Reset orphaned processing jobs to pending")
	}

	c.safeGo("purge-sweep", func() { c.purgeLoop(runCtx) })

	c.logger.Info().Str("holder_id", c.holderID).Msg("Queue controller started")
}

// Stop cancels the purge sweep and waits for it to exit.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.wg.Wait()
	c.logger.Info().Msg("Queue controller stopped")
}

func (c *Controller) purgeLoop(ctx context.Context) {
	ticker := time.NewTicker(purgeScanPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.purgeAge)
			if n, err := c.jobs.PurgeSucceeded(ctx, cutoff); err != nil {
				c.logger.Warn().Err(err).Msg("Purge sweep: failed to purge succeeded jobs")
			} else if n > 0 {
				c.logger.Debug().Int("count", n).Msg("Purge sweep: purged succeeded jobs")
			}
		}
	}
}

// AddOpts carries the optional fields addJob accepts beyond kind+payload.
type AddOpts struct {
	ClientOpID string
}

// AddJob enqueues a new job and, for online users, immediately attempts to
// drain the queue so online submissions get synchronous-feeling completion
// ("inline processing") while still going through the same durable-queue
// path an offline submission would. It never blocks on inline processing
// for longer than the caller's context allows.
func (c *Controller) AddJob(ctx context.Context, kind models.JobKind, work *models.WorkJobPayload, approval *models.ApprovalJobPayload, userAddress string, chainID int64, opts AddOpts) (*models.Job, error) {
	if work != nil {
		if work.Metadata == nil {
			work.Metadata = make(map[string]string, 2)
		}
		work.Metadata["clientOpId"] = opts.ClientOpID
		work.Metadata["submittedAt"] = time.Now().UTC().Format(time.RFC3339)
	}

	job := &models.Job{
		Kind:            kind,
		UserAddress:     userAddress,
		ChainID:         chainID,
		WorkPayload:     work,
		ApprovalPayload: approval,
		ClientOpID:      opts.ClientOpID,
		Status:          models.JobStatusPending,
	}

	saved, err := c.jobs.PutJob(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("queue controller: add job: %w", err)
	}

	c.bus.Emit(models.QueueEvent{Type: models.EventJobAdded, Job: saved, Timestamp: time.Now()})

	if c.online != nil && c.online.IsOnline() {
		if _, err := c.drain(ctx, userAddress); err != nil {
			c.logger.Warn().Str("job_id", saved.ID).Err(err).Msg("AddJob: inline drain failed")
		}
	}

	return saved, nil
}

// ProcessResult is processJob's answer: the job's terminal outcome, or a
// zero-value result if the job is still pending/processing because the
// lease could not be acquired this call.
type ProcessResult struct {
	Success bool   `json:"success"`
	TxID    string `json:"txId,omitempty"`
	Skipped bool   `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// terminalResult reports job's ProcessResult if it is already in a terminal
// status, so ProcessJob can satisfy "processJob on an already-terminal job
// returns that job's terminal result without side effects" without ever
// calling drain.
func terminalResult(job *models.Job) (*ProcessResult, bool) {
	switch job.Status {
	case models.JobStatusSucceeded:
		return &ProcessResult{Success: true, TxID: job.TxID}, true
	case models.JobStatusSkipped:
		return &ProcessResult{Skipped: true}, true
	case models.JobStatusFailed:
		return &ProcessResult{Error: job.LastError}, true
	default:
		return nil, false
	}
}

// ProcessJob drains userAddress's queue up to and including jobID. Because
// jobs for a user execute strictly in createdAt order (spec.md §5), there is
// no way to process one job out of turn — this call simply drains until the
// requested job reaches a terminal status or the lease cannot be acquired.
func (c *Controller) ProcessJob(ctx context.Context, userAddress, jobID string) (*ProcessResult, error) {
	for {
		job, err := c.jobs.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if result, ok := terminalResult(job); ok {
			return result, nil
		}
		processed, err := c.drain(ctx, userAddress)
		if err != nil {
			return nil, err
		}
		if processed == 0 {
			return &ProcessResult{}, nil // lease unavailable or nothing eligible right now
		}
	}
}

// SubmitDraft converts a draft and its images into a work job, enqueues it
// through AddJob, and destroys the draft once the job is durably persisted
// — AddJob only returns once PutJob has succeeded, so the delete below never
// races a crash between enqueue and draft removal (spec.md §3 draft
// lifecycle).
func (c *Controller) SubmitDraft(ctx context.Context, draftID, userAddress string, chainID int64, opts AddOpts) (*models.Job, error) {
	draft, err := c.drafts.GetDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("queue controller: submit draft: load draft: %w", err)
	}
	images, err := c.drafts.GetImagesForDraft(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("queue controller: submit draft: load images: %w", err)
	}

	work := &models.WorkJobPayload{
		TargetResourceID: draft.TargetResourceID,
		ActionID:         draft.ActionID,
		Feedback:         draft.Feedback,
		Selections:       draft.Selections,
		Count:            draft.Count,
		Images:           make([]models.WorkImage, len(images)),
	}
	for i, img := range images {
		work.Images[i] = models.WorkImage{Blob: img.Blob, ContentType: img.ContentType}
	}

	job, err := c.AddJob(ctx, models.JobKindWork, work, nil, userAddress, chainID, opts)
	if err != nil {
		return nil, err
	}

	if err := c.drafts.DeleteDraft(ctx, draftID); err != nil {
		c.logger.Warn().Str("draft_id", draftID).Str("job_id", job.ID).Err(err).
			Msg("submit draft: job persisted but draft delete failed, draft will resurface to the user")
	}

	return job, nil
}

// Flush drains every eligible pending job for userAddress. Returns the
// number of jobs processed to completion/failure/skip in this call.
func (c *Controller) Flush(ctx context.Context, userAddress string) (int, error) {
	return c.drain(ctx, userAddress)
}

// HandleOnlineTransition implements the auto-flush policy of spec.md §5:
// only sponsored-mode users are auto-flushed on reconnect; wallet-mode users
// must flush explicitly to avoid a surprise wallet prompt.
func (c *Controller) HandleOnlineTransition(ctx context.Context, userAddress string) {
	if common.ResolveAuthMode(ctx) != common.AuthModeSponsored {
		return
	}
	if _, err := c.Flush(ctx, userAddress); err != nil {
		c.logger.Warn().Str("user_address", userAddress).Err(err).Msg("Auto-flush on reconnect failed")
	}
}

// HasPending reports whether userAddress has any pending or processing job.
func (c *Controller) HasPending(ctx context.Context, userAddress string) (bool, error) {
	stats, err := c.jobs.Stats(ctx, userAddress)
	if err != nil {
		return false, err
	}
	return stats.Pending > 0 || stats.Processing > 0, nil
}

// GetStats returns userAddress's queue stats.
func (c *Controller) GetStats(ctx context.Context, userAddress string) (models.QueueStats, error) {
	return c.jobs.Stats(ctx, userAddress)
}

// drain acquires the cross-tab lease for userAddress and claims/runs jobs
// one at a time until the queue is empty, the lease cannot be renewed, or
// ctx is cancelled. It is the single chokepoint enforcing the per-user
// single-writer invariant alongside JobStore.ClaimNext.
func (c *Controller) drain(ctx context.Context, userAddress string) (processed int, err error) {
	c.bus.Emit(models.QueueEvent{Type: models.EventQueueSyncStarted, Timestamp: time.Now()})
	defer func() {
		c.bus.Emit(models.QueueEvent{Type: models.EventQueueSyncCompleted, Timestamp: time.Now()})
	}()

	acquired, err := c.leases.Acquire(ctx, userAddress, c.holderID, c.leaseTTL)
	if err != nil {
		return 0, fmt.Errorf("queue controller: acquire lease: %w", err)
	}
	if !acquired {
		c.logger.Debug().Str("user_address", userAddress).Msg("drain: lease held by another tab, not processing")
		return 0, nil
	}
	defer func() {
		if err := c.leases.Release(ctx, userAddress, c.holderID); err != nil {
			c.logger.Warn().Str("user_address", userAddress).Err(err).Msg("drain: failed to release lease")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return processed, nil
		default:
		}

		job, err := c.jobs.ClaimNext(ctx, userAddress, time.Now())
		if err != nil {
			return processed, fmt.Errorf("queue controller: claim next: %w", err)
		}
		if job == nil {
			return processed, nil
		}

		c.bus.Emit(models.QueueEvent{Type: models.EventJobProcessing, Job: job, Timestamp: time.Now()})

		sub, err := c.resolveSubmitter(ctx)
		if err != nil {
			// No signer/smart-account client available this call — return the
			// job to pending so the next drain with a signer claims it again.
			job.Status = models.JobStatusPending
			if saveErr := c.jobs.SaveProgress(ctx, job); saveErr != nil {
				c.logger.Warn().Str("job_id", job.ID).Err(saveErr).Msg("drain: failed to return job to pending")
			}
			c.logger.Debug().Str("user_address", userAddress).Err(err).Msg("drain: no signer available, stopping")
			return processed, nil
		}

		outcome, err := c.runner.Run(ctx, job, sub)
		if err != nil {
			return processed, fmt.Errorf("queue controller: run job %s: %w", job.ID, err)
		}
		c.emitOutcome(job, outcome)
		processed++

		if renewed, err := c.leases.Renew(ctx, userAddress, c.holderID, c.leaseTTL); err != nil {
			c.logger.Warn().Str("user_address", userAddress).Err(err).Msg("drain: failed to renew lease")
		} else if !renewed {
			return processed, nil
		}
	}
}

func (c *Controller) resolveSubmitter(ctx context.Context) (submitter.Submitter, error) {
	signer, smartClient, err := signerauth.ResolveForMode(ctx)
	if err != nil {
		return nil, err
	}
	if smartClient != nil {
		return submitter.NewSponsoredSubmitter(c.chain, smartClient), nil
	}
	return submitter.NewDirectSubmitter(c.chain, signer), nil
}

func (c *Controller) emitOutcome(job *models.Job, outcome *jobrunner.Outcome) {
	evt := models.QueueEvent{Job: job, TxID: outcome.TxID, Timestamp: time.Now()}
	switch outcome.Status {
	case models.JobStatusSucceeded:
		evt.Type = models.EventJobCompleted
	case models.JobStatusSkipped:
		evt.Type = models.EventJobSkipped
	case models.JobStatusFailed:
		evt.Type = models.EventJobFailed
		evt.Error = job.LastError
	case models.JobStatusPending:
		// Transient failure rescheduled for retry: reported as job_failed,
		// but the job stays pending and is claimed again once
		// nextEligibleAt has passed.
		evt.Type = models.EventJobFailed
		evt.Error = job.LastError
	default:
		return
	}
	c.bus.Emit(evt)
}
