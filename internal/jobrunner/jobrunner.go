// Package jobrunner executes a single Job through the eight-step pipeline
// of spec.md §4.5: guard (dedup) → simulate → upload → encode → submit →
// await confirmation → reconcile → complete. It generalizes vire's
// jobmanager/executor.go dispatch switch and jobmanager/watcher.go
// exponential-backoff scan loop into one strictly-ordered, idempotent run.
package jobrunner

import (
	"context"
	"errors"
	"time"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/encoder"
	"github.com/bobmcallan/gardensync/internal/errs"
	"github.com/bobmcallan/gardensync/internal/mediauploader"
	"github.com/bobmcallan/gardensync/internal/models"
	"github.com/bobmcallan/gardensync/internal/submitter"
)

const (
	reconcileAttempts = 6
	reconcileInterval = 2500 * time.Millisecond
)

// Outcome is the result of one Run call, used by QueueController to decide
// whether to emit job_completed/job_failed/job_skipped and whether the
// worker loop should continue draining.
type Outcome struct {
	Status JobStatus
	TxID   string
}

// JobStatus mirrors models.JobStatus for the subset of terminal/retry
// outcomes a single Run call can produce.
type JobStatus = models.JobStatus

// Runner executes jobs against a fixed recipient contract address and a set
// of collaborators resolved once per run (signer/smart-account client vary
// per call since the auth layer may change between jobs).
type Runner struct {
	jobs      coreiface.JobStore
	indexer   coreiface.Indexer
	media     *mediauploader.Uploader
	recipient string
	logger    *common.Logger
}

// New builds a Runner. recipient is the schema-registry contract address
// submissions are sent to — on-chain contract internals beyond this are a
// declared non-goal (spec.md §1).
func New(jobs coreiface.JobStore, indexer coreiface.Indexer, media *mediauploader.Uploader, recipient string, logger *common.Logger) *Runner {
	return &Runner{jobs: jobs, indexer: indexer, media: media, recipient: recipient, logger: logger}
}

// Run drives job through the full pipeline, persisting every state
// transition to JobStore so a crash at any point resumes correctly. It never
// returns an error to the caller for classified failures — those are
// persisted on the job and reflected in the returned Outcome; only
// unexpected (unclassified) bugs propagate as an error.
func (r *Runner) Run(ctx context.Context, job *models.Job, sub submitter.Submitter) (*Outcome, error) {
	log := r.logger.WithCorrelationId(job.ID)

	if skipped, err := r.guard(ctx, job); err != nil {
		return nil, err
	} else if skipped {
		log.Info().Str("client_op_id", job.ClientOpID).Msg("job skipped: dedup match in indexer")
		return &Outcome{Status: models.JobStatusSkipped}, nil
	}

	encodedSim, encodeErr := r.encodeForStep(job, true)
	if encodeErr != nil {
		return r.terminal(ctx, job, encodeErr, log)
	}

	if err := sub.Simulate(ctx, encodedSim, r.recipient); err != nil {
		return r.terminal(ctx, job, err, log)
	}

	if job.Kind == models.JobKindWork && job.WorkPayload != nil {
		if err := r.uploadImages(ctx, job, log); err != nil {
			return r.terminal(ctx, job, err, log)
		}
	}

	encodedReal, encodeErr := r.encodeForStep(job, false)
	if encodeErr != nil {
		return r.terminal(ctx, job, encodeErr, log)
	}

	txID, err := sub.Submit(ctx, encodedReal, r.recipient)
	if err != nil {
		return r.terminal(ctx, job, err, log)
	}
	log.Info().Str("tx_id", txID).Msg("transaction submitted")

	receipt, err := sub.AwaitConfirmation(ctx, txID)
	if err != nil {
		return r.terminal(ctx, job, err, log)
	}
	if err := submitter.ClassifyReceipt(receipt); err != nil {
		return r.terminal(ctx, job, err, log)
	}

	r.reconcile(ctx, job, log)

	if err := r.jobs.Complete(ctx, job.ID, txID); err != nil {
		return nil, err
	}
	log.Info().Str("tx_id", txID).Msg("job completed")
	return &Outcome{Status: models.JobStatusSucceeded, TxID: txID}, nil
}

// guard implements step 1: if clientOpId already appears as a confirmed
// attestation in the indexer, the job is skipped rather than resubmitted.
func (r *Runner) guard(ctx context.Context, job *models.Job) (bool, error) {
	item, err := r.indexer.ByClientOpID(ctx, job.ChainID, job.ClientOpID)
	if err != nil {
		// Indexer unavailability never blocks a submission attempt.
		r.logger.Warn().Err(err).Msg("guard: indexer query failed, proceeding without dedup check")
		return false, nil
	}
	if item == nil {
		return false, nil
	}
	if err := r.jobs.Skip(ctx, job.ID, "dedup match found in indexer"); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Runner) encodeForStep(job *models.Job, simulation bool) ([]byte, error) {
	switch job.Kind {
	case models.JobKindWork:
		if simulation {
			return encoder.EncodeForSimulation(job.WorkPayload)
		}
		return encoder.EncodeForSubmission(job.WorkPayload)
	case models.JobKindApproval:
		return encoder.EncodeApproval(job.ApprovalPayload)
	default:
		return nil, errs.Permanentf("unknown job kind %q", job.Kind)
	}
}

// uploadImages implements step 3: upload any image whose uploadedIds[]
// slot is still null, persisting after each successful upload so a crash
// resumes from that slot instead of re-uploading.
func (r *Runner) uploadImages(ctx context.Context, job *models.Job, log *common.Logger) error {
	payload := job.WorkPayload
	blobs := make([][]byte, len(payload.Images))
	contentTypes := make([]string, len(payload.Images))
	uploadedIDs := make([]*string, len(payload.Images))
	for i, img := range payload.Images {
		blobs[i] = img.Blob
		contentTypes[i] = img.ContentType
		uploadedIDs[i] = img.UploadedID
	}

	err := r.media.UploadAll(ctx, blobs, contentTypes, uploadedIDs, func(index int, id string) error {
		payload.Images[index].UploadedID = &id
		log.Debug().Int("slot", index).Str("media_id", id).Msg("image uploaded")
		return r.jobs.SaveProgress(ctx, job)
	})
	if err != nil {
		return err
	}
	return nil
}

// reconcile implements step 7: poll the indexer up to reconcileAttempts times,
// reconcileInterval apart (about 15s in all), until the new attestation is
// visible or the attempts run out. The interval is fixed; it does not grow
// between attempts. Reconciliation failing to observe the tx does not block
// completion — the tx already confirmed on-chain; MergeView will pick it up
// on the next indexer read once it catches up.
func (r *Runner) reconcile(ctx context.Context, job *models.Job, log *common.Logger) {
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		item, err := r.indexer.ByClientOpID(ctx, job.ChainID, job.ClientOpID)
		if err == nil && item != nil {
			log.Debug().Int("attempt", attempt+1).Msg("reconcile: attestation visible in indexer")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconcileInterval):
		}
	}
	log.Debug().Int("attempts", reconcileAttempts).Msg("reconcile: attestation not yet visible, giving up for this run")
}

// terminal classifies err and persists the resulting job state: Transient
// and Lease return to pending with a backoff-scheduled nextEligibleAt;
// everything else (Cancelled, KnownContractRevert, UnknownRevert, Permanent)
// becomes a terminal failed job.
func (r *Runner) terminal(ctx context.Context, job *models.Job, err error, log *common.Logger) (*Outcome, error) {
	kind := errs.KindOf(err)
	var nextEligibleAt time.Time
	if errs.IsRetryable(err) {
		nextEligibleAt = time.Now().Add(nextEligibleDelay(job.Attempts))
	}

	if failErr := r.jobs.Fail(ctx, job.ID, string(kind), err.Error(), nextEligibleAt); failErr != nil {
		return nil, errors.Join(err, failErr)
	}

	status := models.JobStatusFailed
	if errs.IsRetryable(err) {
		status = models.JobStatusPending
	}
	log.Warn().Str("kind", string(kind)).Err(err).Msg("job terminated this run")
	return &Outcome{Status: status}, nil
}
