// Package jobstore is the SurrealDB-backed implementation of
// coreiface.JobStore, generalizing vire's
// internal/storage/surrealdb/jobqueue.go two-step select-then-
// conditional-update dequeue to a per-user, nextEligibleAt-gated FIFO claim
// with a dedup index on (userAddress, clientOpId).
package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/errs"
	"github.com/bobmcallan/gardensync/internal/models"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("jobstore: not found")

const table = "job_queue"

// row is the on-the-wire shape of a job_queue record. Indexed columns are
// duplicated out of Payload for querying; Payload carries the full tagged
// Job (including any still-unuploaded image bytes) so a crash can resume
// exactly where it left off.
type row struct {
	ID             string    `json:"id"`
	UserAddress    string    `json:"user_address"`
	ClientOpID     string    `json:"client_op_id"`
	Status         string    `json:"status"`
	NextEligibleAt time.Time `json:"next_eligible_at"`
	CreatedAt      time.Time `json:"created_at"`
	Payload        string    `json:"payload"`
}

// Store implements coreiface.JobStore using SurrealDB.
type Store struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// New creates a new jobstore.Store over an already-connected SurrealDB handle.
func New(db *surrealdb.DB, logger *common.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func recordID(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(table, id)
}

func toRow(job *models.Job) (row, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return row{}, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	return row{
		ID:             job.ID,
		UserAddress:    job.UserAddress,
		ClientOpID:     job.ClientOpID,
		Status:         string(job.Status),
		NextEligibleAt: job.NextEligibleAt,
		CreatedAt:      job.CreatedAt,
		Payload:        string(data),
	}, nil
}

func fromRow(r row) (*models.Job, error) {
	var job models.Job
	if err := json.Unmarshal([]byte(r.Payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
	}
	return &job, nil
}

// PutJob inserts or updates a job. When a job already exists for the same
// (userAddress, clientOpId), whatever its status, it is returned unchanged —
// addJob is idempotent.
func (s *Store) PutJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.ClientOpID == "" {
		job.ClientOpID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = models.JobStatusPending
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	existing, err := s.findByClientOpID(ctx, job.UserAddress, job.ClientOpID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.logger.Debug().Str("job_id", existing.ID).Str("client_op_id", job.ClientOpID).
			Msg("PutJob: dedup match, returning existing job")
		return existing, nil
	}

	r, err := toRow(job)
	if err != nil {
		return nil, err
	}

	sql := `CREATE $rid SET
		user_address = $user_address, client_op_id = $client_op_id, status = $status,
		next_eligible_at = $next_eligible_at, created_at = $created_at, payload = $payload`
	vars := map[string]any{
		"rid":              recordID(job.ID),
		"user_address":     r.UserAddress,
		"client_op_id":     r.ClientOpID,
		"status":           r.Status,
		"next_eligible_at": r.NextEligibleAt,
		"created_at":       r.CreatedAt,
		"payload":          r.Payload,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return nil, fmt.Errorf("failed to put job: %w", err)
	}
	return job, nil
}

// findByClientOpID is the dedup-index lookup backing PutJob's idempotence.
func (s *Store) findByClientOpID(ctx context.Context, userAddress, clientOpID string) (*models.Job, error) {
	sql := fmt.Sprintf("SELECT * FROM %s WHERE user_address = $user_address AND client_op_id = $client_op_id LIMIT 1", table)
	vars := map[string]any{"user_address": userAddress, "client_op_id": clientOpID}
	results, err := surrealdb.Query[[]row](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query dedup index: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	return fromRow((*results)[0].Result[0])
}

// ClaimNext atomically claims the oldest pending job whose NextEligibleAt is
// due for the user, transitioning it to processing. This is the single
// chokepoint enforcing the single-writer-per-user invariant.
func (s *Store) ClaimNext(ctx context.Context, userAddress string, now time.Time) (*models.Job, error) {
	selectSQL := fmt.Sprintf(`SELECT * FROM %s WHERE user_address = $user_address AND status = $pending
		AND next_eligible_at <= $now ORDER BY created_at ASC LIMIT 1`, table)
	vars := map[string]any{
		"user_address": userAddress,
		"pending":      string(models.JobStatusPending),
		"now":          now,
	}
	candidates, err := surrealdb.Query[[]row](ctx, s.db, selectSQL, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to select claim candidate: %w", err)
	}
	if candidates == nil || len(*candidates) == 0 || len((*candidates)[0].Result) == 0 {
		return nil, nil
	}
	candidate := (*candidates)[0].Result[0]

	updateSQL := fmt.Sprintf(`UPDATE $rid SET status = $processing WHERE status = $pending`)
	updateVars := map[string]any{
		"rid":        recordID(candidate.ID),
		"processing": string(models.JobStatusProcessing),
		"pending":    string(models.JobStatusPending),
	}
	updated, err := surrealdb.Query[[]row](ctx, s.db, updateSQL, updateVars)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if updated == nil || len(*updated) == 0 || len((*updated)[0].Result) == 0 {
		// Another tab/process claimed it first between select and update.
		return nil, nil
	}

	job, err := fromRow(candidate)
	if err != nil {
		return nil, err
	}
	job.Status = models.JobStatusProcessing
	job.Attempts++
	job.UpdatedAt = time.Now()
	if err := s.SaveProgress(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Get returns a single job by id.
func (s *Store) Get(ctx context.Context, jobID string) (*models.Job, error) {
	sql := fmt.Sprintf("SELECT * FROM %s WHERE id = $rid", table)
	results, err := surrealdb.Query[[]row](ctx, s.db, sql, map[string]any{"rid": recordID(jobID)})
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	return fromRow((*results)[0].Result[0])
}

// SaveProgress persists in-place mutations to a job (e.g. a newly uploaded
// image id) without changing its status, so a crash mid-upload resumes from
// the last completed slot.
func (s *Store) SaveProgress(ctx context.Context, job *models.Job) error {
	job.UpdatedAt = time.Now()
	r, err := toRow(job)
	if err != nil {
		return err
	}
	sql := `UPDATE $rid SET status = $status, next_eligible_at = $next_eligible_at, payload = $payload`
	vars := map[string]any{
		"rid":              recordID(job.ID),
		"status":           r.Status,
		"next_eligible_at": r.NextEligibleAt,
		"payload":          r.Payload,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to save job progress: %w", err)
	}
	return nil
}

// Complete transitions a job to succeeded with the given txId.
func (s *Store) Complete(ctx context.Context, jobID string, txID string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = models.JobStatusSucceeded
	job.TxID = txID
	job.LastError = ""
	job.LastErrorKind = ""
	return s.SaveProgress(ctx, job)
}

// Fail transitions a job to either pending (transient, will retry at
// nextEligibleAt) or failed (permanent, terminal), depending on kind.
func (s *Store) Fail(ctx context.Context, jobID string, kind string, errMsg string, nextEligibleAt time.Time) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.LastError = errMsg
	job.LastErrorKind = kind
	if errs.Kind(kind) == errs.Transient || errs.Kind(kind) == errs.Lease {
		job.Status = models.JobStatusPending
		job.NextEligibleAt = nextEligibleAt
	} else {
		job.Status = models.JobStatusFailed
	}
	return s.SaveProgress(ctx, job)
}

// Skip transitions a job to skipped (dedup match found in the indexer).
func (s *Store) Skip(ctx context.Context, jobID string, reason string) error {
	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	job.Status = models.JobStatusSkipped
	job.LastError = reason
	job.LastErrorKind = string(errs.Skipped)
	return s.SaveProgress(ctx, job)
}

// ListByUser returns a user's jobs ordered by CreatedAt ascending.
func (s *Store) ListByUser(ctx context.Context, userAddress string) ([]*models.Job, error) {
	sql := fmt.Sprintf("SELECT * FROM %s WHERE user_address = $user_address ORDER BY created_at ASC", table)
	results, err := surrealdb.Query[[]row](ctx, s.db, sql, map[string]any{"user_address": userAddress})
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	var jobs []*models.Job
	if results != nil && len(*results) > 0 {
		for _, r := range (*results)[0].Result {
			job, err := fromRow(r)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// Stats summarizes a user's job counts by status.
func (s *Store) Stats(ctx context.Context, userAddress string) (models.QueueStats, error) {
	jobs, err := s.ListByUser(ctx, userAddress)
	if err != nil {
		return models.QueueStats{}, err
	}
	var stats models.QueueStats
	for _, j := range jobs {
		stats.Total++
		switch j.Status {
		case models.JobStatusPending:
			stats.Pending++
		case models.JobStatusProcessing:
			stats.Processing++
		case models.JobStatusSucceeded:
			stats.Succeeded++
		case models.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// ResetOrphanedProcessing resets all jobs left "processing" by a crashed
// prior process back to "pending", generalizing
// JobQueueStore.ResetRunningJobs. Called on QueueController.Start.
func (s *Store) ResetOrphanedProcessing(ctx context.Context) (int, error) {
	sql := fmt.Sprintf("SELECT * FROM %s WHERE status = $processing", table)
	results, err := surrealdb.Query[[]row](ctx, s.db, sql, map[string]any{"processing": string(models.JobStatusProcessing)})
	if err != nil {
		return 0, fmt.Errorf("failed to find orphaned jobs: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}

	count := 0
	now := time.Now()
	for _, r := range (*results)[0].Result {
		job, err := fromRow(r)
		if err != nil {
			return count, err
		}
		job.Status = models.JobStatusPending
		job.NextEligibleAt = now
		if err := s.SaveProgress(ctx, job); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		s.logger.Info().Int("count", count).Msg("Reset orphaned processing jobs to pending")
	}
	return count, nil
}

// PurgeSucceeded deletes succeeded jobs whose created_at is before olderThan.
// This sweep is the only retention bound: reconciliation does not purge a
// job, so a succeeded job stays until a sweep's cutoff passes it.
func (s *Store) PurgeSucceeded(ctx context.Context, olderThan time.Time) (int, error) {
	sql := fmt.Sprintf("SELECT * FROM %s WHERE status = $succeeded AND created_at < $cutoff", table)
	results, err := surrealdb.Query[[]row](ctx, s.db, sql, map[string]any{
		"succeeded": string(models.JobStatusSucceeded),
		"cutoff":    olderThan,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to find purgeable jobs: %w", err)
	}
	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	count := 0
	for _, r := range (*results)[0].Result {
		if _, err := surrealdb.Delete[any](ctx, s.db, recordID(r.ID)); err != nil {
			return count, fmt.Errorf("failed to purge job %s: %w", r.ID, err)
		}
		count++
	}
	return count, nil
}

// Delete removes a job unconditionally. Callers must only invoke this for
// jobs with status in {pending, failed}; a processing job cannot be deleted.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if _, err := surrealdb.Delete[any](ctx, s.db, recordID(jobID)); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
