package jobstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/gardensync/internal/errs"
	"github.com/bobmcallan/gardensync/internal/models"
	"github.com/bobmcallan/gardensync/internal/surrealtest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	c := surrealtest.Start(t)
	return New(c.DB, surrealtest.Logger())
}

func newJob(userAddress, clientOpID string) *models.Job {
	return &models.Job{
		UserAddress: userAddress,
		ClientOpID:  clientOpID,
		Kind:        models.JobKindWork,
		CreatedAt:   time.Now(),
	}
}

func TestPutJob_DedupReturnsExistingJobForSameClientOpID(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	first, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)

	second, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestClaimNext_ClaimsOldestPendingJobAndMarksProcessing(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	j1, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = s.PutJob(ctx, newJob("0xuser", "op-2"))
	require.NoError(t, err)

	claimed, err := s.ClaimNext(ctx, "0xuser", time.Now())
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, j1.ID, claimed.ID)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)
}

func TestClaimNext_ReturnsNilWhenNothingEligible(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	claimed, err := s.ClaimNext(ctx, "0xuser", time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestClaimNext_SkipsJobsNotYetEligible(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	job := newJob("0xuser", "op-1")
	job.NextEligibleAt = time.Now().Add(1 * time.Hour)
	_, err := s.PutJob(ctx, job)
	require.NoError(t, err)

	claimed, err := s.ClaimNext(ctx, "0xuser", time.Now())
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func TestComplete_SetsSucceededStatusAndTxID(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	job, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, job.ID, "0xabc"))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusSucceeded, got.Status)
	assert.Equal(t, "0xabc", got.TxID)
}

func TestFail_TransientKeepsJobPendingForRetry(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	job, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)

	retryAt := time.Now().Add(30 * time.Second)
	require.NoError(t, s.Fail(ctx, job.ID, string(errs.Transient), "rpc timeout", retryAt))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, "rpc timeout", got.LastError)
}

func TestFail_PermanentMarksJobFailedTerminal(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	job, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)

	require.NoError(t, s.Fail(ctx, job.ID, string(errs.Permanent), "bad payload", time.Time{}))

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
}

func TestResetOrphanedProcessing_ResetsToPending(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	job, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)
	_, err = s.ClaimNext(ctx, "0xuser", time.Now())
	require.NoError(t, err)

	n, err := s.ResetOrphanedProcessing(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestListByUser_OrdersByCreatedAtAscending(t *testing.T) {
	s := newTestStore(t)
	ctx := t.Context()

	j1, err := s.PutJob(ctx, newJob("0xuser", "op-1"))
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	j2, err := s.PutJob(ctx, newJob("0xuser", "op-2"))
	require.NoError(t, err)

	jobs, err := s.ListByUser(ctx, "0xuser")
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, j1.ID, jobs[0].ID)
	assert.Equal(t, j2.ID, jobs[1].ID)
}

func TestGet_UnknownJobIsErrNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(t.Context(), "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)
}
