package mergeview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/models"
)

type fakeIndexer struct {
	items []coreiface.IndexerItem
}

func (f *fakeIndexer) ByResource(ctx context.Context, chainID int64, resourceID string) ([]coreiface.IndexerItem, error) {
	return f.items, nil
}

func (f *fakeIndexer) ByClientOpID(ctx context.Context, chainID int64, clientOpID string) (*coreiface.IndexerItem, error) {
	for _, item := range f.items {
		if item.ClientOpID == clientOpID {
			return &item, nil
		}
	}
	return nil, nil
}

type fakeJobStore struct {
	jobs []*models.Job
}

func (f *fakeJobStore) PutJob(ctx context.Context, job *models.Job) (*models.Job, error) { return job, nil }
func (f *fakeJobStore) ClaimNext(ctx context.Context, userAddress string, now time.Time) (*models.Job, error) {
	return nil, nil
}
func (f *fakeJobStore) Get(ctx context.Context, jobID string) (*models.Job, error) { return nil, nil }
func (f *fakeJobStore) SaveProgress(ctx context.Context, job *models.Job) error    { return nil }
func (f *fakeJobStore) Complete(ctx context.Context, jobID string, txID string) error { return nil }
func (f *fakeJobStore) Fail(ctx context.Context, jobID string, kind string, errMsg string, nextEligibleAt time.Time) error {
	return nil
}
func (f *fakeJobStore) Skip(ctx context.Context, jobID string, reason string) error { return nil }
func (f *fakeJobStore) ListByUser(ctx context.Context, userAddress string) ([]*models.Job, error) {
	var out []*models.Job
	for _, j := range f.jobs {
		if j.UserAddress == userAddress {
			out = append(out, j)
		}
	}
	return out, nil
}
func (f *fakeJobStore) Stats(ctx context.Context, userAddress string) (models.QueueStats, error) {
	return models.QueueStats{}, nil
}
func (f *fakeJobStore) ResetOrphanedProcessing(ctx context.Context) (int, error) { return 0, nil }
func (f *fakeJobStore) PurgeSucceeded(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}
func (f *fakeJobStore) Delete(ctx context.Context, jobID string) error { return nil }

var _ coreiface.Indexer = (*fakeIndexer)(nil)
var _ coreiface.JobStore = (*fakeJobStore)(nil)

func TestForResource_SuppressesLocalJobAlreadyIndexed(t *testing.T) {
	indexer := &fakeIndexer{items: []coreiface.IndexerItem{
		{TxID: "0xabc", ClientOpID: "op-1", Resource: "plot-9", SubmittedAt: time.Now()},
	}}
	jobs := &fakeJobStore{jobs: []*models.Job{
		{
			ID: "job-1", UserAddress: "0xuser", Status: models.JobStatusSucceeded,
			ClientOpID: "op-1", Kind: models.JobKindWork,
			WorkPayload: &models.WorkJobPayload{TargetResourceID: "plot-9"},
		},
	}}
	view := New(indexer, jobs)

	items, err := view.ForResource(context.Background(), 1, "plot-9", "0xuser")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, KindConfirmed, items[0].Kind)
	assert.Equal(t, "0xabc", items[0].TxID)
}

func TestForResource_ClassifiesQueuedAndRecentlySubmitted(t *testing.T) {
	indexer := &fakeIndexer{}
	now := time.Now()
	jobs := &fakeJobStore{jobs: []*models.Job{
		{
			ID: "job-queued", UserAddress: "0xuser", Status: models.JobStatusPending,
			ClientOpID: "op-2", Kind: models.JobKindWork, CreatedAt: now.Add(-time.Minute),
			WorkPayload: &models.WorkJobPayload{TargetResourceID: "plot-9"},
		},
		{
			ID: "job-done", UserAddress: "0xuser", Status: models.JobStatusSucceeded,
			ClientOpID: "op-3", Kind: models.JobKindWork, TxID: "0xdef", UpdatedAt: now,
			WorkPayload: &models.WorkJobPayload{TargetResourceID: "plot-9"},
		},
		{
			ID: "job-other-resource", UserAddress: "0xuser", Status: models.JobStatusPending,
			ClientOpID: "op-4", Kind: models.JobKindWork,
			WorkPayload: &models.WorkJobPayload{TargetResourceID: "plot-1"},
		},
	}}
	view := New(indexer, jobs)

	items, err := view.ForResource(context.Background(), 1, "plot-9", "0xuser")
	require.NoError(t, err)
	require.Len(t, items, 2)

	// Newest first: the succeeded job (UpdatedAt=now) sorts before the
	// queued job (CreatedAt=now-1m).
	assert.Equal(t, KindRecentlySubmitted, items[0].Kind)
	assert.Equal(t, "0xdef", items[0].TxID)
	assert.Equal(t, KindQueued, items[1].Kind)
	assert.Equal(t, "offline-job-queued", items[1].TxID)
}

func TestForResource_IgnoresOtherUsersJobs(t *testing.T) {
	indexer := &fakeIndexer{}
	jobs := &fakeJobStore{jobs: []*models.Job{
		{
			ID: "job-1", UserAddress: "0xother", Status: models.JobStatusPending,
			ClientOpID: "op-5", Kind: models.JobKindWork,
			WorkPayload: &models.WorkJobPayload{TargetResourceID: "plot-9"},
		},
	}}
	view := New(indexer, jobs)

	items, err := view.ForResource(context.Background(), 1, "plot-9", "0xuser")
	require.NoError(t, err)
	assert.Empty(t, items)
}
