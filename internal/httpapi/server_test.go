package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/eventbus"
	"github.com/bobmcallan/gardensync/internal/jobrunner"
	"github.com/bobmcallan/gardensync/internal/mediauploader"
	"github.com/bobmcallan/gardensync/internal/mergeview"
	"github.com/bobmcallan/gardensync/internal/models"
	"github.com/bobmcallan/gardensync/internal/queuecontroller"
	"github.com/bobmcallan/gardensync/internal/signerauth"
	"github.com/bobmcallan/gardensync/internal/storage"
)

const testJWTSecret = "test-secret"

// fakeDraftStore is a minimal in-memory coreiface.DraftStore.
type fakeDraftStore struct {
	mu     sync.Mutex
	drafts map[string]*models.DraftRecord
	nextID int
}

func newFakeDraftStore() *fakeDraftStore {
	return &fakeDraftStore{drafts: make(map[string]*models.DraftRecord)}
}

func (f *fakeDraftStore) CreateOrGetDraft(ctx context.Context, key models.DraftKey) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, d := range f.drafts {
		if d.UserAddress == key.UserAddress && d.ChainID == key.ChainID && d.TargetResourceID == key.TargetResourceID && d.ActionID == key.ActionID {
			return id, nil
		}
	}
	f.nextID++
	id := "draft-1"
	f.drafts[id] = &models.DraftRecord{
		ID: id, UserAddress: key.UserAddress, ChainID: key.ChainID,
		TargetResourceID: key.TargetResourceID, ActionID: key.ActionID,
		CurrentStep: models.StepIntro, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	return id, nil
}
func (f *fakeDraftStore) UpdateDraft(ctx context.Context, draftID string, update models.DraftUpdate) (*models.DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[draftID]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	if update.Feedback != nil {
		d.Feedback = *update.Feedback
	}
	if update.CurrentStep != nil {
		d.CurrentStep = *update.CurrentStep
	}
	d.UpdatedAt = time.Now()
	return d, nil
}
func (f *fakeDraftStore) SetImages(ctx context.Context, draftID string, images []models.DraftImage) error {
	return nil
}
func (f *fakeDraftStore) AddImage(ctx context.Context, draftID string, image models.DraftImage) (*models.DraftImage, error) {
	image.ID = "image-1"
	image.DraftID = draftID
	return &image, nil
}
func (f *fakeDraftStore) RemoveImage(ctx context.Context, imageID string) error { return nil }
func (f *fakeDraftStore) GetDraftsForUser(ctx context.Context, userAddress string, chainID int64) ([]*models.DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DraftRecord
	for _, d := range f.drafts {
		if d.UserAddress == userAddress {
			out = append(out, d)
		}
	}
	return out, nil
}
func (f *fakeDraftStore) GetDraft(ctx context.Context, draftID string) (*models.DraftRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[draftID]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return d, nil
}
func (f *fakeDraftStore) GetImagesForDraft(ctx context.Context, draftID string) ([]*models.DraftImage, error) {
	return nil, nil
}
func (f *fakeDraftStore) DeleteDraft(ctx context.Context, draftID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, draftID)
	return nil
}

var _ coreiface.DraftStore = (*fakeDraftStore)(nil)

type emptyJobStore struct{}

func (emptyJobStore) PutJob(ctx context.Context, job *models.Job) (*models.Job, error) {
	return job, nil
}
func (emptyJobStore) ClaimNext(ctx context.Context, userAddress string, now time.Time) (*models.Job, error) {
	return nil, nil
}
func (emptyJobStore) Get(ctx context.Context, jobID string) (*models.Job, error) { return nil, nil }
func (emptyJobStore) SaveProgress(ctx context.Context, job *models.Job) error    { return nil }
func (emptyJobStore) Complete(ctx context.Context, jobID string, txID string) error { return nil }
func (emptyJobStore) Fail(ctx context.Context, jobID, kind, errMsg string, nextEligibleAt time.Time) error {
	return nil
}
func (emptyJobStore) Skip(ctx context.Context, jobID, reason string) error { return nil }
func (emptyJobStore) ListByUser(ctx context.Context, userAddress string) ([]*models.Job, error) {
	return nil, nil
}
func (emptyJobStore) Stats(ctx context.Context, userAddress string) (models.QueueStats, error) {
	return models.QueueStats{Pending: 2}, nil
}
func (emptyJobStore) ResetOrphanedProcessing(ctx context.Context) (int, error) { return 0, nil }
func (emptyJobStore) PurgeSucceeded(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}
func (emptyJobStore) Delete(ctx context.Context, jobID string) error { return nil }

type emptyIndexer struct{}

func (emptyIndexer) ByResource(ctx context.Context, chainID int64, resourceID string) ([]coreiface.IndexerItem, error) {
	return nil, nil
}
func (emptyIndexer) ByClientOpID(ctx context.Context, chainID int64, clientOpID string) (*coreiface.IndexerItem, error) {
	return nil, nil
}

type emptyLeaseStore struct{}

func (emptyLeaseStore) Acquire(ctx context.Context, userAddress, holderID string, ttl time.Duration) (bool, error) {
	return false, nil
}
func (emptyLeaseStore) Renew(ctx context.Context, userAddress, holderID string, ttl time.Duration) (bool, error) {
	return true, nil
}
func (emptyLeaseStore) Release(ctx context.Context, userAddress, holderID string) error { return nil }

type emptyChainRPC struct{}

func (emptyChainRPC) Simulate(ctx context.Context, encodedPayload []byte, recipient string) error {
	return nil
}
func (emptyChainRPC) SendTransaction(ctx context.Context, encodedPayload []byte, recipient string) (string, error) {
	return "", nil
}
func (emptyChainRPC) WaitForReceipt(ctx context.Context, txID string, deadline time.Duration) (*coreiface.TxReceipt, error) {
	return nil, nil
}

type emptyOnlineSignal struct{}

func (emptyOnlineSignal) IsOnline() bool { return false }

func newTestServer(t *testing.T, drafts coreiface.DraftStore) *Server {
	t.Helper()
	bus := eventbus.New(common.NewSilentLogger())
	wshub := eventbus.NewWSHub(bus, common.NewSilentLogger())
	go wshub.Run()

	uploader := mediauploader.New(fileBackedBlobStoreForTests(t), common.NewSilentLogger())
	runner := jobrunner.New(emptyJobStore{}, emptyIndexer{}, uploader, "0xrecipient", common.NewSilentLogger())
	queue := queuecontroller.New(drafts, emptyJobStore{}, emptyLeaseStore{}, emptyChainRPC{}, emptyOnlineSignal{}, runner, bus, common.NewSilentLogger())
	view := mergeview.New(emptyIndexer{}, emptyJobStore{})

	config := &common.Config{
		Server: common.ServerConfig{Host: "127.0.0.1", Port: 0},
		Auth:   common.AuthConfig{JWTSecret: testJWTSecret},
	}

	return NewServer(drafts, queue, view, bus, wshub, signerauth.NewRegistry(), config, common.NewSilentLogger())
}

// fileBackedBlobStoreForTests avoids pulling in a second in-memory BlobStore
// definition in this package; mediauploader is never exercised by these
// handler-level tests (no job ever reaches the upload step).
func fileBackedBlobStoreForTests(t *testing.T) storage.BlobStore {
	dir := t.TempDir()
	store, err := storage.NewBlobStore(common.NewSilentLogger(), &storage.BlobStoreConfig{Backend: "file", File: storage.FileBlobConfig{BasePath: dir}})
	require.NoError(t, err)
	return store
}

func signTestToken(t *testing.T, userAddress string, chainID int64, mode common.AuthMode) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":      userAddress,
		"chain_id": float64(chainID),
		"mode":     string(mode),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func TestHealth_RespondsOKWithBearerToken(t *testing.T) {
	s := newTestServer(t, newFakeDraftStore())
	token := signTestToken(t, "0xuser", 1, common.AuthModeDirect)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDraftRoutes_RequireBearerToken(t *testing.T) {
	s := newTestServer(t, newFakeDraftStore())
	req := httptest.NewRequest(http.MethodGet, "/api/drafts", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDraftRoutes_CreateAndFetch(t *testing.T) {
	s := newTestServer(t, newFakeDraftStore())
	token := signTestToken(t, "0xuser", 1, common.AuthModeDirect)

	body, _ := json.Marshal(createDraftRequest{ChainID: 1, TargetResourceID: "plot-9", ActionID: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/drafts", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var draft models.DraftRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &draft))
	assert.Equal(t, "plot-9", draft.TargetResourceID)

	getReq := httptest.NewRequest(http.MethodGet, "/api/drafts/"+draft.ID, nil)
	getReq.Header.Set("Authorization", "Bearer "+token)
	getRec := httptest.NewRecorder()
	s.Handler().ServeHTTP(getRec, getReq)
	assert.Equal(t, http.StatusOK, getRec.Code)
}

func TestStats_ReturnsJobStoreCounts(t *testing.T) {
	s := newTestServer(t, newFakeDraftStore())
	token := signTestToken(t, "0xuser", 1, common.AuthModeDirect)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.QueueStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Pending)
}

func TestFlush_ReturnsProcessedCount(t *testing.T) {
	s := newTestServer(t, newFakeDraftStore())
	token := signTestToken(t, "0xuser", 1, common.AuthModeDirect)

	req := httptest.NewRequest(http.MethodPost, "/api/flush", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 0, out["processed"]) // lease never acquirable in this fake
}
