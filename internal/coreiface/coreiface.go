// Package coreiface defines the contracts the Submission & Sync Core uses
// for its external collaborators: the signer supplied by the auth layer,
// the content-addressed media store, the chain RPC endpoint, the indexer,
// the online/offline signal, and the durable stores. Concrete adapters live
// in sibling packages (chainclient, indexerclient, signerauth, draftstore,
// jobstore, mediauploader); this package only holds the interfaces so
// JobRunner, QueueController, and MergeView can be built and tested against
// fakes without depending on any one adapter.
package coreiface

import (
	"context"
	"time"

	"github.com/bobmcallan/gardensync/internal/models"
)

// TxReceipt is the chain's answer to waitForReceipt.
type TxReceipt struct {
	TxID     string
	Reverted bool
}

// Signer is the wallet-mode capability supplied by the auth layer.
type Signer interface {
	Address() string
	ChainID() int64
	SendTransaction(ctx context.Context, encodedPayload []byte, recipient string) (txID string, err error)
}

// SmartAccountClient is the sponsored-mode capability supplied by the auth
// layer: it constructs a user-operation and submits it through a bundler.
type SmartAccountClient interface {
	Address() string
	ChainID() int64
	SendUserOperation(ctx context.Context, encodedPayload []byte, recipient string) (txID string, err error)
}

// ChainRPC is the chain endpoint used to simulate, submit, and confirm
// transactions built directly (not through a smart account).
type ChainRPC interface {
	Simulate(ctx context.Context, encodedPayload []byte, recipient string) error
	SendTransaction(ctx context.Context, encodedPayload []byte, recipient string) (txID string, err error)
	WaitForReceipt(ctx context.Context, txID string, deadline time.Duration) (*TxReceipt, error)
}

// IndexerItem is one row of a resource-scoped indexer query result.
type IndexerItem struct {
	TxID       string
	ClientOpID string
	Resource   string
	SubmittedAt time.Time
}

// Indexer is the read-only, eventually-consistent query API.
type Indexer interface {
	// ByResource returns confirmed attestations for the given resource+chain.
	ByResource(ctx context.Context, chainID int64, resourceID string) ([]IndexerItem, error)
	// ByClientOpID looks for a confirmed attestation carrying the given
	// clientOpId in its metadata, used by JobRunner's dedup guard step.
	ByClientOpID(ctx context.Context, chainID int64, clientOpID string) (*IndexerItem, error)
}

// OnlineSignal reports connectivity transitions.
type OnlineSignal interface {
	IsOnline() bool
}

// Clock supplies a monotonic now(), test-overridable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real-time Clock implementation.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// MediaStore is the content-addressed upload primitive. Implementations
// classify failures as errs.Transient or errs.Permanent.
type MediaStore interface {
	Upload(ctx context.Context, blob []byte, contentType string) (id string, err error)
}

// DraftStore is the durable per-user, per-resource draft persistence
// contract implemented by internal/draftstore.
type DraftStore interface {
	CreateOrGetDraft(ctx context.Context, key models.DraftKey) (string, error)
	UpdateDraft(ctx context.Context, draftID string, update models.DraftUpdate) (*models.DraftRecord, error)
	SetImages(ctx context.Context, draftID string, images []models.DraftImage) error
	AddImage(ctx context.Context, draftID string, image models.DraftImage) (*models.DraftImage, error)
	RemoveImage(ctx context.Context, imageID string) error
	GetDraftsForUser(ctx context.Context, userAddress string, chainID int64) ([]*models.DraftRecord, error)
	GetDraft(ctx context.Context, draftID string) (*models.DraftRecord, error)
	GetImagesForDraft(ctx context.Context, draftID string) ([]*models.DraftImage, error)
	DeleteDraft(ctx context.Context, draftID string) error
}

// JobStore is the durable CRUD + claim contract implemented by internal/jobstore.
type JobStore interface {
	PutJob(ctx context.Context, job *models.Job) (*models.Job, error)
	ClaimNext(ctx context.Context, userAddress string, now time.Time) (*models.Job, error)
	Get(ctx context.Context, jobID string) (*models.Job, error)
	SaveProgress(ctx context.Context, job *models.Job) error
	Complete(ctx context.Context, jobID string, txID string) error
	Fail(ctx context.Context, jobID string, kind string, errMsg string, nextEligibleAt time.Time) error
	Skip(ctx context.Context, jobID string, reason string) error
	ListByUser(ctx context.Context, userAddress string) ([]*models.Job, error)
	Stats(ctx context.Context, userAddress string) (models.QueueStats, error)
	ResetOrphanedProcessing(ctx context.Context) (int, error)
	PurgeSucceeded(ctx context.Context, olderThan time.Time) (int, error)
	Delete(ctx context.Context, jobID string) error
}

// LeaseStore backs the cross-tab worker lease of spec.md §4.6/§5: a named
// advisory lease with a lifetime tied to one open tab, implemented as a row
// with a heartbeat rather than a true distributed lock. Only one holder can
// acquire a given (userAddress) lease at a time.
type LeaseStore interface {
	// Acquire attempts to become the lease holder for userAddress. It
	// succeeds if no holder exists or the existing holder's lease has
	// expired; ttl is the duration after which the lease is considered
	// abandoned absent a Renew.
	Acquire(ctx context.Context, userAddress, holderID string, ttl time.Duration) (bool, error)
	// Renew extends the lease if holderID is still the current holder.
	Renew(ctx context.Context, userAddress, holderID string, ttl time.Duration) (bool, error)
	// Release gives up the lease if holderID is still the current holder.
	// Releasing a lease you no longer hold is a no-op, not an error.
	Release(ctx context.Context, userAddress, holderID string) error
}
