// Package mergeview is the read-side projection of spec.md §4.8: given a
// resource identity, it overlays still-pending or recently-confirmed local
// jobs on top of indexer results so the UI shows a stable timeline across
// the indexer's eventual-consistency lag window. It has no single teacher
// file to generalize from (vire has no read-merge layer of this shape) — it
// is grounded on the *shape* of vire's storage.Manager accessor structs: a
// small struct wrapping two read-only dependencies behind simple methods.
package mergeview

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/gardensync/internal/coreiface"
	"github.com/bobmcallan/gardensync/internal/models"
)

// ItemKind distinguishes the three ways an entry can appear in a merged
// timeline.
type ItemKind string

const (
	// KindConfirmed is a confirmed attestation read directly from the indexer.
	KindConfirmed ItemKind = "confirmed"
	// KindRecentlySubmitted is a local succeeded job whose txId has not yet
	// been observed by the indexer.
	KindRecentlySubmitted ItemKind = "recently_submitted"
	// KindQueued is a local pending/processing job, shown with its offline
	// transaction id until it submits for real.
	KindQueued ItemKind = "queued"
)

// Item is one entry in a MergeView timeline.
type Item struct {
	Kind        ItemKind   `json:"kind"`
	TxID        string     `json:"txId"`
	ClientOpID  string     `json:"clientOpId"`
	ResourceID  string     `json:"resourceId"`
	SubmittedAt time.Time  `json:"submittedAt"`
	Job         *models.Job `json:"job,omitempty"`
}

// View implements the MergeView read path.
type View struct {
	indexer coreiface.Indexer
	jobs    coreiface.JobStore
}

// New builds a MergeView over an Indexer and a JobStore.
func New(indexer coreiface.Indexer, jobs coreiface.JobStore) *View {
	return &View{indexer: indexer, jobs: jobs}
}

// ForResource returns the merged, newest-first timeline for one resource
// scoped to one user's local jobs (indexer results are not user-scoped —
// they are whatever is attested on-chain for the resource).
func (v *View) ForResource(ctx context.Context, chainID int64, resourceID, userAddress string) ([]Item, error) {
	indexerItems, err := v.indexer.ByResource(ctx, chainID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("mergeview: indexer query failed: %w", err)
	}

	localJobs, err := v.jobs.ListByUser(ctx, userAddress)
	if err != nil {
		return nil, fmt.Errorf("mergeview: job store query failed: %w", err)
	}

	indexed := make(map[string]bool, len(indexerItems))
	items := make([]Item, 0, len(indexerItems)+len(localJobs))

	for _, ii := range indexerItems {
		indexed[ii.ClientOpID] = true
		items = append(items, Item{
			Kind:        KindConfirmed,
			TxID:        ii.TxID,
			ClientOpID:  ii.ClientOpID,
			ResourceID:  ii.Resource,
			SubmittedAt: ii.SubmittedAt,
		})
	}

	for _, job := range localJobs {
		if job.TargetResourceID() != resourceID {
			continue
		}
		// The indexer wins: a matching clientOpId means the confirmed item
		// above already represents this submission, so the local copy is
		// suppressed rather than duplicated.
		if indexed[job.ClientOpID] {
			continue
		}

		switch job.Status {
		case models.JobStatusSucceeded:
			items = append(items, Item{
				Kind:        KindRecentlySubmitted,
				TxID:        job.TxID,
				ClientOpID:  job.ClientOpID,
				ResourceID:  resourceID,
				SubmittedAt: job.UpdatedAt,
				Job:         job,
			})
		case models.JobStatusPending, models.JobStatusProcessing:
			items = append(items, Item{
				Kind:        KindQueued,
				TxID:        job.OfflineTxID(),
				ClientOpID:  job.ClientOpID,
				ResourceID:  resourceID,
				SubmittedAt: job.CreatedAt,
				Job:         job,
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].SubmittedAt.After(items[j].SubmittedAt)
	})

	return items, nil
}
