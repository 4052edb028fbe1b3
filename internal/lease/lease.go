// Package lease implements coreiface.LeaseStore as an advisory row in
// SurrealDB with a heartbeat, generalizing jobstore's atomic
// select-then-conditional-update claim pattern to lease expiry rather than
// job claiming: a tab (or process) holds the per-user worker lease only as
// long as it keeps renewing it before ttl elapses.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/gardensync/internal/common"
)

const table = "queue_lease"

type row struct {
	UserAddress string    `json:"user_address"`
	HolderID    string    `json:"holder_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store implements coreiface.LeaseStore using SurrealDB.
type Store struct {
	db     *surrealdb.DB
	logger *common.Logger
}

// New creates a lease.Store over an already-connected SurrealDB handle.
func New(db *surrealdb.DB, logger *common.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func recordID(userAddress string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(table, userAddress)
}

// Acquire succeeds if no lease row exists for userAddress, or the existing
// one has expired. The two-step select-then-conditional-write mirrors
// jobstore.ClaimNext: a concurrent Acquire from another tab loses the race
// at the conditional UPDATE/CREATE step, not the initial read.
func (s *Store) Acquire(ctx context.Context, userAddress, holderID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	existing, err := s.get(ctx, userAddress)
	if err != nil {
		return false, err
	}

	if existing == nil {
		sql := `CREATE $rid SET user_address = $user_address, holder_id = $holder_id, expires_at = $expires_at`
		vars := map[string]any{
			"rid":          recordID(userAddress),
			"user_address": userAddress,
			"holder_id":    holderID,
			"expires_at":   expiresAt,
		}
		if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
			// Another tab created the row first between our read and write.
			return false, nil
		}
		return true, nil
	}

	if existing.HolderID == holderID || existing.ExpiresAt.Before(now) {
		sql := `UPDATE $rid SET holder_id = $holder_id, expires_at = $expires_at WHERE expires_at < $now OR holder_id = $holder_id`
		vars := map[string]any{
			"rid":        recordID(userAddress),
			"holder_id":  holderID,
			"expires_at": expiresAt,
			"now":        now,
		}
		updated, err := surrealdb.Query[[]row](ctx, s.db, sql, vars)
		if err != nil {
			return false, fmt.Errorf("failed to acquire lease: %w", err)
		}
		if updated == nil || len(*updated) == 0 || len((*updated)[0].Result) == 0 {
			return false, nil
		}
		return true, nil
	}

	return false, nil
}

// Renew extends the lease's expiry if holderID still owns it.
func (s *Store) Renew(ctx context.Context, userAddress, holderID string, ttl time.Duration) (bool, error) {
	sql := `UPDATE $rid SET expires_at = $expires_at WHERE holder_id = $holder_id`
	vars := map[string]any{
		"rid":        recordID(userAddress),
		"holder_id":  holderID,
		"expires_at": time.Now().Add(ttl),
	}
	updated, err := surrealdb.Query[[]row](ctx, s.db, sql, vars)
	if err != nil {
		return false, fmt.Errorf("failed to renew lease: %w", err)
	}
	if updated == nil || len(*updated) == 0 || len((*updated)[0].Result) == 0 {
		return false, nil
	}
	return true, nil
}

// Release drops the lease if holderID still owns it; releasing a lease you
// no longer hold (e.g. it already expired and was claimed by another tab) is
// a no-op.
func (s *Store) Release(ctx context.Context, userAddress, holderID string) error {
	existing, err := s.get(ctx, userAddress)
	if err != nil {
		return err
	}
	if existing == nil || existing.HolderID != holderID {
		return nil
	}
	if _, err := surrealdb.Delete[any](ctx, s.db, recordID(userAddress)); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, userAddress string) (*row, error) {
	sql := fmt.Sprintf("SELECT * FROM %s WHERE user_address = $user_address LIMIT 1", table)
	results, err := surrealdb.Query[[]row](ctx, s.db, sql, map[string]any{"user_address": userAddress})
	if err != nil {
		return nil, fmt.Errorf("failed to read lease: %w", err)
	}
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	r := (*results)[0].Result[0]
	return &r, nil
}
