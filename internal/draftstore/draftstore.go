// Package draftstore is the BadgerHold-backed implementation of
// coreiface.DraftStore: durable, per-user, per-resource draft persistence
// plus ordered image blob storage, generalizing vire's
// internal/storage/badger per-portfolio typed stores.
package draftstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/models"
)

// ErrNotFound is returned when a draft or image does not exist.
var ErrNotFound = fmt.Errorf("draftstore: not found")

// Store implements coreiface.DraftStore over a badgerhold.Store.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// New wraps an already-open badgerhold store for draft/image persistence.
func New(db *badgerhold.Store, logger *common.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// CreateOrGetDraft is idempotent: it returns the existing draft id for the
// tuple if one exists, otherwise creates a new record.
func (s *Store) CreateOrGetDraft(ctx context.Context, key models.DraftKey) (string, error) {
	var existing []models.DraftRecord
	err := s.db.Find(&existing, badgerhold.Where("UserAddress").Eq(key.UserAddress).
		And("ChainID").Eq(key.ChainID).
		And("TargetResourceID").Eq(key.TargetResourceID).
		And("ActionID").Eq(key.ActionID))
	if err != nil {
		return "", fmt.Errorf("failed to query drafts: %w", err)
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}

	now := time.Now()
	rec := &models.DraftRecord{
		ID:               uuid.New().String(),
		UserAddress:      key.UserAddress,
		ChainID:          key.ChainID,
		TargetResourceID: key.TargetResourceID,
		ActionID:         key.ActionID,
		CurrentStep:      models.StepIntro,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	rec.RecomputeFirstIncompleteStep(0)

	if err := s.db.Insert(rec.ID, rec); err != nil {
		return "", fmt.Errorf("failed to insert draft: %w", err)
	}
	s.logger.Debug().Str("draft_id", rec.ID).Str("user_address", rec.UserAddress).Msg("Draft created")
	return rec.ID, nil
}

// UpdateDraft applies a partial update. UserAddress/ChainID/ID/CreatedAt are
// never touched; FirstIncompleteStep is always recomputed.
func (s *Store) UpdateDraft(ctx context.Context, draftID string, update models.DraftUpdate) (*models.DraftRecord, error) {
	var rec models.DraftRecord
	if err := s.db.Get(draftID, &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	if update.CurrentStep != nil {
		rec.CurrentStep = *update.CurrentStep
	}
	if update.Feedback != nil {
		rec.Feedback = *update.Feedback
	}
	if update.Selections != nil {
		rec.Selections = update.Selections
	}
	if update.Count != nil {
		rec.Count = update.Count
	}
	rec.UpdatedAt = time.Now()

	imageCount, err := s.countImages(draftID)
	if err != nil {
		return nil, err
	}
	rec.RecomputeFirstIncompleteStep(imageCount)

	if err := s.db.Update(draftID, &rec); err != nil {
		return nil, fmt.Errorf("failed to update draft: %w", err)
	}
	return &rec, nil
}

// SetImages replaces the ordered image set for a draft atomically, then
// renormalizes positions contiguously starting at 0.
func (s *Store) SetImages(ctx context.Context, draftID string, images []models.DraftImage) error {
	var existing []models.DraftImage
	if err := s.db.Find(&existing, badgerhold.Where("DraftID").Eq(draftID)); err != nil {
		return fmt.Errorf("failed to list existing images: %w", err)
	}
	for _, img := range existing {
		if err := s.db.Delete(img.ID, models.DraftImage{}); err != nil {
			return fmt.Errorf("failed to delete image %s: %w", img.ID, err)
		}
	}

	for i := range images {
		if images[i].ID == "" {
			images[i].ID = uuid.New().String()
		}
		images[i].DraftID = draftID
		images[i].Position = i
		if err := s.db.Insert(images[i].ID, &images[i]); err != nil {
			return fmt.Errorf("failed to insert image %s: %w", images[i].ID, err)
		}
	}

	return s.touchFirstIncompleteStep(draftID, len(images))
}

// AddImage appends a single image to the draft's ordered set.
func (s *Store) AddImage(ctx context.Context, draftID string, image models.DraftImage) (*models.DraftImage, error) {
	count, err := s.countImages(draftID)
	if err != nil {
		return nil, err
	}

	if image.ID == "" {
		image.ID = uuid.New().String()
	}
	image.DraftID = draftID
	image.Position = count

	if err := s.db.Insert(image.ID, &image); err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}
	if err := s.touchFirstIncompleteStep(draftID, count+1); err != nil {
		return nil, err
	}
	return &image, nil
}

// RemoveImage deletes one image and renormalizes the remaining positions.
func (s *Store) RemoveImage(ctx context.Context, imageID string) error {
	var img models.DraftImage
	if err := s.db.Get(imageID, &img); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get image: %w", err)
	}

	if err := s.db.Delete(imageID, models.DraftImage{}); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}

	remaining, err := s.imagesForDraft(img.DraftID)
	if err != nil {
		return err
	}
	for i, r := range remaining {
		if r.Position != i {
			r.Position = i
			if err := s.db.Update(r.ID, r); err != nil {
				return fmt.Errorf("failed to renumber image %s: %w", r.ID, err)
			}
		}
	}

	return s.touchFirstIncompleteStep(img.DraftID, len(remaining))
}

// GetDraftsForUser returns drafts ordered by UpdatedAt descending.
func (s *Store) GetDraftsForUser(ctx context.Context, userAddress string, chainID int64) ([]*models.DraftRecord, error) {
	var recs []models.DraftRecord
	err := s.db.Find(&recs, badgerhold.Where("UserAddress").Eq(userAddress).
		And("ChainID").Eq(chainID).
		SortBy("UpdatedAt").Reverse())
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	out := make([]*models.DraftRecord, len(recs))
	for i := range recs {
		out[i] = &recs[i]
	}
	return out, nil
}

// GetDraft returns a single draft by id.
func (s *Store) GetDraft(ctx context.Context, draftID string) (*models.DraftRecord, error) {
	var rec models.DraftRecord
	if err := s.db.Get(draftID, &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return &rec, nil
}

// GetImagesForDraft returns images ordered by Position ascending.
func (s *Store) GetImagesForDraft(ctx context.Context, draftID string) ([]*models.DraftImage, error) {
	return s.imagesForDraft(draftID)
}

// DeleteDraft cascades to images; fails with ErrNotFound if the draft is missing.
func (s *Store) DeleteDraft(ctx context.Context, draftID string) error {
	var rec models.DraftRecord
	if err := s.db.Get(draftID, &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get draft: %w", err)
	}

	var images []models.DraftImage
	if err := s.db.Find(&images, badgerhold.Where("DraftID").Eq(draftID)); err != nil {
		return fmt.Errorf("failed to list images for delete: %w", err)
	}
	for _, img := range images {
		if err := s.db.Delete(img.ID, models.DraftImage{}); err != nil {
			return fmt.Errorf("failed to delete image %s: %w", img.ID, err)
		}
	}

	if err := s.db.Delete(draftID, models.DraftRecord{}); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	s.logger.Debug().Str("draft_id", draftID).Msg("Draft deleted")
	return nil
}

func (s *Store) imagesForDraft(draftID string) ([]*models.DraftImage, error) {
	var images []models.DraftImage
	if err := s.db.Find(&images, badgerhold.Where("DraftID").Eq(draftID)); err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Position < images[j].Position })
	out := make([]*models.DraftImage, len(images))
	for i := range images {
		out[i] = &images[i]
	}
	return out, nil
}

func (s *Store) countImages(draftID string) (int, error) {
	n, err := s.db.Count(models.DraftImage{}, badgerhold.Where("DraftID").Eq(draftID))
	if err != nil {
		return 0, fmt.Errorf("failed to count images: %w", err)
	}
	return int(n), nil
}

func (s *Store) touchFirstIncompleteStep(draftID string, imageCount int) error {
	var rec models.DraftRecord
	if err := s.db.Get(draftID, &rec); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get draft: %w", err)
	}
	rec.RecomputeFirstIncompleteStep(imageCount)
	rec.UpdatedAt = time.Now()
	if err := s.db.Update(draftID, &rec); err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	return nil
}
