package draftstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timshannon/badgerhold/v4"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil
	db, err := badgerhold.Open(options)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, common.NewSilentLogger())
}

func TestCreateOrGetDraft_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	key := models.DraftKey{UserAddress: "0xuser", ChainID: 1, TargetResourceID: "plot-9", ActionID: 1}

	id1, err := s.CreateOrGetDraft(context.Background(), key)
	require.NoError(t, err)
	id2, err := s.CreateOrGetDraft(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestUpdateDraft_AppliesPartialFields(t *testing.T) {
	s := newTestStore(t)
	key := models.DraftKey{UserAddress: "0xuser", ChainID: 1, TargetResourceID: "plot-9", ActionID: 1}
	id, err := s.CreateOrGetDraft(context.Background(), key)
	require.NoError(t, err)

	feedback := "pruned the roses"
	updated, err := s.UpdateDraft(context.Background(), id, models.DraftUpdate{Feedback: &feedback})
	require.NoError(t, err)
	assert.Equal(t, feedback, updated.Feedback)
	assert.Equal(t, "0xuser", updated.UserAddress) // untouched by update
}

func TestAddImage_AdvancesFirstIncompleteStepPastMedia(t *testing.T) {
	s := newTestStore(t)
	key := models.DraftKey{UserAddress: "0xuser", ChainID: 1, TargetResourceID: "plot-9", ActionID: 1}
	id, err := s.CreateOrGetDraft(context.Background(), key)
	require.NoError(t, err)

	before, err := s.GetDraft(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StepMedia, before.FirstIncompleteStep)

	_, err = s.AddImage(context.Background(), id, models.DraftImage{ContentType: "image/jpeg", Blob: []byte("x")})
	require.NoError(t, err)

	after, err := s.GetDraft(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StepDetails, after.FirstIncompleteStep)
}

func TestRemoveImage_RenormalizesRemainingPositions(t *testing.T) {
	s := newTestStore(t)
	key := models.DraftKey{UserAddress: "0xuser", ChainID: 1, TargetResourceID: "plot-9", ActionID: 1}
	id, err := s.CreateOrGetDraft(context.Background(), key)
	require.NoError(t, err)

	img1, err := s.AddImage(context.Background(), id, models.DraftImage{ContentType: "image/jpeg"})
	require.NoError(t, err)
	_, err = s.AddImage(context.Background(), id, models.DraftImage{ContentType: "image/png"})
	require.NoError(t, err)
	img3, err := s.AddImage(context.Background(), id, models.DraftImage{ContentType: "image/gif"})
	require.NoError(t, err)
	assert.Equal(t, 2, img3.Position)

	require.NoError(t, s.RemoveImage(context.Background(), img1.ID))

	remaining, err := s.GetImagesForDraft(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, 0, remaining[0].Position)
	assert.Equal(t, 1, remaining[1].Position)
}

func TestDeleteDraft_CascadesToImages(t *testing.T) {
	s := newTestStore(t)
	key := models.DraftKey{UserAddress: "0xuser", ChainID: 1, TargetResourceID: "plot-9", ActionID: 1}
	id, err := s.CreateOrGetDraft(context.Background(), key)
	require.NoError(t, err)
	_, err = s.AddImage(context.Background(), id, models.DraftImage{ContentType: "image/jpeg"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteDraft(context.Background(), id))

	_, err = s.GetDraft(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDraftsForUser_OrdersByUpdatedAtDescending(t *testing.T) {
	s := newTestStore(t)
	idOld, err := s.CreateOrGetDraft(context.Background(), models.DraftKey{UserAddress: "0xuser", ChainID: 1, TargetResourceID: "plot-1", ActionID: 1})
	require.NoError(t, err)
	idNew, err := s.CreateOrGetDraft(context.Background(), models.DraftKey{UserAddress: "0xuser", ChainID: 1, TargetResourceID: "plot-2", ActionID: 1})
	require.NoError(t, err)

	feedback := "touch to bump UpdatedAt"
	_, err = s.UpdateDraft(context.Background(), idOld, models.DraftUpdate{Feedback: &feedback})
	require.NoError(t, err)

	drafts, err := s.GetDraftsForUser(context.Background(), "0xuser", 1)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, idOld, drafts[0].ID)
	assert.Equal(t, idNew, drafts[1].ID)
}
