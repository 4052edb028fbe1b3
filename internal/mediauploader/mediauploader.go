// Package mediauploader uploads draft image blobs to a content-addressed
// store, generalizing vire's provider-agnostic storage.BlobStore
// (internal/storage/blob.go + file_blob.go) so the returned identifier is a
// genuine content hash rather than a caller-chosen key.
package mediauploader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"golang.org/x/crypto/blake2b"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/errs"
	"github.com/bobmcallan/gardensync/internal/storage"
)

// Uploader implements coreiface.MediaStore over a storage.BlobStore,
// addressing blobs by their blake2b content hash.
type Uploader struct {
	blobs  storage.BlobStore
	logger *common.Logger
}

// New wraps a BlobStore backend for content-addressed media upload.
func New(blobs storage.BlobStore, logger *common.Logger) *Uploader {
	return &Uploader{blobs: blobs, logger: logger}
}

// ContentID computes the stable content-addressed key for a blob.
func ContentID(blob []byte) string {
	sum := blake2b.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

// classifyBlobErr maps a BlobStore failure to errs.Permanent when retrying
// cannot help (permission denied, device out of space) and errs.Transient
// otherwise (network mount hiccups, lock contention). A file-backed
// BlobStore can fail for either reason, so both outcomes have to be
// reachable here rather than defaulting everything to retry.
func classifyBlobErr(format string, err error) error {
	if errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.ENOSPC) {
		return errs.Permanentf(format, err)
	}
	return errs.Transientf(format, err)
}

// Upload stores a blob under its content-hash key. Uploading the same bytes
// twice is a no-op the second time (the Exists check skips the Put), which
// gives retries idempotence for free.
func (u *Uploader) Upload(ctx context.Context, blob []byte, contentType string) (string, error) {
	id := ContentID(blob)

	exists, err := u.blobs.Exists(ctx, id)
	if err != nil {
		return "", classifyBlobErr("media upload: failed to check existence: %w", err)
	}
	if exists {
		return id, nil
	}

	if err := u.blobs.Put(ctx, id, blob); err != nil {
		return "", classifyBlobErr("media upload failed: %w", err)
	}

	u.logger.Debug().Str("media_id", id).Int("size", len(blob)).Str("content_type", contentType).
		Msg("Media uploaded")
	return id, nil
}

// UploadAll uploads blobs in order, skipping slots already populated with an
// UploadedID. progress is called after each successful upload so the caller
// (JobRunner) can persist the job and resume after a crash without
// re-uploading completed slots. Returns the first error encountered,
// wrapped as Transient or Permanent.
func (u *Uploader) UploadAll(ctx context.Context, blobs [][]byte, contentTypes []string, uploadedIDs []*string, progress func(index int, id string) error) error {
	if len(blobs) != len(uploadedIDs) {
		return errs.Permanentf("media upload: mismatched blob/uploadedIds length (%d vs %d)", len(blobs), len(uploadedIDs))
	}

	for i, blob := range blobs {
		if uploadedIDs[i] != nil {
			continue // already uploaded in a prior attempt
		}

		ct := ""
		if i < len(contentTypes) {
			ct = contentTypes[i]
		}

		id, err := u.Upload(ctx, blob, ct)
		if err != nil {
			return fmt.Errorf("upload slot %d: %w", i, err)
		}

		if progress != nil {
			if err := progress(i, id); err != nil {
				return fmt.Errorf("upload slot %d: persist progress: %w", i, err)
			}
		}
	}
	return nil
}
