// Package encoder maps a submission draft plus uploaded media identifiers
// into the byte payload the chain expects. All three functions are pure: no I/O,
// no retries, no logging — errors are always Permanent by construction.
package encoder

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/bobmcallan/gardensync/internal/errs"
	"github.com/bobmcallan/gardensync/internal/models"
)

// placeholderMediaID stands in for a real content identifier during
// simulation, so a transaction can be pre-flighted without paying upload cost.
const placeholderMediaID = "00000000000000000000000000000000000000000000000000000000000000"

// wirePayload is the CBOR-encoded shape submitted to the chain.
type wirePayload struct {
	TargetResourceID string            `cbor:"targetResourceId"`
	ActionID         int64             `cbor:"actionId"`
	Title            string            `cbor:"title"`
	Feedback         string            `cbor:"feedback"`
	Selections       []string          `cbor:"selections"`
	Count            *int              `cbor:"count,omitempty"`
	MediaIDs         []string          `cbor:"mediaIds"`
	Metadata         map[string]string `cbor:"metadata"`
}

// EncodeForSimulation substitutes the placeholder media identifier for every
// image slot, uploaded or not, so JobRunner can pre-flight a transaction
// before paying the upload cost.
func EncodeForSimulation(payload *models.WorkJobPayload) ([]byte, error) {
	mediaIDs := make([]string, len(payload.Images))
	for i := range payload.Images {
		mediaIDs[i] = placeholderMediaID
	}
	return encode(payload, mediaIDs)
}

// EncodeForSubmission encodes the real submission bytes. Fails with a
// Permanent error if any image slot lacks an uploaded id.
func EncodeForSubmission(payload *models.WorkJobPayload) ([]byte, error) {
	mediaIDs := make([]string, len(payload.Images))
	for i, img := range payload.Images {
		if img.UploadedID == nil || *img.UploadedID == "" {
			return nil, errs.Permanentf("encode: image %d missing uploaded media id", i)
		}
		mediaIDs[i] = *img.UploadedID
	}
	return encode(payload, mediaIDs)
}

func encode(payload *models.WorkJobPayload, mediaIDs []string) ([]byte, error) {
	wire := wirePayload{
		TargetResourceID: payload.TargetResourceID,
		ActionID:         payload.ActionID,
		Title:            payload.Title,
		Feedback:         payload.Feedback,
		Selections:       payload.Selections,
		Count:            payload.Count,
		MediaIDs:         mediaIDs,
		Metadata:         payload.Metadata,
	}
	data, err := cbor.Marshal(wire)
	if err != nil {
		return nil, errs.Permanentf("encode: cbor marshal failed: %w", err)
	}
	return data, nil
}

// EncodeApproval encodes an approval job payload. Approvals carry no media.
func EncodeApproval(payload *models.ApprovalJobPayload) ([]byte, error) {
	type approvalWire struct {
		TargetResourceID string  `cbor:"targetResourceId"`
		WorkID           string  `cbor:"workId"`
		Approved         bool    `cbor:"approved"`
		Feedback         *string `cbor:"feedback,omitempty"`
		RecipientAddress string  `cbor:"recipientAddress"`
	}
	data, err := cbor.Marshal(approvalWire{
		TargetResourceID: payload.TargetResourceID,
		WorkID:           payload.WorkID,
		Approved:         payload.Approved,
		Feedback:         payload.Feedback,
		RecipientAddress: payload.RecipientAddress,
	})
	if err != nil {
		return nil, errs.Permanentf("encode: cbor marshal failed: %w", err)
	}
	return data, nil
}
