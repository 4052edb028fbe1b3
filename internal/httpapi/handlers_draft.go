package httpapi

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/bobmcallan/gardensync/internal/models"
	"github.com/bobmcallan/gardensync/internal/queuecontroller"
)

type createDraftRequest struct {
	ChainID          int64  `json:"chainId"`
	TargetResourceID string `json:"targetResourceId"`
	ActionID         int64  `json:"actionId"`
}

// handleDrafts serves POST /api/drafts (create-or-get) and GET /api/drafts
// (list for the authenticated user).
func (s *Server) handleDrafts(w http.ResponseWriter, r *http.Request) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req createDraftRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		key := models.DraftKey{
			UserAddress:      uc.UserAddress,
			ChainID:          req.ChainID,
			TargetResourceID: req.TargetResourceID,
			ActionID:         req.ActionID,
		}
		draftID, err := s.drafts.CreateOrGetDraft(r.Context(), key)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to create draft: "+err.Error())
			return
		}
		draft, err := s.drafts.GetDraft(r.Context(), draftID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load draft: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, draft)

	case http.MethodGet:
		drafts, err := s.drafts.GetDraftsForUser(r.Context(), uc.UserAddress, uc.ChainID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list drafts: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, drafts)

	default:
		RequireMethod(w, r, http.MethodPost, http.MethodGet)
	}
}

// routeDrafts dispatches /api/drafts/{id}, /api/drafts/{id}/images, and
// /api/drafts/{id}/submit.
func (s *Server) routeDrafts(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserContext(w, r); !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/drafts/")
	if rest == "" || rest == r.URL.Path {
		WriteError(w, http.StatusBadRequest, "draft id required")
		return
	}

	switch {
	case strings.HasSuffix(rest, "/images"):
		s.handleDraftImages(w, r, strings.TrimSuffix(rest, "/images"))
	case strings.HasSuffix(rest, "/submit"):
		s.handleDraftSubmit(w, r, strings.TrimSuffix(rest, "/submit"))
	default:
		s.handleDraftByID(w, r, rest)
	}
}

type updateDraftRequest struct {
	CurrentStep *string  `json:"currentStep,omitempty"`
	Feedback    *string  `json:"feedback,omitempty"`
	Selections  []string `json:"selections,omitempty"`
	Count       *int     `json:"count,omitempty"`
}

func (s *Server) handleDraftByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		draft, err := s.drafts.GetDraft(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusNotFound, "draft not found")
			return
		}
		WriteJSON(w, http.StatusOK, draft)

	case http.MethodPatch:
		var req updateDraftRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		update := models.DraftUpdate{Feedback: req.Feedback, Selections: req.Selections, Count: req.Count}
		if req.CurrentStep != nil {
			step := models.DraftStep(*req.CurrentStep)
			update.CurrentStep = &step
		}
		draft, err := s.drafts.UpdateDraft(r.Context(), id, update)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to update draft: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, draft)

	case http.MethodDelete:
		if err := s.drafts.DeleteDraft(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to delete draft: "+err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

type addImageRequest struct {
	ContentType string `json:"contentType"`
	BlobBase64  string `json:"blobBase64"`
}

func (s *Server) handleDraftImages(w http.ResponseWriter, r *http.Request, draftID string) {
	switch r.Method {
	case http.MethodGet:
		images, err := s.drafts.GetImagesForDraft(r.Context(), draftID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list images: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, images)

	case http.MethodPost:
		var req addImageRequest
		if !DecodeJSON(w, r, &req) {
			return
		}
		blob, err := base64.StdEncoding.DecodeString(req.BlobBase64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid base64 image blob")
			return
		}
		image := models.DraftImage{ContentType: req.ContentType, Blob: blob, Size: int64(len(blob))}
		saved, err := s.drafts.AddImage(r.Context(), draftID, image)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to add image: "+err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, saved)

	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

type submitDraftRequest struct {
	ClientOpID string `json:"clientOpId"`
}

// handleDraftSubmit serves POST /api/drafts/{id}/submit: it converts the
// draft and its images into a work job through QueueController, enqueuing
// it in JobStore and destroying the draft once the job is durably
// persisted.
func (s *Server) handleDraftSubmit(w http.ResponseWriter, r *http.Request, draftID string) {
	uc, ok := requireUserContext(w, r)
	if !ok {
		return
	}
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req submitDraftRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.ClientOpID == "" {
		WriteError(w, http.StatusBadRequest, "clientOpId is required for dedup")
		return
	}

	job, err := s.queue.SubmitDraft(r.Context(), draftID, uc.UserAddress, uc.ChainID, queuecontroller.AddOpts{ClientOpID: req.ClientOpID})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to submit draft: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUserContext(w, r); !ok {
		return
	}
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	imageID := PathParam(r, "/api/images/", "")
	if imageID == "" {
		WriteError(w, http.StatusBadRequest, "image id required")
		return
	}
	if err := s.drafts.RemoveImage(r.Context(), imageID); err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to remove image: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
