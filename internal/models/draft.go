// Package models holds the data model shared by the Submission & Sync Core:
// drafts, jobs, and the queue events emitted as they move through the system.
package models

import "time"

// DraftStep is a stage in the multi-step submission form.
type DraftStep string

const (
	StepIntro   DraftStep = "intro"
	StepMedia   DraftStep = "media"
	StepDetails DraftStep = "details"
	StepReview  DraftStep = "review"
)

// stepOrder is the fixed progression used by FirstIncompleteStep.
var stepOrder = []DraftStep{StepIntro, StepMedia, StepDetails, StepReview}

// DraftRecord is a resumable work-in-progress submission, keyed by the
// (UserAddress, ChainID, TargetResourceID, ActionID) tuple.
type DraftRecord struct {
	ID                  string    `json:"id" badgerholdKey:"ID"`
	UserAddress         string    `json:"userAddress" badgerholdIndex:"UserAddress"`
	ChainID             int64     `json:"chainId"`
	TargetResourceID    string    `json:"targetResourceId"`
	ActionID            int64     `json:"actionId"`
	CurrentStep         DraftStep `json:"currentStep"`
	FirstIncompleteStep DraftStep `json:"firstIncompleteStep"`
	Feedback            string    `json:"feedback"`
	Selections          []string  `json:"selections"`
	Count               *int      `json:"count,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// DraftKey identifies the tuple at most one DraftRecord may exist for.
type DraftKey struct {
	UserAddress      string
	ChainID          int64
	TargetResourceID string
	ActionID         int64
}

// DraftImage is one ordered image blob belonging to a DraftRecord.
type DraftImage struct {
	ID          string `json:"id" badgerholdKey:"ID"`
	DraftID     string `json:"draftId" badgerholdIndex:"DraftID"`
	Position    int    `json:"position"`
	Blob        []byte `json:"-"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	// DisplayURL is a transient, tab-local preview URL. Never persisted.
	DisplayURL string `json:"displayUrl,omitempty"`
}

// RecomputeFirstIncompleteStep derives FirstIncompleteStep from the record's
// fields and the count of images currently attached to the draft, per the
// step-completion rule: intro needs TargetResourceID+ActionID, media needs at
// least one image, details needs non-empty Feedback, review is terminal.
func (d *DraftRecord) RecomputeFirstIncompleteStep(imageCount int) {
	complete := map[DraftStep]bool{
		StepIntro:   d.TargetResourceID != "" && d.ActionID != 0,
		StepMedia:   imageCount > 0,
		StepDetails: d.Feedback != "",
		StepReview:  false,
	}
	for _, step := range stepOrder {
		if !complete[step] {
			d.FirstIncompleteStep = step
			return
		}
	}
	d.FirstIncompleteStep = StepReview
}

// DraftUpdate carries a partial update to a DraftRecord. Nil fields are left
// unchanged. UserAddress, ChainID, ID, and CreatedAt may never be changed by
// an update — only set at creation.
type DraftUpdate struct {
	CurrentStep *DraftStep
	Feedback    *string
	Selections  []string
	Count       *int
}
