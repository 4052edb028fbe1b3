package models

import "time"

// JobKind distinguishes the two submission payload shapes a Job can carry.
type JobKind string

const (
	JobKindWork     JobKind = "work"
	JobKindApproval JobKind = "approval"
)

// JobStatus is the lifecycle state of a Job. Transitions are monotonic
// except pending<->processing, per the JobRunner state machine.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusSkipped    JobStatus = "skipped"
)

// WorkImage is one image slot within a WorkJobPayload. UploadedID is nil
// until MediaUploader has successfully stored the blob; this lets JobRunner
// resume uploads after a crash without re-uploading completed slots.
type WorkImage struct {
	Blob        []byte  `json:"-"`
	ContentType string  `json:"contentType"`
	UploadedID  *string `json:"uploadedId,omitempty"`
}

// WorkJobPayload is the kind-specific payload for a Job of kind "work".
type WorkJobPayload struct {
	TargetResourceID string            `json:"targetResourceId"`
	ActionID         int64             `json:"actionId"`
	Title            string            `json:"title"`
	Feedback         string            `json:"feedback"`
	Selections       []string          `json:"selections"`
	Count            *int              `json:"count,omitempty"`
	Images           []WorkImage       `json:"images"`
	Metadata         map[string]string `json:"metadata"`
}

// ApprovalJobPayload is the kind-specific payload for a Job of kind "approval".
type ApprovalJobPayload struct {
	TargetResourceID string  `json:"targetResourceId"`
	WorkID           string  `json:"workId"`
	Approved         bool    `json:"approved"`
	Feedback         *string `json:"feedback,omitempty"`
	RecipientAddress string  `json:"recipientAddress"`
}

// Job is a durable unit of work. Payload is a tagged union discriminated by
// Kind: exactly one of WorkPayload / ApprovalPayload is non-nil.
type Job struct {
	ID              string              `json:"id"`
	Kind            JobKind             `json:"kind"`
	UserAddress     string              `json:"userAddress"`
	ChainID         int64               `json:"chainId"`
	WorkPayload     *WorkJobPayload     `json:"workPayload,omitempty"`
	ApprovalPayload *ApprovalJobPayload `json:"approvalPayload,omitempty"`
	ClientOpID      string              `json:"clientOpId"`
	ContentHash     string              `json:"contentHash"`
	Status          JobStatus           `json:"status"`
	Attempts        int                 `json:"attempts"`
	NextEligibleAt  time.Time           `json:"nextEligibleAt"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	LastError       string              `json:"lastError,omitempty"`
	LastErrorKind   string              `json:"lastErrorKind,omitempty"`
	TxID            string              `json:"txId,omitempty"`
}

// OfflineTxID returns the synthetic transaction identifier the UI treats as
// not-yet-on-chain until a real TxID is assigned.
func (j *Job) OfflineTxID() string {
	return "offline-" + j.ID
}

// TargetResourceID returns the resource this job is scoped to, regardless
// of payload kind, for MergeView grouping.
func (j *Job) TargetResourceID() string {
	switch j.Kind {
	case JobKindWork:
		if j.WorkPayload != nil {
			return j.WorkPayload.TargetResourceID
		}
	case JobKindApproval:
		if j.ApprovalPayload != nil {
			return j.ApprovalPayload.TargetResourceID
		}
	}
	return ""
}

// QueueEventType enumerates the lifecycle notifications EventBus emits.
type QueueEventType string

const (
	EventJobAdded           QueueEventType = "job_added"
	EventJobProcessing      QueueEventType = "job_processing"
	EventJobCompleted       QueueEventType = "job_completed"
	EventJobFailed          QueueEventType = "job_failed"
	EventJobSkipped         QueueEventType = "job_skipped"
	EventQueueSyncStarted   QueueEventType = "queue_sync_started"
	EventQueueSyncCompleted QueueEventType = "queue_sync_completed"
)

// QueueEvent is the single event shape published through EventBus.
type QueueEvent struct {
	Type      QueueEventType `json:"type"`
	Job       *Job           `json:"job,omitempty"`
	TxID      string         `json:"txId,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// QueueStats summarizes a user's job counts by status.
type QueueStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Failed     int `json:"failed"`
}
