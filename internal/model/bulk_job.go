package model

import (
	"encoding/json"
	"time"
)

type BulkJobStatus string

const (
	BulkJobQueued  BulkJobStatus = "queued"
	BulkJobRunning BulkJobStatus = "running"
	BulkJobDone    BulkJobStatus = "done"
	BulkJobFailed  BulkJobStatus = "failed"
)

// BulkJob is a queued bulk_generate_pia run. Requests and Results are stored as
// JSON text so the table stays portable between mysql and sqlite.
type BulkJob struct {
	ID        string        `gorm:"primaryKey;size:36" json:"id"`
	ClientID  string        `gorm:"size:36;not null;index" json:"-"`
	BatchID   string        `gorm:"size:128;index" json:"batch_id"`
	Status    BulkJobStatus `gorm:"size:16;not null;index" json:"status"`
	Requests  string        `gorm:"type:text;not null" json:"-"`
	Results   string        `gorm:"type:text" json:"-"`
	Error     string        `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BulkJobMessage is what travels over the queue; the worker reloads the job.
type BulkJobMessage struct {
	JobID string `json:"job_id"`
}

// RequestList returns the parsed requests; empty on parse error.
func (j *BulkJob) RequestList() []RetrieveRequest {
	if j.Requests == "" {
		return nil
	}
	var v []RetrieveRequest
	_ = json.Unmarshal([]byte(j.Requests), &v)
	return v
}

func (j *BulkJob) SetRequests(reqs []RetrieveRequest) {
	b, _ := json.Marshal(reqs)
	j.Requests = string(b)
}

// ResultList returns the parsed results; empty on parse error.
func (j *BulkJob) ResultList() []RetrieveResponse {
	if j.Results == "" {
		return nil
	}
	var v []RetrieveResponse
	_ = json.Unmarshal([]byte(j.Results), &v)
	return v
}

func (j *BulkJob) SetResults(results []RetrieveResponse) {
	b, _ := json.Marshal(results)
	j.Results = string(b)
}
