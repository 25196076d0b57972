package model

import "time"

// Session ties a company and its processing activities to the question/answer history.
type Session struct {
	SessionID            string   `json:"session_id"`
	CompanyName          string   `json:"company_name"`
	ProcessingActivities []string `json:"processing_activities"`
	IsActive             bool     `json:"isActive"`
}

type SessionDetail struct {
	SessionID            string   `json:"session_id"`
	CompanyName          string   `json:"company_name"`
	ProcessingActivities []string `json:"processing_activities"`
	Chats                []Chat   `json:"chats"`
}

type CreateSessionRequest struct {
	BatchID              string   `json:"batch_id"`
	ProcessingActivities []string `json:"processing_activities"`
	Company              string   `json:"company"`
}

// Batch is an ingested upload, addressed by the batch id the backend issued.
type Batch struct {
	BatchID   string    `json:"batch_id"`
	Company   string    `json:"company"`
	Filename  string    `json:"filename,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
