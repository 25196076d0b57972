package model

// RetrieveRequest is the generate_pia payload. The backend has accepted two
// shapes over time: query/session_id/question_id/feedback for the chat flow and
// batch_id/processing_activity for the upload flow. Unused fields are omitted.
type RetrieveRequest struct {
	Query              string   `json:"query"`
	SessionID          string   `json:"session_id,omitempty"`
	QuestionID         *string  `json:"question_id,omitempty"`
	Feedback           *string  `json:"feedback,omitempty"`
	BatchID            string   `json:"batch_id,omitempty"`
	ProcessingActivity []string `json:"processing_activity,omitempty"`
}

type BulkRetrieveRequest struct {
	Requests []RetrieveRequest `json:"requests"`
}

type RetrieveResponse struct {
	QuestionID string `json:"question_id"`
	Query      string `json:"query,omitempty"`
	Answer     string `json:"answer"`
}

type BulkRetrieveResponse struct {
	Results []RetrieveResponse `json:"results"`
}
