package model

import "time"

// Chat is one stored question/answer/feedback tuple. Several chats can share a
// question id; the one with the newest UpdatedAt is the latest answer.
type Chat struct {
	ID         string    `json:"id,omitempty"`
	QuestionID string    `json:"question_id"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Feedback   string    `json:"feedback,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
