package model

import "encoding/json"

type ClaudeRequest struct {
	Message string `json:"message"`
}

type ClaudeContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ClaudeResponse is the message returned by /claude/generate. Raw keeps the
// body as received.
type ClaudeResponse struct {
	Content []ClaudeContent `json:"content"`
	Raw     json.RawMessage `json:"-"`
}
