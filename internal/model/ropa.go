package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type RopaStatus string

const (
	RopaStatusDraft      RopaStatus = "draft"
	RopaStatusPending    RopaStatus = "pending"
	RopaStatusInProgress RopaStatus = "in_progress"
	RopaStatusCompleted  RopaStatus = "completed"
)

type QuestionType string

const (
	QuestionTypeText        QuestionType = "text"
	QuestionTypeTextarea    QuestionType = "textarea"
	QuestionTypeBoolean     QuestionType = "boolean"
	QuestionTypeMultiSelect QuestionType = "multi_select"
)

// RopaSession status and completion are computed by the backend; the console
// only reads them.
type RopaSession struct {
	ID                   string     `json:"id"`
	Status               RopaStatus `json:"status"`
	Domain               string     `json:"domain"`
	Jurisdiction         string     `json:"jurisdiction"`
	CompletionPercentage float64    `json:"completion_percentage"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type RopaQuestion struct {
	ID         string       `json:"id"`
	Question   string       `json:"question"`
	Type       QuestionType `json:"type"`
	Category   string       `json:"category"`
	HelpText   string       `json:"help_text,omitempty"`
	Required   bool         `json:"required"`
	Options    []string     `json:"options,omitempty"`
	Answer     *string      `json:"answer"`
	OtherText  *string      `json:"other_text,omitempty"`
	IsAnswered bool         `json:"is_answered"`
}

type RopaQuestionsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		Questions []RopaQuestion `json:"questions"`
	} `json:"data"`
}

type RopaAnswer struct {
	SessionID  string  `json:"session_id"`
	QuestionID string  `json:"question_id"`
	OtherText  *string `json:"other_text"`
	Answer     string  `json:"answer"`
	Category   string  `json:"category"`
}

type RopaAddQuestionPayload struct {
	SessionID    string       `json:"session_id"`
	Question     string       `json:"question"`
	QuestionType QuestionType `json:"question_type"`
	Category     string       `json:"category"`
	HelpText     string       `json:"help_text"`
	Required     bool         `json:"required"`
	Options      []string     `json:"options"`
}

type RopaProgress struct {
	TotalQuestions       int     `json:"total_questions"`
	AnsweredQuestions    int     `json:"answered_questions"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

type RopaSessionStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    struct {
		SessionID string       `json:"session_id"`
		Status    RopaStatus   `json:"status"`
		Progress  RopaProgress `json:"progress"`
	} `json:"data"`
}

// QuestionField describes one preliminary intake field. Its shape is fully
// decided by the backend.
type QuestionField struct {
	Question    string   `json:"question"`
	Type        string   `json:"type"`
	Options     []string `json:"options"`
	Required    bool     `json:"required"`
	Placeholder *string  `json:"placeholder,omitempty"`
}

type PreliminaryQuestions struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Data    FieldSet `json:"data"`
}

// FieldSet is a JSON object of question fields that remembers the order its
// keys were sent in. A repeated key keeps its first position and last value.
type FieldSet struct {
	Order  []string
	Fields map[string]QuestionField
}

func (s *FieldSet) Has(id string) bool {
	_, ok := s.Fields[id]
	return ok
}

func (s *FieldSet) UnmarshalJSON(data []byte) error {
	s.Order = nil
	s.Fields = make(map[string]QuestionField)
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("field set: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("field set: unexpected key %v", tok)
		}
		var f QuestionField
		if err := dec.Decode(&f); err != nil {
			return fmt.Errorf("field set: field %q: %w", key, err)
		}
		if _, seen := s.Fields[key]; !seen {
			s.Order = append(s.Order, key)
		}
		s.Fields[key] = f
	}
	_, err = dec.Token()
	return err
}

func (s FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.Order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.Fields[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type StartSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		SessionID string `json:"session_id"`
	} `json:"data"`
}
