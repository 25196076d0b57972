package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ropatopia/internal/auth"
	"ropatopia/internal/model"
)

const (
	FieldProcessingActivity = "processing_activity"
	FieldCompanyName        = "company_name"
)

type PreliminaryField struct {
	ID string `json:"id"`
	model.QuestionField
}

type PreliminaryService struct {
	gateway *Gateway
	logger  *slog.Logger
}

func NewPreliminaryService(gateway *Gateway, logger *slog.Logger) *PreliminaryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreliminaryService{gateway: gateway, logger: logger}
}

// Fields returns the intake form the backend describes, with the processing
// activity and company name fields added first when it left them out.
func (s *PreliminaryService) Fields(ctx context.Context, sess *auth.Session) ([]PreliminaryField, error) {
	resp, err := s.gateway.For(sess).Ropa.PreliminaryQuestions(ctx)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("preliminary questions failed: %s", resp.Message)
	}
	return MergePreliminaryFields(resp.Data), nil
}

// MergePreliminaryFields keeps the server's fields in the order it sent them.
func MergePreliminaryFields(server model.FieldSet) []PreliminaryField {
	fields := make([]PreliminaryField, 0, len(server.Order)+2)
	if !server.Has(FieldProcessingActivity) {
		fields = append(fields, PreliminaryField{ID: FieldProcessingActivity, QuestionField: model.QuestionField{
			Question:    "What is the processing activity?",
			Type:        "text",
			Required:    true,
			Placeholder: strPtr("e.g. Employee payroll"),
		}})
	}
	if !server.Has(FieldCompanyName) {
		fields = append(fields, PreliminaryField{ID: FieldCompanyName, QuestionField: model.QuestionField{
			Question:    "What is the company name?",
			Type:        "text",
			Required:    true,
			Placeholder: strPtr("e.g. Acme Ltd"),
		}})
	}
	for _, id := range server.Order {
		fields = append(fields, PreliminaryField{ID: id, QuestionField: server.Fields[id]})
	}
	return fields
}

// ValidatePreliminary reports the first required field left blank.
func ValidatePreliminary(fields []PreliminaryField, answers map[string]string) error {
	for _, f := range fields {
		if f.Required && strings.TrimSpace(answers[f.ID]) == "" {
			return invalid(fmt.Sprintf("Please answer the required question: %q", f.Question))
		}
	}
	return nil
}

// Submit validates the answers against the current form and starts a ROPA
// session with them.
func (s *PreliminaryService) Submit(ctx context.Context, sess *auth.Session, answers map[string]string) (string, error) {
	fields, err := s.Fields(ctx, sess)
	if err != nil {
		return "", err
	}
	if err := ValidatePreliminary(fields, answers); err != nil {
		return "", err
	}
	clean := make(map[string]string, len(fields))
	for _, f := range fields {
		if v := strings.TrimSpace(answers[f.ID]); v != "" {
			clean[f.ID] = v
		}
	}
	sessionID, err := s.gateway.For(sess).Ropa.StartSession(ctx, clean)
	if err != nil {
		s.logger.Error("start ropa session failed", "client", sess.ID, "error", err)
		return "", err
	}
	return sessionID, nil
}

func strPtr(s string) *string { return &s }
