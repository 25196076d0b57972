package app

import (
	"context"
	"log/slog"
	"strings"

	"ropatopia/internal/auth"
)

// DefaultActivities are offered when the batch has no activity list.
var DefaultActivities = []string{
	"Sample Activity",
	"Data Processing",
	"Content Analysis",
	"Report Generation",
}

type ActivityList struct {
	BatchID    string   `json:"batch_id"`
	Activities []string `json:"activities"`
	Fallback   bool     `json:"fallback"`
}

type SelectActivitiesInput struct {
	BatchID    string   `json:"batch_id"`
	Company    string   `json:"company"`
	Activities []string `json:"activities"`
}

type ActivityService struct {
	gateway *Gateway
	logger  *slog.Logger
}

func NewActivityService(gateway *Gateway, logger *slog.Logger) *ActivityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityService{gateway: gateway, logger: logger}
}

// List returns the processing activities of a batch. Without a batch id, or
// when the backend cannot be read, it falls back to DefaultActivities.
func (s *ActivityService) List(ctx context.Context, sess *auth.Session, batchID string) ActivityList {
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return ActivityList{Activities: defaultActivities(), Fallback: true}
	}
	acts, err := s.gateway.For(sess).Activities.FetchByBatchID(ctx, batchID)
	if err != nil {
		s.logger.Warn("fetch processing activities failed", "batch", batchID, "error", err)
		return ActivityList{BatchID: batchID, Activities: defaultActivities(), Fallback: true}
	}
	return ActivityList{BatchID: batchID, Activities: acts}
}

// Select creates a session for the checked activities and returns its id. No
// call is made unless at least one activity is checked.
func (s *ActivityService) Select(ctx context.Context, sess *auth.Session, input SelectActivitiesInput) (string, error) {
	var acts []string
	for _, a := range input.Activities {
		if a = strings.TrimSpace(a); a != "" {
			acts = append(acts, a)
		}
	}
	if len(acts) == 0 {
		return "", invalid("Please select an activity.")
	}
	if strings.TrimSpace(input.BatchID) == "" {
		return "", invalid("File is not selected. Please upload a file first.")
	}
	sessionID, err := s.gateway.For(sess).Sessions.Create(ctx, input.BatchID, acts, strings.TrimSpace(input.Company))
	if err != nil {
		s.logger.Error("create session failed", "client", sess.ID, "batch", input.BatchID, "error", err)
		return "", err
	}
	return sessionID, nil
}

func defaultActivities() []string {
	out := make([]string, len(DefaultActivities))
	copy(out, DefaultActivities)
	return out
}
