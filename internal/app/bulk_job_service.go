package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ropatopia/internal/auth"
	"ropatopia/internal/backend"
	"ropatopia/internal/model"
	"ropatopia/internal/repository"
)

var (
	ErrJobNotFound = errors.New("bulk job not found")
	ErrJobEnqueue  = errors.New("bulk job enqueue failed")
)

type JobPublisher interface {
	Publish(ctx context.Context, msg model.BulkJobMessage) error
}

type BulkJobInput struct {
	BatchID    string   `json:"batch_id"`
	Activities []string `json:"processing_activity"`
	Queries    []string `json:"queries"`
}

type BulkJobView struct {
	ID        string                   `json:"id"`
	BatchID   string                   `json:"batch_id"`
	Status    model.BulkJobStatus      `json:"status"`
	Error     string                   `json:"error,omitempty"`
	Requests  []model.RetrieveRequest  `json:"requests"`
	Results   []model.RetrieveResponse `json:"results,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// BulkJobService queues bulk generate runs and processes them off the
// request path. The worker borrows the queuing client's token.
type BulkJobService struct {
	jobs      *repository.BulkJobRepository
	publisher JobPublisher
	gateway   *Gateway
	sessions  *auth.Manager
	logger    *slog.Logger
}

func NewBulkJobService(jobs *repository.BulkJobRepository, publisher JobPublisher, gateway *Gateway, sessions *auth.Manager, logger *slog.Logger) *BulkJobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkJobService{
		jobs:      jobs,
		publisher: publisher,
		gateway:   gateway,
		sessions:  sessions,
		logger:    logger,
	}
}

// SetPublisher replaces the queue, e.g. with an in-process one when no broker
// is configured.
func (s *BulkJobService) SetPublisher(p JobPublisher) {
	s.publisher = p
}

func (s *BulkJobService) Enqueue(ctx context.Context, sess *auth.Session, input BulkJobInput) (*BulkJobView, error) {
	batchID := strings.TrimSpace(input.BatchID)
	var acts []string
	for _, a := range input.Activities {
		if a = strings.TrimSpace(a); a != "" {
			acts = append(acts, a)
		}
	}
	if batchID == "" || len(acts) == 0 {
		return nil, invalid("Please select a file and an activity.")
	}
	var reqs []model.RetrieveRequest
	for _, q := range input.Queries {
		if q = strings.TrimSpace(q); q != "" {
			reqs = append(reqs, model.RetrieveRequest{Query: q, BatchID: batchID, ProcessingActivity: acts})
		}
	}
	if len(reqs) == 0 {
		return nil, invalid("Please enter at least one question.")
	}

	job := &model.BulkJob{
		ID:       uuid.NewString(),
		ClientID: sess.ID,
		BatchID:  batchID,
		Status:   model.BulkJobQueued,
	}
	job.SetRequests(reqs)
	if err := s.jobs.Create(job); err != nil {
		return nil, err
	}
	if s.publisher == nil {
		_ = s.jobs.Fail(job.ID, "queue unavailable")
		return nil, ErrJobEnqueue
	}
	if err := s.publisher.Publish(ctx, model.BulkJobMessage{JobID: job.ID}); err != nil {
		s.logger.Error("publish bulk job failed", "job", job.ID, "error", err)
		_ = s.jobs.Fail(job.ID, "queue unavailable")
		return nil, ErrJobEnqueue
	}
	return bulkJobView(job), nil
}

func (s *BulkJobService) Get(ctx context.Context, sess *auth.Session, id string) (*BulkJobView, error) {
	job, err := s.jobs.GetByIDAndClientID(id, sess.ID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return bulkJobView(job), nil
}

func (s *BulkJobService) List(ctx context.Context, sess *auth.Session) ([]BulkJobView, error) {
	jobs, err := s.jobs.ListByClientID(sess.ID, 50)
	if err != nil {
		return nil, err
	}
	out := make([]BulkJobView, 0, len(jobs))
	for i := range jobs {
		out = append(out, *bulkJobView(&jobs[i]))
	}
	return out, nil
}

// Process runs one queued job. Backend failures are recorded on the job; only
// storage failures are returned.
func (s *BulkJobService) Process(ctx context.Context, msg model.BulkJobMessage) error {
	job, err := s.jobs.GetByID(msg.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		s.logger.Warn("bulk job vanished before processing", "job", msg.JobID)
		return nil
	}
	started, err := s.jobs.MarkRunning(job.ID)
	if err != nil {
		return err
	}
	if !started {
		return nil
	}

	tokens, release := s.sessions.Acquire(job.ClientID)
	defer release()
	results, err := s.gateway.For(tokens).PIA.BulkGenerate(ctx, model.BulkRetrieveRequest{Requests: job.RequestList()})
	if err != nil {
		reason := "Failed to submit questions."
		if errors.Is(err, backend.ErrUnauthorized) {
			reason = "Your session has expired. Please log in again."
		}
		s.logger.Warn("bulk job failed", "job", job.ID, "error", err)
		if failErr := s.jobs.Fail(job.ID, reason); failErr != nil {
			return fmt.Errorf("record job failure: %w", failErr)
		}
		return nil
	}
	return s.jobs.Complete(job.ID, results)
}

func bulkJobView(job *model.BulkJob) *BulkJobView {
	return &BulkJobView{
		ID:        job.ID,
		BatchID:   job.BatchID,
		Status:    job.Status,
		Error:     job.Error,
		Requests:  job.RequestList(),
		Results:   job.ResultList(),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

// InlinePublisher processes jobs in a goroutine of this process. It stands in
// for the broker in development setups.
type InlinePublisher struct {
	Process func(ctx context.Context, msg model.BulkJobMessage) error
	Logger  *slog.Logger
}

func (p *InlinePublisher) Publish(_ context.Context, msg model.BulkJobMessage) error {
	go func() {
		if err := p.Process(context.Background(), msg); err != nil && p.Logger != nil {
			p.Logger.Error("inline bulk job failed", "job", msg.JobID, "error", err)
		}
	}()
	return nil
}
