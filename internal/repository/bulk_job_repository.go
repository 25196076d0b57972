package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ropatopia/internal/model"
)

type BulkJobRepository struct {
	db *gorm.DB
}

func NewBulkJobRepository(db *gorm.DB) *BulkJobRepository {
	return &BulkJobRepository{db: db}
}

func (r *BulkJobRepository) Create(job *model.BulkJob) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("create bulk job failed: %w", err)
	}
	return nil
}

func (r *BulkJobRepository) GetByID(id string) (*model.BulkJob, error) {
	var job model.BulkJob
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bulk job failed: %w", err)
	}
	return &job, nil
}

// GetByIDAndClientID scopes the lookup to the browser client that queued the job.
func (r *BulkJobRepository) GetByIDAndClientID(id, clientID string) (*model.BulkJob, error) {
	var job model.BulkJob
	if err := r.db.Where("id = ? AND client_id = ?", id, clientID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bulk job failed: %w", err)
	}
	return &job, nil
}

func (r *BulkJobRepository) ListByClientID(clientID string, limit int) ([]model.BulkJob, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var jobs []model.BulkJob
	if err := r.db.Where("client_id = ?", clientID).Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list bulk jobs failed: %w", err)
	}
	return jobs, nil
}

// MarkRunning moves a queued job to running. It reports false when the job was
// not queued, so a redelivered message is not processed twice.
func (r *BulkJobRepository) MarkRunning(id string) (bool, error) {
	res := r.db.Model(&model.BulkJob{}).
		Where("id = ? AND status = ?", id, model.BulkJobQueued).
		Update("status", model.BulkJobRunning)
	if res.Error != nil {
		return false, fmt.Errorf("mark bulk job running failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *BulkJobRepository) Complete(id string, results []model.RetrieveResponse) error {
	job := model.BulkJob{}
	job.SetResults(results)
	if err := r.db.Model(&model.BulkJob{}).Where("id = ?", id).Updates(map[string]any{
		"status":  model.BulkJobDone,
		"results": job.Results,
		"error":   "",
	}).Error; err != nil {
		return fmt.Errorf("complete bulk job failed: %w", err)
	}
	return nil
}

func (r *BulkJobRepository) Fail(id string, reason string) error {
	if err := r.db.Model(&model.BulkJob{}).Where("id = ?", id).Updates(map[string]any{
		"status": model.BulkJobFailed,
		"error":  reason,
	}).Error; err != nil {
		return fmt.Errorf("fail bulk job failed: %w", err)
	}
	return nil
}
