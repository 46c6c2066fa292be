package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pricing-service/internal/models"
)

type ImportsRepository struct {
	db *gorm.DB
}

func NewImportsRepository(db *gorm.DB) *ImportsRepository {
	return &ImportsRepository{db: db}
}

// CreateDraft persists a previewed upload as a draft job holding the
// parsed rows
func (r *ImportsRepository) CreateDraft(tenantID string, job *models.ImportJob) error {
	job.TenantID = tenantID
	job.Status = models.ImportStatusDraft
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.RowCount = len(job.RawRows)
	job.CreatedAt = time.Now()
	job.UpdatedAt = time.Now()
	return r.db.Create(job).Error
}

// GetJob loads a job scoped to its tenant
func (r *ImportsRepository) GetJob(tenantID string, jobID uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := r.db.Where("tenant_id = ? AND id = ?", tenantID, jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobByID loads a job without tenant scoping, for the background runner
func (r *ImportsRepository) GetJobByID(jobID uuid.UUID) (*models.ImportJob, error) {
	var job models.ImportJob
	if err := r.db.Where("id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns the tenant's most recent jobs, newest first, without
// the raw row payloads
func (r *ImportsRepository) ListJobs(tenantID string, limit int) ([]models.ImportJob, error) {
	var jobs []models.ImportJob
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("created_at DESC").Limit(limit).Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		jobs[i].RawRows = nil
	}
	return jobs, nil
}

// Confirm moves a draft job to pending with its confirmed column mapping
func (r *ImportsRepository) Confirm(tenantID string, jobID uuid.UUID, mapping models.FieldMapping) (*models.ImportJob, error) {
	job, err := r.GetJob(tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if err := job.Transition(models.ImportStatusPending); err != nil {
		return nil, err
	}
	job.ColumnMapping = mapping
	job.CurrentStep = "queued"
	job.UpdatedAt = time.Now()

	err = r.db.Model(&models.ImportJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":         job.Status,
		"column_mapping": job.ColumnMapping,
		"current_step":   job.CurrentStep,
		"updated_at":     job.UpdatedAt,
	}).Error
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateJob persists the mutable fields of a running job. Raw rows are
// dropped once the job reaches a terminal state; logs and counters stay
// readable.
func (r *ImportsRepository) UpdateJob(job *models.ImportJob) error {
	job.UpdatedAt = time.Now()
	updates := map[string]interface{}{
		"status":            job.Status,
		"current_step":      job.CurrentStep,
		"progress_current":  job.ProgressCurrent,
		"progress_total":    job.ProgressTotal,
		"products_imported": job.ProductsImported,
		"products_failed":   job.ProductsFailed,
		"logs":              job.Logs,
		"error":             job.Error,
		"updated_at":        job.UpdatedAt,
		"started_at":        job.StartedAt,
		"completed_at":      job.CompletedAt,
	}
	if job.Status.IsTerminal() {
		updates["raw_rows"] = nil
		job.RawRows = nil
	}
	return r.db.Model(&models.ImportJob{}).Where("id = ?", job.ID).Updates(updates).Error
}

// IsCancelRequested re-reads the cancellation flag, checked at chunk
// boundaries by the runner
func (r *ImportsRepository) IsCancelRequested(jobID uuid.UUID) (bool, error) {
	var job models.ImportJob
	err := r.db.Select("cancel_requested").Where("id = ?", jobID).First(&job).Error
	if err != nil {
		return false, err
	}
	return job.CancelRequested, nil
}
