package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pricing-service/internal/mapper"
	"pricing-service/internal/models"
)

// JobStore is the slice of job persistence the runner needs
type JobStore interface {
	GetJobByID(jobID uuid.UUID) (*models.ImportJob, error)
	UpdateJob(job *models.ImportJob) error
	IsCancelRequested(jobID uuid.UUID) (bool, error)
}

// ProductStore is the slice of product persistence the runner needs
type ProductStore interface {
	BulkUpsert(ctx context.Context, tenantID string, products []*models.Product, mappedFields []string) error
	InvalidateCaches(tenantID string)
}

// Publisher notifies downstream consumers about finished jobs
type Publisher interface {
	ImportCompleted(job *models.ImportJob)
	ImportFailed(job *models.ImportJob)
}

// Config tunes the runner
type Config struct {
	BatchSize       int
	ChunkTimeout    time.Duration
	DefaultCurrency string
}

// Runner drains one import job at a time: validates rows, upserts them
// in chunks, and keeps the job record's progress and logs current
type Runner struct {
	jobs      JobStore
	products  ProductStore
	publisher Publisher
	cfg       Config
	log       *logrus.Entry
}

func NewRunner(jobs JobStore, products ProductStore, publisher Publisher, cfg Config, logger *logrus.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = 30 * time.Second
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "CAD"
	}
	return &Runner{
		jobs:      jobs,
		products:  products,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.WithField("component", "importer"),
	}
}

// Run processes a pending job to a terminal state. Panics are recovered
// into a failed job so a bad file can never take a worker down.
func (r *Runner) Run(jobID uuid.UUID) {
	job, err := r.jobs.GetJobByID(jobID)
	if err != nil {
		r.log.WithError(err).WithField("job_id", jobID).Error("Failed to load import job")
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("job_id", jobID).Errorf("Import panicked: %v", rec)
			r.fail(job, fmt.Sprintf("internal error: %v", rec))
		}
	}()

	if err := job.Transition(models.ImportStatusRunning); err != nil {
		r.log.WithError(err).WithField("job_id", jobID).Warn("Import job not in a runnable state")
		return
	}

	// Total is frozen here; progress never exceeds it
	job.ProgressTotal = len(job.RawRows)
	job.ProgressCurrent = 0
	job.CurrentStep = "importing products"
	job.AppendLog("info", fmt.Sprintf("Starting import of %d rows", job.ProgressTotal), nil)
	if err := r.jobs.UpdateJob(job); err != nil {
		// Better a failed job than one stuck forever; the fail write
		// is best-effort against the same store
		r.log.WithError(err).WithField("job_id", jobID).Error("Failed to persist job start")
		r.fail(job, fmt.Sprintf("failed to persist job start: %v", err))
		return
	}

	r.log.WithFields(logrus.Fields{
		"job_id":    jobID,
		"tenant_id": job.TenantID,
		"rows":      job.ProgressTotal,
	}).Info("Import job started")

	mappedFields := mappedFieldList(job.ColumnMapping)
	var errorReasons []string

	rows := job.RawRows
	for start := 0; start < len(rows); start += r.cfg.BatchSize {
		cancelled, err := r.jobs.IsCancelRequested(job.ID)
		if err == nil && cancelled {
			r.fail(job, "import cancelled")
			return
		}

		end := start + r.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]

		products, chunkReasons := r.buildProducts(job, chunk)
		job.ProductsFailed += len(chunkReasons)
		errorReasons = append(errorReasons, chunkReasons...)

		if len(products) > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ChunkTimeout)
			err := r.products.BulkUpsert(ctx, job.TenantID, products, mappedFields)
			cancel()
			if err != nil {
				// The whole chunk rolls back together
				job.ProductsFailed += len(products)
				job.AppendLog("error", fmt.Sprintf("Chunk upsert failed (rows %d-%d): %v", start+2, end+1, err), nil)
				r.log.WithError(err).WithFields(logrus.Fields{
					"job_id":    jobID,
					"start_row": start + 2,
					"end_row":   end + 1,
				}).Error("Chunk upsert failed")
			} else {
				job.ProductsImported += len(products)
			}
		}

		job.ProgressCurrent = end
		job.AppendLog("progress", fmt.Sprintf("Processed %d of %d rows", end, job.ProgressTotal), models.JSON{
			"imported": job.ProductsImported,
			"failed":   job.ProductsFailed,
		})
		if err := r.jobs.UpdateJob(job); err != nil {
			r.log.WithError(err).WithField("job_id", jobID).Error("Failed to persist chunk progress")
		}
	}

	capped := errorReasons
	if len(capped) > 10 {
		capped = capped[:10]
	}
	errs := make([]interface{}, len(capped))
	for i, reason := range capped {
		errs[i] = reason
	}
	job.AppendLog("success", fmt.Sprintf("Import finished: %d imported, %d failed", job.ProductsImported, job.ProductsFailed), models.JSON{
		"errors": errs,
	})
	job.CurrentStep = "completed"
	if err := job.Transition(models.ImportStatusCompleted); err != nil {
		r.log.WithError(err).WithField("job_id", jobID).Error("Failed to complete import job")
		return
	}
	if err := r.jobs.UpdateJob(job); err != nil {
		r.log.WithError(err).WithField("job_id", jobID).Error("Failed to persist job completion")
		return
	}

	r.products.InvalidateCaches(job.TenantID)
	if r.publisher != nil {
		r.publisher.ImportCompleted(job)
	}

	r.log.WithFields(logrus.Fields{
		"job_id":   jobID,
		"imported": job.ProductsImported,
		"failed":   job.ProductsFailed,
	}).Info("Import job completed")
}

// buildProducts validates one chunk of rows against the job's column
// mapping. Invalid rows are reported with their original file row
// number, counting the header as row one.
func (r *Runner) buildProducts(job *models.ImportJob, chunk []map[string]string) ([]*models.Product, []string) {
	mapping := job.ColumnMapping
	products := make([]*models.Product, 0, len(chunk))
	var reasons []string

	for _, row := range chunk {
		rowNum, _ := strconv.Atoi(row[mapper.RowNumberKey])

		sku := strings.TrimSpace(row[mapping[models.FieldSKU]])
		name := strings.TrimSpace(row[mapping[models.FieldName]])
		price, priceErr := mapper.ParsePrice(row[mapping[models.FieldPrice]])

		if sku == "" || name == "" || priceErr != nil {
			reasons = append(reasons, fmt.Sprintf("Row %d: invalid data", rowNum))
			continue
		}

		product := &models.Product{
			SKU:          sku,
			Name:         name,
			CurrentPrice: price,
			Currency:     r.cfg.DefaultCurrency,
		}
		if col, ok := mapping[models.FieldBrand]; ok {
			if v := strings.TrimSpace(row[col]); v != "" {
				product.Brand = &v
			}
		}
		if col, ok := mapping[models.FieldCategory]; ok {
			if v := strings.TrimSpace(row[col]); v != "" {
				product.Category = &v
			}
		}
		if col, ok := mapping[models.FieldURL]; ok {
			if v := strings.TrimSpace(row[col]); v != "" {
				product.ProductURL = &v
			}
		}
		if col, ok := mapping[models.FieldDescription]; ok {
			if v := strings.TrimSpace(row[col]); v != "" {
				product.Description = &v
			}
		}
		products = append(products, product)
	}

	return products, reasons
}

// fail flips the job to failed, keeping whatever counters were reached
func (r *Runner) fail(job *models.ImportJob, message string) {
	if job.Status.IsTerminal() {
		return
	}
	job.Error = &message
	job.CurrentStep = "failed"
	job.ProductsFailed = job.ProgressTotal - job.ProductsImported
	job.ProgressCurrent = job.ProgressTotal
	job.AppendLog("error", message, nil)
	if err := job.Transition(models.ImportStatusFailed); err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Error("Failed to mark import job failed")
		return
	}
	if err := r.jobs.UpdateJob(job); err != nil {
		r.log.WithError(err).WithField("job_id", job.ID).Error("Failed to persist failed job")
	}
	if r.publisher != nil {
		r.publisher.ImportFailed(job)
	}
}

// mappedFieldList extracts the optional fields present in a mapping so
// the upsert only touches columns the file actually carried
func mappedFieldList(mapping models.FieldMapping) []string {
	fields := make([]string, 0, len(mapping))
	for field, column := range mapping {
		if column == "" || field == models.FieldIgnore {
			continue
		}
		fields = append(fields, field)
	}
	return fields
}
