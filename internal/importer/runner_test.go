package importer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricing-service/internal/mapper"
	"pricing-service/internal/models"
)

type fakeJobStore struct {
	job       *models.ImportJob
	updates   int
	cancelAt  int // cancel check count at which cancellation triggers; 0 means never
	checks    int
	updateErr error
}

func (s *fakeJobStore) GetJobByID(jobID uuid.UUID) (*models.ImportJob, error) {
	if s.job == nil || s.job.ID != jobID {
		return nil, errors.New("job not found")
	}
	return s.job, nil
}

func (s *fakeJobStore) UpdateJob(job *models.ImportJob) error {
	s.updates++
	return s.updateErr
}

func (s *fakeJobStore) IsCancelRequested(jobID uuid.UUID) (bool, error) {
	s.checks++
	return s.cancelAt > 0 && s.checks >= s.cancelAt, nil
}

type upsertCall struct {
	tenantID     string
	products     []*models.Product
	mappedFields []string
}

type fakeProductStore struct {
	calls       []upsertCall
	failOnCall  int // 1-based call number that returns an error; 0 means never
	invalidated []string
}

func (s *fakeProductStore) BulkUpsert(ctx context.Context, tenantID string, products []*models.Product, mappedFields []string) error {
	s.calls = append(s.calls, upsertCall{tenantID: tenantID, products: products, mappedFields: mappedFields})
	if s.failOnCall > 0 && len(s.calls) == s.failOnCall {
		return errors.New("deadlock detected")
	}
	return nil
}

func (s *fakeProductStore) InvalidateCaches(tenantID string) {
	s.invalidated = append(s.invalidated, tenantID)
}

type fakePublisher struct {
	completed []*models.ImportJob
	failed    []*models.ImportJob
}

func (p *fakePublisher) ImportCompleted(job *models.ImportJob) {
	p.completed = append(p.completed, job)
}

func (p *fakePublisher) ImportFailed(job *models.ImportJob) {
	p.failed = append(p.failed, job)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func pendingJob(rows models.RawRows, mapping models.FieldMapping) *models.ImportJob {
	return &models.ImportJob{
		ID:            uuid.New(),
		TenantID:      "tenant-1",
		Filename:      "catalog.csv",
		Format:        models.ImportFormatCSV,
		Status:        models.ImportStatusPending,
		ColumnMapping: mapping,
		RawRows:       rows,
		RowCount:      len(rows),
	}
}

func catalogRows() models.RawRows {
	return models.RawRows{
		{mapper.RowNumberKey: "2", "sku": "A-1", "nom": "Faucet", "prix": "12.99"},
		{mapper.RowNumberKey: "3", "sku": "A-2", "nom": "Sink", "prix": "45.00"},
		{mapper.RowNumberKey: "4", "sku": "", "nom": "Missing SKU", "prix": "9.99"},
	}
}

func catalogMapping() models.FieldMapping {
	return models.FieldMapping{
		models.FieldSKU:   "sku",
		models.FieldName:  "nom",
		models.FieldPrice: "prix",
	}
}

func TestRunImportsValidRowsAndReportsInvalid(t *testing.T) {
	job := pendingJob(catalogRows(), catalogMapping())
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{}
	publisher := &fakePublisher{}

	runner := NewRunner(jobs, products, publisher, Config{}, testLogger())
	runner.Run(job.ID)

	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ProductsImported)
	assert.Equal(t, 1, job.ProductsFailed)
	assert.Equal(t, job.ProgressTotal, job.ProductsImported+job.ProductsFailed)
	assert.Equal(t, 3, job.ProgressTotal)
	assert.Equal(t, 3, job.ProgressCurrent)
	assert.Equal(t, "completed", job.CurrentStep)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)

	require.Len(t, products.calls, 1)
	assert.Equal(t, "tenant-1", products.calls[0].tenantID)
	require.Len(t, products.calls[0].products, 2)
	assert.Equal(t, "A-1", products.calls[0].products[0].SKU)
	assert.Equal(t, "Faucet", products.calls[0].products[0].Name)
	assert.InDelta(t, 12.99, products.calls[0].products[0].CurrentPrice, 1e-9)
	assert.Equal(t, "CAD", products.calls[0].products[0].Currency)

	assert.Equal(t, []string{"tenant-1"}, products.invalidated)
	require.Len(t, publisher.completed, 1)
	assert.Empty(t, publisher.failed)

	// Invalid rows carry their original file row number
	var success *models.JobLog
	for i := range job.Logs {
		if job.Logs[i].Level == "success" {
			success = &job.Logs[i]
		}
	}
	require.NotNil(t, success)
	reasons, ok := success.Metadata["errors"].([]interface{})
	require.True(t, ok)
	require.Len(t, reasons, 1)
	assert.Equal(t, "Row 4: invalid data", reasons[0])
}

func TestRunRejectsNonPendingJob(t *testing.T) {
	job := pendingJob(catalogRows(), catalogMapping())
	job.Status = models.ImportStatusCompleted
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{}

	runner := NewRunner(jobs, products, &fakePublisher{}, Config{}, testLogger())
	runner.Run(job.ID)

	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Empty(t, products.calls)
	assert.Zero(t, jobs.updates)
}

func TestRunStartPersistFailureFailsJob(t *testing.T) {
	job := pendingJob(catalogRows(), catalogMapping())
	jobs := &fakeJobStore{job: job, updateErr: errors.New("connection refused")}
	products := &fakeProductStore{}
	publisher := &fakePublisher{}

	runner := NewRunner(jobs, products, publisher, Config{}, testLogger())
	runner.Run(job.ID)

	// The job must not sit in pending forever when the start write fails
	assert.Equal(t, models.ImportStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Contains(t, *job.Error, "failed to persist job start")
	assert.Empty(t, products.calls)
	require.Len(t, publisher.failed, 1)
	assert.Empty(t, publisher.completed)
}

func TestRunChunksRows(t *testing.T) {
	rows := make(models.RawRows, 0, 120)
	for i := 0; i < 120; i++ {
		rows = append(rows, map[string]string{
			mapper.RowNumberKey: fmt.Sprintf("%d", i+2),
			"sku":               fmt.Sprintf("SKU-%03d", i),
			"nom":               fmt.Sprintf("Product %d", i),
			"prix":              "10.00",
		})
	}
	job := pendingJob(rows, catalogMapping())
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{}

	runner := NewRunner(jobs, products, &fakePublisher{}, Config{BatchSize: 50}, testLogger())
	runner.Run(job.ID)

	require.Len(t, products.calls, 3)
	assert.Len(t, products.calls[0].products, 50)
	assert.Len(t, products.calls[1].products, 50)
	assert.Len(t, products.calls[2].products, 20)
	assert.Equal(t, 120, job.ProductsImported)
	assert.Equal(t, 0, job.ProductsFailed)
	assert.Equal(t, models.ImportStatusCompleted, job.Status)

	// One progress log per chunk plus start and success entries
	var progress int
	for _, entry := range job.Logs {
		if entry.Level == "progress" {
			progress++
		}
	}
	assert.Equal(t, 3, progress)
}

func TestRunChunkFailureFailsWholeChunk(t *testing.T) {
	rows := make(models.RawRows, 0, 60)
	for i := 0; i < 60; i++ {
		rows = append(rows, map[string]string{
			mapper.RowNumberKey: fmt.Sprintf("%d", i+2),
			"sku":               fmt.Sprintf("SKU-%03d", i),
			"nom":               fmt.Sprintf("Product %d", i),
			"prix":              "10.00",
		})
	}
	job := pendingJob(rows, catalogMapping())
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{failOnCall: 1}
	publisher := &fakePublisher{}

	runner := NewRunner(jobs, products, publisher, Config{BatchSize: 50}, testLogger())
	runner.Run(job.ID)

	// First chunk of 50 rolls back together; second chunk still lands
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 10, job.ProductsImported)
	assert.Equal(t, 50, job.ProductsFailed)
	assert.Equal(t, job.ProgressTotal, job.ProductsImported+job.ProductsFailed)

	var chunkErr *models.JobLog
	for i := range job.Logs {
		if job.Logs[i].Level == "error" {
			chunkErr = &job.Logs[i]
		}
	}
	require.NotNil(t, chunkErr)
	assert.Contains(t, chunkErr.Message, "Chunk upsert failed (rows 2-51)")
	require.Len(t, publisher.completed, 1)
}

func TestRunCancellationAtChunkBoundary(t *testing.T) {
	rows := make(models.RawRows, 0, 100)
	for i := 0; i < 100; i++ {
		rows = append(rows, map[string]string{
			mapper.RowNumberKey: fmt.Sprintf("%d", i+2),
			"sku":               fmt.Sprintf("SKU-%03d", i),
			"nom":               fmt.Sprintf("Product %d", i),
			"prix":              "10.00",
		})
	}
	job := pendingJob(rows, catalogMapping())
	jobs := &fakeJobStore{job: job, cancelAt: 2}
	products := &fakeProductStore{}
	publisher := &fakePublisher{}

	runner := NewRunner(jobs, products, publisher, Config{BatchSize: 50}, testLogger())
	runner.Run(job.ID)

	assert.Equal(t, models.ImportStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.Equal(t, "import cancelled", *job.Error)
	assert.Equal(t, "failed", job.CurrentStep)
	assert.Equal(t, job.ProgressTotal, job.ProductsImported+job.ProductsFailed)
	require.NotNil(t, job.CompletedAt)

	// The first chunk landed before the cancel took effect
	require.Len(t, products.calls, 1)
	assert.Equal(t, 50, job.ProductsImported)
	assert.Equal(t, 50, job.ProductsFailed)
	require.Len(t, publisher.failed, 1)
	assert.Empty(t, publisher.completed)
}

func TestRunPassesMappedFieldsThrough(t *testing.T) {
	rows := models.RawRows{
		{mapper.RowNumberKey: "2", "sku": "A-1", "nom": "Faucet", "prix": "12.99", "marque": "Moen"},
	}
	mapping := models.FieldMapping{
		models.FieldSKU:   "sku",
		models.FieldName:  "nom",
		models.FieldPrice: "prix",
		models.FieldBrand: "marque",
	}
	job := pendingJob(rows, mapping)
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{}

	runner := NewRunner(jobs, products, &fakePublisher{}, Config{}, testLogger())
	runner.Run(job.ID)

	require.Len(t, products.calls, 1)
	assert.ElementsMatch(t, []string{"sku", "name", "price", "brand"}, products.calls[0].mappedFields)

	require.Len(t, products.calls[0].products, 1)
	product := products.calls[0].products[0]
	require.NotNil(t, product.Brand)
	assert.Equal(t, "Moen", *product.Brand)
	assert.Nil(t, product.Category)
	assert.Nil(t, product.ProductURL)
	assert.Nil(t, product.Description)
}

func TestRunErrorCapInSuccessLog(t *testing.T) {
	rows := make(models.RawRows, 0, 15)
	for i := 0; i < 15; i++ {
		rows = append(rows, map[string]string{
			mapper.RowNumberKey: fmt.Sprintf("%d", i+2),
			"sku":               "",
			"nom":               "No SKU",
			"prix":              "1.00",
		})
	}
	job := pendingJob(rows, catalogMapping())
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{}

	runner := NewRunner(jobs, products, &fakePublisher{}, Config{}, testLogger())
	runner.Run(job.ID)

	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 0, job.ProductsImported)
	assert.Equal(t, 15, job.ProductsFailed)
	assert.Empty(t, products.calls)

	var success *models.JobLog
	for i := range job.Logs {
		if job.Logs[i].Level == "success" {
			success = &job.Logs[i]
		}
	}
	require.NotNil(t, success)
	reasons, ok := success.Metadata["errors"].([]interface{})
	require.True(t, ok)
	assert.Len(t, reasons, 10)
}

func TestRunReimportIsIdempotentPerChunk(t *testing.T) {
	// Running two jobs with the same rows upserts rather than duplicates;
	// the runner hands the store the same keys both times
	mapping := catalogMapping()
	first := pendingJob(catalogRows(), mapping)
	second := pendingJob(catalogRows(), mapping)

	products := &fakeProductStore{}
	runner := NewRunner(&fakeJobStore{job: first}, products, &fakePublisher{}, Config{}, testLogger())
	runner.Run(first.ID)

	runner = NewRunner(&fakeJobStore{job: second}, products, &fakePublisher{}, Config{}, testLogger())
	runner.Run(second.ID)

	require.Len(t, products.calls, 2)
	assert.Equal(t, products.calls[0].products[0].SKU, products.calls[1].products[0].SKU)
	assert.Equal(t, 2, second.ProductsImported)
	assert.Equal(t, 1, second.ProductsFailed)
}

func TestPoolRunsEnqueuedJobs(t *testing.T) {
	job := pendingJob(catalogRows(), catalogMapping())
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{}

	runner := NewRunner(jobs, products, &fakePublisher{}, Config{}, testLogger())
	pool := NewPool(runner, 1, 10, testLogger())
	pool.Start()

	require.NoError(t, pool.Enqueue(job.ID))
	pool.Stop()

	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ProductsImported)
}

func TestPoolEnqueueFullQueue(t *testing.T) {
	runner := NewRunner(&fakeJobStore{}, &fakeProductStore{}, &fakePublisher{}, Config{}, testLogger())
	pool := NewPool(runner, 1, 1, testLogger())
	// Not started, so the single slot fills and stays full

	require.NoError(t, pool.Enqueue(uuid.New()))
	err := pool.Enqueue(uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue is full")
}

func TestRunInvalidPriceRow(t *testing.T) {
	rows := models.RawRows{
		{mapper.RowNumberKey: "2", "sku": "A-1", "nom": "Faucet", "prix": "n/a"},
		{mapper.RowNumberKey: "3", "sku": "A-2", "nom": "Sink", "prix": "45.00"},
	}
	job := pendingJob(rows, catalogMapping())
	jobs := &fakeJobStore{job: job}
	products := &fakeProductStore{}

	runner := NewRunner(jobs, products, &fakePublisher{}, Config{ChunkTimeout: time.Second}, testLogger())
	runner.Run(job.ID)

	assert.Equal(t, 1, job.ProductsImported)
	assert.Equal(t, 1, job.ProductsFailed)
	require.Len(t, products.calls, 1)
	require.Len(t, products.calls[0].products, 1)
	assert.Equal(t, "A-2", products.calls[0].products[0].SKU)
}
