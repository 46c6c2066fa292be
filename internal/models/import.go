package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
)

// ImportStatus represents the lifecycle state of an import job
type ImportStatus string

const (
	ImportStatusDraft     ImportStatus = "draft"
	ImportStatusPending   ImportStatus = "pending"
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusFailed    ImportStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed
}

// importTransitions is the single source of truth for allowed status moves.
// Terminal states have no entries and are therefore immutable.
var importTransitions = map[ImportStatus][]ImportStatus{
	ImportStatusDraft:   {ImportStatusPending},
	ImportStatusPending: {ImportStatusRunning},
	ImportStatusRunning: {ImportStatusCompleted, ImportStatusFailed},
}

// ErrInvalidTransition is returned by Transition for a disallowed move
type ErrInvalidTransition struct {
	From ImportStatus
	To   ImportStatus
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid import status transition: %s -> %s", e.From, e.To)
}

// Semantic fields a source column can map to
const (
	FieldSKU         = "sku"
	FieldName        = "name"
	FieldPrice       = "price"
	FieldCategory    = "category"
	FieldBrand       = "brand"
	FieldURL         = "url"
	FieldDescription = "description"
	FieldIgnore      = "ignore"
)

// RequiredImportFields must all be present in a confirmed column mapping
var RequiredImportFields = []string{FieldSKU, FieldName, FieldPrice}

// ColumnDetection is the mapper's verdict for one source column
type ColumnDetection struct {
	ColumnName   string   `json:"columnName"`
	MappedField  string   `json:"mappedField"`
	Confidence   float64  `json:"confidence"`
	SampleValues []string `json:"sampleValues"`
}

// RawRows holds parsed file rows as JSONB until the job reaches a terminal state
type RawRows []map[string]string

func (r RawRows) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RawRows) Scan(value interface{}) error {
	if value == nil {
		*r = make(RawRows, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, r)
}

// FieldMapping maps semantic fields to source column names, stored as JSONB
type FieldMapping map[string]string

// BuildFieldMapping inverts a confirmed column mapping (source column to
// semantic field, as clients send it) into the field-keyed form the
// importer consumes. Columns mapped to "ignore" or left blank are
// dropped. Two columns claiming the same field is an error.
func BuildFieldMapping(columnMapping map[string]string) (FieldMapping, error) {
	mapping := make(FieldMapping, len(columnMapping))
	for column, field := range columnMapping {
		field = strings.TrimSpace(strings.ToLower(field))
		if field == "" || field == FieldIgnore {
			continue
		}
		if prev, ok := mapping[field]; ok {
			first, second := prev, column
			if first > second {
				first, second = second, first
			}
			return nil, fmt.Errorf("columns %q and %q both map to %s", first, second, field)
		}
		mapping[field] = column
	}
	return mapping, nil
}

func (m FieldMapping) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *FieldMapping) Scan(value interface{}) error {
	if value == nil {
		*m = make(FieldMapping)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, m)
}

// JobLog is one append-only structured log entry on an import job
type JobLog struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Metadata  JSON      `json:"metadata,omitempty"`
}

// JobLogs stores the log list as JSONB
type JobLogs []JobLog

func (l JobLogs) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *JobLogs) Scan(value interface{}) error {
	if value == nil {
		*l = make(JobLogs, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, l)
}

// ImportJob represents a catalog import from upload through completion
type ImportJob struct {
	ID               uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID         string       `json:"tenantId" gorm:"not null;index:idx_import_jobs_tenant_id;index:idx_import_jobs_tenant_status"`
	Filename         string       `json:"filename" gorm:"not null"`
	FileSize         int64        `json:"fileSize" gorm:"not null;default:0"`
	Format           ImportFormat `json:"format" gorm:"not null"`
	Status           ImportStatus `json:"status" gorm:"not null;default:'draft';index:idx_import_jobs_tenant_status"`
	CurrentStep      string       `json:"currentStep"`
	ProgressCurrent  int          `json:"progressCurrent" gorm:"not null;default:0"`
	ProgressTotal    int          `json:"progressTotal" gorm:"not null;default:0"`
	ProductsImported int          `json:"productsImported" gorm:"not null;default:0"`
	ProductsFailed   int          `json:"productsFailed" gorm:"not null;default:0"`
	ColumnMapping    FieldMapping `json:"columnMapping" gorm:"type:jsonb"`
	RawRows          RawRows      `json:"-" gorm:"type:jsonb"`
	RowCount         int          `json:"rowCount" gorm:"not null;default:0"`
	Logs             JobLogs      `json:"logs" gorm:"type:jsonb"`
	Error            *string      `json:"error,omitempty"`
	CancelRequested  bool         `json:"cancelRequested" gorm:"not null;default:false"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
	StartedAt        *time.Time   `json:"startedAt,omitempty"`
	CompletedAt      *time.Time   `json:"completedAt,omitempty"`
}

// Transition moves the job to the target status if the move is allowed.
// All status changes must go through here.
func (j *ImportJob) Transition(to ImportStatus) error {
	for _, allowed := range importTransitions[j.Status] {
		if allowed == to {
			j.Status = to
			now := time.Now().UTC()
			if to == ImportStatusRunning {
				j.StartedAt = &now
			}
			if to.IsTerminal() {
				j.CompletedAt = &now
			}
			return nil
		}
	}
	return &ErrInvalidTransition{From: j.Status, To: to}
}

// AppendLog adds a structured entry to the job's log list
func (j *ImportJob) AppendLog(level, message string, metadata JSON) {
	j.Logs = append(j.Logs, JobLog{
		Level:     level,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	})
}

// PreviewResponse is returned by the catalog preview endpoint
type PreviewResponse struct {
	FileID      uuid.UUID           `json:"fileId"`
	Filename    string              `json:"filename"`
	RowCount    int                 `json:"rowCount"`
	Columns     []ColumnDetection   `json:"columns"`
	PreviewRows []map[string]string `json:"previewRows"`
}

// StartImportRequest confirms a previewed file with its column mapping.
// ColumnMapping keys are source column names, values the semantic field
// each column feeds (or "ignore").
type StartImportRequest struct {
	FileID        uuid.UUID         `json:"fileId" binding:"required"`
	ColumnMapping map[string]string `json:"columnMapping" binding:"required"`
}

// StartImportResponse acknowledges the enqueued job
type StartImportResponse struct {
	JobID  uuid.UUID    `json:"jobId"`
	Status ImportStatus `json:"status"`
}

// JobStatusResponse is the progress-poll projection of an import job
type JobStatusResponse struct {
	JobID            uuid.UUID    `json:"jobId"`
	Status           ImportStatus `json:"status"`
	CurrentStep      string       `json:"currentStep"`
	ProgressCurrent  int          `json:"progressCurrent"`
	ProgressTotal    int          `json:"progressTotal"`
	ProductsImported int          `json:"productsImported"`
	ProductsFailed   int          `json:"productsFailed"`
	Logs             JobLogs      `json:"logs"`
	Error            *string      `json:"error,omitempty"`
}

// StatusResponse builds the poll projection for a job
func (j *ImportJob) StatusResponse() JobStatusResponse {
	logs := j.Logs
	if logs == nil {
		logs = JobLogs{}
	}
	return JobStatusResponse{
		JobID:            j.ID,
		Status:           j.Status,
		CurrentStep:      j.CurrentStep,
		ProgressCurrent:  j.ProgressCurrent,
		ProgressTotal:    j.ProgressTotal,
		ProductsImported: j.ProductsImported,
		ProductsFailed:   j.ProductsFailed,
		Logs:             logs,
		Error:            j.Error,
	}
}

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"`
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// CatalogImportColumns returns the column definitions for catalog import
func CatalogImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "sku", Description: "Unique product SKU", Required: true, Type: "string", Example: "ATL-2033-BLK"},
		{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Atlantic Single Handle Faucet"},
		{Name: "price", Description: "Product price", Required: true, Type: "number", Example: "129.99"},
		{Name: "category", Description: "Category name", Required: false, Type: "string", Example: "Faucets"},
		{Name: "brand", Description: "Brand name", Required: false, Type: "string", Example: "Atlantic"},
		{Name: "url", Description: "Product page URL", Required: false, Type: "string", Example: "https://example.com/p/ATL-2033-BLK"},
		{Name: "description", Description: "Product description", Required: false, Type: "string", Example: ""},
	}
}

// CatalogImportTemplate returns the template definition for catalog import
func CatalogImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "catalog",
		Version: "1.0",
		Columns: CatalogImportColumns(),
	}
}

// TableName returns the table name for the ImportJob model
func (ImportJob) TableName() string {
	return "pricing_import_jobs"
}
