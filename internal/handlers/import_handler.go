package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"pricing-service/internal/importer"
	"pricing-service/internal/mapper"
	"pricing-service/internal/models"
	"pricing-service/internal/repository"
)

const previewRowLimit = 10

type ImportHandler struct {
	imports        *repository.ImportsRepository
	pool           *importer.Pool
	maxUploadBytes int64
}

func NewImportHandler(imports *repository.ImportsRepository, pool *importer.Pool, maxUploadSizeMB int64) *ImportHandler {
	return &ImportHandler{
		imports:        imports,
		pool:           pool,
		maxUploadBytes: maxUploadSizeMB * 1024 * 1024,
	}
}

// tenantID pulls the tenant set by the tenant middleware
func tenantID(c *gin.Context) string {
	v, _ := c.Get("tenant_id")
	s, _ := v.(string)
	return s
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/catalog/import/template
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.CatalogImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template (headers only)
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Catalog"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col.Name)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 20)
	}

	// Instructions sheet documenting each column
	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Catalog Import Instructions")
	f.SetCellValue("Instructions", "A3", "Upload this file, review the detected column mapping, then confirm the import.")
	f.SetCellValue("Instructions", "A4", "Column headers are detected automatically; you can also map them manually at preview.")

	f.SetCellValue("Instructions", "A6", "Column")
	f.SetCellValue("Instructions", "B6", "Description")
	f.SetCellValue("Instructions", "C6", "Required")
	f.SetCellValue("Instructions", "D6", "Type")
	f.SetCellValue("Instructions", "E6", "Example")

	for i, col := range template.Columns {
		row := i + 7
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 60)
	f.SetColWidth("Instructions", "C", "C", 15)
	f.SetColWidth("Instructions", "D", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 40)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.xlsx")

	f.Write(c.Writer)
}

// PreviewCatalog parses an uploaded catalog file, detects its column
// mapping and stores the rows under a draft job
// POST /api/v1/catalog/preview
func (h *ImportHandler) PreviewCatalog(c *gin.Context) {
	tenant := tenantID(c)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload a CSV or Excel file",
			},
		})
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_TOO_LARGE",
				Message: fmt.Sprintf("File exceeds the %dMB limit", h.maxUploadBytes/(1024*1024)),
			},
		})
		return
	}

	filename := header.Filename
	var format models.ImportFormat
	if strings.HasSuffix(strings.ToLower(filename), ".csv") {
		format = models.ImportFormatCSV
	} else if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		format = models.ImportFormatXLSX
	} else {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_FORMAT",
				Message: "Only CSV and XLSX files are supported",
			},
		})
		return
	}

	var parsed *mapper.ParsedFile
	var parseErr error
	if format == models.ImportFormatCSV {
		parsed, parseErr = mapper.ParseCSV(file)
	} else {
		parsed, parseErr = mapper.ParseXLSX(file)
	}
	if parseErr != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "PARSE_ERROR",
				Message: parseErr.Error(),
			},
		})
		return
	}

	if len(parsed.Rows) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "EMPTY_FILE",
				Message: "The file contains no data rows",
			},
		})
		return
	}

	detections := mapper.DetectAll(parsed)

	job := &models.ImportJob{
		Filename: filename,
		FileSize: header.Size,
		Format:   format,
		RawRows:  parsed.Rows,
	}
	if err := h.imports.CreateDraft(tenant, job); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to store the uploaded file",
			},
		})
		return
	}

	previewRows := make([]map[string]string, 0, previewRowLimit)
	for i, row := range parsed.Rows {
		if i == previewRowLimit {
			break
		}
		clean := make(map[string]string, len(row))
		for k, v := range row {
			if k == mapper.RowNumberKey {
				continue
			}
			clean[k] = v
		}
		previewRows = append(previewRows, clean)
	}

	c.JSON(http.StatusOK, models.PreviewResponse{
		FileID:      job.ID,
		Filename:    filename,
		RowCount:    len(parsed.Rows),
		Columns:     detections,
		PreviewRows: previewRows,
	})
}

// StartImport confirms a previewed file's mapping and enqueues the job
// POST /api/v1/catalog/import
func (h *ImportHandler) StartImport(c *gin.Context) {
	tenant := tenantID(c)

	var req models.StartImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	mapping, err := models.BuildFieldMapping(req.ColumnMapping)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DUPLICATE_MAPPING",
				Message: err.Error(),
			},
		})
		return
	}

	for _, field := range models.RequiredImportFields {
		if strings.TrimSpace(mapping[field]) == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "MAPPING_INCOMPLETE",
					Message: fmt.Sprintf("Column mapping must include a column for %s", field),
					Field:   field,
				},
			})
			return
		}
	}

	job, err := h.imports.Confirm(tenant, req.FileID, mapping)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Upload not found",
				},
			})
			return
		}
		if _, ok := err.(*models.ErrInvalidTransition); ok {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "INVALID_STATE",
					Message: "This upload has already been imported",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to confirm the import",
			},
		})
		return
	}

	if err := h.pool.Enqueue(job.ID); err != nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "QUEUE_FULL",
				Message: "Import queue is full, try again later",
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, models.StartImportResponse{
		JobID:  job.ID,
		Status: job.Status,
	})
}

// GetImportJob returns the progress projection of one import job
// GET /api/v1/catalog/import/:jobId
func (h *ImportHandler) GetImportJob(c *gin.Context) {
	tenant := tenantID(c)

	jobID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid job ID",
			},
		})
		return
	}

	job, err := h.imports.GetJob(tenant, jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Import job not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to load import job",
			},
		})
		return
	}

	c.JSON(http.StatusOK, job.StatusResponse())
}

// ListImportJobs returns the tenant's recent import jobs
// GET /api/v1/catalog/imports
func (h *ImportHandler) ListImportJobs(c *gin.Context) {
	tenant := tenantID(c)

	limit := 20
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	jobs, err := h.imports.ListJobs(tenant, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to list import jobs",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    jobs,
	})
}
