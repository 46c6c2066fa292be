package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupImportRouter(h *ImportHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/catalog/import/template", h.GetImportTemplate)
	router.POST("/catalog/import", h.StartImport)
	return router
}

func TestStartImportMappingValidation(t *testing.T) {
	h := NewImportHandler(nil, nil, 10)
	router := setupImportRouter(h)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "missing required field",
			body:     `{"fileId":"7c9e6679-7425-40de-944b-e07fc1f90ae7","columnMapping":{"Code":"sku","Produit":"name"}}`,
			wantCode: "MAPPING_INCOMPLETE",
		},
		{
			name:     "required field only ignored",
			body:     `{"fileId":"7c9e6679-7425-40de-944b-e07fc1f90ae7","columnMapping":{"Code":"sku","Produit":"name","Prix":"ignore"}}`,
			wantCode: "MAPPING_INCOMPLETE",
		},
		{
			name:     "two columns on one field",
			body:     `{"fileId":"7c9e6679-7425-40de-944b-e07fc1f90ae7","columnMapping":{"Code":"sku","Ref":"sku","Produit":"name","Prix":"price"}}`,
			wantCode: "DUPLICATE_MAPPING",
		},
		{
			name:     "missing mapping entirely",
			body:     `{"fileId":"7c9e6679-7425-40de-944b-e07fc1f90ae7"}`,
			wantCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/catalog/import", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
		})
	}
}

func TestGetImportTemplateJSON(t *testing.T) {
	h := NewImportHandler(nil, nil, 10)
	router := setupImportRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/catalog/import/template", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success  bool `json:"success"`
		Template struct {
			Entity  string `json:"entity"`
			Columns []struct {
				Name     string `json:"name"`
				Required bool   `json:"required"`
			} `json:"columns"`
		} `json:"template"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.True(t, body.Success)
	assert.Equal(t, "catalog", body.Template.Entity)
	require.NotEmpty(t, body.Template.Columns)

	required := map[string]bool{}
	for _, col := range body.Template.Columns {
		required[col.Name] = col.Required
	}
	assert.True(t, required["sku"])
	assert.True(t, required["name"])
	assert.True(t, required["price"])
	assert.False(t, required["brand"])
	assert.False(t, required["category"])
}

func TestGetImportTemplateCSV(t *testing.T) {
	h := NewImportHandler(nil, nil, 10)
	router := setupImportRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/catalog/import/template?format=csv", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "catalog_import_template.csv")

	header := strings.TrimSpace(strings.SplitN(w.Body.String(), "\n", 2)[0])
	assert.Equal(t, "sku,name,price,category,brand,url,description", header)
}

func TestGetImportTemplateXLSX(t *testing.T) {
	h := NewImportHandler(nil, nil, 10)
	router := setupImportRouter(h)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/catalog/import/template?format=xlsx", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "catalog_import_template.xlsx")
	assert.NotZero(t, w.Body.Len())
}
