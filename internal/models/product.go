package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// JSONArray type for PostgreSQL JSONB (array)
type JSONArray []interface{}

func (j JSONArray) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONArray, 0)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Product represents a merchant catalog product.
// (tenant_id, sku) is the upsert identity used by catalog imports.
type Product struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     string          `json:"tenantId" gorm:"not null;index:idx_pricing_products_tenant_id;index:idx_pricing_products_tenant_sku,unique;index:idx_pricing_products_tenant_active"`
	SKU          string          `json:"sku" gorm:"not null;index:idx_pricing_products_tenant_sku,unique"`
	Name         string          `json:"name" gorm:"not null"`
	NameCleaned  string          `json:"nameCleaned" gorm:"index"`
	Brand        *string         `json:"brand,omitempty" gorm:"index"`
	Category     *string         `json:"category,omitempty" gorm:"index"`
	Description  *string         `json:"description,omitempty"`
	CurrentPrice float64         `json:"currentPrice" gorm:"type:decimal(12,2);not null"`
	Currency     string          `json:"currency" gorm:"not null;default:'CAD'"`
	ProductURL   *string         `json:"productUrl,omitempty" gorm:"column:product_url"`
	IsActive     *bool           `json:"isActive" gorm:"column:is_active;default:true;index:idx_pricing_products_tenant_active"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	DeletedAt    *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
	Metadata     *JSON           `json:"metadata,omitempty" gorm:"type:jsonb"`
}

// CleanName normalizes a product name for matching
func CleanName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CreateProductRequest represents a request to create a new product
type CreateProductRequest struct {
	SKU         string  `json:"sku" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Brand       *string `json:"brand,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       float64 `json:"price" binding:"required"`
	Currency    *string `json:"currency,omitempty"`
	ProductURL  *string `json:"productUrl,omitempty"`
}

// UpdateProductRequest represents a request to update a product
type UpdateProductRequest struct {
	SKU         *string  `json:"sku,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	ProductURL  *string  `json:"productUrl,omitempty"`
	IsActive    *bool    `json:"isActive,omitempty"`
}

// ProductFilters represents list filters for products
type ProductFilters struct {
	Search   string
	Category string
	Brand    string
	IsActive *bool
	MinPrice *float64
	MaxPrice *float64
	Page     int
	Limit    int
}

// BulkDeleteProductsRequest represents bulk delete request for products
type BulkDeleteProductsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=100"`
}

// BulkDeleteProductsResponse represents bulk delete response for products
type BulkDeleteProductsResponse struct {
	Success      bool     `json:"success"`
	TotalCount   int      `json:"totalCount"`
	DeletedCount int      `json:"deletedCount"`
	FailedIDs    []string `json:"failedIds,omitempty"`
}

// Response types
type PaginationInfo struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
	Message *string  `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     Error  `json:"error"`
	Timestamp string `json:"timestamp,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details *JSON  `json:"details,omitempty"`
}

type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message *string     `json:"message,omitempty"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "pricing_products"
}
