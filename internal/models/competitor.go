package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchType classifies how a product/competitor pairing was established
type MatchType string

const (
	MatchTypeSKU    MatchType = "SKU"
	MatchTypeHigh   MatchType = "HIGH_CONFIDENCE"
	MatchTypeMedium MatchType = "MEDIUM_CONFIDENCE"
	MatchTypeLow    MatchType = "LOW_CONFIDENCE"
)

// Competitor represents a tracked competitor storefront
type Competitor struct {
	ID            uuid.UUID       `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID      string          `json:"tenantId" gorm:"not null;index:idx_competitors_tenant_id;index:idx_competitors_tenant_name,unique"`
	Name          string          `json:"name" gorm:"not null;index:idx_competitors_tenant_name,unique"`
	WebsiteURL    *string         `json:"websiteUrl,omitempty" gorm:"column:website_url"`
	ScraperConfig *JSON           `json:"scraperConfig,omitempty" gorm:"type:jsonb"`
	IsActive      *bool           `json:"isActive" gorm:"column:is_active;default:true"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	DeletedAt     *gorm.DeletedAt `json:"deletedAt,omitempty" gorm:"index"`
}

// CompetitorProduct is one scraped catalog entry for a competitor
type CompetitorProduct struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID     string    `json:"tenantId" gorm:"not null;index:idx_competitor_products_tenant"`
	CompetitorID uuid.UUID `json:"competitorId" gorm:"type:uuid;not null;index:idx_competitor_products_competitor"`
	SKU          *string   `json:"sku,omitempty" gorm:"index"`
	Name         string    `json:"name" gorm:"not null"`
	Description  *string   `json:"description,omitempty"`
	Brand        *string   `json:"brand,omitempty"`
	Price        *float64  `json:"price,omitempty" gorm:"type:decimal(12,2)"`
	Currency     string    `json:"currency" gorm:"not null;default:'CAD'"`
	ProductURL   *string   `json:"productUrl,omitempty" gorm:"column:product_url"`
	ScrapedAt    time.Time `json:"scrapedAt"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Match links a merchant product to a competitor product with a confidence score
type Match struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID              string     `json:"tenantId" gorm:"not null;index:idx_matches_tenant"`
	ProductID             uuid.UUID  `json:"productId" gorm:"type:uuid;not null;index:idx_matches_product"`
	CompetitorID          uuid.UUID  `json:"competitorId" gorm:"type:uuid;not null;index:idx_matches_competitor"`
	CompetitorProductID   *uuid.UUID `json:"competitorProductId,omitempty" gorm:"type:uuid"`
	CompetitorProductName string     `json:"competitorProductName"`
	CompetitorProductURL  *string    `json:"competitorProductUrl,omitempty" gorm:"column:competitor_product_url"`
	CompetitorSKU         *string    `json:"competitorSku,omitempty" gorm:"column:competitor_sku"`
	CompetitorPrice       *float64   `json:"competitorPrice,omitempty" gorm:"type:decimal(12,2)"`
	MatchType             MatchType  `json:"matchType" gorm:"not null"`
	ConfidenceScore       float64    `json:"confidenceScore" gorm:"type:decimal(5,4);not null"`
	Reason                string     `json:"reason"`
	LastScrapedAt         *time.Time `json:"lastScrapedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// CreateCompetitorRequest represents a request to register a competitor
type CreateCompetitorRequest struct {
	Name          string  `json:"name" binding:"required"`
	WebsiteURL    *string `json:"websiteUrl,omitempty"`
	ScraperConfig *JSON   `json:"scraperConfig,omitempty"`
}

// CompetitorProductInput is one catalog entry in a catalog replace request
type CompetitorProductInput struct {
	SKU         *string  `json:"sku,omitempty"`
	Name        string   `json:"name" binding:"required"`
	Description *string  `json:"description,omitempty"`
	Brand       *string  `json:"brand,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    *string  `json:"currency,omitempty"`
	ProductURL  *string  `json:"productUrl,omitempty"`
}

// ReplaceCatalogRequest replaces a competitor's scraped catalog wholesale
type ReplaceCatalogRequest struct {
	Products []CompetitorProductInput `json:"products" binding:"required"`
}

// RunMatchesResponse summarizes one matching run over a competitor catalog
type RunMatchesResponse struct {
	Success        bool    `json:"success"`
	CompetitorID   string  `json:"competitorId"`
	ProductsTotal  int     `json:"productsTotal"`
	MatchesFound   int     `json:"matchesFound"`
	SKUMatches     int     `json:"skuMatches"`
	HighConfidence int     `json:"highConfidence"`
	AverageScore   float64 `json:"averageScore"`
}

// ExportMatchesRequest selects matches for the XLSX comparison report
type ExportMatchesRequest struct {
	CompetitorID *uuid.UUID `json:"competitorId,omitempty"`
}

type CompetitorResponse struct {
	Success bool        `json:"success"`
	Data    *Competitor `json:"data"`
	Message *string     `json:"message,omitempty"`
}

type CompetitorListResponse struct {
	Success bool         `json:"success"`
	Data    []Competitor `json:"data"`
}

type MatchListResponse struct {
	Success bool    `json:"success"`
	Data    []Match `json:"data"`
}

// TableName returns the table name for the Competitor model
func (Competitor) TableName() string {
	return "pricing_competitors"
}

// TableName returns the table name for the CompetitorProduct model
func (CompetitorProduct) TableName() string {
	return "pricing_competitor_products"
}

// TableName returns the table name for the Match model
func (Match) TableName() string {
	return "pricing_matches"
}
