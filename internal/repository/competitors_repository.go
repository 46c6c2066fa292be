package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pricing-service/internal/models"
)

type CompetitorsRepository struct {
	db *gorm.DB
}

func NewCompetitorsRepository(db *gorm.DB) *CompetitorsRepository {
	return &CompetitorsRepository{db: db}
}

// CreateCompetitor registers a competitor storefront
func (r *CompetitorsRepository) CreateCompetitor(tenantID string, competitor *models.Competitor) error {
	competitor.TenantID = tenantID
	if competitor.ID == uuid.Nil {
		competitor.ID = uuid.New()
	}
	competitor.CreatedAt = time.Now()
	competitor.UpdatedAt = time.Now()
	return r.db.Create(competitor).Error
}

// GetCompetitor loads a competitor scoped to its tenant
func (r *CompetitorsRepository) GetCompetitor(tenantID string, competitorID uuid.UUID) (*models.Competitor, error) {
	var competitor models.Competitor
	if err := r.db.Where("tenant_id = ? AND id = ?", tenantID, competitorID).First(&competitor).Error; err != nil {
		return nil, err
	}
	return &competitor, nil
}

// ListCompetitors returns all competitors for a tenant
func (r *CompetitorsRepository) ListCompetitors(tenantID string) ([]models.Competitor, error) {
	var competitors []models.Competitor
	err := r.db.Where("tenant_id = ?", tenantID).Order("name ASC").Find(&competitors).Error
	return competitors, err
}

// ReplaceCatalog swaps a competitor's scraped catalog wholesale in one
// transaction. Scraper runs always deliver the full catalog, so partial
// merges are never needed.
func (r *CompetitorsRepository) ReplaceCatalog(tenantID string, competitorID uuid.UUID, products []models.CompetitorProduct) error {
	now := time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND competitor_id = ?", tenantID, competitorID).
			Delete(&models.CompetitorProduct{}).Error; err != nil {
			return err
		}
		for i := range products {
			products[i].TenantID = tenantID
			products[i].CompetitorID = competitorID
			if products[i].ID == uuid.Nil {
				products[i].ID = uuid.New()
			}
			if products[i].ScrapedAt.IsZero() {
				products[i].ScrapedAt = now
			}
			products[i].CreatedAt = now
			products[i].UpdatedAt = now
		}
		if len(products) == 0 {
			return nil
		}
		return tx.CreateInBatches(products, 100).Error
	})
}

// GetCatalog returns a competitor's scraped catalog
func (r *CompetitorsRepository) GetCatalog(tenantID string, competitorID uuid.UUID) ([]models.CompetitorProduct, error) {
	var products []models.CompetitorProduct
	err := r.db.Where("tenant_id = ? AND competitor_id = ?", tenantID, competitorID).
		Order("name ASC").Find(&products).Error
	return products, err
}

// ReplaceMatches overwrites all matches for a competitor with the
// results of a fresh matching run
func (r *CompetitorsRepository) ReplaceMatches(tenantID string, competitorID uuid.UUID, matches []models.Match) error {
	now := time.Now()
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ? AND competitor_id = ?", tenantID, competitorID).
			Delete(&models.Match{}).Error; err != nil {
			return err
		}
		for i := range matches {
			matches[i].TenantID = tenantID
			matches[i].CompetitorID = competitorID
			if matches[i].ID == uuid.Nil {
				matches[i].ID = uuid.New()
			}
			matches[i].CreatedAt = now
			matches[i].UpdatedAt = now
		}
		if len(matches) == 0 {
			return nil
		}
		return tx.CreateInBatches(matches, 100).Error
	})
}

// ListMatchesByCompetitor returns all matches for one competitor
func (r *CompetitorsRepository) ListMatchesByCompetitor(tenantID string, competitorID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.Where("tenant_id = ? AND competitor_id = ?", tenantID, competitorID).
		Order("confidence_score DESC").Find(&matches).Error
	return matches, err
}

// ListMatchesByProduct returns all matches for one merchant product
func (r *CompetitorsRepository) ListMatchesByProduct(tenantID string, productID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("confidence_score DESC").Find(&matches).Error
	return matches, err
}

// ListMatches returns all matches for a tenant, for the export report
func (r *CompetitorsRepository) ListMatches(tenantID string) ([]models.Match, error) {
	var matches []models.Match
	err := r.db.Where("tenant_id = ?", tenantID).
		Order("confidence_score DESC").Find(&matches).Error
	return matches, err
}
