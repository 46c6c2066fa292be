package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"pricing-service/internal/models"
)

// Cache TTL constants
const (
	ProductCacheTTL     = 5 * time.Minute
	ProductListCacheTTL = 2 * time.Minute
)

type ProductsRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewProductsRepository(db *gorm.DB, redisClient *redis.Client) *ProductsRepository {
	return &ProductsRepository{db: db, redis: redisClient}
}

// generateListCacheKey creates a deterministic cache key for list queries
func generateListCacheKey(tenantID string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("pricing:products:list:%s:%s", tenantID, hex.EncodeToString(hash[:]))
}

// invalidateProductCaches drops all cached reads for a tenant's products
func (r *ProductsRepository) invalidateProductCaches(ctx context.Context, tenantID string) {
	if r.redis == nil {
		return
	}
	patterns := []string{
		fmt.Sprintf("pricing:products:list:%s:*", tenantID),
		fmt.Sprintf("pricing:products:item:%s:*", tenantID),
	}
	for _, pattern := range patterns {
		iter := r.redis.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			r.redis.Del(ctx, iter.Val())
		}
	}
}

// CreateProduct creates a new product
func (r *ProductsRepository) CreateProduct(tenantID string, product *models.Product) error {
	product.TenantID = tenantID
	product.NameCleaned = models.CleanName(product.Name)
	product.CreatedAt = time.Now()
	product.UpdatedAt = time.Now()

	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	err := r.db.Create(product).Error
	if err == nil {
		r.invalidateProductCaches(context.Background(), tenantID)
	}
	return err
}

// GetProductByID retrieves a product by ID with caching
func (r *ProductsRepository) GetProductByID(tenantID string, productID uuid.UUID) (*models.Product, error) {
	ctx := context.Background()
	cacheKey := fmt.Sprintf("pricing:products:item:%s:%s", tenantID, productID.String())

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var product models.Product
			if err := json.Unmarshal([]byte(val), &product); err == nil {
				return &product, nil
			}
		}
	}

	var product models.Product
	if err := r.db.Where("tenant_id = ? AND id = ?", tenantID, productID).First(&product).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(product); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductCacheTTL)
		}
	}

	return &product, nil
}

// UpdateProduct applies a partial update and invalidates caches
func (r *ProductsRepository) UpdateProduct(tenantID string, productID uuid.UUID, req *models.UpdateProductRequest) (*models.Product, error) {
	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.SKU != nil {
		updates["sku"] = *req.SKU
	}
	if req.Name != nil {
		updates["name"] = *req.Name
		updates["name_cleaned"] = models.CleanName(*req.Name)
	}
	if req.Brand != nil {
		updates["brand"] = *req.Brand
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		updates["current_price"] = *req.Price
	}
	if req.Currency != nil {
		updates["currency"] = *req.Currency
	}
	if req.ProductURL != nil {
		updates["product_url"] = *req.ProductURL
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	result := r.db.Model(&models.Product{}).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	r.invalidateProductCaches(context.Background(), tenantID)

	var product models.Product
	if err := r.db.Where("tenant_id = ? AND id = ?", tenantID, productID).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct soft deletes a product
func (r *ProductsRepository) DeleteProduct(tenantID string, productID uuid.UUID) error {
	result := r.db.Where("tenant_id = ? AND id = ?", tenantID, productID).
		Delete(&models.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	r.invalidateProductCaches(context.Background(), tenantID)
	return nil
}

// BulkDeleteProducts soft deletes multiple products, reporting IDs that
// did not belong to the tenant
func (r *ProductsRepository) BulkDeleteProducts(tenantID string, ids []uuid.UUID) (*models.BulkDeleteProductsResponse, error) {
	resp := &models.BulkDeleteProductsResponse{TotalCount: len(ids)}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range ids {
			result := tx.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&models.Product{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				resp.FailedIDs = append(resp.FailedIDs, id.String())
				continue
			}
			resp.DeletedCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp.Success = resp.DeletedCount > 0
	r.invalidateProductCaches(context.Background(), tenantID)
	return resp, nil
}

// GetProducts retrieves products with filters and pagination, caching
// the page in Redis
func (r *ProductsRepository) GetProducts(tenantID string, filters *models.ProductFilters) ([]models.Product, int64, error) {
	ctx := context.Background()
	cacheKey := generateListCacheKey(tenantID, filters)

	type cachedPage struct {
		Products []models.Product `json:"products"`
		Total    int64            `json:"total"`
	}

	if r.redis != nil {
		if val, err := r.redis.Get(ctx, cacheKey).Result(); err == nil {
			var page cachedPage
			if err := json.Unmarshal([]byte(val), &page); err == nil {
				return page.Products, page.Total, nil
			}
		}
	}

	var products []models.Product
	var total int64

	query := r.applyProductFilters(r.db.Model(&models.Product{}).Where("tenant_id = ?", tenantID), filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filters.Page - 1) * filters.Limit
	if err := query.Order("created_at DESC").Offset(offset).Limit(filters.Limit).Find(&products).Error; err != nil {
		return nil, 0, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(cachedPage{Products: products, Total: total}); err == nil {
			r.redis.Set(ctx, cacheKey, data, ProductListCacheTTL)
		}
	}

	return products, total, nil
}

func (r *ProductsRepository) applyProductFilters(query *gorm.DB, filters *models.ProductFilters) *gorm.DB {
	if filters.Search != "" {
		like := "%" + models.CleanName(filters.Search) + "%"
		query = query.Where("name_cleaned LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if filters.Category != "" {
		query = query.Where("category = ?", filters.Category)
	}
	if filters.Brand != "" {
		query = query.Where("brand = ?", filters.Brand)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.MinPrice != nil {
		query = query.Where("current_price >= ?", *filters.MinPrice)
	}
	if filters.MaxPrice != nil {
		query = query.Where("current_price <= ?", *filters.MaxPrice)
	}
	return query
}

// GetActiveProducts returns all active products for a tenant, used by
// matching runs
func (r *ProductsRepository) GetActiveProducts(tenantID string) ([]models.Product, error) {
	var products []models.Product
	err := r.db.Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("sku ASC").Find(&products).Error
	return products, err
}

// BulkUpsert creates or updates one chunk of products in a single
// transaction. Products are matched on (tenant_id, sku); existing rows
// are restored if soft-deleted. Only the columns named in mappedFields
// are written on update, so unmapped columns keep their values across
// re-imports. Any row error rolls back the whole chunk.
func (r *ProductsRepository) BulkUpsert(ctx context.Context, tenantID string, products []*models.Product, mappedFields []string) error {
	fields := make(map[string]bool, len(mappedFields))
	for _, f := range mappedFields {
		fields[f] = true
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, product := range products {
			product.TenantID = tenantID
			product.NameCleaned = models.CleanName(product.Name)
			product.UpdatedAt = time.Now()

			var existing models.Product
			err := tx.Unscoped().Where("tenant_id = ? AND sku = ?", tenantID, product.SKU).First(&existing).Error

			if err == nil {
				updates := upsertUpdates(product, fields)

				if err := tx.Unscoped().Model(&models.Product{}).
					Where("id = ? AND tenant_id = ?", existing.ID, tenantID).
					Updates(updates).Error; err != nil {
					return fmt.Errorf("upsert sku %s: %w", product.SKU, err)
				}
				product.ID = existing.ID
				product.CreatedAt = existing.CreatedAt
			} else if err == gorm.ErrRecordNotFound {
				product.CreatedAt = time.Now()
				if product.ID == uuid.Nil {
					product.ID = uuid.New()
				}
				if err := tx.Create(product).Error; err != nil {
					return fmt.Errorf("create sku %s: %w", product.SKU, err)
				}
			} else {
				return fmt.Errorf("lookup sku %s: %w", product.SKU, err)
			}
		}
		return nil
	})
}

// upsertUpdates builds the column update map for an existing product.
// Identity columns always refresh and a soft-deleted row is restored;
// optional columns are written only when the import mapped them, so an
// unmapped column keeps its stored value.
func upsertUpdates(product *models.Product, mapped map[string]bool) map[string]interface{} {
	updates := map[string]interface{}{
		"name":          product.Name,
		"name_cleaned":  product.NameCleaned,
		"current_price": product.CurrentPrice,
		"updated_at":    product.UpdatedAt,
		"deleted_at":    nil,
	}
	if mapped[models.FieldBrand] {
		updates["brand"] = product.Brand
	}
	if mapped[models.FieldCategory] {
		updates["category"] = product.Category
	}
	if mapped[models.FieldURL] {
		updates["product_url"] = product.ProductURL
	}
	if mapped[models.FieldDescription] {
		updates["description"] = product.Description
	}
	return updates
}

// InvalidateCaches drops cached product reads for a tenant. Called by
// the importer once a job finishes.
func (r *ProductsRepository) InvalidateCaches(tenantID string) {
	r.invalidateProductCaches(context.Background(), tenantID)
}
