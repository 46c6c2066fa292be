package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"pricing-service/internal/models"
	"pricing-service/internal/repository"
)

type ProductsHandler struct {
	repo            *repository.ProductsRepository
	defaultPageSize int
	maxPageSize     int
	defaultCurrency string
}

func NewProductsHandler(repo *repository.ProductsRepository, defaultPageSize, maxPageSize int, defaultCurrency string) *ProductsHandler {
	return &ProductsHandler{
		repo:            repo,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		defaultCurrency: defaultCurrency,
	}
}

// GetProducts lists products with filters and pagination
// GET /api/v1/products
func (h *ProductsHandler) GetProducts(c *gin.Context) {
	tenant := tenantID(c)

	filters := &models.ProductFilters{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Brand:    c.Query("brand"),
		Page:     1,
		Limit:    h.defaultPageSize,
	}

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			filters.Page = parsed
		}
	}
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			filters.Limit = parsed
			if filters.Limit > h.maxPageSize {
				filters.Limit = h.maxPageSize
			}
		}
	}
	if a := c.Query("isActive"); a != "" {
		if parsed, err := strconv.ParseBool(a); err == nil {
			filters.IsActive = &parsed
		}
	}
	if mp := c.Query("minPrice"); mp != "" {
		if parsed, err := strconv.ParseFloat(mp, 64); err == nil {
			filters.MinPrice = &parsed
		}
	}
	if mp := c.Query("maxPrice"); mp != "" {
		if parsed, err := strconv.ParseFloat(mp, 64); err == nil {
			filters.MaxPrice = &parsed
		}
	}

	products, total, err := h.repo.GetProducts(tenant, filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to list products",
			},
		})
		return
	}

	totalPages := int((total + int64(filters.Limit) - 1) / int64(filters.Limit))
	c.JSON(http.StatusOK, models.ProductListResponse{
		Success: true,
		Data:    products,
		Pagination: &models.PaginationInfo{
			Page:        filters.Page,
			Limit:       filters.Limit,
			Total:       total,
			TotalPages:  totalPages,
			HasNext:     filters.Page < totalPages,
			HasPrevious: filters.Page > 1,
		},
	})
}

// GetProduct returns a single product
// GET /api/v1/products/:id
func (h *ProductsHandler) GetProduct(c *gin.Context) {
	tenant := tenantID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid product ID",
			},
		})
		return
	}

	product, err := h.repo.GetProductByID(tenant, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Product not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to load product",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// CreateProduct creates a product
// POST /api/v1/products
func (h *ProductsHandler) CreateProduct(c *gin.Context) {
	tenant := tenantID(c)

	var req models.CreateProductRequest
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

	currency := h.defaultCurrency
	if req.Currency != nil && *req.Currency != "" {
		currency = *req.Currency
	}

	product := &models.Product{
		SKU:          req.SKU,
		Name:         req.Name,
		Brand:        req.Brand,
		Category:     req.Category,
		Description:  req.Description,
		CurrentPrice: req.Price,
		Currency:     currency,
		ProductURL:   req.ProductURL,
	}

	if err := h.repo.CreateProduct(tenant, product); err != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create product, SKU may already exist",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, models.ProductResponse{Success: true, Data: product})
}

// UpdateProduct applies a partial update to a product
// PUT /api/v1/products/:id
func (h *ProductsHandler) UpdateProduct(c *gin.Context) {
	tenant := tenantID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid product ID",
			},
		})
		return
	}

	var req models.UpdateProductRequest
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

	product, err := h.repo.UpdateProduct(tenant, productID, &req)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Product not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to update product",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// DeleteProduct soft deletes a product
// DELETE /api/v1/products/:id
func (h *ProductsHandler) DeleteProduct(c *gin.Context) {
	tenant := tenantID(c)

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid product ID",
			},
		})
		return
	}

	if err := h.repo.DeleteProduct(tenant, productID); err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Product not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to delete product",
			},
		})
		return
	}

	message := "Product deleted"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// BulkDeleteProducts soft deletes up to 100 products at once
// DELETE /api/v1/products/bulk
func (h *ProductsHandler) BulkDeleteProducts(c *gin.Context) {
	tenant := tenantID(c)

	var req models.BulkDeleteProductsRequest
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

	resp, err := h.repo.BulkDeleteProducts(tenant, req.IDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to delete products",
			},
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
