package handlers

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"pricing-service/internal/events"
	"pricing-service/internal/matching"
	"pricing-service/internal/models"
	"pricing-service/internal/repository"
)

const matchWorkers = 4

type MatchesHandler struct {
	competitors *repository.CompetitorsRepository
	products    *repository.ProductsRepository
	engine      *matching.Engine
	publisher   *events.Publisher
	log         *logrus.Entry
}

func NewMatchesHandler(
	competitors *repository.CompetitorsRepository,
	products *repository.ProductsRepository,
	engine *matching.Engine,
	publisher *events.Publisher,
	logger *logrus.Logger,
) *MatchesHandler {
	return &MatchesHandler{
		competitors: competitors,
		products:    products,
		engine:      engine,
		publisher:   publisher,
		log:         logger.WithField("component", "matches"),
	}
}

// CreateCompetitor registers a competitor
// POST /api/v1/competitors
func (h *MatchesHandler) CreateCompetitor(c *gin.Context) {
	tenant := tenantID(c)

	var req models.CreateCompetitorRequest
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

	competitor := &models.Competitor{
		Name:          req.Name,
		WebsiteURL:    req.WebsiteURL,
		ScraperConfig: req.ScraperConfig,
	}
	if err := h.competitors.CreateCompetitor(tenant, competitor); err != nil {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "CREATE_FAILED",
				Message: "Failed to create competitor, name may already exist",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, models.CompetitorResponse{Success: true, Data: competitor})
}

// ListCompetitors lists the tenant's competitors
// GET /api/v1/competitors
func (h *MatchesHandler) ListCompetitors(c *gin.Context) {
	tenant := tenantID(c)

	competitors, err := h.competitors.ListCompetitors(tenant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to list competitors",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.CompetitorListResponse{Success: true, Data: competitors})
}

// ReplaceCatalog replaces a competitor's scraped catalog
// PUT /api/v1/competitors/:id/catalog
func (h *MatchesHandler) ReplaceCatalog(c *gin.Context) {
	tenant := tenantID(c)

	competitorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid competitor ID",
			},
		})
		return
	}

	if _, err := h.competitors.GetCompetitor(tenant, competitorID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "NOT_FOUND",
				Message: "Competitor not found",
			},
		})
		return
	}

	var req models.ReplaceCatalogRequest
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

	catalog := make([]models.CompetitorProduct, 0, len(req.Products))
	for _, input := range req.Products {
		currency := "CAD"
		if input.Currency != nil && *input.Currency != "" {
			currency = *input.Currency
		}
		catalog = append(catalog, models.CompetitorProduct{
			SKU:         input.SKU,
			Name:        input.Name,
			Description: input.Description,
			Brand:       input.Brand,
			Price:       input.Price,
			Currency:    currency,
			ProductURL:  input.ProductURL,
		})
	}

	if err := h.competitors.ReplaceCatalog(tenant, competitorID, catalog); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to replace competitor catalog",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    gin.H{"competitorId": competitorID, "products": len(catalog)},
	})
}

// GetCatalog returns a competitor's scraped catalog
// GET /api/v1/competitors/:id/catalog
func (h *MatchesHandler) GetCatalog(c *gin.Context) {
	tenant := tenantID(c)

	competitorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid competitor ID",
			},
		})
		return
	}

	catalog, err := h.competitors.GetCatalog(tenant, competitorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to load competitor catalog",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: catalog})
}

// RunMatches runs the matching engine over all active products and the
// competitor's catalog, overwriting prior matches for the pair
// POST /api/v1/competitors/:id/matches
func (h *MatchesHandler) RunMatches(c *gin.Context) {
	tenant := tenantID(c)

	competitorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid competitor ID",
			},
		})
		return
	}

	resp, err := h.runForCompetitor(tenant, competitorID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Success: false,
				Error: models.Error{
					Code:    "NOT_FOUND",
					Message: "Competitor not found",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "MATCH_RUN_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RunScrapedCatalogMatches is the pub/sub entry point for matching runs
// triggered by a finished scrape
func (h *MatchesHandler) RunScrapedCatalogMatches(tenant string, competitorID uuid.UUID) error {
	_, err := h.runForCompetitor(tenant, competitorID)
	return err
}

// runForCompetitor scores products in parallel; result collection is
// serialized through a channel so the match list stays consistent
func (h *MatchesHandler) runForCompetitor(tenant string, competitorID uuid.UUID) (*models.RunMatchesResponse, error) {
	if _, err := h.competitors.GetCompetitor(tenant, competitorID); err != nil {
		return nil, err
	}

	products, err := h.products.GetActiveProducts(tenant)
	if err != nil {
		return nil, err
	}
	candidates, err := h.competitors.GetCatalog(tenant, competitorID)
	if err != nil {
		return nil, err
	}

	h.log.WithFields(logrus.Fields{
		"tenant_id":     tenant,
		"competitor_id": competitorID,
		"products":      len(products),
		"candidates":    len(candidates),
	}).Info("Starting matching run")

	type scored struct {
		product *models.Product
		result  *matching.Result
	}

	jobs := make(chan *models.Product)
	results := make(chan scored)

	var wg sync.WaitGroup
	for w := 0; w < matchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for product := range jobs {
				if result, ok := h.engine.FindBestMatch(product, candidates); ok {
					results <- scored{product: product, result: result}
				}
			}
		}()
	}

	go func() {
		for i := range products {
			jobs <- &products[i]
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var matches []models.Match
	var scoreSum float64
	skuMatches := 0
	highConfidence := 0

	for s := range results {
		candidate := s.result.Candidate
		match := models.Match{
			ProductID:             s.product.ID,
			CompetitorProductID:   &candidate.ID,
			CompetitorProductName: candidate.Name,
			CompetitorProductURL:  candidate.ProductURL,
			CompetitorSKU:         candidate.SKU,
			CompetitorPrice:       candidate.Price,
			MatchType:             s.result.MatchType,
			ConfidenceScore:       s.result.Score,
			Reason:                s.result.Reason,
			LastScrapedAt:         &candidate.ScrapedAt,
		}
		matches = append(matches, match)
		scoreSum += s.result.Score
		switch s.result.MatchType {
		case models.MatchTypeSKU:
			skuMatches++
		case models.MatchTypeHigh:
			highConfidence++
		}
	}

	if err := h.competitors.ReplaceMatches(tenant, competitorID, matches); err != nil {
		return nil, err
	}

	avg := 0.0
	if len(matches) > 0 {
		avg = scoreSum / float64(len(matches))
	}

	if h.publisher != nil {
		h.publisher.MatchesCompleted(tenant, competitorID.String(), len(matches), avg)
	}

	h.log.WithFields(logrus.Fields{
		"tenant_id":     tenant,
		"competitor_id": competitorID,
		"matches":       len(matches),
		"sku_matches":   skuMatches,
	}).Info("Matching run completed")

	return &models.RunMatchesResponse{
		Success:        true,
		CompetitorID:   competitorID.String(),
		ProductsTotal:  len(products),
		MatchesFound:   len(matches),
		SKUMatches:     skuMatches,
		HighConfidence: highConfidence,
		AverageScore:   avg,
	}, nil
}

// GetProductMatches lists matches for one merchant product
// GET /api/v1/products/:id/matches
func (h *MatchesHandler) GetProductMatches(c *gin.Context) {
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

	matches, err := h.competitors.ListMatchesByProduct(tenant, productID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to list matches",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.MatchListResponse{Success: true, Data: matches})
}

// GetCompetitorMatches lists matches for one competitor
// GET /api/v1/competitors/:id/matches
func (h *MatchesHandler) GetCompetitorMatches(c *gin.Context) {
	tenant := tenantID(c)

	competitorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_ID",
				Message: "Invalid competitor ID",
			},
		})
		return
	}

	matches, err := h.competitors.ListMatchesByCompetitor(tenant, competitorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to list matches",
			},
		})
		return
	}

	c.JSON(http.StatusOK, models.MatchListResponse{Success: true, Data: matches})
}

// ExportMatches generates the XLSX price comparison report
// POST /api/v1/matches/export
func (h *MatchesHandler) ExportMatches(c *gin.Context) {
	tenant := tenantID(c)

	var req models.ExportMatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	var matches []models.Match
	var err error
	if req.CompetitorID != nil {
		matches, err = h.competitors.ListMatchesByCompetitor(tenant, *req.CompetitorID)
	} else {
		matches, err = h.competitors.ListMatches(tenant)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "DB_ERROR",
				Message: "Failed to load matches",
			},
		})
		return
	}

	// Resolve product rows for the report columns
	productByID := make(map[uuid.UUID]*models.Product)
	for i := range matches {
		if _, ok := productByID[matches[i].ProductID]; ok {
			continue
		}
		product, err := h.products.GetProductByID(tenant, matches[i].ProductID)
		if err != nil {
			continue
		}
		productByID[matches[i].ProductID] = product
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Matches"
	f.SetSheetName("Sheet1", sheetName)

	headers := []interface{}{
		"My Product", "My SKU", "My Price",
		"Competitor Product", "Competitor SKU", "Competitor Price",
		"Score", "Type", "Reason", "Competitor URL",
	}
	f.SetSheetRow(sheetName, "A1", &headers)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})
	f.SetCellStyle(sheetName, "A1", "J1", headerStyle)

	for i, match := range matches {
		rowNum := i + 2
		var name, sku string
		var price float64
		if product, ok := productByID[match.ProductID]; ok {
			name = product.Name
			sku = product.SKU
			price = product.CurrentPrice
		}
		competitorSKU := ""
		if match.CompetitorSKU != nil {
			competitorSKU = *match.CompetitorSKU
		}
		var competitorPrice interface{}
		if match.CompetitorPrice != nil {
			competitorPrice = *match.CompetitorPrice
		}
		competitorURL := ""
		if match.CompetitorProductURL != nil {
			competitorURL = *match.CompetitorProductURL
		}

		row := []interface{}{
			name, sku, price,
			match.CompetitorProductName, competitorSKU, competitorPrice,
			match.ConfidenceScore, string(match.MatchType), match.Reason, competitorURL,
		}
		f.SetSheetRow(sheetName, fmt.Sprintf("A%d", rowNum), &row)
	}

	for col, width := range map[string]float64{"A": 40, "D": 40, "I": 35, "J": 50} {
		f.SetColWidth(sheetName, col, col, width)
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=price_comparison.xlsx")

	f.Write(c.Writer)
}
