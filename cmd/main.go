package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pricing-service/internal/config"
	"pricing-service/internal/events"
	"pricing-service/internal/handlers"
	"pricing-service/internal/importer"
	"pricing-service/internal/matching"
	"pricing-service/internal/middleware"
	"pricing-service/internal/repository"
)

// @title Pricing Service API
// @version 1.0.0
// @description Catalog import and competitor price matching service with multi-tenant support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8093
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching and events will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Repositories
	productsRepo := repository.NewProductsRepository(db, redisClient)
	importsRepo := repository.NewImportsRepository(db)
	competitorsRepo := repository.NewCompetitorsRepository(db)

	// Events over Redis pub/sub
	publisher := events.NewPublisher(redisClient, logger)

	// Import worker pool
	runner := importer.NewRunner(importsRepo, productsRepo, publisher, importer.Config{
		BatchSize:       cfg.ImportBatchSize,
		ChunkTimeout:    cfg.ChunkWriteTimeout,
		DefaultCurrency: cfg.DefaultCurrency,
	}, logger)
	pool := importer.NewPool(runner, cfg.ImportWorkers, cfg.ImportQueueSize, logger)
	pool.Start()

	// Matching engine
	engine := matching.NewEngine(matching.Weights{
		BrandBonus:      cfg.MatchBrandBonus,
		TokenWeight:     cfg.MatchTokenWeight,
		HighThreshold:   cfg.MatchHighThreshold,
		MediumThreshold: cfg.MatchMediumThreshold,
		AcceptanceFloor: cfg.MatchAcceptanceFloor,
	})

	// Handlers
	productsHandler := handlers.NewProductsHandler(productsRepo, cfg.DefaultPageSize, cfg.MaxPageSize, cfg.DefaultCurrency)
	importHandler := handlers.NewImportHandler(importsRepo, pool, cfg.MaxUploadSizeMB)
	matchesHandler := handlers.NewMatchesHandler(competitorsRepo, productsRepo, engine, publisher, logger)

	// Matching runs triggered by the scraping collaborator
	catalogSubscriber := events.NewCatalogSubscriber(redisClient, matchesHandler.RunScrapedCatalogMatches, logger)
	if err := catalogSubscriber.Start(context.Background()); err != nil {
		log.Printf("WARNING: Failed to start catalog subscriber: %v", err)
	}

	// Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)

	// Protected API routes
	api := router.Group("/api/v1")
	api.Use(middleware.DevelopmentAuthMiddleware())
	api.Use(middleware.TenantMiddleware())
	{
		catalog := api.Group("/catalog")
		{
			catalog.GET("/import/template", importHandler.GetImportTemplate)
			catalog.POST("/preview", importHandler.PreviewCatalog)
			catalog.POST("/import", importHandler.StartImport)
			catalog.GET("/import/:jobId", importHandler.GetImportJob)
			catalog.GET("/imports", importHandler.ListImportJobs)
		}

		products := api.Group("/products")
		{
			products.GET("", productsHandler.GetProducts)
			products.GET("/:id", productsHandler.GetProduct)
			products.POST("", productsHandler.CreateProduct)
			products.PUT("/:id", productsHandler.UpdateProduct)
			products.DELETE("/:id", productsHandler.DeleteProduct)
			products.DELETE("/bulk", productsHandler.BulkDeleteProducts)
			products.GET("/:id/matches", matchesHandler.GetProductMatches)
		}

		competitors := api.Group("/competitors")
		{
			competitors.POST("", matchesHandler.CreateCompetitor)
			competitors.GET("", matchesHandler.ListCompetitors)
			competitors.PUT("/:id/catalog", matchesHandler.ReplaceCatalog)
			competitors.GET("/:id/catalog", matchesHandler.GetCatalog)
			competitors.POST("/:id/matches", matchesHandler.RunMatches)
			competitors.GET("/:id/matches", matchesHandler.GetCompetitorMatches)
		}

		api.POST("/matches/export", matchesHandler.ExportMatches)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Pricing service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down pricing-service...")

	catalogSubscriber.Stop()
	pool.Stop()

	log.Println("Pricing service stopped")
}
