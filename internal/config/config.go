package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pricing-service/internal/models"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisURL string

	// Server
	Port        string
	Environment string

	// Pagination
	DefaultPageSize int
	MaxPageSize     int

	// Import
	ImportBatchSize   int
	MaxUploadSizeMB   int64
	ImportWorkers     int
	ImportQueueSize   int
	ChunkWriteTimeout time.Duration
	DefaultCurrency   string

	// Matching
	MatchBrandBonus      float64
	MatchTokenWeight     float64
	MatchHighThreshold   float64
	MatchMediumThreshold float64
	MatchAcceptanceFloor float64
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	defaultPageSize, _ := strconv.Atoi(getEnv("DEFAULT_PAGE_SIZE", "20"))
	maxPageSize, _ := strconv.Atoi(getEnv("MAX_PAGE_SIZE", "100"))
	importBatchSize, _ := strconv.Atoi(getEnv("IMPORT_BATCH_SIZE", "50"))
	maxUploadMB, _ := strconv.ParseInt(getEnv("MAX_UPLOAD_SIZE_MB", "10"), 10, 64)
	importWorkers, _ := strconv.Atoi(getEnv("IMPORT_WORKERS", "2"))
	importQueueSize, _ := strconv.Atoi(getEnv("IMPORT_QUEUE_SIZE", "100"))
	chunkTimeoutSec, _ := strconv.Atoi(getEnv("CHUNK_WRITE_TIMEOUT_SECONDS", "30"))
	brandBonus, _ := strconv.ParseFloat(getEnv("MATCH_BRAND_BONUS", "0.2"), 64)
	tokenWeight, _ := strconv.ParseFloat(getEnv("MATCH_TOKEN_WEIGHT", "0.3"), 64)
	highThreshold, _ := strconv.ParseFloat(getEnv("MATCH_HIGH_THRESHOLD", "0.7"), 64)
	mediumThreshold, _ := strconv.ParseFloat(getEnv("MATCH_MEDIUM_THRESHOLD", "0.5"), 64)
	acceptanceFloor, _ := strconv.ParseFloat(getEnv("MATCH_ACCEPTANCE_FLOOR", "0.55"), 64)

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "pricing_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		Port:        getEnv("PORT", "8093"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DefaultPageSize: defaultPageSize,
		MaxPageSize:     maxPageSize,

		ImportBatchSize:   importBatchSize,
		MaxUploadSizeMB:   maxUploadMB,
		ImportWorkers:     importWorkers,
		ImportQueueSize:   importQueueSize,
		ChunkWriteTimeout: time.Duration(chunkTimeoutSec) * time.Second,
		DefaultCurrency:   getEnv("DEFAULT_CURRENCY", "CAD"),

		MatchBrandBonus:      brandBonus,
		MatchTokenWeight:     tokenWeight,
		MatchHighThreshold:   highThreshold,
		MatchMediumThreshold: mediumThreshold,
		MatchAcceptanceFloor: acceptanceFloor,
	}
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Product{},
		&models.ImportJob{},
		&models.Competitor{},
		&models.CompetitorProduct{},
		&models.Match{},
	); err != nil {
		return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
