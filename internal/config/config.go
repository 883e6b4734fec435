package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-import-service/internal/models"
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
	RedisURL      string
	RedisPassword string

	// NATS
	NATSURL string

	// Server
	Port        string
	Environment string

	// Services
	StaffServiceURL string

	// Import defaults
	DefaultCountry      string
	DefaultUnit         string
	DefaultCurrency     string
	DefaultManufacturer string
	MaxUploadRows       int
	MaxUploadBytes      int64
	CSVEncoding         string
	PreviewRows         int
}

func Load() *Config {
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	maxUploadRows, _ := strconv.Atoi(getEnv("IMPORT_MAX_UPLOAD_ROWS", "50000"))
	maxUploadMB, _ := strconv.ParseInt(getEnv("IMPORT_MAX_UPLOAD_MB", "20"), 10, 64)
	previewRows, _ := strconv.Atoi(getEnv("IMPORT_PREVIEW_ROWS", "10"))

	return &Config{
		// Database - fetch password from GCP Secret Manager if enabled
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: secrets.GetDBPassword(),
		DBName:     getEnv("DB_NAME", "catalog_import_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "redis://redis.redis-marketplace.svc.cluster.local:6379/0"),
		RedisPassword: secrets.GetRedisPassword(),

		NATSURL: getEnv("NATS_URL", ""),

		// Server
		Port:        getEnv("PORT", "8095"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StaffServiceURL: getEnv("STAFF_SERVICE_URL", "http://staff-service.marketplace.svc.cluster.local:8080"),

		DefaultCountry:      strings.ToUpper(getEnv("IMPORT_DEFAULT_COUNTRY", "MX")),
		DefaultUnit:         getEnv("IMPORT_DEFAULT_UNIT", "pieza"),
		DefaultCurrency:     strings.ToUpper(getEnv("IMPORT_DEFAULT_CURRENCY", "MXN")),
		DefaultManufacturer: getEnv("IMPORT_DEFAULT_MANUFACTURER", "Sin fabricante"),
		MaxUploadRows:       maxUploadRows,
		MaxUploadBytes:      maxUploadMB << 20,
		CSVEncoding:         strings.ToLower(getEnv("IMPORT_CSV_ENCODING", "auto")),
		PreviewRows:         previewRows,
	}
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	var logLevel logger.LogLevel
	if cfg.IsProduction() {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	// TranslateError turns unique violations into gorm.ErrDuplicatedKey, which
	// the entity resolver relies on for its retry
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Running auto-migrations...")
	if err := db.AutoMigrate(
		&models.Manufacturer{},
		&models.Product{},
		&models.ProductSupplier{},
		&models.ProductLot{},
		&models.ImportUpload{},
		&models.ImportRawRow{},
		&models.MappingTemplate{},
		&models.ImportRun{},
	); err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "does not exist") && strings.Contains(errStr, "constraint") {
			log.Printf("Note: Migration constraint warning (safe to ignore): %v", err)
		} else {
			return nil, fmt.Errorf("failed to run auto-migrations: %w", err)
		}
	}
	log.Println("Auto-migrations completed successfully")

	return db, nil
}

// InitRedis connects to redis. The returned client is nil when redis is not
// reachable; callers run without the template cache in that case.
func InitRedis(cfg *Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
