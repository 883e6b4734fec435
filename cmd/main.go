package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"catalog-import-service/internal/config"
	"catalog-import-service/internal/events"
	"catalog-import-service/internal/handlers"
	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/rbac"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Catalog Import API
// @version 1.0.0
// @description Supplier spreadsheet import: uploads, column mappings and lot reconciliation

// @host localhost:8095
// @BasePath /api/v1

// @securityDefinitions.bearer BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

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
	if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Redis backs the mapping template cache; imports work without it
	redisClient, err := config.InitRedis(cfg)
	if err != nil {
		log.Printf("WARNING: %v (template caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}

	catalogRepo := repository.NewCatalogRepository(db)
	templateRepo := repository.NewMappingTemplateRepository(db, redisClient)

	// Event publishing is optional and only enabled when NATS_URL is set
	var publisher *events.CatalogEventPublisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewCatalogEventPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}
	defer publisher.Close()

	importOpts := []services.Option{}
	if publisher != nil {
		importOpts = append(importOpts, services.WithPublisher(publisher))
	}
	importService := services.NewImportService(catalogRepo, services.ImportConfig{
		DefaultCountry:      cfg.DefaultCountry,
		DefaultUnit:         cfg.DefaultUnit,
		DefaultCurrency:     cfg.DefaultCurrency,
		DefaultManufacturer: cfg.DefaultManufacturer,
	}, logger, importOpts...)

	uploadHandler := handlers.NewUploadHandler(catalogRepo, handlers.UploadConfig{
		MaxRows:     cfg.MaxUploadRows,
		MaxBytes:    cfg.MaxUploadBytes,
		CSVEncoding: cfg.CSVEncoding,
		PreviewRows: cfg.PreviewRows,
	}, logger)
	importHandler := handlers.NewImportHandler(importService, catalogRepo, templateRepo, logger)
	templateHandler := handlers.NewTemplateHandler(templateRepo, logger)

	var cacheHealth handlers.CacheHealth
	if redisClient != nil {
		cacheHealth = templateRepo
	}
	var brokerHealth handlers.BrokerHealth
	if publisher != nil {
		brokerHealth = publisher
	}
	healthHandler := handlers.NewHealthHandler(catalogRepo, cacheHealth, brokerHealth)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.IsProduction() {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("catalog-import-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("catalog-import-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	metrics := gosharedmw.InitGlobalMetrics("tesseract", "catalog_import_service")
	log.Println("✓ Prometheus metrics initialized")

	rbacMw := rbac.NewMiddlewareWithURL(cfg.StaffServiceURL, nil)
	log.Println("✓ RBAC middleware initialized")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("catalog-import-service"))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS())
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	// Health check endpoints (no auth required)
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/health/extended", healthHandler.ExtendedHealthCheck)
	router.GET("/metrics", gosharedmw.Handler())

	api := router.Group("/api/v1")

	istioAuthLogger := logrus.NewEntry(logger).WithField("component", "istio_auth")
	istioAuth := gosharedmw.IstioAuth(gosharedmw.IstioAuthConfig{
		RequireAuth:        true,
		AllowLegacyHeaders: true,
		Logger:             istioAuthLogger,
	})

	if cfg.Environment == "development" {
		api.Use(middleware.DevelopmentAuthMiddleware())
		api.Use(middleware.TenantMiddleware())
	} else {
		api.Use(istioAuth)
		api.Use(middleware.TenantMiddleware())
	}

	catalog := api.Group("/catalog")
	{
		catalog.POST("/uploads", rbacMw.RequirePermission(rbac.PermissionProductsImport), uploadHandler.CreateUpload)
		catalog.GET("/uploads/:id", rbacMw.RequirePermission(rbac.PermissionProductsImport), uploadHandler.GetUpload)
		catalog.GET("/uploads/:id/rows", rbacMw.RequirePermission(rbac.PermissionProductsImport), uploadHandler.GetUploadRows)

		catalog.POST("/imports", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.RunImport)
		catalog.GET("/imports/:id", rbacMw.RequirePermission(rbac.PermissionProductsImport), importHandler.GetImportRun)
		catalog.GET("/import/template", rbacMw.RequirePermission(rbac.PermissionProductsRead), importHandler.GetImportTemplate)

		catalog.GET("/mapping-templates", rbacMw.RequirePermission(rbac.PermissionProductsRead), templateHandler.ListTemplates)
		catalog.GET("/mapping-templates/:id", rbacMw.RequirePermission(rbac.PermissionProductsRead), templateHandler.GetTemplate)
		catalog.POST("/mapping-templates", rbacMw.RequirePermission(rbac.PermissionProductsImport), templateHandler.CreateTemplate)
		catalog.PUT("/mapping-templates/:id", rbacMw.RequirePermission(rbac.PermissionProductsImport), templateHandler.UpdateTemplate)
		catalog.DELETE("/mapping-templates/:id", rbacMw.RequirePermission(rbac.PermissionProductsImport), templateHandler.DeleteTemplate)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Catalog import service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down catalog-import-service...")

	// Imports in flight keep running after their request is gone; give them
	// time to finish before the process exits
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}
	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("Catalog import service stopped")
}
