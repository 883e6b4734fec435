package repository

import (
	"context"

	"github.com/google/uuid"

	"catalog-import-service/internal/models"
)

// CatalogStore is everything the import pipeline needs from persistence.
// Each call is its own atomic unit; callers never hold a transaction open
// across calls.
type CatalogStore interface {
	GetRawRows(ctx context.Context, tenantID string, uploadID uuid.UUID) ([]models.RawRow, error)

	FindManufacturerByName(ctx context.Context, tenantID, name string) (*models.Manufacturer, error)
	CreateManufacturer(ctx context.Context, manufacturer *models.Manufacturer) error

	FindProductBySKU(ctx context.Context, tenantID, sku string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error

	FindProductSupplier(ctx context.Context, tenantID string, productID uuid.UUID, supplierID string) (*models.ProductSupplier, error)
	CreateProductSupplier(ctx context.Context, link *models.ProductSupplier) error

	CreateLot(ctx context.Context, lot *models.ProductLot) error

	SaveImportRun(ctx context.Context, run *models.ImportRun) error
}

// UploadStore persists decoded spreadsheets and serves them back
type UploadStore interface {
	CreateUpload(ctx context.Context, upload *models.ImportUpload, rows []models.RawRow) error
	GetUpload(ctx context.Context, tenantID string, uploadID uuid.UUID) (*models.ImportUpload, error)
	PreviewRows(ctx context.Context, tenantID string, uploadID uuid.UUID, limit int) ([]models.RawRow, error)
	GetImportRun(ctx context.Context, tenantID string, runID uuid.UUID) (*models.ImportRun, error)
	ListImportRuns(ctx context.Context, tenantID string, uploadID uuid.UUID) ([]models.ImportRun, error)
}

// MappingTemplateStore persists reusable column mappings
type MappingTemplateStore interface {
	ListTemplates(ctx context.Context, tenantID, supplierID string) ([]models.MappingTemplate, error)
	GetTemplate(ctx context.Context, tenantID string, id uuid.UUID) (*models.MappingTemplate, error)
	CreateTemplate(ctx context.Context, template *models.MappingTemplate) error
	UpdateTemplate(ctx context.Context, template *models.MappingTemplate) error
	DeleteTemplate(ctx context.Context, tenantID string, id uuid.UUID) error
}

var (
	_ CatalogStore         = (*CatalogRepository)(nil)
	_ UploadStore          = (*CatalogRepository)(nil)
	_ MappingTemplateStore = (*MappingTemplateRepository)(nil)
)
