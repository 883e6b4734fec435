package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"catalog-import-service/internal/models"
)

// rawRowBatchSize bounds a single INSERT when storing an upload
const rawRowBatchSize = 500

// CatalogRepository handles database operations for catalog entities,
// uploads and import runs
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository creates a new CatalogRepository
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Ping checks database connectivity
func (r *CatalogRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ========== Manufacturers ==========

// FindManufacturerByName looks a manufacturer up by exact name
func (r *CatalogRepository) FindManufacturerByName(ctx context.Context, tenantID, name string) (*models.Manufacturer, error) {
	var m models.Manufacturer
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND name = ?", tenantID, name).
		First(&m).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &m, nil
}

// CreateManufacturer inserts a manufacturer; a name clash returns ErrDuplicate
func (r *CatalogRepository) CreateManufacturer(ctx context.Context, manufacturer *models.Manufacturer) error {
	if manufacturer.ID == uuid.Nil {
		manufacturer.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Create(manufacturer).Error)
}

// ========== Products ==========

// FindProductBySKU looks a product up by global SKU only
func (r *CatalogRepository) FindProductBySKU(ctx context.Context, tenantID, sku string) (*models.Product, error) {
	var p models.Product
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND global_sku = ?", tenantID, sku).
		First(&p).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &p, nil
}

// CreateProduct inserts a product; a SKU clash returns ErrDuplicate
func (r *CatalogRepository) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Omit("Manufacturer").Create(product).Error)
}

// ========== Product suppliers ==========

// FindProductSupplier looks a link up by its (product, supplier) pair
func (r *CatalogRepository) FindProductSupplier(ctx context.Context, tenantID string, productID uuid.UUID, supplierID string) (*models.ProductSupplier, error) {
	var link models.ProductSupplier
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND supplier_id = ?", tenantID, productID, supplierID).
		First(&link).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &link, nil
}

// CreateProductSupplier inserts a product-supplier link
func (r *CatalogRepository) CreateProductSupplier(ctx context.Context, link *models.ProductSupplier) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	return translateError(r.db.WithContext(ctx).Create(link).Error)
}

// ========== Lots ==========

// CreateLot inserts a lot. The caller supplies the ID.
func (r *CatalogRepository) CreateLot(ctx context.Context, lot *models.ProductLot) error {
	if lot.ID == uuid.Nil {
		return fmt.Errorf("lot id is required")
	}
	return translateError(r.db.WithContext(ctx).Create(lot).Error)
}

// ========== Uploads ==========

// CreateUpload stores an upload and all of its raw rows in one transaction
func (r *CatalogRepository) CreateUpload(ctx context.Context, upload *models.ImportUpload, rows []models.RawRow) error {
	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}
	upload.RowCount = len(rows)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(upload).Error; err != nil {
			return fmt.Errorf("failed to create upload: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		records := make([]models.ImportRawRow, 0, len(rows))
		for _, row := range rows {
			data, err := json.Marshal(row.RawData)
			if err != nil {
				return fmt.Errorf("failed to encode row %d: %w", row.RowIndex, err)
			}
			records = append(records, models.ImportRawRow{
				ID:       uuid.New(),
				TenantID: upload.TenantID,
				UploadID: upload.ID,
				RowIndex: row.RowIndex,
				RawData:  data,
			})
		}
		if err := tx.CreateInBatches(records, rawRowBatchSize).Error; err != nil {
			return fmt.Errorf("failed to store raw rows: %w", err)
		}
		return nil
	})
	return translateError(err)
}

// GetUpload retrieves upload metadata
func (r *CatalogRepository) GetUpload(ctx context.Context, tenantID string, uploadID uuid.UUID) (*models.ImportUpload, error) {
	var upload models.ImportUpload
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, uploadID).
		First(&upload).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &upload, nil
}

// GetRawRows returns every row of an upload ordered by row index.
// An unknown upload is ErrNotFound, not an empty slice.
func (r *CatalogRepository) GetRawRows(ctx context.Context, tenantID string, uploadID uuid.UUID) ([]models.RawRow, error) {
	if _, err := r.GetUpload(ctx, tenantID, uploadID); err != nil {
		return nil, err
	}
	return r.loadRows(ctx, tenantID, uploadID, 0)
}

// PreviewRows returns the first limit rows of an upload
func (r *CatalogRepository) PreviewRows(ctx context.Context, tenantID string, uploadID uuid.UUID, limit int) ([]models.RawRow, error) {
	return r.loadRows(ctx, tenantID, uploadID, limit)
}

func (r *CatalogRepository) loadRows(ctx context.Context, tenantID string, uploadID uuid.UUID, limit int) ([]models.RawRow, error) {
	var records []models.ImportRawRow
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND upload_id = ?", tenantID, uploadID).
		Order("row_index ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, translateError(err)
	}

	rows := make([]models.RawRow, 0, len(records))
	for _, rec := range records {
		data := map[string]any{}
		if len(rec.RawData) > 0 {
			if err := json.Unmarshal(rec.RawData, &data); err != nil {
				return nil, fmt.Errorf("failed to decode row %d: %w", rec.RowIndex, err)
			}
		}
		rows = append(rows, models.RawRow{RowIndex: rec.RowIndex, RawData: data})
	}
	return rows, nil
}

// ========== Import runs ==========

// SaveImportRun inserts or updates the run summary
func (r *CatalogRepository) SaveImportRun(ctx context.Context, run *models.ImportRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.UpdatedAt = time.Now()
	return translateError(r.db.WithContext(ctx).Save(run).Error)
}

// GetImportRun retrieves a run by ID
func (r *CatalogRepository) GetImportRun(ctx context.Context, tenantID string, runID uuid.UUID) (*models.ImportRun, error) {
	var run models.ImportRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, runID).
		First(&run).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &run, nil
}

// ListImportRuns returns the runs of an upload, newest first
func (r *CatalogRepository) ListImportRuns(ctx context.Context, tenantID string, uploadID uuid.UUID) ([]models.ImportRun, error) {
	var runs []models.ImportRun
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND upload_id = ?", tenantID, uploadID).
		Order("started_at DESC").
		Find(&runs).Error
	return runs, translateError(err)
}
