package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"catalog-import-service/internal/models"
)

// Cache TTL constants
const (
	TemplateCacheTTL     = 30 * time.Minute // Templates change rarely
	TemplateListCacheTTL = 10 * time.Minute
)

// MappingTemplateRepository stores column mapping templates with a
// two-level (in-process + redis) read cache
type MappingTemplateRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

// NewMappingTemplateRepository creates a template repository. A nil redis
// client disables caching.
func NewMappingTemplateRepository(db *gorm.DB, redisClient *redis.Client) *MappingTemplateRepository {
	repo := &MappingTemplateRepository{
		db:    db,
		redis: redisClient,
	}

	if redisClient != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 1000,
			L1TTL:      30 * time.Second,
			DefaultTTL: TemplateCacheTTL,
			KeyPrefix:  "tesseract:catalog-import:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redisClient, cacheConfig)
	}

	return repo
}

func templateCacheKey(tenantID string, id uuid.UUID) string {
	return fmt.Sprintf("template:%s:%s", tenantID, id.String())
}

func templateListCacheKey(tenantID, supplierID string) string {
	if supplierID == "" {
		supplierID = "all"
	}
	return fmt.Sprintf("template:list:%s:%s", tenantID, supplierID)
}

func (r *MappingTemplateRepository) invalidate(ctx context.Context, tenantID string, id uuid.UUID) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, templateCacheKey(tenantID, id))
	_ = r.cache.DeletePattern(ctx, fmt.Sprintf("template:list:%s:*", tenantID))
}

// ListTemplates returns the tenant's templates, optionally only those of one supplier
func (r *MappingTemplateRepository) ListTemplates(ctx context.Context, tenantID, supplierID string) ([]models.MappingTemplate, error) {
	load := func() ([]models.MappingTemplate, error) {
		var templates []models.MappingTemplate
		query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
		if supplierID != "" {
			query = query.Where("supplier_id = ?", supplierID)
		}
		if err := query.Order("name ASC").Find(&templates).Error; err != nil {
			return nil, translateError(err)
		}
		return templates, nil
	}

	if r.cache == nil {
		return load()
	}

	var templates []models.MappingTemplate
	err := r.cache.GetOrSetJSON(ctx, templateListCacheKey(tenantID, supplierID), &templates, TemplateListCacheTTL, func() (any, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return templates, nil
}

// GetTemplate retrieves one template
func (r *MappingTemplateRepository) GetTemplate(ctx context.Context, tenantID string, id uuid.UUID) (*models.MappingTemplate, error) {
	load := func() (*models.MappingTemplate, error) {
		var t models.MappingTemplate
		if err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&t).Error; err != nil {
			return nil, translateError(err)
		}
		return &t, nil
	}

	if r.cache == nil {
		return load()
	}

	var template models.MappingTemplate
	err := r.cache.GetOrSetJSON(ctx, templateCacheKey(tenantID, id), &template, TemplateCacheTTL, func() (any, error) {
		return load()
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &template, nil
}

// CreateTemplate inserts a template; a name clash returns ErrDuplicate
func (r *MappingTemplateRepository) CreateTemplate(ctx context.Context, template *models.MappingTemplate) error {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(template).Error; err != nil {
		return translateError(err)
	}
	r.invalidate(ctx, template.TenantID, template.ID)
	return nil
}

// UpdateTemplate replaces name, description, supplier and mapping
func (r *MappingTemplateRepository) UpdateTemplate(ctx context.Context, template *models.MappingTemplate) error {
	result := r.db.WithContext(ctx).
		Model(&models.MappingTemplate{}).
		Where("tenant_id = ? AND id = ?", template.TenantID, template.ID).
		Updates(map[string]interface{}{
			"name":        template.Name,
			"description": template.Description,
			"supplier_id": template.SupplierID,
			"mapping":     template.Mapping,
			"updated_at":  time.Now(),
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidate(ctx, template.TenantID, template.ID)
	return nil
}

// DeleteTemplate soft-deletes a template
func (r *MappingTemplateRepository) DeleteTemplate(ctx context.Context, tenantID string, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.MappingTemplate{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	r.invalidate(ctx, tenantID, id)
	return nil
}

// RedisHealth returns the health status of the Redis connection
func (r *MappingTemplateRepository) RedisHealth(ctx context.Context) error {
	if r.redis == nil {
		return fmt.Errorf("redis not configured")
	}
	return r.redis.Ping(ctx).Err()
}

// CacheStats returns cache statistics
func (r *MappingTemplateRepository) CacheStats() *cache.CacheStats {
	if r.cache == nil {
		return nil
	}
	stats := r.cache.Stats()
	return &stats
}
