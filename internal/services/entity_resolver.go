package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// ResolvedEntity is the outcome of a find-or-create
type ResolvedEntity struct {
	ID      uuid.UUID
	Created bool
}

// SKUGenerator produces placeholder SKUs for rows without a code
type SKUGenerator func() string

var placeholderSeq atomic.Uint64

// NewPlaceholderSKU returns GEN-<random>-<sequence>. The sequence makes it
// unique within the process; the random part keeps replicas apart.
func NewPlaceholderSKU() string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return fmt.Sprintf("GEN-%s-%d", random, placeholderSeq.Add(1))
}

// EntityResolver finds or creates the catalog entities a lot hangs off.
// Each method is a lookup followed, when needed, by a create. A unique
// violation on create means another run created the row first; the lookup is
// repeated once and its result used.
type EntityResolver struct {
	store  repository.CatalogStore
	logger *logrus.Entry
}

// NewEntityResolver creates a resolver over store
func NewEntityResolver(store repository.CatalogStore, logger *logrus.Entry) *EntityResolver {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EntityResolver{store: store, logger: logger}
}

// ResolveManufacturer finds a manufacturer by exact name or creates it with defaultCountry
func (r *EntityResolver) ResolveManufacturer(ctx context.Context, tenantID, name, defaultCountry string) (ResolvedEntity, error) {
	return r.findOrCreate("manufacturer", name,
		func() (uuid.UUID, error) {
			m, err := r.store.FindManufacturerByName(ctx, tenantID, name)
			if err != nil {
				return uuid.Nil, err
			}
			return m.ID, nil
		},
		func() (uuid.UUID, error) {
			m := &models.Manufacturer{
				ID:          uuid.New(),
				TenantID:    tenantID,
				Name:        name,
				CountryCode: defaultCountry,
			}
			err := r.store.CreateManufacturer(ctx, m)
			return m.ID, err
		},
	)
}

// ResolveProduct finds a product by global SKU only, creating it under
// manufacturerID when absent
func (r *EntityResolver) ResolveProduct(ctx context.Context, tenantID, sku, description string, manufacturerID uuid.UUID, placeholder bool) (ResolvedEntity, error) {
	return r.findOrCreate("product", sku,
		func() (uuid.UUID, error) {
			p, err := r.store.FindProductBySKU(ctx, tenantID, sku)
			if err != nil {
				return uuid.Nil, err
			}
			return p.ID, nil
		},
		func() (uuid.UUID, error) {
			p := &models.Product{
				ID:               uuid.New(),
				TenantID:         tenantID,
				GlobalSKU:        sku,
				Description:      description,
				ManufacturerID:   manufacturerID,
				IsPlaceholderSKU: placeholder,
			}
			err := r.store.CreateProduct(ctx, p)
			return p.ID, err
		},
	)
}

// ResolveProductSupplierLink finds the link for (productID, supplierID) or creates it
func (r *EntityResolver) ResolveProductSupplierLink(ctx context.Context, tenantID string, productID uuid.UUID, supplierID, supplierSKU, supplierName string) (uuid.UUID, error) {
	key := productID.String() + "/" + supplierID
	res, err := r.findOrCreate("product supplier link", key,
		func() (uuid.UUID, error) {
			link, err := r.store.FindProductSupplier(ctx, tenantID, productID, supplierID)
			if err != nil {
				return uuid.Nil, err
			}
			return link.ID, nil
		},
		func() (uuid.UUID, error) {
			link := &models.ProductSupplier{
				ID:           uuid.New(),
				TenantID:     tenantID,
				ProductID:    productID,
				SupplierID:   supplierID,
				SupplierSKU:  supplierSKU,
				SupplierName: supplierName,
			}
			err := r.store.CreateProductSupplier(ctx, link)
			return link.ID, err
		},
	)
	return res.ID, err
}

func (r *EntityResolver) findOrCreate(entity, key string, find, create func() (uuid.UUID, error)) (ResolvedEntity, error) {
	id, err := find()
	if err == nil {
		return ResolvedEntity{ID: id}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return ResolvedEntity{}, &EntityResolutionError{Entity: entity, Key: key, Err: err}
	}

	id, err = create()
	if err == nil {
		return ResolvedEntity{ID: id, Created: true}, nil
	}
	if !errors.Is(err, repository.ErrDuplicate) {
		return ResolvedEntity{}, &EntityResolutionError{Entity: entity, Key: key, Err: err}
	}

	r.logger.WithFields(logrus.Fields{
		"entity": entity,
		"key":    key,
	}).Debug("Unique violation on create, re-fetching")

	id, err = find()
	if err != nil {
		return ResolvedEntity{}, &EntityResolutionError{
			Entity: entity,
			Key:    key,
			Err:    fmt.Errorf("created concurrently but re-fetch failed: %w", err),
		}
	}
	return ResolvedEntity{ID: id}, nil
}
