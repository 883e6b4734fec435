package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// LotDefaults are the values every imported lot gets regardless of its row
type LotDefaults struct {
	Unit     string
	Currency string
}

// LotMaterializer turns one consolidated group into one stored lot
type LotMaterializer struct {
	store    repository.CatalogStore
	defaults LotDefaults
	now      func() time.Time
}

// NewLotMaterializer creates a materializer
func NewLotMaterializer(store repository.CatalogStore, defaults LotDefaults) *LotMaterializer {
	return &LotMaterializer{store: store, defaults: defaults, now: time.Now}
}

// Materialize creates the lot for group under the given product-supplier link.
// The lot ID and number are always generated here.
func (m *LotMaterializer) Materialize(ctx context.Context, ictx models.ImportContext, group models.ConsolidatedGroup, linkID uuid.UUID) (*models.ProductLot, error) {
	id := uuid.New()
	lot := &models.ProductLot{
		ID:                id,
		TenantID:          ictx.TenantID,
		ProductSupplierID: linkID,
		LotNumber:         lotNumber(m.now(), id),
		Quantity:          group.Quantity,
		UnitPrice:         group.Price,
		Unit:              m.defaults.Unit,
		CurrencyCode:      m.defaults.Currency,
		SalesCategory:     ictx.SalesCategory,
		Status:            models.LotStatusAvailable,
	}
	if ictx.UploadID != uuid.Nil {
		uploadID := ictx.UploadID
		lot.UploadID = &uploadID
	}
	if ictx.RunID != uuid.Nil {
		runID := ictx.RunID
		lot.ImportRunID = &runID
	}
	if group.ExpiryDate != nil {
		expiry, err := time.Parse(importer.ISODate, *group.ExpiryDate)
		if err != nil {
			return nil, &LotCreationError{ProductSupplierID: linkID.String(), Err: fmt.Errorf("invalid expiry date %q: %w", *group.ExpiryDate, err)}
		}
		lot.ExpiryDate = &expiry
	}

	if err := m.store.CreateLot(ctx, lot); err != nil {
		return nil, &LotCreationError{ProductSupplierID: linkID.String(), Err: err}
	}
	return lot, nil
}

func lotNumber(now time.Time, id uuid.UUID) string {
	return fmt.Sprintf("LOT-%s-%s", now.UTC().Format("20060102"), id.String()[:8])
}
