// Package events provides NATS event publishing for catalog-import-service
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/models"
)

// CatalogEventPublisher publishes the lots created by an import run so that
// inventory consumers see new stock without polling
type CatalogEventPublisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewCatalogEventPublisher creates a new catalog event publisher
func NewCatalogEventPublisher(natsURL string, logger *logrus.Logger) (*CatalogEventPublisher, error) {
	if natsURL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}

	log := logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-import-service-publisher"

	publisher, err := events.NewPublisher(config, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := publisher.EnsureStream(ctx, events.StreamInventory, []string{"inventory.>"}); err != nil {
		log.WithError(err).Warn("Failed to ensure inventory stream exists")
	}

	return &CatalogEventPublisher{
		publisher: publisher,
		logger:    log.WithField("component", "catalog-import-events"),
	}, nil
}

// PublishLotsImported publishes one inventory.adjusted event carrying every lot
// created by the run
func (p *CatalogEventPublisher) PublishLotsImported(ctx context.Context, ictx models.ImportContext, lots []models.ImportedLot) error {
	if p == nil || len(lots) == 0 {
		return nil
	}

	event := NewLotsImportedEvent(ictx, lots)
	if err := p.publisher.PublishInventory(ctx, event); err != nil {
		p.logger.WithFields(logrus.Fields{
			"runId":    ictx.RunID,
			"uploadId": ictx.UploadID,
		}).WithError(err).Error("Failed to publish inventory.adjusted event")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"runId":      ictx.RunID,
		"uploadId":   ictx.UploadID,
		"supplierId": ictx.SupplierID,
		"lots":       len(lots),
	}).Info("Published inventory.adjusted event")
	return nil
}

// NewLotsImportedEvent builds the inventory event for a finished run. Each lot
// is one item whose stock went from 0 to the lot quantity; the supplier plays
// the warehouse role.
func NewLotsImportedEvent(ictx models.ImportContext, lots []models.ImportedLot) *events.InventoryEvent {
	event := events.NewInventoryEvent(events.InventoryAdjusted, ictx.TenantID)
	event.SourceID = ictx.RunID.String()

	items := make([]events.InventoryItem, 0, len(lots))
	total := 0
	for _, lot := range lots {
		items = append(items, events.InventoryItem{
			ProductID:     lot.ProductID.String(),
			Name:          lot.Description,
			SKU:           lot.SKU,
			CurrentStock:  lot.Quantity,
			PreviousStock: 0,
			WarehouseID:   ictx.SupplierID,
			WarehouseName: ictx.SupplierName,
		})
		total += lot.Quantity
	}
	event.Items = items
	event.AdjustmentReason = fmt.Sprintf("catalog import %s (upload %s)", ictx.RunID, ictx.UploadID)
	event.AdjustedBy = ictx.UserID
	event.AdjustmentType = "add"
	event.AlertLevel = "info"
	event.AlertMessage = fmt.Sprintf("Catalog import created %d lots totalling %d units", len(lots), total)
	event.CalculateSummary()
	return event
}

// IsConnected returns true if connected to NATS
func (p *CatalogEventPublisher) IsConnected() bool {
	return p != nil && p.publisher.IsConnected()
}

// Close closes the NATS connection
func (p *CatalogEventPublisher) Close() {
	if p != nil {
		p.publisher.Close()
	}
}
