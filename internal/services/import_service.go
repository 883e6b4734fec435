package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// ImportConfig holds the defaults applied to every run
type ImportConfig struct {
	DefaultCountry      string
	DefaultUnit         string
	DefaultCurrency     string
	DefaultManufacturer string
}

// EventPublisher announces lots created by a finished run
type EventPublisher interface {
	PublishLotsImported(ctx context.Context, ictx models.ImportContext, lots []models.ImportedLot) error
}

// RunImportInput is one import request after transport decoding
type RunImportInput struct {
	TenantID      string
	UserID        string
	UploadID      string
	Mappings      map[string]string
	SupplierID    string
	SupplierName  string
	SalesCategory string
}

// ImportService runs the catalog import pipeline for one upload at a time per
// call. Groups are processed strictly one after another; there is no fan-out.
type ImportService struct {
	store        repository.CatalogStore
	resolver     *EntityResolver
	materializer *LotMaterializer
	publisher    EventPublisher
	observer     ImportObserver
	newSKU       SKUGenerator
	cfg          ImportConfig
	logger       *logrus.Entry
}

// Option customizes an ImportService
type Option func(*ImportService)

// WithObserver replaces the default logging observer
func WithObserver(o ImportObserver) Option {
	return func(s *ImportService) { s.observer = o }
}

// WithSKUGenerator replaces the placeholder SKU generator
func WithSKUGenerator(gen SKUGenerator) Option {
	return func(s *ImportService) { s.newSKU = gen }
}

// WithPublisher sets the event publisher. A nil publisher disables events.
func WithPublisher(p EventPublisher) Option {
	return func(s *ImportService) { s.publisher = p }
}

// NewImportService creates the orchestrator
func NewImportService(store repository.CatalogStore, cfg ImportConfig, logger *logrus.Logger, opts ...Option) *ImportService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	entry := logger.WithField("component", "catalog_import")

	s := &ImportService{
		store:        store,
		resolver:     NewEntityResolver(store, entry),
		materializer: NewLotMaterializer(store, LotDefaults{Unit: cfg.DefaultUnit, Currency: cfg.DefaultCurrency}),
		observer:     NewLogObserver(entry),
		newSKU:       NewPlaceholderSKU,
		cfg:          cfg,
		logger:       entry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// groupOutcome is what a fully successful group contributes to the counters
type groupOutcome struct {
	manufacturerCreated bool
	productCreated      bool
	lot                 *models.ProductLot
	imported            models.ImportedLot
}

// RunImport validates the request, consolidates the upload's rows and imports
// one lot per group.
//
// Per-group failures are recorded in the result and do not stop the run.
// When the store becomes unreachable the run stops: the result built so far is
// returned together with a *FatalError so callers can report partial progress.
// A *ValidationError is returned, with a nil result, before anything is read.
func (s *ImportService) RunImport(ctx context.Context, in RunImportInput) (*models.ImportResult, error) {
	ictx, mapping, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	// Once rows are being processed the run completes regardless of the caller
	ctx = context.WithoutCancel(ctx)
	started := time.Now()

	rows, err := s.store.GetRawRows(ctx, ictx.TenantID, ictx.UploadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ValidationError{Field: "uploadId", Message: "upload not found", Err: err}
		}
		return nil, &FatalError{Stage: "loading rows", Err: err}
	}

	result := &models.ImportResult{
		UploadID:         ictx.UploadID,
		RunID:            ictx.RunID,
		Errors:           []models.GroupError{},
		OriginalRowCount: len(rows),
	}
	run := &models.ImportRun{
		ID:            ictx.RunID,
		TenantID:      ictx.TenantID,
		UploadID:      ictx.UploadID,
		SupplierID:    ictx.SupplierID,
		SalesCategory: ictx.SalesCategory,
		Status:        models.ImportStatusProcessing,
		StartedAt:     started,
	}
	if ictx.UserID != "" {
		userID := ictx.UserID
		run.StartedBy = &userID
	}
	if raw, err := json.Marshal(mapping); err == nil {
		run.Mapping = raw
	}
	s.saveRun(ctx, run, result, nil)
	s.observer.RunStarted(ictx, len(rows))

	canonical := importer.ApplyMappingAll(rows, mapping, ictx)
	for _, row := range canonical {
		for _, w := range importer.CleaningWarnings(row) {
			s.observer.RowCleaned(ictx, w)
		}
	}

	groups, stats := importer.Consolidate(canonical)
	result.ConsolidatedGroupCount = len(groups)
	s.observer.Consolidated(ictx, stats)

	imported := make([]models.ImportedLot, 0, len(groups))
	for _, group := range groups {
		outcome, err := s.processGroup(ctx, ictx, group)
		if err != nil {
			if repository.IsUnavailable(err) {
				fatal := &FatalError{Stage: "processing groups", SourceRows: group.SourceRows, Err: err}
				s.finish(ctx, ictx, run, result, started, fatal)
				return result, fatal
			}
			result.Errors = append(result.Errors, models.GroupError{
				SourceRows: group.SourceRows,
				Code:       groupErrorCode(err),
				Message:    err.Error(),
			})
			s.observer.GroupFailed(ictx, group, err)
			continue
		}

		result.LotsCreated++
		if outcome.productCreated {
			result.ProductsCreated++
		}
		if outcome.manufacturerCreated {
			result.ManufacturersCreated++
		}
		imported = append(imported, outcome.imported)
		s.observer.GroupSucceeded(ictx, group, outcome.lot)
	}

	s.finish(ctx, ictx, run, result, started, nil)
	s.publish(ctx, ictx, imported)
	return result, nil
}

func (s *ImportService) validate(in RunImportInput) (models.ImportContext, models.ColumnMapping, error) {
	var ictx models.ImportContext

	if strings.TrimSpace(in.TenantID) == "" {
		return ictx, nil, &ValidationError{Field: "tenantId", Message: "tenant is required"}
	}
	if strings.TrimSpace(in.UploadID) == "" {
		return ictx, nil, &ValidationError{Field: "uploadId", Message: "upload id is required"}
	}
	uploadID, err := uuid.Parse(strings.TrimSpace(in.UploadID))
	if err != nil {
		return ictx, nil, &ValidationError{Field: "uploadId", Message: "upload id must be a UUID", Err: err}
	}
	if len(in.Mappings) == 0 {
		return ictx, nil, &ValidationError{Field: "mappings", Message: "column mappings are required"}
	}
	mapping, err := importer.ParseColumnMapping(in.Mappings)
	if err != nil {
		return ictx, nil, &ValidationError{Field: "mappings", Message: err.Error(), Err: err}
	}
	if strings.TrimSpace(in.SupplierID) == "" {
		return ictx, nil, &ValidationError{Field: "supplierId", Message: "supplier id is required"}
	}

	category := models.SalesCategory(strings.TrimSpace(strings.ToLower(in.SalesCategory)))
	if category == "" {
		category = models.SalesCategoryRegular
	}
	if !category.IsValid() {
		return ictx, nil, &ValidationError{Field: "salesCategory", Message: fmt.Sprintf("unknown sales category %q", in.SalesCategory)}
	}

	ictx = models.ImportContext{
		TenantID:      in.TenantID,
		UploadID:      uploadID,
		RunID:         uuid.New(),
		SupplierID:    strings.TrimSpace(in.SupplierID),
		SupplierName:  strings.TrimSpace(in.SupplierName),
		SalesCategory: category,
		UserID:        in.UserID,
	}
	return ictx, mapping, nil
}

// processGroup resolves manufacturer, product and supplier link in that order
// and then creates the lot. Nothing is counted unless every step succeeds.
func (s *ImportService) processGroup(ctx context.Context, ictx models.ImportContext, group models.ConsolidatedGroup) (groupOutcome, error) {
	row := group.Row

	manufacturerName := importer.CleanText(row.Fabricante)
	if manufacturerName == "" {
		manufacturerName = s.cfg.DefaultManufacturer
	}
	manufacturer, err := s.resolver.ResolveManufacturer(ctx, ictx.TenantID, manufacturerName, s.cfg.DefaultCountry)
	if err != nil {
		return groupOutcome{}, err
	}

	code := strings.TrimSpace(row.Code)
	sku, placeholder := code, false
	if sku == "" {
		sku, placeholder = s.newSKU(), true
	}
	description := importer.CleanText(row.Descripcion)
	if description == "" {
		description = "Producto sin descripción " + sku
	}

	product, err := s.resolver.ResolveProduct(ctx, ictx.TenantID, sku, description, manufacturer.ID, placeholder)
	if err != nil {
		return groupOutcome{}, err
	}

	linkID, err := s.resolver.ResolveProductSupplierLink(ctx, ictx.TenantID, product.ID, ictx.SupplierID, sku, ictx.SupplierName)
	if err != nil {
		return groupOutcome{}, err
	}

	lot, err := s.materializer.Materialize(ctx, ictx, group, linkID)
	if err != nil {
		return groupOutcome{}, err
	}

	return groupOutcome{
		manufacturerCreated: manufacturer.Created,
		productCreated:      product.Created,
		lot:                 lot,
		imported: models.ImportedLot{
			LotID:       lot.ID,
			LotNumber:   lot.LotNumber,
			ProductID:   product.ID,
			SKU:         sku,
			Description: description,
			Quantity:    lot.Quantity,
		},
	}, nil
}

func groupErrorCode(err error) string {
	var lotErr *LotCreationError
	if errors.As(err, &lotErr) {
		return models.GroupErrorLotCreation
	}
	return models.GroupErrorEntityResolution
}

func (s *ImportService) finish(ctx context.Context, ictx models.ImportContext, run *models.ImportRun, result *models.ImportResult, started time.Time, runErr error) {
	result.ProcessingMs = time.Since(started).Milliseconds()
	finished := time.Now()
	run.FinishedAt = &finished
	run.DurationMs = result.ProcessingMs
	run.Status = models.ImportStatusCompleted
	if runErr != nil {
		run.Status = models.ImportStatusFailed
	}
	s.saveRun(ctx, run, result, runErr)
	s.observer.RunFinished(ictx, result, runErr)
}

// saveRun persists the run summary. It is best effort: the import result is
// authoritative and a failure here is only logged.
func (s *ImportService) saveRun(ctx context.Context, run *models.ImportRun, result *models.ImportResult, runErr error) {
	run.OriginalRowCount = result.OriginalRowCount
	run.ConsolidatedGroupCount = result.ConsolidatedGroupCount
	run.LotsCreated = result.LotsCreated
	run.ProductsCreated = result.ProductsCreated
	run.ManufacturersCreated = result.ManufacturersCreated
	if raw, err := json.Marshal(result.Errors); err == nil {
		run.Errors = raw
	}
	if runErr != nil {
		reason := runErr.Error()
		run.FailureReason = &reason
	}

	if err := s.store.SaveImportRun(ctx, run); err != nil {
		s.logger.WithFields(logrus.Fields{
			"runId":  run.ID,
			"status": run.Status,
		}).WithError(err).Warn("Failed to persist import run")
	}
}

func (s *ImportService) publish(ctx context.Context, ictx models.ImportContext, lots []models.ImportedLot) {
	if s.publisher == nil || len(lots) == 0 {
		return
	}
	if err := s.publisher.PublishLotsImported(ctx, ictx, lots); err != nil {
		s.logger.WithField("runId", ictx.RunID).WithError(err).Warn("Failed to publish imported lots event")
	}
}
