package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// MockCatalogStore is a mock implementation of repository.CatalogStore
type MockCatalogStore struct {
	mock.Mock
}

// Ensure MockCatalogStore implements the interface
var _ repository.CatalogStore = (*MockCatalogStore)(nil)

func (m *MockCatalogStore) GetRawRows(ctx context.Context, tenantID string, uploadID uuid.UUID) ([]models.RawRow, error) {
	args := m.Called(ctx, tenantID, uploadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RawRow), args.Error(1)
}

func (m *MockCatalogStore) FindManufacturerByName(ctx context.Context, tenantID, name string) (*models.Manufacturer, error) {
	args := m.Called(ctx, tenantID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Manufacturer), args.Error(1)
}

func (m *MockCatalogStore) CreateManufacturer(ctx context.Context, manufacturer *models.Manufacturer) error {
	args := m.Called(ctx, manufacturer)
	return args.Error(0)
}

func (m *MockCatalogStore) FindProductBySKU(ctx context.Context, tenantID, sku string) (*models.Product, error) {
	args := m.Called(ctx, tenantID, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockCatalogStore) CreateProduct(ctx context.Context, product *models.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *MockCatalogStore) FindProductSupplier(ctx context.Context, tenantID string, productID uuid.UUID, supplierID string) (*models.ProductSupplier, error) {
	args := m.Called(ctx, tenantID, productID, supplierID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProductSupplier), args.Error(1)
}

func (m *MockCatalogStore) CreateProductSupplier(ctx context.Context, link *models.ProductSupplier) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func (m *MockCatalogStore) CreateLot(ctx context.Context, lot *models.ProductLot) error {
	args := m.Called(ctx, lot)
	return args.Error(0)
}

func (m *MockCatalogStore) SaveImportRun(ctx context.Context, run *models.ImportRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// memStore is an in-memory CatalogStore that enforces the same uniqueness
// rules as the database. Hooks let a test fail individual calls.
type memStore struct {
	mu sync.Mutex

	rows          map[uuid.UUID][]models.RawRow
	manufacturers map[string]*models.Manufacturer
	products      map[string]*models.Product
	links         map[string]*models.ProductSupplier
	lots          []*models.ProductLot
	runs          map[uuid.UUID]models.ImportRun

	createLotErr func(lot *models.ProductLot) error
	findSKUErr   func(sku string) error
}

var _ repository.CatalogStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		rows:          make(map[uuid.UUID][]models.RawRow),
		manufacturers: make(map[string]*models.Manufacturer),
		products:      make(map[string]*models.Product),
		links:         make(map[string]*models.ProductSupplier),
		runs:          make(map[uuid.UUID]models.ImportRun),
	}
}

func (s *memStore) addUpload(rows []models.RawRow) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.rows[id] = rows
	return id
}

func (s *memStore) GetRawRows(_ context.Context, _ string, uploadID uuid.UUID) ([]models.RawRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.rows[uploadID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rows, nil
}

func (s *memStore) FindManufacturerByName(_ context.Context, tenantID, name string) (*models.Manufacturer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.manufacturers[tenantID+"|"+name]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

func (s *memStore) CreateManufacturer(_ context.Context, m *models.Manufacturer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := m.TenantID + "|" + m.Name
	if _, ok := s.manufacturers[key]; ok {
		return repository.ErrDuplicate
	}
	s.manufacturers[key] = m
	return nil
}

func (s *memStore) FindProductBySKU(_ context.Context, tenantID, sku string) (*models.Product, error) {
	if s.findSKUErr != nil {
		if err := s.findSKUErr(sku); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[tenantID+"|"+sku]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (s *memStore) CreateProduct(_ context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := p.TenantID + "|" + p.GlobalSKU
	if _, ok := s.products[key]; ok {
		return repository.ErrDuplicate
	}
	s.products[key] = p
	return nil
}

func (s *memStore) FindProductSupplier(_ context.Context, tenantID string, productID uuid.UUID, supplierID string) (*models.ProductSupplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[tenantID+"|"+productID.String()+"|"+supplierID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return link, nil
}

func (s *memStore) CreateProductSupplier(_ context.Context, link *models.ProductSupplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := link.TenantID + "|" + link.ProductID.String() + "|" + link.SupplierID
	if _, ok := s.links[key]; ok {
		return repository.ErrDuplicate
	}
	s.links[key] = link
	return nil
}

func (s *memStore) CreateLot(_ context.Context, lot *models.ProductLot) error {
	if s.createLotErr != nil {
		if err := s.createLotErr(lot); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lots = append(s.lots, lot)
	return nil
}

func (s *memStore) SaveImportRun(_ context.Context, run *models.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *memStore) productList() []*models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out
}

// recordingObserver keeps every notification for assertions
type recordingObserver struct {
	NopObserver
	warnings []importer.RowWarning
	stats    importer.ConsolidationStats
	failed   []models.ConsolidatedGroup
	finished int
	runErr   error
}

func (o *recordingObserver) RowCleaned(_ models.ImportContext, w importer.RowWarning) {
	o.warnings = append(o.warnings, w)
}

func (o *recordingObserver) Consolidated(_ models.ImportContext, stats importer.ConsolidationStats) {
	o.stats = stats
}

func (o *recordingObserver) GroupFailed(_ models.ImportContext, group models.ConsolidatedGroup, _ error) {
	o.failed = append(o.failed, group)
}

func (o *recordingObserver) RunFinished(_ models.ImportContext, _ *models.ImportResult, err error) {
	o.finished++
	o.runErr = err
}

// recordingPublisher captures published lots
type recordingPublisher struct {
	calls int
	lots  []models.ImportedLot
	err   error
}

func (p *recordingPublisher) PublishLotsImported(_ context.Context, _ models.ImportContext, lots []models.ImportedLot) error {
	p.calls++
	p.lots = append(p.lots, lots...)
	return p.err
}
