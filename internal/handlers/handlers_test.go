package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
)

const testTenant = "tenant-1"

func init() {
	gin.SetMode(gin.TestMode)
}

// ===========================================
// Fakes
// ===========================================

type fakeRunner struct {
	got    services.RunImportInput
	result *models.ImportResult
	err    error
}

func (f *fakeRunner) RunImport(_ context.Context, in services.RunImportInput) (*models.ImportResult, error) {
	f.got = in
	return f.result, f.err
}

type fakeUploadStore struct {
	uploads map[uuid.UUID]*models.ImportUpload
	rows    map[uuid.UUID][]models.RawRow
	runs    map[uuid.UUID]*models.ImportRun
	err     error
}

var _ repository.UploadStore = (*fakeUploadStore)(nil)

func newFakeUploadStore() *fakeUploadStore {
	return &fakeUploadStore{
		uploads: map[uuid.UUID]*models.ImportUpload{},
		rows:    map[uuid.UUID][]models.RawRow{},
		runs:    map[uuid.UUID]*models.ImportRun{},
	}
}

func (s *fakeUploadStore) CreateUpload(_ context.Context, upload *models.ImportUpload, rows []models.RawRow) error {
	if s.err != nil {
		return s.err
	}
	upload.ID = uuid.New()
	upload.RowCount = len(rows)
	s.uploads[upload.ID] = upload
	s.rows[upload.ID] = rows
	return nil
}

func (s *fakeUploadStore) GetUpload(_ context.Context, tenantID string, id uuid.UUID) (*models.ImportUpload, error) {
	u, ok := s.uploads[id]
	if !ok || u.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (s *fakeUploadStore) PreviewRows(_ context.Context, _ string, id uuid.UUID, limit int) ([]models.RawRow, error) {
	rows := s.rows[id]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *fakeUploadStore) GetImportRun(_ context.Context, tenantID string, id uuid.UUID) (*models.ImportRun, error) {
	r, ok := s.runs[id]
	if !ok || r.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return r, nil
}

func (s *fakeUploadStore) ListImportRuns(_ context.Context, _ string, uploadID uuid.UUID) ([]models.ImportRun, error) {
	var out []models.ImportRun
	for _, r := range s.runs {
		if r.UploadID == uploadID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakeTemplateStore struct {
	templates map[uuid.UUID]*models.MappingTemplate
}

var _ repository.MappingTemplateStore = (*fakeTemplateStore)(nil)

func newFakeTemplateStore() *fakeTemplateStore {
	return &fakeTemplateStore{templates: map[uuid.UUID]*models.MappingTemplate{}}
}

func (s *fakeTemplateStore) ListTemplates(_ context.Context, tenantID, _ string) ([]models.MappingTemplate, error) {
	var out []models.MappingTemplate
	for _, t := range s.templates {
		if t.TenantID == tenantID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *fakeTemplateStore) GetTemplate(_ context.Context, tenantID string, id uuid.UUID) (*models.MappingTemplate, error) {
	t, ok := s.templates[id]
	if !ok || t.TenantID != tenantID {
		return nil, repository.ErrNotFound
	}
	return t, nil
}

func (s *fakeTemplateStore) CreateTemplate(_ context.Context, t *models.MappingTemplate) error {
	for _, existing := range s.templates {
		if existing.TenantID == t.TenantID && existing.Name == t.Name {
			return repository.ErrDuplicate
		}
	}
	t.ID = uuid.New()
	s.templates[t.ID] = t
	return nil
}

func (s *fakeTemplateStore) UpdateTemplate(_ context.Context, t *models.MappingTemplate) error {
	if _, ok := s.templates[t.ID]; !ok {
		return repository.ErrNotFound
	}
	s.templates[t.ID] = t
	return nil
}

func (s *fakeTemplateStore) DeleteTemplate(_ context.Context, _ string, id uuid.UUID) error {
	if _, ok := s.templates[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeCache struct{ err error }

func (f fakeCache) RedisHealth(context.Context) error { return f.err }
func (f fakeCache) CacheStats() *cache.CacheStats   { return nil }

// ===========================================
// Helpers
// ===========================================

func withTenant(c *gin.Context) {
	c.Set("tenant_id", testTenant)
	c.Set("user_id", "user-1")
	c.Next()
}

type testEnv struct {
	router    *gin.Engine
	runner    *fakeRunner
	uploads   *fakeUploadStore
	templates *fakeTemplateStore
}

func setupRouter() *testEnv {
	env := &testEnv{
		runner:    &fakeRunner{},
		uploads:   newFakeUploadStore(),
		templates: newFakeTemplateStore(),
	}

	uploadHandler := NewUploadHandler(env.uploads, UploadConfig{MaxRows: 100, MaxBytes: 1 << 20, CSVEncoding: "auto", PreviewRows: 2}, nil)
	importHandler := NewImportHandler(env.runner, env.uploads, env.templates, nil)
	templateHandler := NewTemplateHandler(env.templates, nil)

	r := gin.New()
	api := r.Group("/api/v1", withTenant)
	api.POST("/catalog/uploads", uploadHandler.CreateUpload)
	api.GET("/catalog/uploads/:id", uploadHandler.GetUpload)
	api.GET("/catalog/uploads/:id/rows", uploadHandler.GetUploadRows)
	api.POST("/catalog/imports", importHandler.RunImport)
	api.GET("/catalog/imports/:id", importHandler.GetImportRun)
	api.GET("/catalog/import/template", importHandler.GetImportTemplate)
	api.GET("/catalog/mapping-templates", templateHandler.ListTemplates)
	api.POST("/catalog/mapping-templates", templateHandler.CreateTemplate)
	api.GET("/catalog/mapping-templates/:id", templateHandler.GetTemplate)
	api.PUT("/catalog/mapping-templates/:id", templateHandler.UpdateTemplate)
	api.DELETE("/catalog/mapping-templates/:id", templateHandler.DeleteTemplate)
	env.router = r
	return env
}

func doJSON(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func multipartBody(t *testing.T, fileName, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

// ===========================================
// Uploads
// ===========================================

func TestCreateUpload_CSV(t *testing.T) {
	env := setupRouter()
	body, contentType := multipartBody(t, "lista.csv", "Codigo,Cantidad,Precio\nA1,2,16\nA2,3,10\nA3,1,5\n", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Success bool                 `json:"success"`
		Data    models.UploadSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"Codigo", "Cantidad", "Precio"}, resp.Data.Headers)
	assert.Equal(t, 3, resp.Data.Upload.RowCount)
	assert.Len(t, resp.Data.Preview, 2)

	stored := env.uploads.uploads[resp.Data.Upload.ID]
	require.NotNil(t, stored)
	assert.Equal(t, testTenant, stored.TenantID)
	assert.Equal(t, models.ImportFormatCSV, stored.Format)
	require.NotNil(t, stored.UploadedBy)
	assert.Equal(t, "user-1", *stored.UploadedBy)
}

func TestCreateUpload_Rejections(t *testing.T) {
	env := setupRouter()

	t.Run("no file", func(t *testing.T) {
		w := doJSON(env.router, http.MethodPost, "/api/v1/catalog/uploads", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "NO_FILE", decodeError(t, w).Error.Code)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		body, contentType := multipartBody(t, "lista.pdf", "x", nil)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/uploads", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_FORMAT", decodeError(t, w).Error.Code)
	})

	t.Run("header only", func(t *testing.T) {
		body, contentType := multipartBody(t, "lista.txt", "Codigo,Precio\n", map[string]string{"format": "csv"})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/uploads", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "PARSE_ERROR", decodeError(t, w).Error.Code)
	})
}

func TestCreateUpload_StoreUnavailable(t *testing.T) {
	env := setupRouter()
	env.uploads.err = repository.ErrUnavailable
	body, contentType := multipartBody(t, "lista.csv", "Codigo\nA1\n", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/catalog/uploads", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetUploadAndRows(t *testing.T) {
	env := setupRouter()
	upload := &models.ImportUpload{TenantID: testTenant, FileName: "lista.csv", Headers: []byte(`["Codigo"]`)}
	rows := []models.RawRow{
		{RowIndex: 2, RawData: map[string]any{"Codigo": "A1"}},
		{RowIndex: 3, RawData: map[string]any{"Codigo": "A2"}},
		{RowIndex: 4, RawData: map[string]any{"Codigo": "A3"}},
	}
	require.NoError(t, env.uploads.CreateUpload(context.Background(), upload, rows))

	w := doJSON(env.router, http.MethodGet, "/api/v1/catalog/uploads/"+upload.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"headers":["Codigo"]`)

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/uploads/"+upload.ID.String()+"/rows?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []models.RawRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 2, resp.Data[0].RowIndex)

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/uploads/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/uploads/not-a-uuid/rows", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ===========================================
// Imports
// ===========================================

func TestRunImport_Success(t *testing.T) {
	env := setupRouter()
	uploadID := uuid.New()
	env.runner.result = &models.ImportResult{UploadID: uploadID, LotsCreated: 2, Errors: []models.GroupError{}}

	w := doJSON(env.router, http.MethodPost, "/api/v1/catalog/imports", models.ImportRequest{
		UploadID:      uploadID.String(),
		Mappings:      map[string]string{"code": "Codigo"},
		SupplierID:    "sup-1",
		SalesCategory: "near_expiry",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"lotsCreated":2`)
	assert.Equal(t, testTenant, env.runner.got.TenantID)
	assert.Equal(t, "user-1", env.runner.got.UserID)
	assert.Equal(t, "near_expiry", env.runner.got.SalesCategory)
	assert.Equal(t, "Codigo", env.runner.got.Mappings["code"])
}

func TestRunImport_UsesTemplate(t *testing.T) {
	env := setupRouter()
	template := &models.MappingTemplate{TenantID: testTenant, Name: "Norte", Mapping: []byte(`{"code":"Clave","precio":"Costo"}`)}
	require.NoError(t, env.templates.CreateTemplate(context.Background(), template))
	env.runner.result = &models.ImportResult{}

	w := doJSON(env.router, http.MethodPost, "/api/v1/catalog/imports", models.ImportRequest{
		UploadID:   uuid.New().String(),
		TemplateID: template.ID.String(),
		SupplierID: "sup-1",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"code": "Clave", "precio": "Costo"}, env.runner.got.Mappings)

	w = doJSON(env.router, http.MethodPost, "/api/v1/catalog/imports", models.ImportRequest{
		UploadID:   uuid.New().String(),
		TemplateID: uuid.New().String(),
		SupplierID: "sup-1",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRunImport_ErrorMapping(t *testing.T) {
	partial := &models.ImportResult{LotsCreated: 4, Errors: []models.GroupError{}}

	tests := []struct {
		name   string
		result *models.ImportResult
		err    error
		status int
		code   string
	}{
		{
			name:   "validation",
			err:    &services.ValidationError{Field: "supplierId", Message: "supplier id is required"},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown upload",
			err:    &services.ValidationError{Field: "uploadId", Message: "upload not found", Err: repository.ErrNotFound},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "storage down",
			result: partial,
			err:    &services.FatalError{Stage: "processing groups", Err: repository.ErrUnavailable},
			status: http.StatusServiceUnavailable,
			code:   "STORAGE_UNAVAILABLE",
		},
		{
			name:   "unexpected",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "IMPORT_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupRouter()
			env.runner.result = tt.result
			env.runner.err = tt.err

			w := doJSON(env.router, http.MethodPost, "/api/v1/catalog/imports", models.ImportRequest{UploadID: uuid.New().String()})

			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.result != nil {
				require.NotNil(t, resp.Data)
				assert.Equal(t, 4, resp.Data.LotsCreated)
			}
		})
	}
}

func TestGetImportRun(t *testing.T) {
	env := setupRouter()
	run := &models.ImportRun{ID: uuid.New(), TenantID: testTenant, Status: models.ImportStatusCompleted, LotsCreated: 3}
	env.uploads.runs[run.ID] = run

	w := doJSON(env.router, http.MethodGet, "/api/v1/catalog/imports/"+run.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"COMPLETED"`)

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/imports/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetImportTemplate(t *testing.T) {
	env := setupRouter()

	w := doJSON(env.router, http.MethodGet, "/api/v1/catalog/import/template", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fecha_caducidad"`)

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/import/template?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	assert.Equal(t, "code,fabricante,descripcion,cantidad,precio,fecha_caducidad", lines[0])

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/import/template?format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	sheet, err := DecodeXLSX(bytes.NewReader(w.Body.Bytes()), "", 0)
	require.NoError(t, err, "the downloaded template must decode as an upload")
	assert.Equal(t, "Catalog", sheet.SheetName)
	assert.Len(t, sheet.Headers, 6)
}

// ===========================================
// Mapping templates
// ===========================================

func TestMappingTemplateLifecycle(t *testing.T) {
	env := setupRouter()

	w := doJSON(env.router, http.MethodPost, "/api/v1/catalog/mapping-templates", models.MappingTemplateRequest{
		Name:    "Distribuidora Norte",
		Mapping: map[string]string{"code": "Clave", "precio": "Costo", "cantidad": ""},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data models.MappingTemplate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.Data.ID.String()
	assert.JSONEq(t, `{"code":"Clave","precio":"Costo"}`, string(created.Data.Mapping))

	w = doJSON(env.router, http.MethodPost, "/api/v1/catalog/mapping-templates", models.MappingTemplateRequest{
		Name:    "Distribuidora Norte",
		Mapping: map[string]string{"code": "Clave"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/mapping-templates", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Distribuidora Norte")

	w = doJSON(env.router, http.MethodPut, "/api/v1/catalog/mapping-templates/"+id, models.MappingTemplateRequest{
		Name:    "Norte v2",
		Mapping: map[string]string{"code": "SKU"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(env.router, http.MethodGet, "/api/v1/catalog/mapping-templates/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Norte v2")

	w = doJSON(env.router, http.MethodDelete, "/api/v1/catalog/mapping-templates/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(env.router, http.MethodDelete, "/api/v1/catalog/mapping-templates/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateTemplate_RejectsUnknownField(t *testing.T) {
	env := setupRouter()

	w := doJSON(env.router, http.MethodPost, "/api/v1/catalog/mapping-templates", models.MappingTemplateRequest{
		Name:    "Bad",
		Mapping: map[string]string{"sku": "Clave"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "mapping", resp.Error.Field)
}

// ===========================================
// Health
// ===========================================

func TestHealthEndpoints(t *testing.T) {
	r := gin.New()
	healthy := NewHealthHandler(fakePinger{}, fakeCache{}, nil)
	degraded := NewHealthHandler(fakePinger{}, fakeCache{err: errors.New("connection refused")}, nil)
	down := NewHealthHandler(fakePinger{err: errors.New("connection refused")}, nil, nil)
	r.GET("/health", HealthCheck)
	r.GET("/ready", healthy.ReadinessCheck)
	r.GET("/ready-down", down.ReadinessCheck)
	r.GET("/health/extended", healthy.ExtendedHealthCheck)
	r.GET("/health/degraded", degraded.ExtendedHealthCheck)

	w := doJSON(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catalog-import-service")

	w = doJSON(r, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(r, http.MethodGet, "/ready-down", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(r, http.MethodGet, "/health/extended", nil)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
	assert.NotContains(t, w.Body.String(), "degraded")

	w = doJSON(r, http.MethodGet, "/health/degraded", nil)
	assert.Contains(t, w.Body.String(), `"status":"degraded"`)
}
