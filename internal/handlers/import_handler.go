package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
	"catalog-import-service/internal/services"
)

// ImportRunner runs the import pipeline
type ImportRunner interface {
	RunImport(ctx context.Context, in services.RunImportInput) (*models.ImportResult, error)
}

// ImportHandler exposes import runs and the downloadable template
type ImportHandler struct {
	runner    ImportRunner
	uploads   repository.UploadStore
	templates repository.MappingTemplateStore
	logger    *logrus.Entry
}

func NewImportHandler(runner ImportRunner, uploads repository.UploadStore, templates repository.MappingTemplateStore, logger *logrus.Logger) *ImportHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ImportHandler{
		runner:    runner,
		uploads:   uploads,
		templates: templates,
		logger:    logger.WithField("component", "import_handler"),
	}
}

// RunImport imports every row of a stored upload
// @Summary Run a catalog import
// @Description Apply a column mapping to an upload, consolidate duplicate lots and create one inventory lot per group
// @Tags catalog-import
// @Accept json
// @Produce json
// @Param request body models.ImportRequest true "Import request; mappings or templateId"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/imports [post]
func (h *ImportHandler) RunImport(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	var req models.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	mappings := req.Mappings
	if len(mappings) == 0 && req.TemplateID != "" {
		resolved, ok := h.templateMapping(c, tenantID, req.TemplateID)
		if !ok {
			return
		}
		mappings = resolved
	}

	result, err := h.runner.RunImport(c.Request.Context(), services.RunImportInput{
		TenantID:      tenantID,
		UserID:        middleware.GetUserID(c),
		UploadID:      req.UploadID,
		Mappings:      mappings,
		SupplierID:    req.SupplierID,
		SupplierName:  req.SupplierName,
		SalesCategory: req.SalesCategory,
	})
	if err != nil {
		h.respondRunError(c, result, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    result,
	})
}

func (h *ImportHandler) templateMapping(c *gin.Context, tenantID, rawID string) (map[string]string, bool) {
	templateID, err := uuid.Parse(rawID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid templateId format")
		return nil, false
	}
	template, err := h.templates.GetTemplate(c.Request.Context(), tenantID, templateID)
	if err != nil {
		respondStoreError(c, err, "Mapping template not found")
		return nil, false
	}

	mapping := map[string]string{}
	if err := json.Unmarshal(template.Mapping, &mapping); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "INVALID_TEMPLATE", "Mapping template is corrupt")
		return nil, false
	}
	return mapping, true
}

func (h *ImportHandler) respondRunError(c *gin.Context, result *models.ImportResult, err error) {
	var validationErr *services.ValidationError
	var fatalErr *services.FatalError

	switch {
	case errors.As(err, &validationErr):
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "NOT_FOUND", "Upload not found")
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: validationErr.Message,
				Field:   validationErr.Field,
			},
		})
	case errors.As(err, &fatalErr):
		h.logger.WithFields(logrus.Fields{
			"stage":      fatalErr.Stage,
			"sourceRows": fatalErr.SourceRows,
		}).WithError(err).Error("Catalog import aborted")
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "STORAGE_UNAVAILABLE",
				Message: fatalErr.Error(),
			},
			Data: result,
		})
	default:
		h.logger.WithError(err).Error("Catalog import failed")
		respondError(c, http.StatusInternalServerError, "IMPORT_FAILED", err.Error())
	}
}

// GetImportRun returns a persisted run
// @Summary Get an import run
// @Tags catalog-import
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/imports/{id} [get]
func (h *ImportHandler) GetImportRun(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	runID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	run, err := h.uploads.GetImportRun(c.Request.Context(), tenantID, runID)
	if err != nil {
		respondStoreError(c, err, "Import run not found")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    run,
	})
}

// GetImportTemplate returns the import template definition or file
// @Summary Download the catalog import template
// @Tags catalog-import
// @Produce json
// @Param format query string false "json, csv or xlsx"
// @Success 200 {object} models.ImportTemplate
// @Router /catalog/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.CatalogImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	examples := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
		examples[i] = col.Example
	}
	writer.Write(headers)
	writer.Write(examples)
}

func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := preferredSheet
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col.Name)
		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		example, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, example, col.Example)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 24)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Catalog Import Instructions")
	f.SetCellValue("Instructions", "A3", "Rows with the same code, price and expiry date are merged into one lot; quantities are added.")
	f.SetCellValue("Instructions", "A4", "Rows without a code get a generated product SKU.")
	f.SetCellValue("Instructions", "A5", "Unreadable prices import as 0 and unreadable dates as no expiry.")
	f.SetCellValue("Instructions", "A7", "COLUMNS:")
	for i, col := range template.Columns {
		row := strconv.Itoa(i + 8)
		f.SetCellValue("Instructions", "A"+row, col.Name)
		f.SetCellValue("Instructions", "B"+row, col.Description)
		f.SetCellValue("Instructions", "C"+row, "e.g. "+col.Example)
	}
	f.SetColWidth("Instructions", "A", "A", 20)
	f.SetColWidth("Instructions", "B", "B", 60)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=catalog_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to write XLSX template")
		c.Status(http.StatusInternalServerError)
	}
}
