package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// UploadConfig limits what an upload may contain
type UploadConfig struct {
	MaxRows     int
	MaxBytes    int64
	CSVEncoding string
	PreviewRows int
}

// UploadHandler decodes spreadsheets and stores their raw rows
type UploadHandler struct {
	store  repository.UploadStore
	cfg    UploadConfig
	logger *logrus.Entry
}

func NewUploadHandler(store repository.UploadStore, cfg UploadConfig, logger *logrus.Logger) *UploadHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = 10
	}
	return &UploadHandler{store: store, cfg: cfg, logger: logger.WithField("component", "upload_handler")}
}

// CreateUpload stores a spreadsheet for later import
// @Summary Upload a catalog spreadsheet
// @Description Decode a CSV or XLSX file and store its rows keyed by the original headers
// @Tags catalog-import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param format formData string false "csv or xlsx, defaults to the file extension"
// @Param sheet formData string false "Worksheet name for XLSX files"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/uploads [post]
func (h *UploadHandler) CreateUpload(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "No file uploaded. Please upload a CSV or XLSX file.")
		return
	}
	if h.cfg.MaxBytes > 0 && fileHeader.Size > h.cfg.MaxBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("File exceeds the maximum size of %d bytes", h.cfg.MaxBytes))
		return
	}

	format := strings.ToLower(strings.TrimSpace(c.PostForm("format")))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	}
	if format != string(models.ImportFormatCSV) && format != string(models.ImportFormatXLSX) {
		respondError(c, http.StatusBadRequest, "INVALID_FORMAT", "Unsupported file format. Use CSV or XLSX.")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "FILE_ERROR", "Failed to open uploaded file")
		return
	}
	defer file.Close()

	var sheet *DecodedSheet
	if format == string(models.ImportFormatCSV) {
		sheet, err = DecodeCSV(file, h.cfg.CSVEncoding, h.cfg.MaxRows)
	} else {
		sheet, err = DecodeXLSX(file, c.PostForm("sheet"), h.cfg.MaxRows)
	}
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errTooManyRows) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(c, status, "PARSE_ERROR", err.Error())
		return
	}

	headers, _ := json.Marshal(sheet.Headers)
	upload := &models.ImportUpload{
		TenantID:  tenantID,
		FileName:  fileHeader.Filename,
		Format:    sheet.Format,
		SheetName: sheet.SheetName,
		Headers:   headers,
		Status:    models.ImportStatusPending,
	}
	if userID := middleware.GetUserID(c); userID != "" {
		upload.UploadedBy = &userID
	}

	if err := h.store.CreateUpload(c.Request.Context(), upload, sheet.Rows); err != nil {
		h.logger.WithFields(logrus.Fields{
			"tenantId": tenantID,
			"fileName": fileHeader.Filename,
		}).WithError(err).Error("Failed to store upload")
		respondStoreError(c, err, "Upload not found")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tenantId": tenantID,
		"uploadId": upload.ID,
		"format":   upload.Format,
		"rows":     upload.RowCount,
	}).Info("Upload stored")

	preview := sheet.Rows
	if len(preview) > h.cfg.PreviewRows {
		preview = preview[:h.cfg.PreviewRows]
	}
	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data: models.UploadSummary{
			Upload:  *upload,
			Headers: sheet.Headers,
			Preview: preview,
		},
	})
}

// GetUpload returns upload metadata with its import runs
// @Summary Get an upload
// @Tags catalog-import
// @Produce json
// @Param id path string true "Upload ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/uploads/{id} [get]
func (h *UploadHandler) GetUpload(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	uploadID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	upload, err := h.store.GetUpload(c.Request.Context(), tenantID, uploadID)
	if err != nil {
		respondStoreError(c, err, "Upload not found")
		return
	}

	var headers []string
	_ = json.Unmarshal(upload.Headers, &headers)

	runs, err := h.store.ListImportRuns(c.Request.Context(), tenantID, uploadID)
	if err != nil {
		h.logger.WithField("uploadId", uploadID).WithError(err).Warn("Failed to list import runs")
		runs = []models.ImportRun{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"upload":  upload,
			"headers": headers,
			"runs":    runs,
		},
	})
}

// GetUploadRows returns the first rows of an upload for mapping preview
// @Summary Preview upload rows
// @Tags catalog-import
// @Produce json
// @Param id path string true "Upload ID"
// @Param limit query int false "Rows to return (default 10, max 100)"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/uploads/{id}/rows [get]
func (h *UploadHandler) GetUploadRows(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	uploadID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.cfg.PreviewRows)))
	if err != nil || limit <= 0 {
		limit = h.cfg.PreviewRows
	}
	if limit > 100 {
		limit = 100
	}

	if _, err := h.store.GetUpload(c.Request.Context(), tenantID, uploadID); err != nil {
		respondStoreError(c, err, "Upload not found")
		return
	}

	rows, err := h.store.PreviewRows(c.Request.Context(), tenantID, uploadID, limit)
	if err != nil {
		respondStoreError(c, err, "Upload not found")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    rows,
	})
}
