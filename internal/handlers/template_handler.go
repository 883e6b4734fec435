package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/repository"
)

// TemplateHandler manages saved column mappings
type TemplateHandler struct {
	store  repository.MappingTemplateStore
	logger *logrus.Entry
}

func NewTemplateHandler(store repository.MappingTemplateStore, logger *logrus.Logger) *TemplateHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TemplateHandler{store: store, logger: logger.WithField("component", "template_handler")}
}

// ListTemplates returns the tenant's mapping templates
// @Summary List mapping templates
// @Tags mapping-templates
// @Produce json
// @Param supplierId query string false "Only templates of this supplier"
// @Success 200 {object} models.SuccessResponse
// @Security BearerAuth
// @Router /catalog/mapping-templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	templates, err := h.store.ListTemplates(c.Request.Context(), tenantID, c.Query("supplierId"))
	if err != nil {
		respondStoreError(c, err, "Mapping template not found")
		return
	}
	if templates == nil {
		templates = []models.MappingTemplate{}
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    templates,
	})
}

// GetTemplate returns one mapping template
// @Summary Get a mapping template
// @Tags mapping-templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/mapping-templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	template, err := h.store.GetTemplate(c.Request.Context(), tenantID, id)
	if err != nil {
		respondStoreError(c, err, "Mapping template not found")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    template,
	})
}

// CreateTemplate saves a new mapping template
// @Summary Create a mapping template
// @Tags mapping-templates
// @Accept json
// @Produce json
// @Param request body models.MappingTemplateRequest true "Template"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/mapping-templates [post]
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)

	template, ok := h.bindTemplate(c)
	if !ok {
		return
	}
	template.TenantID = tenantID
	if userID := middleware.GetUserID(c); userID != "" {
		template.CreatedBy = &userID
	}

	if err := h.store.CreateTemplate(c.Request.Context(), template); err != nil {
		respondStoreError(c, err, "Mapping template not found")
		return
	}

	h.logger.WithFields(logrus.Fields{
		"tenantId":   tenantID,
		"templateId": template.ID,
	}).Info("Mapping template created")

	c.JSON(http.StatusCreated, models.SuccessResponse{
		Success: true,
		Data:    template,
	})
}

// UpdateTemplate replaces a mapping template
// @Summary Update a mapping template
// @Tags mapping-templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param request body models.MappingTemplateRequest true "Template"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/mapping-templates/{id} [put]
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	template, ok := h.bindTemplate(c)
	if !ok {
		return
	}
	template.ID = id
	template.TenantID = tenantID

	if err := h.store.UpdateTemplate(c.Request.Context(), template); err != nil {
		respondStoreError(c, err, "Mapping template not found")
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    template,
	})
}

// DeleteTemplate removes a mapping template
// @Summary Delete a mapping template
// @Tags mapping-templates
// @Param id path string true "Template ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /catalog/mapping-templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	tenantID := middleware.GetTenantID(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.store.DeleteTemplate(c.Request.Context(), tenantID, id); err != nil {
		respondStoreError(c, err, "Mapping template not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// bindTemplate decodes the request body and checks the mapping against the
// target fields so a saved template can always be used for an import
func (h *TemplateHandler) bindTemplate(c *gin.Context) (*models.MappingTemplate, bool) {
	var req models.MappingTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return nil, false
	}

	mapping, err := importer.ParseColumnMapping(req.Mapping)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "VALIDATION_ERROR",
				Message: err.Error(),
				Field:   "mapping",
			},
		})
		return nil, false
	}

	raw, err := json.Marshal(mapping)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return nil, false
	}

	return &models.MappingTemplate{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		SupplierID:  req.SupplierID,
		Mapping:     raw,
	}, true
}
