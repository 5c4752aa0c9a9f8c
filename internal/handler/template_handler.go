package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/utils"
)

// TemplateHandler handles template listing and filling.
type TemplateHandler struct {
	templateService *service.TemplateService
	passportService *service.PassportService
}

// NewTemplateHandler creates a new TemplateHandler.
func NewTemplateHandler(templateService *service.TemplateService, passportService *service.PassportService) *TemplateHandler {
	return &TemplateHandler{templateService: templateService, passportService: passportService}
}

// List handles GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	utils.Success(c, http.StatusOK, "Templates retrieved", h.templateService.ListTemplates())
}

// Fill handles POST /api/templates/:id/fill
func (h *TemplateHandler) Fill(c *gin.Context) {
	var req service.FillRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}

	filled, err := h.passportService.FillTemplate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Template filled", filled)
}
