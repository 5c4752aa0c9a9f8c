package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/passport_api/internal/document"
	"github.com/GTDGit/passport_api/internal/models"
	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/utils"
)

// PassportHandler handles upload and record endpoints.
type PassportHandler struct {
	passportService *service.PassportService
	maxUpload       int64
}

// NewPassportHandler creates a new PassportHandler.
func NewPassportHandler(passportService *service.PassportService, maxUpload int64) *PassportHandler {
	return &PassportHandler{passportService: passportService, maxUpload: maxUpload}
}

// Process handles POST /api/process
func (h *PassportHandler) Process(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", document.ErrNoFile.Error())
		return
	}
	defer file.Close()

	// One byte past the limit is enough for the size check to reject it.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Failed to read uploaded file")
		return
	}

	result, err := h.passportService.ProcessPassport(c.Request.Context(), header.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}

	message := "Passport processed"
	if result.Duplicate {
		message = "File already processed"
	}
	utils.Success(c, http.StatusOK, message, result)
}

// List handles GET /api/passports
func (h *PassportHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	result, err := h.passportService.ListPassports(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]models.PassportSummary, 0, len(result.Items))
	for _, rec := range result.Items {
		items = append(items, rec.Summary())
	}
	utils.SuccessWithPagination(c, http.StatusOK, "Records retrieved", items, result.Page, result.Limit, result.Total, result.Pages)
}

// Get handles GET /api/passports/:id
func (h *PassportHandler) Get(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	detail, err := h.passportService.GetPassport(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Record retrieved", detail)
}

// Update handles PUT /api/passports/:id
func (h *PassportHandler) Update(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}

	var req struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if string(req.Data) == "null" {
		req.Data = nil
	}

	data, err := h.passportService.UpdatePassport(c.Request.Context(), id, req.Data)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Record updated", gin.H{
		"record_id": id,
		"data":      data,
	})
}

// Delete handles DELETE /api/passports/:id
func (h *PassportHandler) Delete(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	if err := h.passportService.DeletePassport(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Record deleted", gin.H{"record_id": id})
}

// Translation handles GET /api/passports/:id/translation
func (h *PassportHandler) Translation(c *gin.Context) {
	id, ok := recordID(c)
	if !ok {
		return
	}
	data, translated, err := h.passportService.TranslatedSnapshot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, http.StatusOK, "Report data retrieved", gin.H{
		"record_id":  id,
		"translated": translated,
		"data":       data,
	})
}

func recordID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "ID must be a positive integer")
		return 0, false
	}
	return id, true
}
