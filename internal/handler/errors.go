package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/GTDGit/passport_api/internal/service"
	"github.com/GTDGit/passport_api/internal/utils"
)

// respondError maps service errors onto the response envelope.
func respondError(c *gin.Context, err error) {
	var (
		validationErr  *service.ValidationError
		parseErr       *service.ExtractionParseError
		transportErr   *service.ExtractionTransportError
		persistenceErr *service.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		utils.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message)
	case errors.Is(err, service.ErrRecordNotFound):
		utils.Error(c, http.StatusNotFound, "NOT_FOUND", "Record not found")
	case errors.Is(err, service.ErrUnknownTemplate):
		utils.Error(c, http.StatusNotFound, "TEMPLATE_NOT_FOUND", "Template not found")
	case errors.As(err, &parseErr):
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Extraction answer could not be parsed")
		utils.ErrorWithRaw(c, http.StatusBadGateway, "EXTRACTION_PARSE_ERROR", "Failed to parse JSON from model response", parseErr.Raw)
	case errors.As(err, &transportErr):
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Extraction request failed")
		utils.Error(c, http.StatusBadGateway, "EXTRACTION_FAILED", "Document extraction service unavailable")
	case errors.As(err, &persistenceErr):
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Str("op", persistenceErr.Op).Msg("Storage operation failed")
		utils.Error(c, http.StatusInternalServerError, "PERSISTENCE_ERROR", "Failed to store record")
	default:
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Unhandled error")
		utils.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
