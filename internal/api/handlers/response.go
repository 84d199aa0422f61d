package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/zatekoja/facility-import/backend/pkg/errors"
)

// APIResponse is the envelope of every admin endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondWithSuccess(w http.ResponseWriter, message string, data interface{}) {
	respondWithJSON(w, http.StatusOK, APIResponse{Success: true, Message: message, Data: data})
}

func respondWithError(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := APIResponse{Success: false, Message: message}
	if err != nil {
		resp.Error = err.Error()
	}
	respondWithJSON(w, statusCode, resp)
}

// statusForError maps pipeline error types to HTTP status codes
func statusForError(err error) int {
	switch {
	case apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable),
		apperrors.IsType(err, apperrors.ErrorTypeExternal):
		return http.StatusBadGateway
	case apperrors.IsType(err, apperrors.ErrorTypeConfiguration),
		apperrors.IsType(err, apperrors.ErrorTypeInvalidBoundingBox),
		apperrors.IsType(err, apperrors.ErrorTypeValidation):
		return http.StatusBadRequest
	case apperrors.IsType(err, apperrors.ErrorTypeNotFound):
		return http.StatusNotFound
	case apperrors.IsType(err, apperrors.ErrorTypeConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
