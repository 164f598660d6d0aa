package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/erboard/backend/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an error to its status. Internal details are not exposed.
func respondWithAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		respondWithError(w, status, "internal server error")
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		respondWithError(w, status, appErr.Message)
		return
	}
	respondWithError(w, status, err.Error())
}
