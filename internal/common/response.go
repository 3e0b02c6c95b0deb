package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}

// WriteError maps err onto an HTTP status and a stable error code.
func WriteError(w http.ResponseWriter, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	WriteJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized, "AUTHENTICATION_REQUIRED"
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, ErrNotParticipant):
		return http.StatusForbidden, "NOT_PARTICIPANT"
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrUploadFailed):
		return http.StatusBadGateway, "UPLOAD_FAILED"
	default:
		return http.StatusInternalServerError, "BACKEND_FAILURE"
	}
}
