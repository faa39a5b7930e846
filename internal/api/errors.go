package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"cropwise-go/internal/logging"
	"cropwise-go/internal/models"
	"cropwise-go/internal/service"
	"cropwise-go/internal/validation"
)

const maxBodyBytes = 1 << 20

var (
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
	errTooLarge   = errors.New("request body too large")
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// writeError maps err to a status code and a JSON error body.
func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := models.ErrorResponse{Error: err.Error(), Code: code}

	var verr *validation.Error
	if errors.As(err, &verr) {
		body.Details = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		logging.Error().Err(err).Int("status", status).Msg("request failed")
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, string) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrNoValidCrops):
		return http.StatusUnprocessableEntity, "no_valid_crops"
	case errors.Is(err, service.ErrNoSequences):
		return http.StatusUnprocessableEntity, "no_sequences"
	case errors.Is(err, service.ErrUnknownSeason),
		errors.Is(err, service.ErrInvalidWeights),
		errors.Is(err, service.ErrInvalidSeasonCount):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownKind), errors.Is(err, errNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrNotTrained):
		return http.StatusServiceUnavailable, "model_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// decodeRequest reads an optional JSON body into v and validates it. An
// empty body leaves v at its zero value.
func decodeRequest(w http.ResponseWriter, r *http.Request, v any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: failed to read body: %v", errBadRequest, err)
	}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w: invalid JSON body: %v", errBadRequest, err)
		}
	}
	return validation.ValidateStruct(v)
}
