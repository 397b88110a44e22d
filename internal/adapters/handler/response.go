package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/finbridge/ledger-rest/internal/core/domain"
)

// respondSuccess writes the success envelope with payload fields merged
// at the top level.
func respondSuccess(w http.ResponseWriter, status int, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	body := map[string]interface{}{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	code := domain.ErrCodeInternal
	message := err.Error()
	status := http.StatusInternalServerError

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		code = domainErr.Code
		message = domainErr.Message

		switch domainErr.Code {
		case domain.ErrCodeInvalidInput:
			status = http.StatusBadRequest
		case domain.ErrCodeServiceUnavailable:
			status = http.StatusServiceUnavailable
		case domain.ErrCodeLocalRejection:
			status = http.StatusUnprocessableEntity
		case domain.ErrCodeUnconfirmed:
			// The submission may still apply; 502 tells the caller the
			// outcome is unknown, not refused.
			status = http.StatusBadGateway
		case domain.ErrCodeNotFound:
			status = http.StatusNotFound
		case domain.ErrCodeInvalidTransition:
			status = http.StatusConflict
		default:
			status = http.StatusInternalServerError
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   code,
		"message": message,
	})
}
