package interfaces

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	billing "academy-cloud/internal/billing/domain"
)

const internalErrorMessage = "internal error"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps a billing error kind to an HTTP status.
func statusFor(err error) int {
	switch billing.KindOf(err) {
	case billing.KindNone:
		return http.StatusOK
	case billing.KindForbidden:
		return http.StatusForbidden
	case billing.KindNotFound:
		return http.StatusNotFound
	case billing.KindInvalidArgument:
		return http.StatusBadRequest
	case billing.KindConflictRetryable:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as JSON. Internal errors are logged and answered
// with a fixed message.
func writeError(w http.ResponseWriter, logger logrus.FieldLogger, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: string(billing.KindOf(err)), Message: err.Error()}
	if status == http.StatusInternalServerError {
		body.Message = internalErrorMessage
		logger.WithFields(logrus.Fields{
			"evt":    "http_internal_error",
			"method": r.Method,
			"path":   r.URL.Path,
		}).WithError(err).Error("request failed")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
