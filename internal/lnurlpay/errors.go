package lnurlpay

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bitshock-src/switchgear/internal/api"
)

// ServiceError is the LNURL-pay boundary's error type: an HTTP status plus
// a human message. writeError sends the message as the reason on 4xx
// responses and replaces it with a generic one on 5xx responses.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func newNotFound(message string) *ServiceError {
	return &ServiceError{Status: http.StatusNotFound, Message: message}
}

func newBadRequest(message string) *ServiceError {
	return &ServiceError{Status: http.StatusBadRequest, Message: message}
}

func newInternal(err error) *ServiceError {
	log.Errorf("lnurlpay: internal error: %v", err)
	return &ServiceError{Status: http.StatusInternalServerError, Message: err.Error()}
}

// fromServiceError classifies a collaborator error carrying
// api.HasServiceErrorSource (a pool/balancer/store error) into the matching
// HTTP status, falling back to 500 for anything that doesn't tag itself.
func fromServiceError(err error) *ServiceError {
	var withSource api.HasServiceErrorSource
	if errors.As(err, &withSource) {
		return &ServiceError{
			Status:  withSource.ServiceErrorSource().ToHTTPStatus(),
			Message: err.Error(),
		}
	}
	return newInternal(err)
}

// errorEnvelope is the `{"status":"ERROR","reason":"..."}` wire shape.
type errorEnvelope struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// writeError renders a ServiceError as the LNURL-pay error envelope,
// replacing the message with a generic one on 5xx to avoid leaking
// internal detail.
func writeError(w http.ResponseWriter, err *ServiceError) {
	reason := err.Message
	if err.Status >= 500 {
		reason = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Status: "ERROR", Reason: reason})
}
