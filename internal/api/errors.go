package api

import "net/http"

// ServiceErrorSource classifies an error by who is at fault, and maps
// directly onto the HTTP status returned at the LNURL-pay boundary.
type ServiceErrorSource int

const (
	// ErrorSourceUpstream marks a fault in a backend node or another
	// service this gateway depends on: 502.
	ErrorSourceUpstream ServiceErrorSource = iota

	// ErrorSourceDownstream marks a fault in the caller's request: 400.
	ErrorSourceDownstream

	// ErrorSourceInternal marks a bug or invariant violation in this
	// service: 500.
	ErrorSourceInternal

	// ErrorSourceNotFound is the one kind that does not follow the
	// three-way mapping: 404.
	ErrorSourceNotFound
)

// ToHTTPStatus maps a ServiceErrorSource onto its HTTP status code.
func (s ServiceErrorSource) ToHTTPStatus() int {
	switch s {
	case ErrorSourceUpstream:
		return http.StatusBadGateway
	case ErrorSourceDownstream:
		return http.StatusBadRequest
	case ErrorSourceNotFound:
		return http.StatusNotFound
	case ErrorSourceInternal:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// HasServiceErrorSource is implemented by every error type produced inside
// the core, letting callers at a service boundary map any error to an HTTP
// status without type-switching on concrete error types.
type HasServiceErrorSource interface {
	error
	ServiceErrorSource() ServiceErrorSource
}
