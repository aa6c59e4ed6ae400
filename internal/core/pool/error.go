package pool

import (
	"fmt"

	"github.com/bitshock-src/switchgear/internal/api"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorSourceKind enumerates the kinds of failure a Backend Client or
// Client Pool operation can report.
type ErrorSourceKind int

const (
	ErrorKindInvalidConfiguration ErrorSourceKind = iota
	ErrorKindInvalidCredentials
	ErrorKindTransport
	ErrorKindRPC
	ErrorKindTimeout
	ErrorKindInvalidURI
	ErrorKindUnknownKey
	ErrorKindUnsupportedImplementation
)

func (k ErrorSourceKind) String() string {
	switch k {
	case ErrorKindInvalidConfiguration:
		return "invalid configuration"
	case ErrorKindInvalidCredentials:
		return "invalid credentials"
	case ErrorKindTransport:
		return "transport error"
	case ErrorKindRPC:
		return "rpc error"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindInvalidURI:
		return "invalid uri"
	case ErrorKindUnknownKey:
		return "unknown key"
	case ErrorKindUnsupportedImplementation:
		return "unsupported implementation"
	default:
		return "unknown"
	}
}

// Error is the error type returned by Client and ClientPool operations. It
// carries enough context to classify the failure for retry decisions at the
// Balancer and for HTTP status mapping at the LNURL-pay boundary.
type Error struct {
	Kind    ErrorSourceKind
	Context string
	Source  api.ServiceErrorSource
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ServiceErrorSource implements api.HasServiceErrorSource.
func (e *Error) ServiceErrorSource() api.ServiceErrorSource {
	return e.Source
}

// NewError builds a pool Error tagged Upstream, the default for anything
// that is the node's fault rather than the caller's.
func NewError(kind ErrorSourceKind, context string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Context: context,
		Source:  api.ErrorSourceUpstream,
		Cause:   cause,
	}
}

// NewDownstreamError builds a pool Error tagged Downstream: the caller's
// request was malformed, so the Balancer must not retry it.
func NewDownstreamError(kind ErrorSourceKind, context string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Context: context,
		Source:  api.ErrorSourceDownstream,
		Cause:   cause,
	}
}

// FromGrpcError classifies a gRPC error returned by an LND (or other gRPC
// transport) call into a pool Error. InvalidArgument, OutOfRange and
// AlreadyExists are caller mistakes (Downstream, no retry); everything else,
// including transport failures that never reach the server, is Upstream.
func FromGrpcError(context string, err error) *Error {
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok {
		return NewError(ErrorKindTransport, context, err)
	}

	switch st.Code() {
	case codes.InvalidArgument, codes.OutOfRange, codes.AlreadyExists:
		return NewDownstreamError(ErrorKindRPC, context, err)
	case codes.DeadlineExceeded:
		return NewError(ErrorKindTimeout, context, err)
	default:
		return NewError(ErrorKindRPC, context, err)
	}
}
