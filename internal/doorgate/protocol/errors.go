package protocol

import "errors"

// Gateway-side failures. Daemon-reported codes are not errors; they arrive
// as a LockResponse with a non-zero Code.
var (
	ErrInvalidTokenFormat = errors.New("token must contain exactly 16 hex characters")
	ErrMissingField       = errors.New("required field missing")

	ErrTransportUnavailable = errors.New("lock daemon unavailable")
	ErrTransportWrite       = errors.New("writing request to lock daemon failed")
	ErrTransportRead        = errors.New("reading response from lock daemon failed")

	ErrMalformedResponse = errors.New("malformed response from lock daemon")

	// ErrRequestEncoding means the request could not be serialized; nothing
	// was sent.
	ErrRequestEncoding = errors.New("encoding lock request failed")
)

// FailureKind labels where a failed interaction went wrong.
type FailureKind string

const (
	KindNone                 FailureKind = ""
	KindInvalidTokenFormat   FailureKind = "invalid_token_format"
	KindMissingField         FailureKind = "missing_field"
	KindTransportUnavailable FailureKind = "transport_unavailable"
	KindTransportWrite       FailureKind = "transport_write"
	KindTransportRead        FailureKind = "transport_read"
	KindMalformedResponse    FailureKind = "malformed_response"
	KindRequestEncoding      FailureKind = "request_encoding"
	KindDaemon               FailureKind = "daemon"
)

// Gateway reports whether the kind describes a failure detected by the
// gateway itself rather than a verdict from the daemon.
func (k FailureKind) Gateway() bool {
	return k != KindNone && k != KindDaemon
}

// KindOf maps err to its FailureKind. Errors wrapping none of the sentinels
// are reported as transport read failures.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidTokenFormat):
		return KindInvalidTokenFormat
	case errors.Is(err, ErrMissingField):
		return KindMissingField
	case errors.Is(err, ErrTransportUnavailable):
		return KindTransportUnavailable
	case errors.Is(err, ErrTransportWrite):
		return KindTransportWrite
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformedResponse
	case errors.Is(err, ErrRequestEncoding):
		return KindRequestEncoding
	default:
		return KindTransportRead
	}
}
