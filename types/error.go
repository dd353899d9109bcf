package types

import "fmt"

// ErrorCode classifies protocol failures. The code decides whether an
// operation can be retried or the whole session must be torn down.
type ErrorCode string

const (
	// ProtocolError covers malformed or out-of-order messages.
	ProtocolError ErrorCode = "PROTOCOL_ERROR"
	// NetworkError covers channel failures.
	NetworkError ErrorCode = "NETWORK_ERROR"
	// CryptoError covers arithmetic or field-range violations.
	CryptoError ErrorCode = "CRYPTO_ERROR"
	// InvalidShare means a MAC check failed. It is evidence of an
	// actively malicious party and always aborts the session.
	InvalidShare ErrorCode = "INVALID_SHARE"
	// Timeout covers handshake, preprocessing refill and fan-in
	// barrier expiry.
	Timeout ErrorCode = "TIMEOUT"
	// PartyFailure means a party went silent past the heartbeat bound.
	PartyFailure ErrorCode = "PARTY_FAILURE"
)

// MPCError carries an error code across component boundaries. It wraps
// an optional cause so call sites can keep using errors.Is/As.
type MPCError struct {
	Code   ErrorCode
	Reason string
	Cause  error
}

// NewError creates an MPCError with the given code and reason.
func NewError(code ErrorCode, format string, args ...interface{}) *MPCError {
	return &MPCError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// WrapError creates an MPCError wrapping a cause.
func WrapError(code ErrorCode, cause error, format string, args ...interface{}) *MPCError {
	return &MPCError{Code: code, Reason: fmt.Sprintf(format, args...), Cause: cause}
}

// Error implements error.
func (e *MPCError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// Unwrap supports errors.Is/As chains.
func (e *MPCError) Unwrap() error {
	return e.Cause
}

// Is matches two MPCErrors on their code so that
// errors.Is(err, types.NewError(types.Timeout, "")) works.
func (e *MPCError) Is(target error) bool {
	t, ok := target.(*MPCError)
	return ok && t.Code == e.Code
}

// CodeOf extracts the error code from err, or ProtocolError if err does
// not carry one.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*MPCError); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ProtocolError
		}
		err = u.Unwrap()
	}
	return ProtocolError
}
