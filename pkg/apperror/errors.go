package apperror

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind groups error codes into the categories callers branch on.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindSignature   Kind = "signature"
	KindValidation  Kind = "validation"
	KindState       Kind = "state"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
	KindRateLimit   Kind = "rate_limit"
	KindInternal    Kind = "internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Kind       Kind   `json:"-"`
	// Reason is kept for logs only. Signature failures share one outward
	// message so callers cannot tell which check failed.
	Reason string `json:"-"`
	Err    error  `json:"-"`
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Kind:       kind,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Kind:       kind,
		Err:        err,
	}
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// Is reports whether err carries an AppError with the given code.
func Is(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// ReasonOf returns the internal reason attached to err, if any.
func ReasonOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// ---- Signature (SEC) ----

// ErrSignatureRejected covers unknown keys, bad signatures, and stale or
// replayed timestamps alike.
func ErrSignatureRejected(reason string) *AppError {
	e := New(KindSignature, "SEC_001", "Authentication failed", http.StatusUnauthorized)
	e.Reason = reason
	return e
}

// ---- Session authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(KindAuth, "AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New(KindConflict, "AUTH_002", "Email already registered", http.StatusConflict)
}

// ErrUnauthorized is the single outward error for expired, tampered, or
// revoked session tokens.
func ErrUnauthorized() *AppError {
	return New(KindAuth, "AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrMerchantInactive() *AppError {
	return New(KindAuth, "AUTH_004", "Merchant account is inactive", http.StatusForbidden)
}

// ---- Validation (VAL) ----

func Validation(message string) *AppError {
	return New(KindValidation, "VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "VAL_002", "Invalid amount", http.StatusBadRequest)
}

func ErrUTRMismatch() *AppError {
	return New(KindValidation, "VAL_003", "UTR number does not match the submitted proof", http.StatusBadRequest)
}

func ErrRefundExceedsAmount() *AppError {
	return New(KindValidation, "VAL_004", "Refund amount exceeds payment amount", http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New(KindValidation, "VAL_005", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Payment state (STATE) ----

func ErrIllegalTransition(from, to string) *AppError {
	return New(KindState, "STATE_001",
		fmt.Sprintf("Payment cannot move from %s to %s", from, to), http.StatusUnprocessableEntity)
}

func ErrAlreadyVerified() *AppError {
	return New(KindState, "STATE_002", "Payment already verified", http.StatusConflict)
}

func ErrRefundNotAllowed() *AppError {
	return New(KindState, "STATE_003", "Only successful payments can be refunded", http.StatusUnprocessableEntity)
}

func ErrUTRNotAccepted(method string) *AppError {
	return New(KindState, "STATE_004",
		fmt.Sprintf("Payment method %s does not take a UTR", method), http.StatusUnprocessableEntity)
}

// ---- Lookup (NF) ----

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, "NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrMerchantNotFound() *AppError {
	return New(KindNotFound, "NF_002", "Merchant not found", http.StatusNotFound)
}

// ---- Concurrency and uniqueness (CONFLICT) ----

func ErrConflict(message string) *AppError {
	return New(KindConflict, "CONFLICT_001", message, http.StatusConflict)
}

func ErrDuplicateReference() *AppError {
	return New(KindConflict, "CONFLICT_002", "Duplicate payment reference", http.StatusConflict)
}

func ErrUTRInUse() *AppError {
	return New(KindConflict, "CONFLICT_003", "UTR number already submitted for another payment", http.StatusConflict)
}

func ErrUTRAlreadySubmitted() *AppError {
	return New(KindConflict, "CONFLICT_004", "A different UTR is already under review", http.StatusConflict)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimit, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Unavailable marks a storage or transport failure the caller may retry.
func Unavailable(err error) *AppError {
	return Wrap(KindUnavailable, "SYS_002", "Service temporarily unavailable", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(KindInternal, "SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// Storage classifies a raw storage error. Timeouts and network failures
// become Unavailable; AppErrors pass through; anything else is internal.
func Storage(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return Unavailable(err)
	}
	return InternalError(err)
}
