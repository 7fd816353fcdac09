package dto

import "net/http"

// API error codes. These form the wire contract: every error payload
// carries exactly one of them, prefixed ERR_.
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	// ErrCodeValidation covers binding failures and any domain rejection
	// of a field value (cadence, config, SKU, price, quantity).
	ErrCodeValidation = "ERR_VALIDATION"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is a create colliding with an existing row;
	// ErrCodeConflict covers the rest, notably double-claimed actions.
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	// ErrCodeInvalidState is an operation the resource's lifecycle does
	// not allow, such as approving an action that is not pending.
	ErrCodeInvalidState      = "ERR_INVALID_STATE"
	ErrCodeInsufficientStock = "ERR_INSUFFICIENT_STOCK"

	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps each API error code to its HTTP status.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeInsufficientStock: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus resolves an API error code to its HTTP status, falling
// back to 500 for codes outside the registry.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping translates the codes domain errors carry into
// the ERR_ wire codes. Domain packages stay free of HTTP concerns; this
// table is the single place the two vocabularies meet.
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"UNAUTHORIZED":         ErrCodeUnauthorized,
	"FORBIDDEN":            ErrCodeForbidden,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"INSUFFICIENT_STOCK":   ErrCodeInsufficientStock,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,

	// agent engine
	"AGENT_NOT_FOUND":        ErrCodeNotFound,
	"ACTION_TYPE_NOT_FOUND":  ErrCodeNotFound,
	"ACTION_NOT_PENDING":     ErrCodeInvalidState,
	"ACTION_ALREADY_CLAIMED": ErrCodeConflict,
	"APPROVAL_REQUIRED":      ErrCodeInvalidState,
	"RUN_NOT_RUNNING":        ErrCodeInvalidState,
	"AGENT_CONFIG_INVALID":   ErrCodeValidation,
	"INVALID_CADENCE":        ErrCodeValidation,

	// catalog field rejections
	"INVALID_SKU":      ErrCodeValidation,
	"INVALID_NAME":     ErrCodeValidation,
	"INVALID_PRICE":    ErrCodeValidation,
	"INVALID_QUANTITY": ErrCodeValidation,
}

// NormalizeErrorCode translates a domain error code to its wire code.
// Codes already in ERR_ form, and unknown codes, pass through unchanged.
func NormalizeErrorCode(code string) string {
	if wire, ok := LegacyErrorCodeMapping[code]; ok {
		return wire
	}
	return code
}
