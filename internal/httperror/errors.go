package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/duolog/duolog-server/internal/llm"
)

// ErrorCode is an API error code.
type ErrorCode string

const (
	// ErrorCodeInternal is the internal error code.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeValidation is the validation error code.
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrorCodeUnauthorized is the authentication error code.
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeHTTPRateLimit is the request-rate limit code.
	ErrorCodeHTTPRateLimit ErrorCode = "HTTP_RATE_LIMIT"
	// ErrorCodeQuotaExceeded is the conversation-quota exhausted code.
	ErrorCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	// ErrorCodeVerificationRequired is the unverified-identity code.
	ErrorCodeVerificationRequired ErrorCode = "VERIFICATION_REQUIRED"
	// ErrorCodeLLM is the provider error code.
	ErrorCodeLLM ErrorCode = "LLM_ERROR"
	// ErrorCodeLLMTimeout is the provider timeout code.
	ErrorCodeLLMTimeout ErrorCode = "LLM_TIMEOUT"
	// ErrorCodeInvalidInput is the input error code.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeMissingField is the missing-field code.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
)

// ErrorResponse is the API error response body.
type ErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	Error     string         `json:"error"`
	RequestID *string        `json:"request_id"`
	Details   map[string]any `json:"details"`
}

// Error is the internal standard error type.
type Error struct {
	Code    ErrorCode
	Status  int
	Type    string
	Message string
	Details map[string]any
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// Response converts an error into an HTTP status and response body.
func Response(err error, requestID string) (int, ErrorResponse) {
	apiErr := FromError(err)
	if apiErr == nil {
		apiErr = NewInternalError("unknown error")
	}

	var requestIDPtr *string
	if requestID != "" {
		requestIDPtr = &requestID
	}

	return apiErr.Status, ErrorResponse{
		ErrorCode: string(apiErr.Code),
		ErrorType: apiErr.Type,
		Message:   apiErr.Message,
		Error:     apiErr.Message,
		RequestID: requestIDPtr,
		Details:   apiErr.Details,
	}
}

// FromError converts any error into the internal error type.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, llm.ErrMissingAPIKey) {
		return NewLLMError("No provider API key configured", http.StatusServiceUnavailable)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewLLMTimeoutError("Model request timed out")
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(err)
	}

	return NewInternalError(err.Error())
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *Error {
	return &Error{
		Code:    ErrorCodeInternal,
		Status:  http.StatusInternalServerError,
		Type:    "InternalError",
		Message: message,
		Details: nil,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(err error) *Error {
	return &Error{
		Code:    ErrorCodeValidation,
		Status:  http.StatusUnprocessableEntity,
		Type:    "ValidationError",
		Message: "Input validation failed",
		Details: validationDetails(err),
	}
}

// NewMissingField creates a missing-field error.
func NewMissingField(field string) *Error {
	return &Error{
		Code:    ErrorCodeMissingField,
		Status:  http.StatusBadRequest,
		Type:    "MissingFieldError",
		Message: fmt.Sprintf("Field '%s' required", field),
		Details: map[string]any{"field": field},
	}
}

// NewInvalidInput creates an input error.
func NewInvalidInput(message string) *Error {
	return &Error{
		Code:    ErrorCodeInvalidInput,
		Status:  http.StatusBadRequest,
		Type:    "InvalidInputError",
		Message: message,
		Details: nil,
	}
}

// NewUnauthorized creates an authentication error.
func NewUnauthorized(details map[string]any) *Error {
	return &Error{
		Code:    ErrorCodeUnauthorized,
		Status:  http.StatusUnauthorized,
		Type:    "UnauthorizedError",
		Message: "Invalid API key",
		Details: details,
	}
}

// NewRateLimitExceeded creates a request-rate limit error.
// remaining and resetTime land in the response body so the client can
// render a retry timer.
func NewRateLimitExceeded(remaining int, resetTime int64, details map[string]any) *Error {
	if details == nil {
		details = map[string]any{}
	}
	details["remaining"] = remaining
	details["reset_time"] = resetTime
	return &Error{
		Code:    ErrorCodeHTTPRateLimit,
		Status:  http.StatusTooManyRequests,
		Type:    "HTTPRateLimitExceededError",
		Message: "Rate limit exceeded",
		Details: details,
	}
}

// NewQuotaExceeded creates a conversation-quota exhausted error.
// The body carries upgrade_required so the client renders the upgrade
// branch instead of a generic failure.
func NewQuotaExceeded(used int, limit int) *Error {
	return &Error{
		Code:    ErrorCodeQuotaExceeded,
		Status:  http.StatusPaymentRequired,
		Type:    "QuotaExceededError",
		Message: fmt.Sprintf("Conversation limit reached (%d/%d)", used, limit),
		Details: map[string]any{
			"upgrade_required": true,
			"used":             used,
			"limit":            limit,
		},
	}
}

// NewVerificationRequired creates an unverified-identity error.
func NewVerificationRequired() *Error {
	return &Error{
		Code:    ErrorCodeVerificationRequired,
		Status:  http.StatusForbidden,
		Type:    "VerificationRequiredError",
		Message: "Email verification required",
		Details: map[string]any{"verification_required": true},
	}
}

// NewLLMTimeoutError creates a provider timeout error.
func NewLLMTimeoutError(message string) *Error {
	return &Error{
		Code:    ErrorCodeLLMTimeout,
		Status:  http.StatusGatewayTimeout,
		Type:    "LLMTimeoutError",
		Message: message,
		Details: nil,
	}
}

// NewLLMError creates a provider error.
func NewLLMError(message string, status int) *Error {
	return &Error{
		Code:    ErrorCodeLLM,
		Status:  status,
		Type:    "LLMError",
		Message: message,
		Details: nil,
	}
}

// FieldError holds per-field validation details.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

func validationDetails(err error) map[string]any {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]FieldError, 0, len(validationErrors))
		for _, validationErr := range validationErrors {
			fields = append(fields, FieldError{
				Field:   validationErr.Field(),
				Message: validationErr.Error(),
				Value:   validationErr.Value(),
			})
		}
		return map[string]any{"errors": fields}
	}

	return map[string]any{
		"errors": []FieldError{
			{
				Field:   "body",
				Message: err.Error(),
				Value:   nil,
			},
		},
	}
}
