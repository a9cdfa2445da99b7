package ore

import (
	"errors"
	"fmt"
)

// AppError represents an application-level error with a stable code
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	ErrCodeInvokeInProgress = "invoke_in_progress"
	ErrCodeInvokeCompleted  = "invoke_completed"
	ErrCodeInvokeClosed     = "invoke_closed"
	ErrCodeBridgeUnmounted  = "bridge_unmounted"
	ErrCodeClaimBusy        = "claim_busy"
	ErrCodeClaimStep        = "invalid_claim_step"
	ErrCodeInvalidAmount    = "invalid_amount"
	ErrCodeImportStep       = "invalid_import_step"
	ErrCodeImportDisabled   = "import_disabled"
	ErrCodeKeyFormat        = "invalid_key_format"
	ErrCodeKeyLength        = "invalid_key_length"
	ErrCodeGateway          = "gateway_error"
)

// NewAppError creates a new application error
func NewAppError(code, message string, details map[string]interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsCode reports whether err is an *AppError carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
