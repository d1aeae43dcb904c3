package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType groups errors by the layer that raised them.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeResolution ErrorType = "resolution"
	ErrorTypeTransfer   ErrorType = "transfer"
	ErrorTypeCancelled  ErrorType = "cancelled"
	ErrorTypeInternal   ErrorType = "internal"
)

const (
	CodeInvalidURL           = "invalid_url"
	CodeInvalidSelection     = "invalid_selection"
	CodeInvalidContainer     = "invalid_container"
	CodeAccessDenied         = "access_denied"
	CodeNotFound             = "not_found"
	CodeTransient            = "transient"
	CodeTransferFailed       = "transfer_failed"
	CodeUnsupportedSelection = "unsupported_selection"
	CodeCancelled            = "cancelled"
)

// DomainError is a typed error carrying the provider's raw message in Details when there is one.
type DomainError struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
	UserMsg string         `json:"user_message,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so sentinels work with errors.Is.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// GetUserMessage returns the message meant for API clients, falling back to Message.
func (e *DomainError) GetUserMessage() string {
	if e.UserMsg != "" {
		return e.UserMsg
	}
	return e.Message
}

func NewDomainError(errType ErrorType, code, message string) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
}

func WrapDomainError(err error, errType ErrorType, code, message string) *DomainError {
	return &DomainError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
		Details: make(map[string]any),
	}
}

func (e *DomainError) WithDetails(details map[string]any) *DomainError {
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func (e *DomainError) WithUserMessage(msg string) *DomainError {
	e.UserMsg = msg
	return e
}

// Sentinels for errors.Is. Never mutate them; build fresh errors with the constructors below.
var (
	ErrInvalidURL       = NewDomainError(ErrorTypeValidation, CodeInvalidURL, "invalid media URL")
	ErrInvalidSelection = NewDomainError(ErrorTypeValidation, CodeInvalidSelection, "unrecognized quality token")
	ErrInvalidContainer = NewDomainError(ErrorTypeValidation, CodeInvalidContainer, "unsupported target container")

	ErrAccessDenied = NewDomainError(ErrorTypeResolution, CodeAccessDenied, "media access denied")
	ErrNotFound     = NewDomainError(ErrorTypeResolution, CodeNotFound, "media not found")
	ErrTransient    = NewDomainError(ErrorTypeResolution, CodeTransient, "metadata fetch failed")

	ErrTransferFailed       = NewDomainError(ErrorTypeTransfer, CodeTransferFailed, "transfer failed")
	ErrUnsupportedSelection = NewDomainError(ErrorTypeTransfer, CodeUnsupportedSelection, "provider cannot satisfy selection")

	ErrCancelled = NewDomainError(ErrorTypeCancelled, CodeCancelled, "transfer cancelled")
)

func InvalidURL(rawURL string) *DomainError {
	return NewDomainError(ErrorTypeValidation, CodeInvalidURL, "invalid media URL").
		WithDetails(map[string]any{"url": rawURL}).
		WithUserMessage("Invalid YouTube URL")
}

func InvalidSelection(token string) *DomainError {
	return NewDomainError(ErrorTypeValidation, CodeInvalidSelection, fmt.Sprintf("unrecognized quality token %q", token)).
		WithDetails(map[string]any{"quality": token}).
		WithUserMessage("Invalid quality selection")
}

func InvalidContainer(container string) *DomainError {
	return NewDomainError(ErrorTypeValidation, CodeInvalidContainer, fmt.Sprintf("unsupported container %q", container)).
		WithDetails(map[string]any{"format": container}).
		WithUserMessage("Invalid output format")
}

// Resolution wraps a provider metadata failure; code must be one of the resolution codes.
func Resolution(err error, code string) *DomainError {
	de := WrapDomainError(err, ErrorTypeResolution, code, "failed to resolve media")
	if err != nil {
		de.Details["provider_message"] = err.Error()
	}
	return de.WithUserMessage("Failed to get video info")
}

func TransferFailed(err error) *DomainError {
	de := WrapDomainError(err, ErrorTypeTransfer, CodeTransferFailed, "provider stream failed")
	if err != nil {
		de.Details["provider_message"] = err.Error()
	}
	return de.WithUserMessage("Failed to download video")
}

func Cancelled() *DomainError {
	return NewDomainError(ErrorTypeCancelled, CodeCancelled, "transfer cancelled")
}

// KindOf returns the type of the first DomainError in the chain, or internal.
func KindOf(err error) ErrorType {
	var de *DomainError
	if stderrors.As(err, &de) {
		return de.Type
	}
	return ErrorTypeInternal
}

func IsValidation(err error) bool {
	return err != nil && KindOf(err) == ErrorTypeValidation
}

// UserMessage returns a client-safe message for err, or fallback when err carries none.
func UserMessage(err error, fallback string) string {
	var de *DomainError
	if stderrors.As(err, &de) && de.UserMsg != "" {
		return de.UserMsg
	}
	return fallback
}
