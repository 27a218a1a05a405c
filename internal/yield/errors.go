package yield

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType categorizes failures at I/O boundaries.
type ErrorType uint

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeValidation
	ErrorTypeDataSource
	ErrorTypeInsufficientBalance
	ErrorTypeExecution
	ErrorTypeNotFound
	ErrorTypeConflict
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:             "unknown",
	ErrorTypeValidation:          "validation",
	ErrorTypeDataSource:          "data_source",
	ErrorTypeInsufficientBalance: "insufficient_balance",
	ErrorTypeExecution:           "execution",
	ErrorTypeNotFound:            "not_found",
	ErrorTypeConflict:            "conflict",
}

func (t ErrorType) String() string {
	if n, ok := errorTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// Category returns the category of err, or ErrorTypeUnknown for
// uncategorized errors.
func Category(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// Error is a categorized error. Execution errors carry the transaction hash
// and chain when a transaction was submitted.
type Error struct {
	Type    ErrorType
	Message string
	Details map[string]any
	Err     error
	TxHash  string
	ChainID Chain
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same category, so sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

var (
	ErrValidation          = &Error{Type: ErrorTypeValidation, Message: "validation failed"}
	ErrDataSource          = &Error{Type: ErrorTypeDataSource, Message: "data source unavailable"}
	ErrInsufficientBalance = &Error{Type: ErrorTypeInsufficientBalance, Message: "insufficient balance"}
	ErrExecution           = &Error{Type: ErrorTypeExecution, Message: "execution failed"}
	ErrNotFound            = &Error{Type: ErrorTypeNotFound, Message: "not found"}
	ErrConflict            = &Error{Type: ErrorTypeConflict, Message: "conflict"}
)

func NewValidationError(message string, err error) *Error {
	return &Error{Type: ErrorTypeValidation, Message: message, Err: err}
}

func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: message}
}

func NewConflictError(message string) *Error {
	return &Error{Type: ErrorTypeConflict, Message: message}
}

// NewSourceError wraps a failure of an external data source.
func NewSourceError(source string, err error) *Error {
	return &Error{
		Type:    ErrorTypeDataSource,
		Message: source + " unavailable",
		Err:     err,
		Details: map[string]any{"source": source},
	}
}

// NewInsufficientBalanceError reports a move larger than the available principal.
func NewInsufficientBalanceError(token Token, required, available string) *Error {
	return &Error{
		Type:    ErrorTypeInsufficientBalance,
		Message: fmt.Sprintf("insufficient %s balance: required %s, available %s", token, required, available),
		Details: map[string]any{"token": token, "required": required, "available": available},
	}
}

// NewExecutionError reports a failed mover step. txHash is empty when no
// transaction was submitted.
func NewExecutionError(step string, txHash string, chain Chain, err error) *Error {
	msg := step + " failed"
	if txHash != "" {
		msg = fmt.Sprintf("%s failed (tx %s on %s)", step, txHash, chain)
	}
	return &Error{
		Type:    ErrorTypeExecution,
		Message: msg,
		Err:     err,
		TxHash:  txHash,
		ChainID: chain,
		Details: map[string]any{"step": step},
	}
}

// StatusCode maps an error to the HTTP status the API answers with.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Type {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict, ErrorTypeInsufficientBalance:
		return http.StatusConflict
	case ErrorTypeDataSource, ErrorTypeExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage renders err for display. Uncategorized errors get a generic
// message so internals do not leak.
func UserMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal error"
	}
	switch e.Type {
	case ErrorTypeDataSource:
		return "A data source is temporarily unavailable. Please try again shortly."
	case ErrorTypeExecution:
		return "Transaction failed: " + e.Message
	default:
		return e.Error()
	}
}
