package jsonrpc

import "fmt"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error is a JSON-RPC error object. It implements the error interface so
// coded errors can flow through ordinary Go error returns.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// ErrParse builds the canonical parse error.
func ErrParse() *Error {
	return &Error{Code: CodeParseError, Message: "Parse error"}
}

// ErrInvalidRequest builds the canonical invalid-request error.
func ErrInvalidRequest(detail string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: detailed("Invalid Request", detail)}
}

// ErrMethodNotFound builds the canonical method-not-found error with a
// human-readable detail.
func ErrMethodNotFound(detail string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: detailed("Method not found", detail)}
}

// ErrInvalidParams builds the canonical invalid-params error with a
// human-readable detail.
func ErrInvalidParams(detail string) *Error {
	return &Error{Code: CodeInvalidParams, Message: detailed("Invalid params", detail)}
}

// ErrInternal builds the canonical internal error.
func ErrInternal(detail string) *Error {
	return &Error{Code: CodeInternalError, Message: detailed("Internal error", detail)}
}

func detailed(base, detail string) string {
	if detail == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, detail)
}
