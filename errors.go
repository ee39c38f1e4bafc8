package kephasrpc

import (
	"encoding/json"
	"fmt"
)

// Error is a JSON-RPC 2.0 error object.
//
// It is what a server sends in the "error" member of a response and also what
// the client synthesizes locally for the reserved codes in codes.go.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewError creates an error object without data.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsLocal reports whether the error was synthesized by the client rather than
// received from the server.
func (e *Error) IsLocal() bool {
	return e != nil && e.Code <= CodeMaxConcurrent && e.Code >= CodeMaxConcurrent-7
}
