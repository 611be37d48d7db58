package protocol

import (
	"errors"
	"fmt"
)

// Standard errors returned by the transport.
var (
	// ErrShutdown indicates the transport has been closed.
	ErrShutdown = errors.New("transport shut down")

	// ErrNoHandler indicates an inbound request had no registered handler.
	ErrNoHandler = errors.New("no handler registered for method")

	// ErrInvalidResponse indicates a response that could not be decoded.
	ErrInvalidResponse = errors.New("invalid response from server")
)

// ResponseError is a JSON-RPC error object, sent or received.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("rpc error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	CodeServerNotInitialized = -32002
	CodeRequestCancelled     = -32800
)
