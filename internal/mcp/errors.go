// Package mcp serves the paper index to MCP clients over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

// MCP error codes. The custom range starts at -32001.
const (
	// ErrCodeIndexNotFound indicates the paper store is missing or unreadable.
	ErrCodeIndexNotFound = -32001

	// ErrCodeEmbeddingFailed indicates the query could not be embedded.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// ErrCodePaperNotFound indicates no stored paper matched.
	ErrCodePaperNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// ErrPaperNotFound is returned by paper_info when nothing matches.
var ErrPaperNotFound = errors.New("paper not found")

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var pe *perrors.PipelineError
	if errors.As(err, &pe) {
		return mapPipelineError(pe)
	}

	switch {
	case errors.Is(err, ErrPaperNotFound):
		return &MCPError{Code: ErrCodePaperNotFound, Message: "Paper not found."}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapPipelineError(pe *perrors.PipelineError) *MCPError {
	message := pe.Message
	if pe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", pe.Message, pe.Suggestion)
	}

	switch pe.Code {
	case perrors.ErrCodeQueryEmpty, perrors.ErrCodeInvalidInput, perrors.ErrCodeInvalidDOI:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case perrors.ErrCodeEmbeddingFailed, perrors.ErrCodeDimensionMismatch:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: message}
	case perrors.ErrCodeStoreCorrupt, perrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	}

	switch pe.Category {
	case perrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	case perrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
