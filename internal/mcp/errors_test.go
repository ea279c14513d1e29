package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	perrors "github.com/Aman-CERP/paperrag/internal/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"paper not found", fmt.Errorf("lookup: %w", ErrPaperNotFound), ErrCodePaperNotFound},
		{"deadline", context.DeadlineExceeded, ErrCodeTimeout},
		{"canceled", context.Canceled, ErrCodeTimeout},
		{"empty query", perrors.New(perrors.ErrCodeQueryEmpty, "search query is empty", nil), ErrCodeInvalidParams},
		{"embedding", perrors.New(perrors.ErrCodeEmbeddingFailed, "embed failed", nil), ErrCodeEmbeddingFailed},
		{"dimension", perrors.New(perrors.ErrCodeDimensionMismatch, "dims", nil), ErrCodeEmbeddingFailed},
		{"corrupt store", perrors.New(perrors.ErrCodeStoreCorrupt, "corrupt", nil), ErrCodeIndexNotFound},
		{"network", perrors.New(perrors.ErrCodeNetworkTimeout, "slow", nil), ErrCodeTimeout},
		{"storage", perrors.New(perrors.ErrCodeStorageFailed, "disk", nil), ErrCodeInternalError},
		{"unknown", errors.New("boom"), ErrCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, MapError(tt.err).Code)
		})
	}
}

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_KeepsMCPError(t *testing.T) {
	orig := NewInvalidParamsError("bad")

	assert.Same(t, orig, MapError(fmt.Errorf("wrap: %w", orig)))
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	err := perrors.New(perrors.ErrCodeStoreCorrupt, "paper store is corrupt", nil).
		WithSuggestion("Delete .paperrag and run 'paperrag index'.")

	got := MapError(err)

	assert.Equal(t, "paper store is corrupt Delete .paperrag and run 'paperrag index'.", got.Message)
	assert.Contains(t, got.Error(), "MCP error -32001")
}
