package mcpserver

import (
	"errors"
	"fmt"

	"github.com/mvp-joe/docs-retriever/internal/apperrors"
)

// Standard JSON-RPC error codes, mirrored from the MCP spec.
const (
	errCodeInvalidParams = -32602
	errCodeInternal      = -32603
)

// MCPError represents a JSON-RPC error with a code and message, the
// same shape the teacher's internal/mcp/errors.go maps internal errors
// onto before handing them back to the tool-calling client.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// MapError classifies a search error into its JSON-RPC equivalent. An
// unknown project ID maps to -32602 (invalid params) per the lookup
// contract; anything else is reported as an internal error.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrUnknownProject) {
		return &MCPError{Code: errCodeInvalidParams, Message: "unknown project"}
	}
	return &MCPError{Code: errCodeInternal, Message: err.Error()}
}
