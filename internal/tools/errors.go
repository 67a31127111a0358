package tools

import "fmt"

// ErrToolUnavailable is returned when a call names a tool that is not
// registered.
type ErrToolUnavailable struct {
	ToolName string
}

// Error implements the error interface.
func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available in this context", e.ToolName)
}

// Error codes carried by *Error.
const (
	CodeNotFound         = "not_found"
	CodeNotRentable      = "not_rentable"
	CodeInvalidArguments = "invalid_arguments"
	CodeUnknownTool      = "unknown_tool"
)

// Error is a tool-level failure the model should see and react to,
// such as an unknown item or a purchase-only booking.
type Error struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

func notFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidArgs(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArguments, Message: fmt.Sprintf(format, args...)}
}
