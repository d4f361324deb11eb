package errors

import "fmt"

// ErrorCode represents a sunlapse error code.
type ErrorCode string

const (
	ErrMetadataUnavailable ErrorCode = "METADATA_UNAVAILABLE" // session skipped: no readable capture time
	ErrNoSolarEvent        ErrorCode = "NO_SOLAR_EVENT"       // polar day/night: not a failure, a valid outcome
	ErrEmptyWindow         ErrorCode = "EMPTY_WINDOW"         // window selected zero frames: skip, no artifact
	ErrExternalTool        ErrorCode = "EXTERNAL_TOOL"        // exiftool/ffmpeg failed: warn and continue
	ErrInvalidRequest      ErrorCode = "INVALID_REQUEST"      // bad invocation: fatal before processing
)

// Error represents a structured error with a code and optional details.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewMetadataUnavailable creates a skip-signal error for a session whose
// first or last frame has no readable capture time.
func NewMetadataUnavailable(path string) *Error {
	return &Error{
		Code:    ErrMetadataUnavailable,
		Message: fmt.Sprintf("no capture time available for %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNoSolarEvent marks a date/zenith combination with no sun crossing.
func NewNoSolarEvent(date string, zenith float64) *Error {
	return &Error{
		Code:    ErrNoSolarEvent,
		Message: fmt.Sprintf("no sun crossing at zenith %.3f on %s", zenith, date),
		Details: map[string]any{"date": date, "zenith": zenith},
	}
}

// NewEmptyWindow marks a window that selected zero frames.
func NewEmptyWindow(start, end string) *Error {
	return &Error{
		Code:    ErrEmptyWindow,
		Message: fmt.Sprintf("no frames in window %s to %s", start, end),
		Details: map[string]any{"start": start, "end": end},
	}
}

// NewExternalTool wraps a failure from an external collaborator (exiftool, ffmpeg).
func NewExternalTool(tool string, err error) *Error {
	return &Error{
		Code:    ErrExternalTool,
		Message: fmt.Sprintf("%s failed: %v", tool, err),
		Details: map[string]any{"tool": tool},
	}
}

// NewInvalidRequest creates a fatal invocation error.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// Is checks if an error is a sunlapse Error with the given code.
func Is(err error, code ErrorCode) bool {
	if sErr, ok := err.(*Error); ok {
		return sErr.Code == code
	}
	return false
}
