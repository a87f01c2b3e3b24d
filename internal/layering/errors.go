package layering

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"

	"github.com/hut8labs/palimpsest/internal/command"
)

// ErrorCode represents the type of layering error for programmatic handling.
type ErrorCode int

const (
	// ErrCodeUnknown indicates an unclassified error.
	ErrCodeUnknown ErrorCode = iota
	// ErrCodeAlreadyExists indicates the image file to create already exists.
	ErrCodeAlreadyExists
	// ErrCodeNoLoopBinding indicates the <file>.lo symlink is missing.
	ErrCodeNoLoopBinding
	// ErrCodeNoMapperBinding indicates the <file>.dm symlink is missing.
	ErrCodeNoMapperBinding
	// ErrCodeStatFailed indicates the base image of a layer could not be examined.
	ErrCodeStatFailed
	// ErrCodeToolFailed indicates an external tool exited unsuccessfully.
	ErrCodeToolFailed
)

// String returns the string representation of an error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrCodeAlreadyExists:
		return "ALREADY_EXISTS"
	case ErrCodeNoLoopBinding:
		return "NO_LOOP_BINDING"
	case ErrCodeNoMapperBinding:
		return "NO_MAPPER_BINDING"
	case ErrCodeStatFailed:
		return "STAT_FAILED"
	case ErrCodeToolFailed:
		return "TOOL_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Error is implemented by every error raised by the orchestrator itself.
type Error interface {
	error
	Code() ErrorCode
	// Image returns the affected image path.
	Image() string
}

// IsErrorCode checks if an error has the specified error code. Failures
// of external tools, which surface as *command.ToolError, match
// ErrCodeToolFailed.
func IsErrorCode(err error, code ErrorCode) bool {
	var le Error
	if errors.As(err, &le) {
		return le.Code() == code
	}
	var te *command.ToolError
	if errors.As(err, &te) {
		return code == ErrCodeToolFailed
	}
	return false
}

// ExistsError is returned by create operations when the target image
// file already exists. No command has been run.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string {
	return fmt.Sprintf("image %s already exists", e.Path)
}

// Code returns the error code for programmatic handling.
func (e *ExistsError) Code() ErrorCode {
	return ErrCodeAlreadyExists
}

// Image returns the affected image path.
func (e *ExistsError) Image() string {
	return e.Path
}

func (e *ExistsError) Unwrap() error {
	return errdefs.ErrAlreadyExists
}

// BindingKind distinguishes the two binding symlinks.
type BindingKind string

const (
	BindingLoop   BindingKind = "loop"
	BindingMapper BindingKind = "mapper"
)

// BindingError is returned by mount operations when the binding symlink
// they need is absent. It is raised before any mount is attempted.
type BindingError struct {
	Path string      // image path
	Link string      // expected symlink
	Kind BindingKind // which binding
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("no %s binding for %s: %s is not a symlink", e.Kind, e.Path, e.Link)
}

// Code returns the error code for programmatic handling.
func (e *BindingError) Code() ErrorCode {
	if e.Kind == BindingMapper {
		return ErrCodeNoMapperBinding
	}
	return ErrCodeNoLoopBinding
}

// Image returns the affected image path.
func (e *BindingError) Image() string {
	return e.Path
}

func (e *BindingError) Unwrap() error {
	return errdefs.ErrFailedPrecondition
}

// StatError is returned by LayerCreate when the base image cannot be
// examined.
type StatError struct {
	Path  string // base image path
	Cause error  // error from stat
}

func (e *StatError) Error() string {
	return fmt.Sprintf("failed to stat base image %s: %v", e.Path, e.Cause)
}

// Code returns the error code for programmatic handling.
func (e *StatError) Code() ErrorCode {
	return ErrCodeStatFailed
}

// Image returns the affected image path.
func (e *StatError) Image() string {
	return e.Path
}

func (e *StatError) Unwrap() error {
	return e.Cause
}
