package paths

import (
	"strings"

	"github.com/arthur-debert/dotkeep/pkg/errors"
)

// ValidatePath performs basic validation on a path before it is used in
// any filesystem operation.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New(errors.ErrInvalidInput, "path cannot be empty")
	}

	if strings.Contains(path, "\x00") {
		return errors.New(errors.ErrInvalidInput, "path contains null bytes")
	}

	// Common filesystem limit
	if len(path) > 4096 {
		return errors.New(errors.ErrInvalidInput, "path exceeds maximum length")
	}

	return nil
}

// ValidateToolName ensures a tool name is valid for use in paths and as
// a database key. Tool names must not be empty, must not contain path
// separators, and must not be reserved names.
func ValidateToolName(name string) error {
	if name == "" {
		return errors.New(errors.ErrInvalidInput, "tool name cannot be empty")
	}

	if strings.ContainsAny(name, "/\\") {
		return errors.New(errors.ErrInvalidInput, "tool name cannot contain path separators")
	}

	if name == "." || name == ".." {
		return errors.New(errors.ErrInvalidInput, "tool name cannot be '.' or '..'")
	}

	for _, r := range name {
		if r < 32 {
			return errors.New(errors.ErrInvalidInput, "tool name contains control characters")
		}
	}

	return nil
}
