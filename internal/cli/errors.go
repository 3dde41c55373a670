package cli

import (
	"errors"
	"fmt"
)

// ExitError represents a command failure with a specific exit code.
//
// RunE functions return it instead of calling os.Exit, so the failure has
// already been printed and only the code is left to report. [RunWithConfig]
// extracts the code with [IsExitError] and [Execute] performs the exit.
//
// Codes: [ExitGeneral], [ExitInvalidArgument], [ExitNotFound],
// [ExitFailedPrecondition].
type ExitError struct {
	// Code is the exit code to return to the shell.
	Code int
}

// Error implements the error interface in the os/exec "exit status N" format.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// NewExitError creates an [ExitError] with the given exit code.
//
//	if err != nil {
//	    app.Printer.Error(err)
//	    return NewExitError(ExitGeneral)
//	}
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

// IsExitError reports whether err is or wraps an [ExitError] and returns its
// code. It returns (0, false) for nil and for any other error.
func IsExitError(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
