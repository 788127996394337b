package errors

import (
	"errors"
	"fmt"
)

// Common error types for the LearnHub client
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRefreshFailed    = errors.New("refresh failed")

	// Account errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")

	// Job errors
	ErrJobStartFailed     = errors.New("job start failed")
	ErrJobPollFailed      = errors.New("job poll failed")
	ErrJobReportedFailure = errors.New("job reported failure")

	// General errors
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrMalformedBody    = errors.New("malformed response body")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
