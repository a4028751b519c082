// Package apperr classifies run-aborting errors into the two kinds the
// CLI reports distinctly to stderr: bad configuration and failed I/O,
// generalizing mapping.cpp's "PARAMETER ERROR: ..." stderr convention to
// also cover the filesystem failures the original reported ad hoc.
package apperr

import "github.com/pkg/errors"

// ConfigError marks a cause as invalid or missing configuration: a
// malformed pattern description, a missing required parameter, a
// dictionary file whose contents fail validation. The CLI prefixes it
// "PARAMETER ERROR: ".
type ConfigError struct {
	cause error
}

// Config wraps cause as a ConfigError.
func Config(cause error) error {
	if cause == nil {
		return nil
	}
	return &ConfigError{cause: cause}
}

// Configf formats a new ConfigError.
func Configf(format string, args ...interface{}) error {
	return &ConfigError{cause: errors.Errorf(format, args...)}
}

func (e *ConfigError) Error() string { return e.cause.Error() }
func (e *ConfigError) Unwrap() error { return e.cause }

// IoError marks a cause as a failed filesystem operation: a file or
// directory that could not be opened, created, read, or written. The CLI
// prefixes it "IO ERROR: ".
type IoError struct {
	cause error
}

// IO wraps cause as an IoError.
func IO(cause error) error {
	if cause == nil {
		return nil
	}
	return &IoError{cause: cause}
}

func (e *IoError) Error() string { return e.cause.Error() }
func (e *IoError) Unwrap() error { return e.cause }
