package config

import (
	"errors"
	"fmt"
)

// Sentinel configuration errors, matched with errors.Is/errors.As.
var (
	ErrConfigNotFound   = errors.New("configuration file not found")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrValidationFailed = errors.New("configuration validation failed")
	ErrInvalidAutonomy  = errors.New("invalid autonomy level")
)

// LoadError wraps a configuration-loading failure with file context.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("failed to load %s: %v", e.File, e.Err) }
func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError wraps err with the file that was being loaded.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}

// ValidationError wraps a single field-level validation failure.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}
func (e *ValidationError) Unwrap() error { return e.Err }
