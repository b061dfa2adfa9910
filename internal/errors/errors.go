// Package errors provides error handling for dtogen.
//
// It re-exports github.com/cockroachdb/errors and adds the run-aborting
// failure categories used across the compiler:
//
//	// Mark a failure with its category
//	return errors.Resolutionf("model not found for %s in %s.%s", id, model, field)
//
//	// Check the category at the CLI boundary
//	if errors.Is(err, errors.ErrResolution) {
//	    ...
//	}
//
// No category is retried; every one of them aborts the run before output is
// committed.
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
	GetAllHints = crdb.GetAllHints
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Failure categories. Use them with Is.
var (
	// ErrResolution marks a structural mismatch between the declared model
	// and what the compiler can represent (unknown model, bad handler shape,
	// inconsistent container nesting, overlong identifiers).
	ErrResolution = New("resolution error")

	// ErrConfiguration marks an inconsistent project setup (unknown group or
	// target, duplicate registrations, invalid config file).
	ErrConfiguration = New("configuration error")

	// ErrRendering marks a type graph a target language cannot express.
	ErrRendering = New("rendering error")

	// ErrIO marks a failure to read inputs or write outputs.
	ErrIO = New("i/o error")
)

// Resolutionf creates an error marked with ErrResolution.
func Resolutionf(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrResolution)
}

// Configurationf creates an error marked with ErrConfiguration.
func Configurationf(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrConfiguration)
}

// Renderingf creates an error marked with ErrRendering.
func Renderingf(format string, args ...interface{}) error {
	return Mark(crdb.NewWithDepthf(1, format, args...), ErrRendering)
}

// WrapIO wraps err with context and marks it with ErrIO.
func WrapIO(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrIO)
}

// WrapConfiguration wraps err with context and marks it with ErrConfiguration.
func WrapConfiguration(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Mark(crdb.WrapWithDepthf(1, err, format, args...), ErrConfiguration)
}

// Category names the failure category of err, or "internal" when unmarked.
func Category(err error) string {
	switch {
	case Is(err, ErrResolution):
		return "resolution"
	case Is(err, ErrConfiguration):
		return "configuration"
	case Is(err, ErrRendering):
		return "rendering"
	case Is(err, ErrIO):
		return "io"
	default:
		return "internal"
	}
}
