// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrFailedToParseConfig means a variable could not be parsed into its
	// typed value (a malformed duration or boolean, for example).
	ErrFailedToParseConfig = errors.New("failed to parse config from env")

	// ErrMissingValue means a required variable is unset or empty.
	ErrMissingValue = errors.New("missing required value")

	// ErrInvalidValue means a variable is set but its value is not usable.
	ErrInvalidValue = errors.New("invalid value")
)

// ConfigurationError is returned by Load when the environment doesn't
// describe a usable gateway.  It carries every problem found, not just the
// first one.
type ConfigurationError struct {
	Errors *multierror.Error
}

// Error satisfies the error interface and lists every problem.
func (e *ConfigurationError) Error() string {
	if e == nil || e.Errors == nil {
		return "configuration error"
	}
	return "configuration error: " + e.Errors.Error()
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *ConfigurationError) Unwrap() []error {
	if e == nil || e.Errors == nil {
		return nil
	}
	return e.Errors.WrappedErrors()
}

// Problems returns the individual problems.
func (e *ConfigurationError) Problems() []error {
	return e.Unwrap()
}
