// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/go-uuid"
)

const (
	// DefaultIDEntropy is the number of random bytes in an ID generated by
	// NewID. 32 bytes is 256 bits.
	DefaultIDEntropy = 32

	// MinIDEntropy is the smallest entropy (in bytes) NewID accepts.
	MinIDEntropy = 16
)

// NewID generates an opaque, url safe ID with an optional prefix. The ID
// generated is suitable for a Request's State or Nonce.
//
// Supported options: WithPrefix, WithEntropy
func NewID(opt ...Option) (string, error) {
	const op = "oidc.NewID"
	opts := getIDOpts(opt...)
	if opts.withEntropy < MinIDEntropy {
		return "", fmt.Errorf("%s: entropy of %d bytes is less than %d: %w", op, opts.withEntropy, MinIDEntropy, ErrInvalidParameter)
	}
	b, err := uuid.GenerateRandomBytes(opts.withEntropy)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, ErrIDGeneratorFailed)
	}
	id := base64.RawURLEncoding.EncodeToString(b)
	if opts.withPrefix != "" {
		return fmt.Sprintf("%s_%s", opts.withPrefix, id), nil
	}
	return id, nil
}

// idOptions is the set of available options.
type idOptions struct {
	withPrefix  string
	withEntropy int
}

// idDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func idDefaults() idOptions {
	return idOptions{
		withEntropy: DefaultIDEntropy,
	}
}

// getIDOpts gets the defaults and applies the opt overrides passed
// in.
func getIDOpts(opt ...Option) idOptions {
	opts := idDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithPrefix provides an optional prefix for a new ID.  When this options is
// provided, NewID will prepend the prefix and an underscore to the new
// identifier.
func WithPrefix(prefix string) Option {
	return func(o interface{}) {
		if o, ok := o.(*idOptions); ok {
			o.withPrefix = prefix
		}
	}
}

// WithEntropy provides an optional number of random bytes for a new ID.
func WithEntropy(bytes int) Option {
	return func(o interface{}) {
		if o, ok := o.(*idOptions); ok {
			o.withEntropy = bytes
		}
	}
}
