// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package gateway

import (
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/rpgate/principal"
)

// Option defines a common functional options type which can be used in a
// variadic parameter pattern.
type Option func(interface{})

// ApplyOpts takes a pointer to the options struct as a set of default options
// and applies the slice of opts as overrides.
func ApplyOpts(opts interface{}, opt ...Option) {
	for _, o := range opt {
		if o == nil { // ignore any nil Options
			continue
		}
		o(opts)
	}
}

type options struct {
	withLogger hclog.Logger
	withCodec  *principal.Codec
	withBinder PrincipalBinder
}

func getDefaults() options {
	return options{
		withLogger: hclog.NewNullLogger(),
		withCodec:  principal.NewCodec(),
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithCodec provides an optional principal codec.
func WithCodec(c *principal.Codec) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && c != nil {
			o.withCodec = c
		}
	}
}

// WithPrincipalBinder provides an optional PrincipalBinder.
func WithPrincipalBinder(b PrincipalBinder) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withBinder = b
		}
	}
}
