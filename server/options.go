// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package server

import (
	"time"

	"github.com/hashicorp/go-hclog"
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

// DefaultShutdownTimeout bounds the graceful shutdown of Serve.
const DefaultShutdownTimeout = 10 * time.Second

type options struct {
	withLogger          hclog.Logger
	withCertFile        string
	withKeyFile         string
	withShutdownTimeout time.Duration
}

func getDefaults() options {
	return options{
		withLogger:          hclog.NewNullLogger(),
		withShutdownTimeout: DefaultShutdownTimeout,
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

// WithTLS makes Serve terminate TLS with the PEM encoded certificate and key
// files.
func WithTLS(certFile, keyFile string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCertFile = certFile
			o.withKeyFile = keyFile
		}
	}
}

// WithShutdownTimeout overrides how long Serve waits for in-flight requests
// once its context is done.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withShutdownTimeout = d
		}
	}
}
