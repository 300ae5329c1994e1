// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package config

import "os"

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
	withEnvFiles    []string
	withEnvironment map[string]string
}

func getDefaults() options {
	return options{
		withEnvFiles: []string{".env"},
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithEnvFiles overrides the dotenv files read before the environment is
// parsed (default: ".env").  Files that don't exist are skipped.  Pass no
// files to skip dotenv loading altogether.
func WithEnvFiles(files ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withEnvFiles = files
		}
	}
}

// WithEnvironment replaces the process environment with the given
// variables.  Dotenv files are still read and the given variables take
// precedence over them.
func WithEnvironment(vars map[string]string) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withEnvironment = vars
		}
	}
}

func fileExists(name string) bool {
	info, err := os.Stat(name)
	return err == nil && !info.IsDir()
}
