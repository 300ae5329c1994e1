// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package principal

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
	withExtraClaims ExtraClaimsPolicy
}

func getDefaults() options {
	return options{
		withExtraClaims: ExtraClaimsPreserve,
	}
}

func getOpts(opt ...Option) options {
	opts := getDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithExtraClaims provides an optional extension claims policy.
func WithExtraClaims(p ExtraClaimsPolicy) Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withExtraClaims = p
		}
	}
}
