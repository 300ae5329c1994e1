// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package principal

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ExtraClaimsPolicy defines what a Codec does with a principal's extension
// claims.
type ExtraClaimsPolicy int

const (
	// ExtraClaimsPreserve keeps extension claims in Principal.Extra.  Integers
	// decode as int64 or uint64 and floats as float64, whatever Go type they
	// were encoded from.
	ExtraClaimsPreserve ExtraClaimsPolicy = iota

	// ExtraClaimsDrop discards extension claims when encoding and decoding.
	ExtraClaimsDrop
)

// String returns the policy's name.
func (p ExtraClaimsPolicy) String() string {
	switch p {
	case ExtraClaimsPreserve:
		return "preserve"
	case ExtraClaimsDrop:
		return "drop"
	default:
		return fmt.Sprintf("ExtraClaimsPolicy(%d)", int(p))
	}
}

// Codec encodes principals for storage in a session and decodes them back.
// Decoding fails closed: a record without subject or issuer is rejected.
type Codec struct {
	extraClaims ExtraClaimsPolicy
}

// NewCodec creates a Codec.
//
// Supported options: WithExtraClaims
func NewCodec(opt ...Option) *Codec {
	opts := getOpts(opt...)
	return &Codec{extraClaims: opts.withExtraClaims}
}

// ExtraClaims returns the codec's extension claims policy.
func (c *Codec) ExtraClaims() ExtraClaimsPolicy {
	return c.extraClaims
}

// Encode the principal.
func (c *Codec) Encode(p *Principal) ([]byte, error) {
	const op = "Codec.Encode"
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out := *p
	out.AuthenticatedAt = p.AuthenticatedAt.UTC()
	if c.extraClaims == ExtraClaimsDrop {
		out.Extra = nil
	}
	b, err := msgpack.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to encode principal: %w", op, err)
	}
	return b, nil
}

// Decode a principal previously encoded with Encode.
func (c *Codec) Decode(b []byte) (*Principal, error) {
	const op = "Codec.Decode"
	if len(b) == 0 {
		return nil, fmt.Errorf("%s: encoded principal is empty: %w", op, ErrInvalidPrincipal)
	}
	var p Principal
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%s: unable to decode principal: %s: %w", op, err, ErrInvalidPrincipal)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.AuthenticatedAt = p.AuthenticatedAt.UTC()
	if c.extraClaims == ExtraClaimsDrop {
		p.Extra = nil
	}
	return &p, nil
}
