// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package gateway

// Phase of an authentication attempt being completed.
type Phase int

const (
	PhaseStarted Phase = iota
	PhaseValidating
	PhaseExchanging
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStarted:
		return "started"
	case PhaseValidating:
		return "validating"
	case PhaseExchanging:
		return "exchanging"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}
