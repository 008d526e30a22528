package policy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/trustplane/internal/trust"
)

// Policy switch names, as used by callers and the audit ledger.
const (
	KeyBlockLowTrust = "blockLowTrust"
	KeyRequireMFA    = "requireMFA"
)

// ErrUnknownPolicy is returned when toggling a switch that does not exist.
var ErrUnknownPolicy = errors.New("unknown policy switch")

// SecurityPolicy is the set of named guardrail switches.
type SecurityPolicy struct {
	BlockLowTrust bool `json:"blockLowTrust" yaml:"block_low_trust"`
	RequireMFA    bool `json:"requireMFA" yaml:"require_mfa"`
}

// Default returns the switches a fresh session starts with.
func Default() SecurityPolicy {
	return SecurityPolicy{BlockLowTrust: false, RequireMFA: true}
}

// Get returns the value of a named switch.
func (p SecurityPolicy) Get(key string) (bool, error) {
	switch key {
	case KeyBlockLowTrust:
		return p.BlockLowTrust, nil
	case KeyRequireMFA:
		return p.RequireMFA, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownPolicy, key)
	}
}

// Toggle flips a named switch and returns the new policy and the new value.
func (p SecurityPolicy) Toggle(key string) (SecurityPolicy, bool, error) {
	switch key {
	case KeyBlockLowTrust:
		p.BlockLowTrust = !p.BlockLowTrust
		return p, p.BlockLowTrust, nil
	case KeyRequireMFA:
		p.RequireMFA = !p.RequireMFA
		return p, p.RequireMFA, nil
	default:
		return p, false, fmt.Errorf("%w: %q", ErrUnknownPolicy, key)
	}
}

// Map returns the switches keyed by name.
func (p SecurityPolicy) Map() map[string]bool {
	return map[string]bool{
		KeyBlockLowTrust: p.BlockLowTrust,
		KeyRequireMFA:    p.RequireMFA,
	}
}

// Keys lists the known switch names in stable order.
func Keys() []string {
	keys := []string{KeyBlockLowTrust, KeyRequireMFA}
	sort.Strings(keys)
	return keys
}

// Decision is the gate outcome. A deny is a decision, not an error.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Result carries the gate decision and a human-readable reason.
type Result struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
	Score    int      `json:"score"`
	PolicyID string   `json:"policy_id,omitempty"`
}

// Allowed reports whether the request may proceed.
func (r Result) Allowed() bool {
	return r.Decision == DecisionAllow
}

// Allow reports whether a request may be dispatched at the given score.
func Allow(score int, p SecurityPolicy) bool {
	return !(p.BlockLowTrust && score < trust.CriticalThreshold)
}

// Check is Allow with an explanation attached.
func Check(score int, p SecurityPolicy) Result {
	if Allow(score, p) {
		reason := "trust score within policy"
		if !p.BlockLowTrust {
			reason = "low-trust blocking disabled"
		}
		return Result{Decision: DecisionAllow, Reason: reason, Score: score}
	}
	return Result{
		Decision: DecisionDeny,
		Reason: fmt.Sprintf("trust score (%d) is below critical threshold (%d): request dropped to prevent cascading failure",
			score, trust.CriticalThreshold),
		Score:    score,
		PolicyID: KeyBlockLowTrust,
	}
}
