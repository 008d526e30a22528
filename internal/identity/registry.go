// Package identity maps roles to actors and mutation capabilities.
package identity

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAccessDenied is returned when role elevation fails.
	ErrAccessDenied = errors.New("access denied")
	// ErrUnknownRole is returned for roles missing from the registry.
	ErrUnknownRole = errors.New("unknown role")
)

// Role is a dashboard role.
type Role string

const (
	RoleSRE     Role = "SRE"
	RoleAuditor Role = "Auditor"
)

// ParseRole accepts any casing of a known role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sre":
		return RoleSRE, nil
	case "auditor":
		return RoleAuditor, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// RoleConfig defines who a role acts as and whether it may mutate state.
type RoleConfig struct {
	Actor     string `yaml:"actor" json:"actor"`
	CanMutate bool   `yaml:"can_mutate" json:"can_mutate"`
}

// Capability is what the control plane checks before a guarded mutation.
type Capability struct {
	Role      Role   `json:"role"`
	Actor     string `json:"actor"`
	CanMutate bool   `json:"can_mutate"`
}

// DefaultRoles returns the built-in role table.
func DefaultRoles() map[Role]RoleConfig {
	return map[Role]RoleConfig{
		RoleSRE:     {Actor: "engineer@google.com", CanMutate: true},
		RoleAuditor: {Actor: "auditor@external.com", CanMutate: false},
	}
}

// Registry resolves roles to capabilities and gates elevation.
type Registry struct {
	roles map[Role]RoleConfig
	pin   string
}

// NewRegistry creates a Registry. Nil roles fall back to DefaultRoles.
// An empty pin means elevation to mutating roles needs no PIN.
func NewRegistry(roles map[Role]RoleConfig, pin string) *Registry {
	if roles == nil {
		roles = DefaultRoles()
	}
	return &Registry{roles: roles, pin: pin}
}

// Capability returns the capability for a role.
func (r *Registry) Capability(role Role) (Capability, error) {
	cfg, ok := r.roles[role]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return Capability{Role: role, Actor: cfg.Actor, CanMutate: cfg.CanMutate}, nil
}

// Elevate switches to the target role. Dropping to a read-only role is
// always allowed; a mutating role requires the configured PIN, if any.
func (r *Registry) Elevate(target Role, pin string) (Capability, error) {
	c, err := r.Capability(target)
	if err != nil {
		return Capability{}, err
	}
	if !c.CanMutate {
		return c, nil
	}
	if r.pin == "" {
		return c, nil
	}
	if subtle.ConstantTimeCompare([]byte(pin), []byte(r.pin)) != 1 {
		return Capability{}, fmt.Errorf("%w: invalid credentials for role %s", ErrAccessDenied, target)
	}
	return c, nil
}
