// Package predicate catalogues the statements a holder can prove and the fixed
// constants each one binds: circuit name and registry id, the credential type and
// attribute key a credential must carry, and the public-signal layout of its proofs.
package predicate

import (
	"fmt"
	"strings"
)

// Type identifies which class of statement is being proven.
type Type int

const (
	Age Type = iota
	Membership
)

// Credential type and attribute key constants expected by each predicate.
const (
	CredentialTypeAge        = 0
	CredentialTypeMembership = 1

	AttributeKeyAge             = 1
	AttributeKeyMembershipGroup = 2
)

// MaxAllowedSet is the circuit width of the membership allowed set.
const MaxAllowedSet = 8

// All lists every supported predicate.
var All = []Type{Age, Membership}

// String returns the circuit name.
func (t Type) String() string {
	switch t {
	case Age:
		return "age_verify"
	case Membership:
		return "membership_proof"
	default:
		return fmt.Sprintf("predicate(%d)", int(t))
	}
}

// Label is the human-facing name used in error prefixes.
func (t Type) Label() string {
	switch t {
	case Age:
		return "Age"
	case Membership:
		return "Membership"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is a known predicate.
func (t Type) Valid() bool {
	return t == Age || t == Membership
}

// CredentialType is the credential_type a credential must carry for this predicate.
func (t Type) CredentialType() int64 {
	if t == Membership {
		return CredentialTypeMembership
	}
	return CredentialTypeAge
}

// AttributeKey is the attribute_key a credential must carry for this predicate.
func (t Type) AttributeKey() int64 {
	if t == Membership {
		return AttributeKeyMembershipGroup
	}
	return AttributeKeyAge
}

// MarshalText encodes the circuit name.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown predicate %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText accepts circuit names and short aliases.
func (t *Type) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = p
	return nil
}

// Parse resolves a predicate from its circuit name or short alias ("age", "membership").
func Parse(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "age_verify", "age":
		return Age, nil
	case "membership_proof", "membership":
		return Membership, nil
	}
	return 0, fmt.Errorf("unknown predicate %q", s)
}

// CircuitIDs maps predicates to the registry circuit identifiers configured at deployment.
type CircuitIDs map[Type]uint8

// DefaultCircuitIDs matches the registry constructor (0=age, 1=membership).
func DefaultCircuitIDs() CircuitIDs {
	return CircuitIDs{Age: 0, Membership: 1}
}

// For returns the circuit id of t.
func (c CircuitIDs) For(t Type) (uint8, error) {
	id, ok := c[t]
	if !ok {
		return 0, fmt.Errorf("no circuit id configured for %s", t)
	}
	return id, nil
}
