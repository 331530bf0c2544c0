package credential

import (
	"fmt"
	"strconv"
	"time"

	"starkshield/internal/predicate"
	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/felt"
)

// Parameters are the predicate-specific public parameters of a proof request.
type Parameters interface {
	Predicate() predicate.Type
	timestamp() *time.Time
}

// AgeParameters requests a proof that the attribute is at least Threshold.
type AgeParameters struct {
	Threshold     uint64
	DappContextID uint64
	// Timestamp overrides the wall clock when set.
	Timestamp *time.Time
}

func (AgeParameters) Predicate() predicate.Type { return predicate.Age }
func (p AgeParameters) timestamp() *time.Time   { return p.Timestamp }

// MembershipParameters requests a proof that the attribute is one of AllowedSet.
type MembershipParameters struct {
	AllowedSet    []string
	DappContextID uint64
	// Timestamp overrides the wall clock when set.
	Timestamp *time.Time
}

func (MembershipParameters) Predicate() predicate.Type { return predicate.Membership }
func (p MembershipParameters) timestamp() *time.Time   { return p.Timestamp }

// InputMap is the circuit input format: every scalar is a string, arrays are []string.
type InputMap map[string]any

// Inputs is the witness input set split by visibility.
type Inputs struct {
	Private InputMap
	Public  InputMap
}

// Merged returns the flat map consumed by circuit execution.
func (in Inputs) Merged() InputMap {
	out := make(InputMap, len(in.Private)+len(in.Public))
	for k, v := range in.Private {
		out[k] = v
	}
	for k, v := range in.Public {
		out[k] = v
	}
	return out
}

// WitnessMapper converts a validated credential and proof parameters into circuit inputs.
type WitnessMapper struct {
	now func() time.Time
}

// MapperOption configures a WitnessMapper.
type MapperOption func(*WitnessMapper)

// WithClock replaces the wall clock used when parameters carry no timestamp.
func WithClock(now func() time.Time) MapperOption {
	return func(m *WitnessMapper) {
		if now != nil {
			m.now = now
		}
	}
}

// NewWitnessMapper builds a mapper reading the wall clock by default.
func NewWitnessMapper(opts ...MapperOption) *WitnessMapper {
	m := &WitnessMapper{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map builds the input set for params.Predicate(). Output is deterministic for
// identical inputs when params carry an explicit timestamp.
func (m *WitnessMapper) Map(c Credential, params Parameters) (*Inputs, error) {
	if params == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "proof parameters are required")
	}

	ts, err := m.resolveTimestamp(params.timestamp())
	if err != nil {
		return nil, err
	}
	public := InputMap{
		"pub_key_x":         c.IssuerPubKeyX,
		"pub_key_y":         c.IssuerPubKeyY,
		"current_timestamp": felt.HexUint(ts),
	}

	switch p := params.(type) {
	case AgeParameters:
		public["threshold"] = felt.HexUint(p.Threshold)
		public["dapp_context_id"] = felt.HexUint(p.DappContextID)
	case MembershipParameters:
		set, err := PadAllowedSet(p.AllowedSet)
		if err != nil {
			return nil, err
		}
		public["dapp_context_id"] = felt.HexUint(p.DappContextID)
		public["allowed_set"] = set
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported parameters %T", params))
	}

	return &Inputs{Private: privateInputs(c), Public: public}, nil
}

func (m *WitnessMapper) resolveTimestamp(override *time.Time) (uint64, error) {
	ts := m.now()
	if override != nil {
		ts = *override
	}
	if ts.Unix() < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("timestamp %s is before the Unix epoch", ts.UTC().Format(time.RFC3339)))
	}
	return uint64(ts.Unix()), nil
}

// At returns a timestamp override for proof parameters.
func At(t time.Time) *time.Time {
	return &t
}

func privateInputs(c Credential) InputMap {
	in := make(InputMap, len(PrivateFields)+1)
	for _, name := range PrivateFields {
		in[name] = c.scalar(name)
	}
	sig := make([]string, len(c.Signature))
	for i, b := range c.Signature {
		sig[i] = strconv.Itoa(b)
	}
	in[FieldSignature] = sig
	return in
}

// PadAllowedSet checks the circuit width and pads set to exactly MaxAllowedSet
// entries with the canonical zero. The width check runs before any padding.
func PadAllowedSet(set []string) ([]string, error) {
	if len(set) > predicate.MaxAllowedSet {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("allowed_set has %d elements, max %d", len(set), predicate.MaxAllowedSet))
	}
	padded := make([]string, predicate.MaxAllowedSet)
	for i := range padded {
		if i >= len(set) {
			padded[i] = felt.Zero
			continue
		}
		if _, err := felt.Parse(set[i]); err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("allowed_set[%d]: %v", i, err))
		}
		padded[i] = set[i]
	}
	return padded, nil
}
