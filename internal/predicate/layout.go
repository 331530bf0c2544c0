package predicate

import (
	"fmt"
	"sort"

	"starkshield/pkg/felt"
)

// Signal names a position in a proof's public-signal vector.
type Signal string

const (
	SignalPubKeyX          Signal = "pub_key_x"
	SignalPubKeyY          Signal = "pub_key_y"
	SignalCurrentTimestamp Signal = "current_timestamp"
	SignalThreshold        Signal = "threshold"
	SignalDappContextID    Signal = "dapp_context_id"
	SignalAllowedSet       Signal = "allowed_set"
	SignalNullifier        Signal = "nullifier"
	SignalEchoedIssuerX    Signal = "echoed_issuer_x"
	SignalEchoedThreshold  Signal = "echoed_threshold"
	SignalSetHash          Signal = "set_hash"
)

// Span locates a signal: Len consecutive entries starting at Index.
type Span struct {
	Index int
	Len   int
}

// Layout is the public-signal index contract of one circuit version.
type Layout struct {
	Version   string
	Predicate Type
	Length    int
	Spans     map[Signal]Span
}

// DefaultLayoutVersion is used when configuration does not pin one.
const DefaultLayoutVersion = "v1"

// Layouts indexes layouts by version and predicate.
type Layouts map[string]map[Type]Layout

// DefaultLayouts returns the layouts of the deployed circuits.
func DefaultLayouts() Layouts {
	return Layouts{
		"v1": {
			Age: {
				Version:   "v1",
				Predicate: Age,
				Length:    8,
				Spans: map[Signal]Span{
					SignalPubKeyX:          {0, 1},
					SignalPubKeyY:          {1, 1},
					SignalCurrentTimestamp: {2, 1},
					SignalThreshold:        {3, 1},
					SignalDappContextID:    {4, 1},
					SignalNullifier:        {5, 1},
					SignalEchoedIssuerX:    {6, 1},
					SignalEchoedThreshold:  {7, 1},
				},
			},
			Membership: {
				Version:   "v1",
				Predicate: Membership,
				Length:    15,
				Spans: map[Signal]Span{
					SignalPubKeyX:          {0, 1},
					SignalPubKeyY:          {1, 1},
					SignalCurrentTimestamp: {2, 1},
					SignalDappContextID:    {3, 1},
					SignalAllowedSet:       {4, MaxAllowedSet},
					SignalNullifier:        {12, 1},
					SignalEchoedIssuerX:    {13, 1},
					SignalSetHash:          {14, 1},
				},
			},
		},
	}
}

// Lookup returns the layout for a version and predicate.
func (l Layouts) Lookup(version string, t Type) (Layout, error) {
	byType, ok := l[version]
	if !ok {
		return Layout{}, fmt.Errorf("unknown public signal layout version %q", version)
	}
	layout, ok := byType[t]
	if !ok {
		return Layout{}, fmt.Errorf("layout %s has no entry for %s", version, t)
	}
	return layout, nil
}

// Validate checks that spans are in range and do not overlap.
func (l Layout) Validate() error {
	type span struct {
		name Signal
		Span
	}
	spans := make([]span, 0, len(l.Spans))
	for name, s := range l.Spans {
		if s.Len < 1 || s.Index < 0 || s.Index+s.Len > l.Length {
			return fmt.Errorf("layout %s/%s: signal %s out of range", l.Version, l.Predicate, name)
		}
		spans = append(spans, span{name, s})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Index < spans[j].Index })
	for i := 1; i < len(spans); i++ {
		if spans[i].Index < spans[i-1].Index+spans[i-1].Len {
			return fmt.Errorf("layout %s/%s: %s overlaps %s", l.Version, l.Predicate, spans[i].name, spans[i-1].name)
		}
	}
	return nil
}

// PublicOutputs is the named view of a proof's public signals.
type PublicOutputs struct {
	Predicate          Type     `json:"circuit_type"`
	LayoutVersion      string   `json:"layout_version"`
	IssuerPubKeyX      string   `json:"issuer_pub_key_x"`
	IssuerPubKeyY      string   `json:"issuer_pub_key_y"`
	CurrentTimestamp   string   `json:"current_timestamp"`
	DappContextID      string   `json:"dapp_context_id"`
	Nullifier          string   `json:"nullifier"`
	EchoedIssuerX      string   `json:"echoed_issuer_x"`
	EchoedAttributeKey string   `json:"echoed_attribute_key"`
	Threshold          string   `json:"threshold,omitempty"`
	EchoedThreshold    string   `json:"echoed_threshold,omitempty"`
	AllowedSet         []string `json:"allowed_set,omitempty"`
	SetHash            string   `json:"set_hash,omitempty"`
}

// ThresholdOrSetHash is the value the registry stores alongside the nullifier.
func (o PublicOutputs) ThresholdOrSetHash() string {
	if o.Predicate == Membership {
		return o.SetHash
	}
	return o.EchoedThreshold
}

// Parse decodes a flat public-signal vector. The vector must have exactly the
// layout's length; a different length means the circuit version changed.
func (l Layout) Parse(signals []string) (PublicOutputs, error) {
	if len(signals) != l.Length {
		return PublicOutputs{}, fmt.Errorf("%s layout %s expects %d public signals, got %d",
			l.Predicate, l.Version, l.Length, len(signals))
	}
	one := func(s Signal) string {
		span, ok := l.Spans[s]
		if !ok {
			return ""
		}
		return signals[span.Index]
	}

	out := PublicOutputs{
		Predicate:          l.Predicate,
		LayoutVersion:      l.Version,
		IssuerPubKeyX:      one(SignalPubKeyX),
		IssuerPubKeyY:      one(SignalPubKeyY),
		CurrentTimestamp:   one(SignalCurrentTimestamp),
		DappContextID:      one(SignalDappContextID),
		Nullifier:          one(SignalNullifier),
		EchoedIssuerX:      one(SignalEchoedIssuerX),
		EchoedAttributeKey: felt.HexUint(uint64(l.Predicate.AttributeKey())),
		Threshold:          one(SignalThreshold),
		EchoedThreshold:    one(SignalEchoedThreshold),
		SetHash:            one(SignalSetHash),
	}
	if span, ok := l.Spans[SignalAllowedSet]; ok {
		out.AllowedSet = append([]string(nil), signals[span.Index:span.Index+span.Len]...)
	}
	if out.Nullifier == "" {
		return PublicOutputs{}, fmt.Errorf("layout %s/%s has no nullifier signal", l.Version, l.Predicate)
	}
	return out, nil
}
