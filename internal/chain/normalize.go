package chain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"sort"

	dErrors "starkshield/pkg/domain-errors"
	"starkshield/pkg/felt"
)

var u128Limit = new(big.Int).Lsh(big.NewInt(1), 128)

func decodeErr(format string, args ...any) error {
	return dErrors.New(dErrors.CodeDecoding, fmt.Sprintf(format, args...))
}

// DecodeBool accepts a native bool, a 0/1 scalar, or either wrapped in a
// one-element array.
func DecodeBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case []any:
		if len(t) != 1 {
			return false, decodeErr("boolean result has %d elements, want 1", len(t))
		}
		return DecodeBool(t[0])
	}
	n, err := decodeScalar(v)
	if err != nil {
		return false, decodeErr("unrecognized boolean result %v", v)
	}
	switch {
	case n.Sign() == 0:
		return false, nil
	case n.Cmp(big.NewInt(1)) == 0:
		return true, nil
	}
	return false, decodeErr("boolean result out of range: %s", n)
}

// DecodeU256 accepts a single scalar or a {low, high} pair of 128-bit limbs,
// combined as low + high·2^128.
func DecodeU256(v any) (*big.Int, error) {
	if m, ok := v.(map[string]any); ok {
		lowRaw, hasLow := m["low"]
		highRaw, hasHigh := m["high"]
		if !hasLow || !hasHigh || len(m) != 2 {
			return nil, decodeErr("unrecognized u256 object with keys %v", keys(m))
		}
		return joinLimbs(lowRaw, highRaw)
	}
	n, err := decodeScalar(v)
	if err != nil {
		return nil, decodeErr("unrecognized u256 value %v", v)
	}
	return n, nil
}

func joinLimbs(lowRaw, highRaw any) (*big.Int, error) {
	low, err := decodeScalar(lowRaw)
	if err != nil {
		return nil, decodeErr("u256 low limb: %v", err)
	}
	high, err := decodeScalar(highRaw)
	if err != nil {
		return nil, decodeErr("u256 high limb: %v", err)
	}
	if low.Cmp(u128Limit) >= 0 || high.Cmp(u128Limit) >= 0 {
		return nil, decodeErr("u256 limb exceeds 128 bits")
	}
	return felt.JoinU256(low, high), nil
}

// Field counts of a flat verification record: every u256 as two limbs, or every
// field as one value.
const (
	recordLimbFields  = 8
	recordValueFields = 5
)

// DecodeRecord accepts a get_verification_record result as an object keyed by
// member name, a flat felt array with u256 members as limbs, a flat array of
// single values, or any of these wrapped in a one-element array.
func DecodeRecord(v any) (*VerificationRecord, error) {
	switch t := v.(type) {
	case map[string]any:
		return decodeRecordObject(t)
	case []any:
		switch len(t) {
		case 1:
			return DecodeRecord(t[0])
		case recordLimbFields:
			return decodeRecordLimbs(t)
		case recordValueFields:
			return decodeRecordValues(t)
		}
		return nil, decodeErr("verification record has %d elements, want %d or %d",
			len(t), recordLimbFields, recordValueFields)
	}
	return nil, decodeErr("unrecognized verification record %T", v)
}

func decodeRecordObject(m map[string]any) (*VerificationRecord, error) {
	fields := []string{"nullifier", "attribute_key", "threshold_or_set_hash", "timestamp", "circuit_id"}
	for _, f := range fields {
		if _, ok := m[f]; !ok {
			return nil, decodeErr("verification record is missing %s", f)
		}
	}
	rec := &VerificationRecord{Exists: true}
	var err error
	if rec.Nullifier, err = DecodeU256(m["nullifier"]); err != nil {
		return nil, err
	}
	if rec.AttributeKey, err = DecodeU256(m["attribute_key"]); err != nil {
		return nil, err
	}
	if rec.ThresholdOrSetHash, err = DecodeU256(m["threshold_or_set_hash"]); err != nil {
		return nil, err
	}
	return rec, decodeTail(rec, m["timestamp"], m["circuit_id"])
}

func decodeRecordLimbs(a []any) (*VerificationRecord, error) {
	rec := &VerificationRecord{Exists: true}
	var err error
	if rec.Nullifier, err = joinLimbs(a[0], a[1]); err != nil {
		return nil, err
	}
	if rec.AttributeKey, err = joinLimbs(a[2], a[3]); err != nil {
		return nil, err
	}
	if rec.ThresholdOrSetHash, err = joinLimbs(a[4], a[5]); err != nil {
		return nil, err
	}
	return rec, decodeTail(rec, a[6], a[7])
}

func decodeRecordValues(a []any) (*VerificationRecord, error) {
	rec := &VerificationRecord{Exists: true}
	var err error
	if rec.Nullifier, err = DecodeU256(a[0]); err != nil {
		return nil, err
	}
	if rec.AttributeKey, err = DecodeU256(a[1]); err != nil {
		return nil, err
	}
	if rec.ThresholdOrSetHash, err = DecodeU256(a[2]); err != nil {
		return nil, err
	}
	return rec, decodeTail(rec, a[3], a[4])
}

func decodeTail(rec *VerificationRecord, tsRaw, circuitRaw any) error {
	ts, err := decodeScalar(tsRaw)
	if err != nil || !ts.IsUint64() {
		return decodeErr("unrecognized timestamp %v", tsRaw)
	}
	circuit, err := decodeScalar(circuitRaw)
	if err != nil || !circuit.IsUint64() || circuit.Uint64() > math.MaxUint8 {
		return decodeErr("unrecognized circuit id %v", circuitRaw)
	}
	rec.Timestamp = ts.Uint64()
	rec.CircuitID = uint8(circuit.Uint64())
	return nil
}

// decodeScalar reads one integer from the shapes JSON decoding can produce.
func decodeScalar(v any) (*big.Int, error) {
	switch t := v.(type) {
	case string:
		return felt.ParseInt(t)
	case json.Number:
		return felt.ParseInt(t.String())
	case float64:
		if t < 0 || t != math.Trunc(t) || t > 1<<53 {
			return nil, fmt.Errorf("non-integral number %v", t)
		}
		return new(big.Int).SetUint64(uint64(t)), nil
	case *big.Int:
		if t == nil || t.Sign() < 0 {
			return nil, fmt.Errorf("invalid integer %v", t)
		}
		return new(big.Int).Set(t), nil
	case uint64:
		return new(big.Int).SetUint64(t), nil
	case int:
		if t < 0 {
			return nil, fmt.Errorf("negative integer %d", t)
		}
		return big.NewInt(int64(t)), nil
	}
	return nil, fmt.Errorf("unsupported type %T", v)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
