// Package felt encodes and decodes field elements exchanged with the proving system
// and the registry contract.
//
// Circuit inputs and public signals are BN254 scalar-field elements written as
// 0x-prefixed hex. On the wire to the calldata encoder each element is exactly 32
// big-endian bytes. Registry integers wider than a felt travel as two 128-bit limbs.
package felt

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Size is the byte width of one flattened field element.
const Size = fr.Bytes

// Zero is the canonical zero encoding used for padding.
const Zero = "0x0"

var (
	modulus = fr.Modulus()
	limbMod = new(big.Int).Lsh(big.NewInt(1), 128)
)

// HasHexPrefix reports whether s carries the 0x prefix.
func HasHexPrefix(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

// Parse decodes a 0x-prefixed hex string and checks it is a canonical field element.
func Parse(s string) (*big.Int, error) {
	if !HasHexPrefix(s) {
		return nil, fmt.Errorf("must start with 0x, got: %s", truncate(s, 10))
	}
	digits := s[2:]
	if digits == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	if !onlyDigits(digits, 16) {
		return nil, fmt.Errorf("invalid hex value: %s", truncate(s, 10))
	}
	v, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value: %s", truncate(s, 10))
	}
	if v.Cmp(modulus) >= 0 {
		return nil, fmt.Errorf("value exceeds the field modulus")
	}
	return v, nil
}

// ParseInt decodes an unbounded integer given either as 0x-prefixed hex or as decimal.
// It is used for calldata and RPC values, which are not restricted to the BN254 field.
func ParseInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if HasHexPrefix(s) {
		s, base = s[2:], 16
	}
	if s == "" {
		return nil, fmt.Errorf("empty integer")
	}
	if !onlyDigits(s, base) {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// onlyDigits reports whether s is made of digits of base alone. big.Int
// parsing would otherwise accept a leading sign.
func onlyDigits(s string, base int) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case base == 16 && (r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'):
		default:
			return false
		}
	}
	return true
}

// Hex renders v as minimal lowercase 0x-prefixed hex ("0x0" for zero).
func Hex(v *big.Int) string {
	if v == nil {
		return Zero
	}
	return "0x" + v.Text(16)
}

// HexUint renders a machine integer as 0x-prefixed hex.
func HexUint(v uint64) string {
	return Hex(new(big.Int).SetUint64(v))
}

// Flatten renders each element as exactly Size big-endian bytes and concatenates them in order.
func Flatten(elements []string) ([]byte, error) {
	out := make([]byte, 0, len(elements)*Size)
	for i, s := range elements {
		v, err := Parse(s)
		if err != nil {
			return nil, fmt.Errorf("public input %d: %w", i, err)
		}
		var e fr.Element
		e.SetBigInt(v)
		b := e.Bytes()
		out = append(out, b[:]...)
	}
	return out, nil
}

// Unflatten splits b into Size-byte chunks and renders each as 0x-prefixed hex
// padded to 64 digits, the form the proving backend emits.
func Unflatten(b []byte) ([]string, error) {
	if len(b)%Size != 0 {
		return nil, fmt.Errorf("flattened length %d is not a multiple of %d", len(b), Size)
	}
	out := make([]string, 0, len(b)/Size)
	for i := 0; i < len(b); i += Size {
		v := new(big.Int).SetBytes(b[i : i+Size])
		if v.Cmp(modulus) >= 0 {
			return nil, fmt.Errorf("chunk %d exceeds the field modulus", i/Size)
		}
		out = append(out, fmt.Sprintf("0x%064x", v))
	}
	return out, nil
}

// Equal compares two hex encodings numerically, so "0x012" equals "0x12".
func Equal(a, b string) bool {
	x, err := ParseInt(a)
	if err != nil {
		return false
	}
	y, err := ParseInt(b)
	if err != nil {
		return false
	}
	return x.Cmp(y) == 0
}

// SplitU256 splits v into (low, high) 128-bit limbs.
func SplitU256(v *big.Int) (low, high *big.Int) {
	low = new(big.Int).Mod(v, limbMod)
	high = new(big.Int).Rsh(v, 128)
	return low, high
}

// JoinU256 combines limbs as low + high·2^128.
func JoinU256(low, high *big.Int) *big.Int {
	out := new(big.Int).Mul(high, limbMod)
	return out.Add(out, low)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
