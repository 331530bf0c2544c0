package rpc

import (
	"math/big"

	"golang.org/x/crypto/sha3"

	"starkshield/pkg/felt"
)

var selectorMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))

// Selector returns the Starknet entry-point selector of name: Keccak-256 of the
// ASCII name truncated to 250 bits.
func Selector(name string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	v := new(big.Int).SetBytes(h.Sum(nil))
	return felt.Hex(v.And(v, selectorMask))
}
