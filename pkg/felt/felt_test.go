package felt

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("accepts canonical hex", func(t *testing.T) {
		v, err := Parse("0x2a")
		require.NoError(t, err)
		assert.Equal(t, int64(42), v.Int64())
	})

	t.Run("rejects missing prefix", func(t *testing.T) {
		_, err := Parse("2a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must start with 0x")
	})

	t.Run("rejects garbage digits", func(t *testing.T) {
		_, err := Parse("0xzz")
		require.Error(t, err)
	})

	t.Run("rejects signed hex", func(t *testing.T) {
		for _, in := range []string{"0x-5", "0x+5", "0x-0"} {
			_, err := Parse(in)
			assert.Error(t, err, in)
		}
	})

	t.Run("rejects values at or above the modulus", func(t *testing.T) {
		_, err := Parse(Hex(modulus))
		require.Error(t, err)
	})
}

func TestFlattenRoundTrip(t *testing.T) {
	inputs := []string{
		"0x" + fmt.Sprintf("%064x", 1),
		"0x" + fmt.Sprintf("%064x", 0x12),
		fmt.Sprintf("0x%064x", new(big.Int).Sub(modulus, big.NewInt(1))),
		fmt.Sprintf("0x%064x", 0),
	}

	flat, err := Flatten(inputs)
	require.NoError(t, err)
	assert.Len(t, flat, Size*len(inputs))

	back, err := Unflatten(flat)
	require.NoError(t, err)
	assert.Equal(t, inputs, back)
}

func TestFlattenLeftPadsShortElements(t *testing.T) {
	flat, err := Flatten([]string{"0x12", "0x1"})
	require.NoError(t, err)
	require.Len(t, flat, 64)

	assert.Equal(t, byte(0x12), flat[31])
	assert.Equal(t, make([]byte, 31), flat[:31])
	assert.Equal(t, byte(0x01), flat[63])

	back, err := Unflatten(flat)
	require.NoError(t, err)
	assert.True(t, Equal("0x12", back[0]))
	assert.True(t, Equal("0x1", back[1]))
}

func TestFlattenRejectsNegativeElements(t *testing.T) {
	_, err := Flatten([]string{"0x1", "0x-1"})
	require.Error(t, err)
}

func TestFlattenEmpty(t *testing.T) {
	flat, err := Flatten(nil)
	require.NoError(t, err)
	assert.Empty(t, flat)
}

func TestUnflattenRejectsMisalignedInput(t *testing.T) {
	_, err := Unflatten(make([]byte, 33))
	require.Error(t, err)
}

func TestU256Limbs(t *testing.T) {
	v, ok := new(big.Int).SetString("123456789abcdef0123456789abcdef0fedcba9876543210", 16)
	require.True(t, ok)

	low, high := SplitU256(v)
	assert.Equal(t, v, JoinU256(low, high))
	assert.True(t, low.BitLen() <= 128)
}

func TestParseInt(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int64
	}{
		{"42", 42},
		{"0x2a", 42},
		{" 7 ", 7},
	} {
		v, err := ParseInt(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, v.Int64())
	}

	for _, in := range []string{"-1", "+1", "0x-1", "0x+1"} {
		_, err := ParseInt(in)
		assert.Error(t, err, in)
	}
}
