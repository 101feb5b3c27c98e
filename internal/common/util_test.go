package common

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	for _, size := range []int{0, 1, 32} {
		s, err := MakeRandHexString(size)
		require.NoError(t, err)
		assert.Len(t, s, size*2)

		raw, err := hex.DecodeString(s)
		require.NoError(t, err)
		assert.Len(t, raw, size)
	}
}

func TestMakeRandHexString_RefreshTokensDiffer(t *testing.T) {
	seen := make(map[string]struct{})
	for range 64 {
		s, err := MakeRandHexString(32)
		require.NoError(t, err)
		_, dup := seen[s]
		require.False(t, dup, "token %s repeated", s)
		seen[s] = struct{}{}
	}
}

func TestGenerateRandByteArray(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"argon2 salt", 16},
		{"gcm nonce", 12},
		{"content key", 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := GenerateRandByteArray(tt.size)
			require.NotNil(t, b)
			assert.Len(t, b, tt.size)
		})
	}
}

func TestGenerateRandByteArray_SuccessiveKeysDiffer(t *testing.T) {
	a := GenerateRandByteArray(32)
	b := GenerateRandByteArray(32)
	assert.False(t, bytes.Equal(a, b))
	assert.NotEqual(t, make([]byte, 32), a, "key must not be all zero")
}

func TestWipeByteArray(t *testing.T) {
	key := GenerateRandByteArray(32)
	alias := key[8:16]

	WipeByteArray(key)
	assert.Equal(t, make([]byte, 32), key)
	assert.Equal(t, make([]byte, 8), alias, "wipe is in place")

	assert.NotPanics(t, func() { WipeByteArray(nil) })
	assert.NotPanics(t, func() { WipeByteArray([]byte{}) })
}
