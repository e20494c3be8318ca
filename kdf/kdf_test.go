package kdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// testParams keeps derivation fast in tests. Work factors are covered by the
// defaults test below, not by deriving at production cost.
func testParams() types.Argon2Params {
	return types.Argon2Params{
		Time:    1,
		MemoryK: 1024,
		Threads: 1,
		KeyLen:  32,
		SaltLen: 16,
	}
}

func TestCheckSecret(t *testing.T) {
	d := NewDeriver(testParams())

	tests := []struct {
		name      string
		secret    string
		expectErr bool
	}{
		{name: "strong secret", secret: "Tr0ub4dor&3", expectErr: false},
		{name: "minimum length", secret: "eight ch", expectErr: false},
		{name: "too short", secret: "seven77", expectErr: true},
		{name: "empty", secret: "", expectErr: true},
		{name: "blocklisted", secret: "password", expectErr: true},
		{name: "blocklisted mixed case", secret: "PassWord", expectErr: true},
		{name: "blocklisted with digits", secret: "12345678", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.CheckSecret(tt.secret)
			if tt.expectErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrWeakSecret)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeriveDeterministic(t *testing.T) {
	d := NewDeriver(testParams())

	km, key1, err := d.Derive("Tr0ub4dor&3", nil, 1)
	require.NoError(t, err)
	require.Len(t, key1, 32)
	require.Len(t, km.Salt, 16)
	assert.Equal(t, 1, km.Generation)

	// Same secret and salt must reproduce the same key bytes.
	_, key2, err := d.Derive("Tr0ub4dor&3", km.Salt, 1)
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	// A different salt must not.
	_, key3, err := d.Derive("Tr0ub4dor&3", []byte("0123456789abcdef"), 1)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key3)

	// A different secret must not.
	_, key4, err := d.Derive("N3wSecret!9", km.Salt, 1)
	require.NoError(t, err)
	assert.NotEqual(t, key1, key4)
}

func TestDeriveRejectsWeakSecret(t *testing.T) {
	d := NewDeriver(testParams())

	km, key, err := d.Derive("qwerty", nil, 1)
	assert.ErrorIs(t, err, types.ErrWeakSecret)
	assert.Nil(t, km)
	assert.Nil(t, key)
}

func TestGenerateSaltUnique(t *testing.T) {
	d := NewDeriver(testParams())

	seen := make(map[string]bool)
	for i := 0; i < 32; i++ {
		salt, err := d.GenerateSalt()
		require.NoError(t, err)
		require.Len(t, salt, 16)
		assert.False(t, seen[string(salt)], "salt repeated")
		seen[string(salt)] = true
	}
}

func TestDefaultParams(t *testing.T) {
	params := types.DefaultArgon2Params()
	assert.Equal(t, uint32(1), params.Time)
	assert.Equal(t, uint32(64*1024), params.MemoryK)
	assert.Equal(t, uint8(4), params.Threads)
	assert.Equal(t, uint32(32), params.KeyLen)
	assert.Equal(t, 16, params.SaltLen)
}
