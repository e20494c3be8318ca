package field

import (
	"context"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-sector/escrow-kyc-module-encryption/audit"
	auditstore "github.com/root-sector/escrow-kyc-module-encryption/audit/store"
	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/keyring"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

func testSession(t *testing.T) *keyring.Session {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)

	s, err := keyring.NewSession(context.Background())
	require.NoError(t, err)
	km := &types.KeyMaterial{Generation: 1, Salt: []byte("0123456789abcdef")}
	require.NoError(t, s.AddGeneration(context.Background(), km, key))
	return s
}

func testService(t *testing.T) (interfaces.FieldCipher, *audit.Ledger) {
	t.Helper()
	ledger := audit.NewLedger(auditstore.NewMemoryStore())
	return NewService(testSession(t), ledger), ledger
}

func TestFieldRoundTrip(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	tests := []struct {
		fieldType types.FieldType
		value     string
	}{
		{types.FieldTypeFullName, "Ada Lovelace"},
		{types.FieldTypeDateOfBirth, "1815-12-10"},
		{types.FieldTypeNationalID, "123-45-6789"},
		{types.FieldTypeTaxID, "DE123456789"},
		{types.FieldTypeAddress, "12 Rue de la Paix, Paris"},
		{types.FieldTypePhone, "+49 170 1234567"},
		{types.FieldTypeEmail, "ada@example.com"},
		{types.FieldTypeFullName, ""}, // empty value is valid
	}

	for _, tt := range tests {
		t.Run(string(tt.fieldType)+"/"+tt.value, func(t *testing.T) {
			record, err := svc.Encrypt(ctx, tt.fieldType, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.fieldType, record.FieldType)
			assert.Equal(t, 1, record.KeyGeneration)
			assert.NotContains(t, record.Ciphertext, tt.value)

			plaintext, err := svc.Decrypt(ctx, record)
			require.NoError(t, err)
			assert.Equal(t, tt.value, plaintext)
		})
	}
}

func TestFieldRejectsUnknownType(t *testing.T) {
	svc, _ := testService(t)

	_, err := svc.Encrypt(context.Background(), "passport_number", "X123")
	assert.Error(t, err)
}

func TestFieldDecryptFailuresAreGeneric(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	record, err := svc.Encrypt(ctx, types.FieldTypeNationalID, "123-45-6789")
	require.NoError(t, err)

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := *record
		tampered.Ciphertext = "AAAA" + tampered.Ciphertext[4:]
		_, err := svc.Decrypt(ctx, &tampered)
		assert.ErrorIs(t, err, types.ErrDecryptionFailed)
	})

	t.Run("swapped field type", func(t *testing.T) {
		swapped := *record
		swapped.FieldType = types.FieldTypeTaxID
		_, err := svc.Decrypt(ctx, &swapped)
		assert.ErrorIs(t, err, types.ErrDecryptionFailed)
	})

	t.Run("unknown generation", func(t *testing.T) {
		wrongGen := *record
		wrongGen.KeyGeneration = 3
		_, err := svc.Decrypt(ctx, &wrongGen)
		assert.ErrorIs(t, err, types.ErrDecryptionFailed)
	})

	t.Run("invalid base64", func(t *testing.T) {
		garbled := *record
		garbled.Nonce = "not base64!!"
		_, err := svc.Decrypt(ctx, &garbled)
		assert.ErrorIs(t, err, types.ErrDecryptionFailed)
	})

	t.Run("different session key", func(t *testing.T) {
		other, _ := testService(t)
		_, err := other.Decrypt(ctx, record)
		assert.ErrorIs(t, err, types.ErrDecryptionFailed)
	})
}

func TestFieldVerify(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	record, err := svc.Encrypt(ctx, types.FieldTypeEmail, "ada@example.com")
	require.NoError(t, err)

	assert.NoError(t, svc.Verify(ctx, record))

	tampered := *record
	tampered.Ciphertext = "AAAA" + tampered.Ciphertext[4:]
	assert.ErrorIs(t, svc.Verify(ctx, &tampered), types.ErrDecryptionFailed)
}

func TestFieldCiphertextsDiffer(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	first, err := svc.Encrypt(ctx, types.FieldTypePhone, "+1 555 0100")
	require.NoError(t, err)
	second, err := svc.Encrypt(ctx, types.FieldTypePhone, "+1 555 0100")
	require.NoError(t, err)

	// Fresh nonce per call, so identical plaintexts never share ciphertext.
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
	assert.NotEqual(t, first.Nonce, second.Nonce)
}

func TestFieldAuditTrail(t *testing.T) {
	svc, ledger := testService(t)
	ctx := context.Background()

	record, err := svc.Encrypt(ctx, types.FieldTypeTaxID, "DE123456789")
	require.NoError(t, err)
	_, err = svc.Decrypt(ctx, record)
	require.NoError(t, err)

	tampered := *record
	tampered.Ciphertext = "AAAA" + tampered.Ciphertext[4:]
	_, err = svc.Decrypt(ctx, &tampered)
	require.Error(t, err)

	entries, err := ledger.Query(ctx, types.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, audit.OperationEncrypt, entries[0].Operation)
	assert.Equal(t, audit.OperationDecrypt, entries[1].Operation)
	assert.Equal(t, audit.OperationAccessDenied, entries[2].Operation)
	assert.Equal(t, audit.OutcomeFailed, entries[2].Outcome)

	// No entry ever carries plaintext or key material.
	for _, entry := range entries {
		for _, v := range entry.Context {
			assert.NotContains(t, v, "DE123456789")
		}
	}
}

func TestFieldStatsConcurrent(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Encrypt(ctx, types.FieldTypeEmail, "a@b.c")
			assert.NoError(t, err)
			_ = svc.GetStats()
		}()
	}
	wg.Wait()

	stats := svc.GetStats()
	assert.Equal(t, uint64(workers), stats.TotalEncrypts)
	assert.False(t, stats.LastEncryptTime.IsZero())
}

func TestFieldStats(t *testing.T) {
	svc, _ := testService(t)
	ctx := context.Background()

	record, err := svc.Encrypt(ctx, types.FieldTypeAddress, "221B Baker Street")
	require.NoError(t, err)
	_, err = svc.Decrypt(ctx, record)
	require.NoError(t, err)
	_, err = svc.Decrypt(ctx, record)
	require.NoError(t, err)

	stats := svc.GetStats()
	assert.Equal(t, uint64(1), stats.TotalEncrypts)
	assert.Equal(t, uint64(2), stats.TotalDecrypts)
	assert.False(t, stats.LastOpTime.IsZero())
}
