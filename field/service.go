// Package field encrypts and decrypts individual PII values.
package field

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/root-sector/escrow-kyc-module-encryption/audit"
	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/symmetric"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// fieldService implements the interfaces.FieldCipher interface
type fieldService struct {
	keyring interfaces.Keyring
	ledger  interfaces.AuditLedger

	// Counters are atomic; the timestamps need the mutex.
	statsMu sync.Mutex
	stats   types.FieldStats
}

// NewService creates a new field encryption service.
func NewService(keyring interfaces.Keyring, ledger interfaces.AuditLedger) interfaces.FieldCipher {
	log.Debug().
		Bool("hasKeyring", keyring != nil).
		Bool("hasLedger", ledger != nil).
		Msg("Creating new field service")

	return &fieldService{
		keyring: keyring,
		ledger:  ledger,
	}
}

// aadFor binds the key generation and declared field type into the
// authenticated data. A record decrypted under a different generation or
// with a swapped field type fails authentication.
func aadFor(generation int, fieldType types.FieldType) []byte {
	return []byte(fmt.Sprintf("g%d:%s", generation, fieldType))
}

// EncryptWithKey seals a value under an explicit key. The rotation manager
// uses this while the keyring is locked; regular callers go through Encrypt.
func EncryptWithKey(key []byte, generation int, fieldType types.FieldType, plaintext string) (*types.EncryptedField, error) {
	cipher, err := symmetric.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	ciphertext, nonce, err := cipher.Encrypt([]byte(plaintext), aadFor(generation, fieldType))
	if err != nil {
		return nil, err
	}

	return &types.EncryptedField{
		FieldType:     fieldType,
		Ciphertext:    base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:         base64.StdEncoding.EncodeToString(nonce),
		KeyGeneration: generation,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// DecryptWithKey opens a record under an explicit key. Every failure collapses
// to ErrDecryptionFailed.
func DecryptWithKey(key []byte, record *types.EncryptedField) ([]byte, error) {
	cipher, err := symmetric.New(key)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(record.Ciphertext)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	nonce, err := base64.StdEncoding.DecodeString(record.Nonce)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}

	return cipher.Decrypt(ciphertext, nonce, aadFor(record.KeyGeneration, record.FieldType))
}

func (s *fieldService) logAccess(ctx context.Context, operation string, fieldType types.FieldType, generation int, err error) {
	if s.ledger == nil {
		return
	}
	outcome := audit.OutcomeSuccess
	if err != nil {
		outcome = audit.OutcomeFailed
	}
	entry := audit.NewEntry(operation, fieldType, generation, outcome)
	audit.ApplyContext(ctx, entry)
	if err != nil {
		entry.Context[string(audit.KeyError)] = err.Error()
	}
	if appendErr := s.ledger.Append(ctx, entry); appendErr != nil {
		log.Warn().Err(appendErr).Msg("Failed to append audit entry")
	}
}

// Encrypt encrypts a plaintext value under the active key generation.
func (s *fieldService) Encrypt(ctx context.Context, fieldType types.FieldType, plaintext string) (*types.EncryptedField, error) {
	if !fieldType.Valid() {
		return nil, fmt.Errorf("unsupported field type %q", fieldType)
	}

	key, generation, err := s.keyring.ActiveKey(ctx)
	if err != nil {
		s.logAccess(ctx, audit.OperationEncrypt, fieldType, -1, err)
		return nil, fmt.Errorf("failed to get active key: %w", err)
	}
	defer types.Zero(key)

	record, err := EncryptWithKey(key, generation, fieldType, plaintext)
	if err != nil {
		s.logAccess(ctx, audit.OperationEncrypt, fieldType, generation, err)
		return nil, err
	}

	atomic.AddUint64(&s.stats.TotalEncrypts, 1)
	now := time.Now().UTC()
	s.statsMu.Lock()
	s.stats.LastEncryptTime = now
	s.stats.LastOpTime = now
	s.statsMu.Unlock()

	s.logAccess(ctx, audit.OperationEncrypt, fieldType, generation, nil)
	return record, nil
}

// Decrypt recovers the plaintext of an encrypted field. The key generation
// recorded on the field selects the key; any mismatch, retired generation or
// tampered ciphertext yields the same generic error.
func (s *fieldService) Decrypt(ctx context.Context, record *types.EncryptedField) (string, error) {
	if record == nil {
		return "", fmt.Errorf("record is nil")
	}

	plaintext, err := s.open(ctx, record)
	if err != nil {
		s.logAccess(ctx, audit.OperationAccessDenied, record.FieldType, record.KeyGeneration, err)
		return "", err
	}

	atomic.AddUint64(&s.stats.TotalDecrypts, 1)
	now := time.Now().UTC()
	s.statsMu.Lock()
	s.stats.LastDecryptTime = now
	s.stats.LastOpTime = now
	s.statsMu.Unlock()

	s.logAccess(ctx, audit.OperationDecrypt, record.FieldType, record.KeyGeneration, nil)
	return string(plaintext), nil
}

// open performs the decryption without audit or stats side effects. Every
// failure collapses to ErrDecryptionFailed so the error payload never
// distinguishes wrong key from corrupted ciphertext.
func (s *fieldService) open(ctx context.Context, record *types.EncryptedField) ([]byte, error) {
	key, err := s.keyring.KeyForGeneration(ctx, record.KeyGeneration)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	defer types.Zero(key)

	return DecryptWithKey(key, record)
}

// Verify checks the integrity of an encrypted field without returning the
// plaintext.
func (s *fieldService) Verify(ctx context.Context, record *types.EncryptedField) error {
	if record == nil {
		return fmt.Errorf("record is nil")
	}
	if record.Ciphertext == "" {
		return fmt.Errorf("ciphertext is required")
	}
	if record.Nonce == "" {
		return fmt.Errorf("nonce is required")
	}

	plaintext, err := s.open(ctx, record)
	if err != nil {
		return err
	}
	types.Zero(plaintext)
	return nil
}

// GetStats returns statistics about field encryption operations
func (s *fieldService) GetStats() *types.FieldStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return &types.FieldStats{
		TotalEncrypts:   atomic.LoadUint64(&s.stats.TotalEncrypts),
		TotalDecrypts:   atomic.LoadUint64(&s.stats.TotalDecrypts),
		LastEncryptTime: s.stats.LastEncryptTime,
		LastDecryptTime: s.stats.LastDecryptTime,
		LastOpTime:      s.stats.LastOpTime,
	}
}
