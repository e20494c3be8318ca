// Package interfaces defines all service interfaces for the engine.
// IMPORTANT: This is the single source of truth for service interfaces.
// Do not define interfaces in other files.
package interfaces

import (
	"context"
	"time"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// Key Interfaces
// Keyring defines the interface for session key material access. Key bytes
// returned by Key methods are copies; callers should zero them after use.
type Keyring interface {
	// ActiveGeneration returns the generation number of the active key
	ActiveGeneration() int

	// ActiveKey returns the active key bytes and their generation
	ActiveKey(ctx context.Context) ([]byte, int, error)

	// KeyForGeneration returns the key bytes for a specific generation.
	// Retired generations yield an error.
	KeyForGeneration(ctx context.Context, generation int) ([]byte, error)

	// Generations lists the key material metadata for all known generations
	Generations() []types.KeyMaterial

	// Clear zeroes all key material immediately
	Clear()
}

// Cipher Interfaces
// FieldCipher defines the interface for encrypting individual PII values
type FieldCipher interface {
	// Encrypt encrypts a plaintext value under the active key generation
	Encrypt(ctx context.Context, fieldType types.FieldType, plaintext string) (*types.EncryptedField, error)

	// Decrypt recovers the plaintext of an encrypted field. Any
	// authentication failure yields types.ErrDecryptionFailed.
	Decrypt(ctx context.Context, record *types.EncryptedField) (string, error)

	// Verify checks the integrity of an encrypted field without returning
	// plaintext
	Verify(ctx context.Context, record *types.EncryptedField) error

	// GetStats returns statistics about field encryption operations
	GetStats() *types.FieldStats
}

// DocumentCipher defines the interface for encrypting file byte streams in
// fixed-size chunks
type DocumentCipher interface {
	// Encrypt splits data into chunks and encrypts each under the active key
	// generation, reporting progress after each chunk
	Encrypt(ctx context.Context, fieldType types.FieldType, fileName string, data []byte, onProgress types.ProgressFunc) (*types.EncryptedDocument, error)

	// Decrypt verifies and reassembles a document. The first failing chunk
	// aborts the operation and its index is reported in the error.
	Decrypt(ctx context.Context, doc *types.EncryptedDocument, onProgress types.ProgressFunc) ([]byte, error)

	// GetStats returns statistics about document encryption operations
	GetStats() *types.DocumentStats
}

// Batch Interfaces
// Coordinator defines the interface for concurrent batch operations with
// per-item results
type Coordinator interface {
	// EncryptBatch encrypts items concurrently up to the worker cap. Every
	// item gets a result; failures never discard other items' successes.
	EncryptBatch(ctx context.Context, items []types.BatchItem) *types.BatchReport

	// DecryptBatch decrypts records concurrently with the same semantics
	DecryptBatch(ctx context.Context, records []types.BatchRecord) *types.BatchReport
}

// Proof Interfaces
// ProofService defines the interface for submission proof generation
type ProofService interface {
	// Generate seals a manifest under the active key generation
	Generate(ctx context.Context, manifest *types.Manifest) (*types.SubmissionProof, error)

	// Verify recomputes the proof and compares in constant time. Returns
	// false on any mismatch, unknown generation or expired timestamp.
	Verify(ctx context.Context, manifest *types.Manifest, proof *types.SubmissionProof) bool
}

// Audit Interfaces
// LedgerStore defines the interface for audit ledger storage backends
type LedgerStore interface {
	// Append adds an entry; append is the only mutation
	Append(ctx context.Context, entry *types.AuditEntry) error

	// Query retrieves entries matching the filter
	Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEntry, error)
}

// AuditLedger defines the interface for the append-only audit ledger
type AuditLedger interface {
	// RecordAccess appends an entry for an engine operation
	RecordAccess(ctx context.Context, operation string, fieldType types.FieldType, generation int, outcome string) error

	// Append adds a fully populated entry
	Append(ctx context.Context, entry *types.AuditEntry) error

	// Query retrieves entries by time range, field type or operation
	Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEntry, error)
}

// Storage Interfaces
// RecordVault defines the interface for the in-memory encrypted record
// registry
type RecordVault interface {
	// PutField registers an encrypted field under its subject ID
	PutField(record *types.EncryptedField) error

	// GetField returns the encrypted field for a subject ID
	GetField(subjectID string) (*types.EncryptedField, error)

	// PutDocument registers an encrypted document under its subject ID
	PutDocument(doc *types.EncryptedDocument) error

	// GetDocument returns the encrypted document for a subject ID
	GetDocument(subjectID string) (*types.EncryptedDocument, error)

	// Fields returns a snapshot of all registered fields
	Fields() map[string]*types.EncryptedField

	// Documents returns a snapshot of all registered documents
	Documents() map[string]*types.EncryptedDocument

	// ReplaceAll atomically swaps in re-encrypted records for the given
	// subject IDs
	ReplaceAll(fields map[string]*types.EncryptedField, docs map[string]*types.EncryptedDocument)

	// Purge removes a record and zeroes its ciphertext
	Purge(subjectID string) bool

	// Len returns the number of registered records
	Len() int
}

// Retention Interfaces
// Sweeper defines the interface for retention tracking and expiry sweeps
type Sweeper interface {
	// SetRetention attaches an expiry to a subject ID
	SetRetention(subjectID string, ttl time.Duration)

	// SweepExpired purges every record past expiry and returns the purged
	// subject IDs. Called by an external scheduler.
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
}
