// Package document encrypts file byte streams in fixed-size chunks.
package document

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/escrow-kyc-module-encryption/audit"
	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/symmetric"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// documentService implements the interfaces.DocumentCipher interface
type documentService struct {
	keyring   interfaces.Keyring
	ledger    interfaces.AuditLedger
	chunkSize int

	// Counters are atomic; the timestamps need the mutex.
	statsMu sync.Mutex
	stats   types.DocumentStats
}

// NewService creates a new document encryption service. The chunk size comes
// from the engine config; zero or negative falls back to the default.
func NewService(keyring interfaces.Keyring, ledger interfaces.AuditLedger, chunkSize int) interfaces.DocumentCipher {
	if chunkSize <= 0 {
		chunkSize = types.DefaultChunkSize
	}

	log.Debug().
		Int("chunkSize", chunkSize).
		Bool("hasLedger", ledger != nil).
		Msg("Creating new document service")

	return &documentService{
		keyring:   keyring,
		ledger:    ledger,
		chunkSize: chunkSize,
	}
}

// chunkAAD binds the key generation, the owning document ID and the chunk's
// position within the document into the authenticated data. A chunk moved to
// another index, another document or another generation fails authentication.
func chunkAAD(generation int, documentID string, index, chunkCount int) []byte {
	return []byte(fmt.Sprintf("g%d:%s:%d/%d", generation, documentID, index, chunkCount))
}

// chunkCountFor returns the number of chunks for a payload of the given size.
// A zero-byte payload still produces one (empty) chunk so the document always
// carries at least one authentication tag.
func chunkCountFor(size, chunkSize int) int {
	if size == 0 {
		return 1
	}
	return (size + chunkSize - 1) / chunkSize
}

func (s *documentService) logAccess(ctx context.Context, operation string, fieldType types.FieldType, generation int, err error) {
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

// EncryptWithKey seals a document under an explicit key. The rotation manager
// uses this while the keyring is locked; regular callers go through Encrypt.
func EncryptWithKey(ctx context.Context, key []byte, generation, chunkSize int, fieldType types.FieldType, fileName string, data []byte, onProgress types.ProgressFunc) (*types.EncryptedDocument, error) {
	if chunkSize <= 0 {
		chunkSize = types.DefaultChunkSize
	}

	cipher, err := symmetric.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	documentID := uuid.New().String()
	chunkCount := chunkCountFor(len(data), chunkSize)
	chunks := make([]types.EncryptedChunk, 0, chunkCount)

	for i := 0; i < chunkCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		start := i * chunkSize
		end := start + chunkSize
		if end > len(data) {
			end = len(data)
		}

		ciphertext, nonce, err := cipher.Encrypt(data[start:end], chunkAAD(generation, documentID, i, chunkCount))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt chunk %d: %w", i, err)
		}

		chunks = append(chunks, types.EncryptedChunk{
			Index:         i,
			Ciphertext:    ciphertext,
			Nonce:         nonce,
			KeyGeneration: generation,
		})

		if onProgress != nil {
			onProgress((i + 1) * 100 / chunkCount)
		}
	}

	return &types.EncryptedDocument{
		DocumentID:    documentID,
		FieldType:     fieldType,
		FileName:      fileName,
		TotalSize:     int64(len(data)),
		ChunkCount:    chunkCount,
		Chunks:        chunks,
		KeyGeneration: generation,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// DecryptWithKey verifies and reassembles a document under an explicit key.
// The first failing chunk aborts the operation; its index is named in the
// error, which wraps ErrDecryptionFailed.
func DecryptWithKey(ctx context.Context, key []byte, doc *types.EncryptedDocument, onProgress types.ProgressFunc) ([]byte, error) {
	if doc.ChunkCount != len(doc.Chunks) || doc.ChunkCount == 0 {
		return nil, fmt.Errorf("document chunk count mismatch: %w", types.ErrDecryptionFailed)
	}
	if doc.TotalSize < 0 {
		return nil, fmt.Errorf("document size mismatch: %w", types.ErrDecryptionFailed)
	}

	cipher, err := symmetric.New(key)
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}

	// Size the buffer from the chunks actually supplied, never from the
	// unauthenticated TotalSize header.
	capacity := 0
	for _, chunk := range doc.Chunks {
		capacity += len(chunk.Ciphertext)
	}
	plaintext := make([]byte, 0, capacity)
	for i, chunk := range doc.Chunks {
		if err := ctx.Err(); err != nil {
			types.Zero(plaintext)
			return nil, err
		}

		// A reordered, duplicated or missing chunk shows up as an index
		// that does not match its position.
		if chunk.Index != i {
			types.Zero(plaintext)
			return nil, fmt.Errorf("chunk %d out of sequence: %w", i, types.ErrDecryptionFailed)
		}

		data, err := cipher.Decrypt(chunk.Ciphertext, chunk.Nonce, chunkAAD(doc.KeyGeneration, doc.DocumentID, i, doc.ChunkCount))
		if err != nil {
			types.Zero(plaintext)
			return nil, fmt.Errorf("chunk %d failed authentication: %w", i, types.ErrDecryptionFailed)
		}
		plaintext = append(plaintext, data...)
		types.Zero(data)

		if onProgress != nil {
			onProgress((i + 1) * 100 / doc.ChunkCount)
		}
	}

	if int64(len(plaintext)) != doc.TotalSize {
		types.Zero(plaintext)
		return nil, fmt.Errorf("document size mismatch: %w", types.ErrDecryptionFailed)
	}

	return plaintext, nil
}

// Encrypt splits data into chunks and encrypts each under the active key
// generation. onProgress, if non-nil, is called after each chunk with the
// completion percentage; the final call always reports 100.
func (s *documentService) Encrypt(ctx context.Context, fieldType types.FieldType, fileName string, data []byte, onProgress types.ProgressFunc) (*types.EncryptedDocument, error) {
	if !fieldType.Valid() {
		return nil, fmt.Errorf("unsupported field type %q", fieldType)
	}

	key, generation, err := s.keyring.ActiveKey(ctx)
	if err != nil {
		s.logAccess(ctx, audit.OperationEncrypt, fieldType, -1, err)
		return nil, fmt.Errorf("failed to get active key: %w", err)
	}
	defer types.Zero(key)

	doc, err := EncryptWithKey(ctx, key, generation, s.chunkSize, fieldType, fileName, data, onProgress)
	if err != nil {
		s.logAccess(ctx, audit.OperationEncrypt, fieldType, generation, err)
		return nil, err
	}

	atomic.AddUint64(&s.stats.TotalEncrypts, 1)
	atomic.AddUint64(&s.stats.TotalChunks, uint64(doc.ChunkCount))
	s.statsMu.Lock()
	s.stats.LastEncryptTime = time.Now().UTC()
	s.statsMu.Unlock()

	s.logAccess(ctx, audit.OperationEncrypt, fieldType, generation, nil)
	return doc, nil
}

// Decrypt verifies and reassembles a document encrypted under any known key
// generation.
func (s *documentService) Decrypt(ctx context.Context, doc *types.EncryptedDocument, onProgress types.ProgressFunc) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}

	key, err := s.keyring.KeyForGeneration(ctx, doc.KeyGeneration)
	if err != nil {
		s.logAccess(ctx, audit.OperationAccessDenied, doc.FieldType, doc.KeyGeneration, types.ErrDecryptionFailed)
		return nil, types.ErrDecryptionFailed
	}
	defer types.Zero(key)

	plaintext, err := DecryptWithKey(ctx, key, doc, onProgress)
	if err != nil {
		s.logAccess(ctx, audit.OperationAccessDenied, doc.FieldType, doc.KeyGeneration, err)
		return nil, err
	}

	atomic.AddUint64(&s.stats.TotalDecrypts, 1)
	atomic.AddUint64(&s.stats.TotalChunks, uint64(doc.ChunkCount))
	s.statsMu.Lock()
	s.stats.LastDecryptTime = time.Now().UTC()
	s.statsMu.Unlock()

	s.logAccess(ctx, audit.OperationDecrypt, doc.FieldType, doc.KeyGeneration, nil)
	return plaintext, nil
}

// GetStats returns statistics about document encryption operations
func (s *documentService) GetStats() *types.DocumentStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return &types.DocumentStats{
		TotalEncrypts:   atomic.LoadUint64(&s.stats.TotalEncrypts),
		TotalDecrypts:   atomic.LoadUint64(&s.stats.TotalDecrypts),
		TotalChunks:     atomic.LoadUint64(&s.stats.TotalChunks),
		LastEncryptTime: s.stats.LastEncryptTime,
		LastDecryptTime: s.stats.LastDecryptTime,
	}
}
