// Package rotation re-encrypts every registered record under a new key
// generation as one atomic transaction.
package rotation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/root-sector/escrow-kyc-module-encryption/audit"
	"github.com/root-sector/escrow-kyc-module-encryption/document"
	"github.com/root-sector/escrow-kyc-module-encryption/field"
	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/kdf"
	"github.com/root-sector/escrow-kyc-module-encryption/keyring"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// Manager drives key rotation. The session lock held by the rotation
// transaction blocks every other cipher operation for the duration, so the
// vault can never hold a committed mix of generations.
type Manager struct {
	deriver   *kdf.Deriver
	session   *keyring.Session
	vault     interfaces.RecordVault
	ledger    interfaces.AuditLedger
	workers   int
	chunkSize int
}

// NewManager creates a rotation manager.
func NewManager(deriver *kdf.Deriver, session *keyring.Session, vault interfaces.RecordVault, ledger interfaces.AuditLedger, workers, chunkSize int) *Manager {
	if workers <= 0 {
		workers = types.DefaultWorkers
	}
	if chunkSize <= 0 {
		chunkSize = types.DefaultChunkSize
	}
	return &Manager{
		deriver:   deriver,
		session:   session,
		vault:     vault,
		ledger:    ledger,
		workers:   workers,
		chunkSize: chunkSize,
	}
}

// Rotate derives a new generation from newSecret with a fresh salt,
// re-encrypts every registered record under it, then promotes it and retires
// the old generation. If any record fails re-encryption the whole rotation
// rolls back: the old generation stays active, nothing in the vault changes,
// and the error names the failed subjects.
func (m *Manager) Rotate(ctx context.Context, newSecret string) (*types.RotationReport, error) {
	startedAt := time.Now().UTC()

	newGen := m.session.ActiveGeneration() + 1
	newKM, newKey, err := m.deriver.Derive(newSecret, nil, newGen)
	if err != nil {
		return nil, err
	}

	txn, err := m.session.BeginRotation(ctx, newKM, newKey)
	types.Zero(newKey)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("oldGeneration", txn.OldGeneration()).
		Int("newGeneration", txn.NewGeneration()).
		Msg("Key rotation started")

	fields := m.vault.Fields()
	docs := m.vault.Documents()

	newFields, newDocs, failed := m.reencryptAll(ctx, txn, fields, docs)
	if len(failed) > 0 {
		txn.Rollback()
		m.logRotation(ctx, txn.OldGeneration(), audit.OutcomeFailed)
		log.Warn().
			Strs("failedSubjects", failed).
			Msg("Key rotation aborted, old generation preserved")
		return nil, &types.RotationAbortedError{
			FailedSubjects: failed,
			Err:            types.ErrDecryptionFailed,
		}
	}

	m.vault.ReplaceAll(newFields, newDocs)
	txn.Commit()
	m.logRotation(ctx, newGen, audit.OutcomeSuccess)

	report := &types.RotationReport{
		OldGeneration: newGen - 1,
		NewGeneration: newGen,
		FieldsRotated: len(newFields),
		DocsRotated:   len(newDocs),
		StartedAt:     startedAt,
		CompletedAt:   time.Now().UTC(),
	}

	log.Info().
		Int("newGeneration", newGen).
		Int("fieldsRotated", report.FieldsRotated).
		Int("docsRotated", report.DocsRotated).
		Msg("Key rotation committed")

	return report, nil
}

// reencryptAll re-encrypts the snapshots concurrently, failing fast: the
// first error cancels the remaining work. The raw transaction keys are used
// directly since the session is locked for the duration.
func (m *Manager) reencryptAll(ctx context.Context, txn *keyring.RotationTxn, fields map[string]*types.EncryptedField, docs map[string]*types.EncryptedDocument) (map[string]*types.EncryptedField, map[string]*types.EncryptedDocument, []string) {
	var (
		mu        sync.Mutex
		failed    []string
		newFields = make(map[string]*types.EncryptedField, len(fields))
		newDocs   = make(map[string]*types.EncryptedDocument, len(docs))
	)

	fail := func(subjectID string) {
		mu.Lock()
		failed = append(failed, subjectID)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for subjectID, record := range fields {
		g.Go(func() error {
			plaintext, err := field.DecryptWithKey(txn.OldKey(), record)
			if err != nil {
				fail(subjectID)
				return err
			}
			defer types.Zero(plaintext)

			rotated, err := field.EncryptWithKey(txn.NewKey(), txn.NewGeneration(), record.FieldType, string(plaintext))
			if err != nil {
				fail(subjectID)
				return err
			}
			rotated.SubjectID = subjectID

			mu.Lock()
			newFields[subjectID] = rotated
			mu.Unlock()
			return nil
		})
	}

	for subjectID, doc := range docs {
		g.Go(func() error {
			data, err := document.DecryptWithKey(gctx, txn.OldKey(), doc, nil)
			if err != nil {
				fail(subjectID)
				return err
			}
			defer types.Zero(data)

			rotated, err := document.EncryptWithKey(gctx, txn.NewKey(), txn.NewGeneration(), m.chunkSize, doc.FieldType, doc.FileName, data, nil)
			if err != nil {
				fail(subjectID)
				return err
			}
			rotated.SubjectID = subjectID

			mu.Lock()
			newDocs[subjectID] = rotated
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return newFields, newDocs, failed
}

func (m *Manager) logRotation(ctx context.Context, generation int, outcome string) {
	if m.ledger == nil {
		return
	}
	if err := m.ledger.RecordAccess(ctx, audit.OperationRotate, "", generation, outcome); err != nil {
		log.Warn().Err(err).Msg("Failed to append rotation audit entry")
	}
}
