// Package engine is the public facade over key derivation, the ciphers,
// batching, rotation, proofs, retention and the audit ledger.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/escrow-kyc-module-encryption/audit"
	auditstore "github.com/root-sector/escrow-kyc-module-encryption/audit/store"
	"github.com/root-sector/escrow-kyc-module-encryption/batch"
	"github.com/root-sector/escrow-kyc-module-encryption/document"
	"github.com/root-sector/escrow-kyc-module-encryption/field"
	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/kdf"
	"github.com/root-sector/escrow-kyc-module-encryption/keyring"
	"github.com/root-sector/escrow-kyc-module-encryption/proof"
	"github.com/root-sector/escrow-kyc-module-encryption/retention"
	"github.com/root-sector/escrow-kyc-module-encryption/rotation"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
	"github.com/root-sector/escrow-kyc-module-encryption/vault"
)

// Engine is the client-side encryption engine. All PII passed in is
// encrypted before it leaves the process; the engine itself performs no
// network I/O.
type Engine struct {
	mu      sync.RWMutex
	cfg     *types.EngineConfig
	deriver *kdf.Deriver
	ledger  *audit.Ledger
	vault   interfaces.RecordVault

	session  *keyring.Session
	fields   interfaces.FieldCipher
	docs     interfaces.DocumentCipher
	batch    interfaces.Coordinator
	proofs   interfaces.ProofService
	sweeper  interfaces.Sweeper
	rotation *rotation.Manager
}

// New creates an engine. A nil config uses defaults throughout; a nil store
// keeps the audit ledger in memory.
func New(cfg *types.EngineConfig, store interfaces.LedgerStore) *Engine {
	if store == nil {
		store = auditstore.NewMemoryStore()
	}
	return &Engine{
		cfg:     cfg,
		deriver: kdf.NewDeriver(cfg.GetEffectiveDerivation()),
		ledger:  audit.NewLedger(store),
		vault:   vault.New(),
	}
}

// Initialize derives the first key generation from the user secret and wires
// up the ciphers. With a nil salt a fresh one is generated; passing a stored
// salt back in reproduces the same key, which is how a returning user regains
// access to previously encrypted records. The salt in use is returned.
func (e *Engine) Initialize(ctx context.Context, secret string, salt []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return nil, fmt.Errorf("engine already initialized")
	}

	km, key, err := e.deriver.Derive(secret, salt, 1)
	if err != nil {
		return nil, err
	}
	defer types.Zero(key)

	session, err := keyring.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := session.AddGeneration(ctx, km, key); err != nil {
		session.Clear()
		return nil, err
	}

	e.session = session
	e.fields = field.NewService(session, e.ledger)
	e.docs = document.NewService(session, e.ledger, e.cfg.GetEffectiveChunkSize())
	e.batch = batch.NewCoordinator(e.fields, e.docs, e.vault, e.cfg.GetEffectiveWorkers())
	e.proofs = proof.NewService(session, e.cfg.GetEffectiveProofMaxAge())
	e.sweeper = retention.NewSweeper(e.vault, e.ledger)
	e.rotation = rotation.NewManager(e.deriver, session, e.vault, e.ledger,
		e.cfg.GetEffectiveWorkers(), e.cfg.GetEffectiveChunkSize())

	log.Info().
		Int("generation", km.Generation).
		Msg("Engine initialized")

	return km.Salt, nil
}

func (e *Engine) ready() error {
	if e.session == nil {
		return fmt.Errorf("engine not initialized")
	}
	return nil
}

// EncryptField encrypts a single PII value and registers it in the vault.
// An empty subjectID gets a generated one; the subject ID used is on the
// returned record.
func (e *Engine) EncryptField(ctx context.Context, subjectID string, fieldType types.FieldType, value string) (*types.EncryptedField, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}

	if subjectID == "" {
		subjectID = uuid.New().String()
	}

	record, err := e.fields.Encrypt(audit.WithSubject(ctx, subjectID), fieldType, value)
	if err != nil {
		return nil, err
	}
	record.SubjectID = subjectID

	if err := e.vault.PutField(record); err != nil {
		return nil, err
	}
	return record, nil
}

// DecryptField recovers the plaintext of a registered field.
func (e *Engine) DecryptField(ctx context.Context, subjectID string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return "", err
	}

	record, err := e.vault.GetField(subjectID)
	if err != nil {
		return "", err
	}
	return e.fields.Decrypt(audit.WithSubject(ctx, subjectID), record)
}

// EncryptDocument encrypts a file payload in chunks and registers it in the
// vault.
func (e *Engine) EncryptDocument(ctx context.Context, subjectID string, fieldType types.FieldType, fileName string, data []byte, onProgress types.ProgressFunc) (*types.EncryptedDocument, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}

	if subjectID == "" {
		subjectID = uuid.New().String()
	}

	doc, err := e.docs.Encrypt(audit.WithSubject(ctx, subjectID), fieldType, fileName, data, onProgress)
	if err != nil {
		return nil, err
	}
	doc.SubjectID = subjectID

	if err := e.vault.PutDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DecryptDocument verifies and reassembles a registered document.
func (e *Engine) DecryptDocument(ctx context.Context, subjectID string, onProgress types.ProgressFunc) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}

	doc, err := e.vault.GetDocument(subjectID)
	if err != nil {
		return nil, err
	}
	return e.docs.Decrypt(audit.WithSubject(ctx, subjectID), doc, onProgress)
}

// EncryptBatch encrypts items concurrently with per-item results.
func (e *Engine) EncryptBatch(ctx context.Context, items []types.BatchItem) (*types.BatchReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.batch.EncryptBatch(ctx, items), nil
}

// DecryptBatch decrypts records concurrently with per-item results.
func (e *Engine) DecryptBatch(ctx context.Context, records []types.BatchRecord) (*types.BatchReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.batch.DecryptBatch(ctx, records), nil
}

// Rotate re-encrypts every registered record under a key derived from
// newSecret and retires the old generation. On failure nothing changes and
// the error names the failed subjects.
func (e *Engine) Rotate(ctx context.Context, newSecret string) (*types.RotationReport, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.rotation.Rotate(ctx, newSecret)
}

// Manifest assembles all currently registered records for proof generation.
func (e *Engine) Manifest() *types.Manifest {
	manifest := &types.Manifest{}
	for _, record := range e.vault.Fields() {
		manifest.Fields = append(manifest.Fields, record)
	}
	for _, doc := range e.vault.Documents() {
		manifest.Documents = append(manifest.Documents, doc)
	}
	return manifest
}

// GenerateProof seals a manifest under the active key generation.
func (e *Engine) GenerateProof(ctx context.Context, manifest *types.Manifest) (*types.SubmissionProof, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.proofs.Generate(ctx, manifest)
}

// VerifyProof recomputes a proof over the manifest. False on any mismatch.
func (e *Engine) VerifyProof(ctx context.Context, manifest *types.Manifest, p *types.SubmissionProof) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return false
	}
	return e.proofs.Verify(ctx, manifest, p)
}

// SetRetention attaches an expiry to a subject ID.
func (e *Engine) SetRetention(subjectID string, ttl time.Duration) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return err
	}
	e.sweeper.SetRetention(subjectID, ttl)
	return nil
}

// SweepExpired purges records past their retention deadline and returns the
// purged subject IDs. The caller schedules when this runs.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.sweeper.SweepExpired(ctx, now)
}

// QueryAudit retrieves ledger entries by time range, field type or operation.
func (e *Engine) QueryAudit(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEntry, error) {
	return e.ledger.Query(ctx, filter)
}

// KeyGenerations lists metadata for all known key generations, newest first.
func (e *Engine) KeyGenerations() []types.KeyMaterial {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.session == nil {
		return nil
	}
	return e.session.Generations()
}

// FieldStats returns field cipher statistics.
func (e *Engine) FieldStats() *types.FieldStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.fields == nil {
		return &types.FieldStats{}
	}
	return e.fields.GetStats()
}

// DocumentStats returns document cipher statistics.
func (e *Engine) DocumentStats() *types.DocumentStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.docs == nil {
		return &types.DocumentStats{}
	}
	return e.docs.GetStats()
}

// ClearSession zeroes all key material. Encrypted records stay in the vault
// but cannot be decrypted until a new engine is initialized with the same
// secret and salt.
func (e *Engine) ClearSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Clear()
	}
	log.Info().Msg("Session cleared")
}
