package keyring

import (
	"context"
	"fmt"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// RotationTxn is an in-progress key rotation. It holds the session's
// exclusive lock from Begin until Commit or Rollback, so no new cipher
// operation can start against any generation while it is open. The raw old
// and new keys are captured up front so re-encryption can proceed without
// going through the locked session.
type RotationTxn struct {
	s      *Session
	oldGen int
	newGen int
	oldKey []byte
	newKey []byte
	done   bool
}

// BeginRotation stages a new generation and locks the session. Exactly one
// rotation may be open at a time; a second call fails with
// ErrRotationInProgress. The caller keeps ownership of newKey and should
// zero it after Begin returns.
func (s *Session) BeginRotation(ctx context.Context, newKM *types.KeyMaterial, newKey []byte) (*RotationTxn, error) {
	if !s.rotating.CompareAndSwap(false, true) {
		return nil, types.ErrRotationInProgress
	}

	s.mu.Lock()

	fail := func(err error) (*RotationTxn, error) {
		s.mu.Unlock()
		s.rotating.Store(false)
		return nil, err
	}

	if s.cleared {
		return fail(types.ErrSessionCleared)
	}
	if s.active < 0 {
		return fail(fmt.Errorf("no active key generation to rotate"))
	}
	if newKM == nil || newKM.Generation != s.active+1 {
		return fail(fmt.Errorf("rotation requires generation %d", s.active+1))
	}

	oldKey, err := s.unwrapLocked(ctx, s.active)
	if err != nil {
		return fail(fmt.Errorf("failed to unwrap retiring key: %w", err))
	}

	// Stage the new generation without activating it
	if err := s.addGenerationLocked(ctx, newKM, newKey, false); err != nil {
		types.Zero(oldKey)
		return fail(err)
	}

	txn := &RotationTxn{
		s:      s,
		oldGen: s.active,
		newGen: newKM.Generation,
		oldKey: oldKey,
		newKey: append([]byte(nil), newKey...),
	}

	s.logger.Debug().
		Int("oldGeneration", txn.oldGen).
		Int("newGeneration", txn.newGen).
		Msg("Rotation started, session locked")

	return txn, nil
}

// OldGeneration returns the generation being retired.
func (t *RotationTxn) OldGeneration() int { return t.oldGen }

// NewGeneration returns the generation being promoted.
func (t *RotationTxn) NewGeneration() int { return t.newGen }

// OldKey returns the raw key bytes of the retiring generation. Valid until
// Commit or Rollback.
func (t *RotationTxn) OldKey() []byte { return t.oldKey }

// NewKey returns the raw key bytes of the staged generation. Valid until
// Commit or Rollback.
func (t *RotationTxn) NewKey() []byte { return t.newKey }

// Commit promotes the new generation, retires and zeroes the old one, and
// releases the lock.
func (t *RotationTxn) Commit() {
	if t.done {
		return
	}
	t.done = true

	s := t.s
	s.active = t.newGen
	if old, ok := s.generations[t.oldGen]; ok {
		old.Blob = nil
		old.Retired = true
	}
	t.zeroKeys()

	s.logger.Debug().
		Int("activeGeneration", t.newGen).
		Int("retiredGeneration", t.oldGen).
		Msg("Rotation committed, old key zeroed")

	s.mu.Unlock()
	s.rotating.Store(false)
}

// Rollback drops the staged generation and releases the lock. The old
// generation stays active and its key is not zeroed, so existing records
// remain readable.
func (t *RotationTxn) Rollback() {
	if t.done {
		return
	}
	t.done = true

	s := t.s
	delete(s.generations, t.newGen)
	t.zeroKeys()

	s.logger.Debug().
		Int("activeGeneration", t.oldGen).
		Int("droppedGeneration", t.newGen).
		Msg("Rotation rolled back, old key preserved")

	s.mu.Unlock()
	s.rotating.Store(false)
}

func (t *RotationTxn) zeroKeys() {
	types.Zero(t.oldKey)
	types.Zero(t.newKey)
	t.oldKey = nil
	t.newKey = nil
}
