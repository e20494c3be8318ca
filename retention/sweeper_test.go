package retention

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-sector/escrow-kyc-module-encryption/audit"
	auditstore "github.com/root-sector/escrow-kyc-module-encryption/audit/store"
	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
	"github.com/root-sector/escrow-kyc-module-encryption/vault"
)

func seedVault(t *testing.T, registry interfaces.RecordVault, subjectIDs ...string) {
	t.Helper()
	for _, id := range subjectIDs {
		require.NoError(t, registry.PutField(&types.EncryptedField{
			SubjectID:     id,
			FieldType:     types.FieldTypeEmail,
			Ciphertext:    "Y2lwaGVy",
			Nonce:         "bm9uY2U=",
			KeyGeneration: 1,
		}))
	}
}

func TestSweepPurgesExpired(t *testing.T) {
	registry := vault.New()
	ledger := audit.NewLedger(auditstore.NewMemoryStore())
	sweeper := NewSweeper(registry, ledger)
	ctx := context.Background()

	seedVault(t, registry, "expired-a", "expired-b", "fresh")
	sweeper.SetRetention("expired-a", time.Minute)
	sweeper.SetRetention("expired-b", time.Minute)
	sweeper.SetRetention("fresh", 24*time.Hour)

	purged, err := sweeper.SweepExpired(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"expired-a", "expired-b"}, purged)

	_, err = registry.GetField("expired-a")
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
	_, err = registry.GetField("fresh")
	assert.NoError(t, err)

	// The audit trail of purged subjects is retained.
	entries, err := ledger.Query(ctx, types.AuditFilter{Operation: audit.OperationSweep})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSweepNothingExpired(t *testing.T) {
	registry := vault.New()
	sweeper := NewSweeper(registry, nil)

	seedVault(t, registry, "s1")
	sweeper.SetRetention("s1", time.Hour)

	purged, err := sweeper.SweepExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, purged)
	assert.Equal(t, 1, registry.Len())
}

func TestSweepDeadlineReplaced(t *testing.T) {
	registry := vault.New()
	sweeper := NewSweeper(registry, nil)

	seedVault(t, registry, "s1")
	sweeper.SetRetention("s1", time.Minute)
	sweeper.SetRetention("s1", 24*time.Hour) // extends the deadline

	purged, err := sweeper.SweepExpired(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, purged)
}

func TestSweepIsIdempotent(t *testing.T) {
	registry := vault.New()
	sweeper := NewSweeper(registry, nil)

	seedVault(t, registry, "s1")
	sweeper.SetRetention("s1", time.Minute)

	now := time.Now().Add(time.Hour)
	purged, err := sweeper.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, purged, 1)

	purged, err = sweeper.SweepExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, purged)
}

func TestSweepUnknownSubject(t *testing.T) {
	sweeper := NewSweeper(vault.New(), nil)
	sweeper.SetRetention("never-registered", time.Minute)

	// Nothing to purge in the vault, so nothing is reported.
	purged, err := sweeper.SweepExpired(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, purged)
}
