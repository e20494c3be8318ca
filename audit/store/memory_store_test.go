package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

func entry(id, operation string, fieldType types.FieldType, at time.Time) *types.AuditEntry {
	return &types.AuditEntry{
		ID:            id,
		Timestamp:     at,
		Operation:     operation,
		FieldType:     fieldType,
		KeyGeneration: 1,
		Outcome:       "success",
		Context:       map[string]string{"subjectId": "s-" + id},
	}
}

func TestMemoryStoreQueryFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Append(ctx, entry("1", "encrypt", types.FieldTypeEmail, base)))
	require.NoError(t, s.Append(ctx, entry("2", "decrypt", types.FieldTypeEmail, base.Add(time.Hour))))
	require.NoError(t, s.Append(ctx, entry("3", "encrypt", types.FieldTypeTaxID, base.Add(2*time.Hour))))

	tests := []struct {
		name    string
		filter  types.AuditFilter
		wantIDs []string
	}{
		{name: "no filter", filter: types.AuditFilter{}, wantIDs: []string{"1", "2", "3"}},
		{name: "by operation", filter: types.AuditFilter{Operation: "encrypt"}, wantIDs: []string{"1", "3"}},
		{name: "by field type", filter: types.AuditFilter{FieldType: types.FieldTypeEmail}, wantIDs: []string{"1", "2"}},
		{name: "from", filter: types.AuditFilter{From: base.Add(time.Hour)}, wantIDs: []string{"2", "3"}},
		{name: "to", filter: types.AuditFilter{To: base.Add(time.Hour)}, wantIDs: []string{"1", "2"}},
		{name: "window", filter: types.AuditFilter{From: base.Add(30 * time.Minute), To: base.Add(90 * time.Minute)}, wantIDs: []string{"2"}},
		{name: "combined", filter: types.AuditFilter{Operation: "encrypt", FieldType: types.FieldTypeTaxID}, wantIDs: []string{"3"}},
		{name: "no match", filter: types.AuditFilter{Operation: "rotate"}, wantIDs: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.Query(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, e := range entries {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	original := entry("1", "encrypt", types.FieldTypeEmail, time.Now().UTC())
	require.NoError(t, s.Append(ctx, original))

	// Mutating the appended entry afterwards must not change the ledger.
	original.Operation = "tampered"
	original.Context["subjectId"] = "tampered"

	entries, err := s.Query(ctx, types.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "encrypt", entries[0].Operation)
	assert.Equal(t, "s-1", entries[0].Context["subjectId"])

	// Mutating a queried entry must not either.
	entries[0].Operation = "tampered"
	again, err := s.Query(ctx, types.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, "encrypt", again[0].Operation)
}
