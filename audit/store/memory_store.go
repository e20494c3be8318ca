// Package store provides storage backends for the audit ledger.
package store

import (
	"context"
	"sync"

	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// MemoryStore is the default in-process ledger backend. Entries are held in
// an append-only slice; Query returns copies so callers cannot mutate the
// ledger.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*types.AuditEntry
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() interfaces.LedgerStore {
	return &MemoryStore{}
}

// Append adds an entry. Entries are never mutated or removed afterwards.
func (s *MemoryStore) Append(ctx context.Context, entry *types.AuditEntry) error {
	stored := *entry
	if entry.Context != nil {
		stored.Context = make(map[string]string, len(entry.Context))
		for k, v := range entry.Context {
			stored.Context[k] = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &stored)
	return nil
}

// Query returns copies of all entries matching the filter, in append order.
func (s *MemoryStore) Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.AuditEntry
	for _, e := range s.entries {
		if filter.Matches(e) {
			entry := *e
			if e.Context != nil {
				entry.Context = make(map[string]string, len(e.Context))
				for k, v := range e.Context {
					entry.Context[k] = v
				}
			}
			out = append(out, &entry)
		}
	}
	return out, nil
}
