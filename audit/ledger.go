package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// Operations recorded in the ledger
const (
	OperationEncrypt      = "encrypt"
	OperationDecrypt      = "decrypt"
	OperationRotate       = "rotate"
	OperationSweep        = "sweep"
	OperationAccessDenied = "access_denied"

	// Outcomes
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Ledger is the append-only audit ledger. Append is the only mutation; the
// backing store is otherwise read-only and queryable by time range, field
// type or operation.
type Ledger struct {
	store interfaces.LedgerStore
}

// NewLedger creates a ledger over the given store.
func NewLedger(store interfaces.LedgerStore) *Ledger {
	return &Ledger{store: store}
}

// NewEntry creates an audit entry with essential fields populated.
func NewEntry(operation string, fieldType types.FieldType, generation int, outcome string) *types.AuditEntry {
	return &types.AuditEntry{
		ID:            uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		Operation:     operation,
		FieldType:     fieldType,
		KeyGeneration: generation,
		Outcome:       outcome,
		Context:       make(map[string]string),
	}
}

// RecordAccess appends an entry for an engine operation, picking up subject
// and actor information from the context when present.
func (l *Ledger) RecordAccess(ctx context.Context, operation string, fieldType types.FieldType, generation int, outcome string) error {
	entry := NewEntry(operation, fieldType, generation, outcome)
	ApplyContext(ctx, entry)
	return l.Append(ctx, entry)
}

// Append adds an entry to the ledger, filling in missing defaults.
func (l *Ledger) Append(ctx context.Context, entry *types.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("entry cannot be nil")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.Context == nil {
		entry.Context = make(map[string]string)
	}

	if err := l.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	logEvent := log.Debug().
		Str("auditId", entry.ID).
		Time("timestamp", entry.Timestamp).
		Str("operation", entry.Operation).
		Str("outcome", entry.Outcome).
		Int("keyGeneration", entry.KeyGeneration)
	if entry.FieldType != "" {
		logEvent = logEvent.Str("fieldType", string(entry.FieldType))
	}
	if subject := entry.Context[string(KeySubjectID)]; subject != "" {
		logEvent = logEvent.Str("subjectId", subject)
	}
	if errMsg := entry.Context[string(KeyError)]; errMsg != "" {
		logEvent = logEvent.Str("error", errMsg)
	}
	logEvent.Msg("Audit entry")

	return nil
}

// Query retrieves entries matching the filter.
func (l *Ledger) Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEntry, error) {
	return l.store.Query(ctx, filter)
}
