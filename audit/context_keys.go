// Package audit provides the append-only ledger for encryption operations.
package audit

import (
	"context"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// Context keys for engine operations
const (
	KeySubjectID ContextKey = "subjectId" // record being operated on
	KeyFieldName ContextKey = "fieldName" // field being encrypted/decrypted
	KeyFileName  ContextKey = "fileName"  // document file name
	KeyActorID   ContextKey = "actorId"   // caller identity if supplied
	KeyError     ContextKey = "error"     // error message if operation failed
)

// WithSubject adds the subject ID to the context
func WithSubject(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, KeySubjectID, subjectID)
}

// WithActor adds caller identity to the context
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, KeyActorID, actorID)
}

// contextString extracts a string context value, empty if unset.
func contextString(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// ApplyContext copies subject and actor information from the context onto an
// entry, when present.
func ApplyContext(ctx context.Context, entry *types.AuditEntry) {
	if entry == nil || entry.Context == nil {
		return
	}
	if subject := contextString(ctx, KeySubjectID); subject != "" {
		entry.Context[string(KeySubjectID)] = subject
	}
	if actor := contextString(ctx, KeyActorID); actor != "" {
		entry.Context[string(KeyActorID)] = actor
	}
}
