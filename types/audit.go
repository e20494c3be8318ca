package types

import (
	"time"
)

// AuditEntry records one engine operation in the append-only ledger.
// Entries are generation-tagged and retained across key rotation.
type AuditEntry struct {
	ID            string            `json:"id" bson:"_id"`
	Timestamp     time.Time         `json:"timestamp" bson:"timestamp"`
	Operation     string            `json:"operation" bson:"operation"` // encrypt, decrypt, rotate, sweep, access_denied
	FieldType     FieldType         `json:"fieldType,omitempty" bson:"fieldType,omitempty"`
	KeyGeneration int               `json:"keyGeneration" bson:"keyGeneration"`
	Outcome       string            `json:"outcome" bson:"outcome"` // success or failed
	Context       map[string]string `json:"context,omitempty" bson:"context,omitempty"`
}

// AuditFilter selects ledger entries by time range, field type or operation.
// Zero values match everything.
type AuditFilter struct {
	From      time.Time `json:"from" bson:"from"`
	To        time.Time `json:"to" bson:"to"`
	FieldType FieldType `json:"fieldType" bson:"fieldType"`
	Operation string    `json:"operation" bson:"operation"`
}

// Matches reports whether the entry passes every non-zero filter criterion.
func (f AuditFilter) Matches(e *AuditEntry) bool {
	if e == nil {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	if f.FieldType != "" && e.FieldType != f.FieldType {
		return false
	}
	if f.Operation != "" && e.Operation != f.Operation {
		return false
	}
	return true
}
