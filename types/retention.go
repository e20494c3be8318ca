package types

import (
	"time"
)

// RetentionRecord attaches an expiry to an encrypted record. When the sweep
// runs past ExpiresAt, the referenced ciphertext is purged and zeroed.
type RetentionRecord struct {
	SubjectID string    `json:"subjectId" bson:"subjectId"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}
