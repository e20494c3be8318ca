package types

import (
	"time"
)

// Manifest is the set of encrypted records sealed by one submission proof.
// The proof is computed over a canonical serialization, so logically
// identical manifests produce identical hashes regardless of the order in
// which records were added.
type Manifest struct {
	Fields    []*EncryptedField    `json:"fields" bson:"fields"`
	Documents []*EncryptedDocument `json:"documents" bson:"documents"`
}

// SubmissionProof binds a manifest to a point in time. PayloadHash is the
// SHA-256 of the canonical manifest bytes; Signature is an HMAC-SHA256 tag
// under a signing key derived from the key generation named by
// KeyGeneration.
type SubmissionProof struct {
	PayloadHash   []byte    `json:"payloadHash" bson:"payloadHash"`
	Signature     []byte    `json:"signature" bson:"signature"`
	Timestamp     time.Time `json:"timestamp" bson:"timestamp"`
	KeyGeneration int       `json:"keyGeneration" bson:"keyGeneration"`
}
