package types

import (
	"time"
)

// FieldType identifies the kind of personal data held by an encrypted field.
// It is stored next to the ciphertext as authenticated-but-not-secret
// metadata: the value is folded into the AEAD associated data, so swapping
// the declared type of a record invalidates its authentication tag.
type FieldType string

const (
	FieldTypeFullName    FieldType = "full_name"
	FieldTypeDateOfBirth FieldType = "date_of_birth"
	FieldTypeNationalID  FieldType = "national_id"
	FieldTypeTaxID       FieldType = "tax_id"
	FieldTypeAddress     FieldType = "address"
	FieldTypePhone       FieldType = "phone"
	FieldTypeEmail       FieldType = "email"
	FieldTypeDocument    FieldType = "document"
)

// Valid reports whether ft is one of the supported field types.
func (ft FieldType) Valid() bool {
	switch ft {
	case FieldTypeFullName, FieldTypeDateOfBirth, FieldTypeNationalID,
		FieldTypeTaxID, FieldTypeAddress, FieldTypePhone,
		FieldTypeEmail, FieldTypeDocument:
		return true
	}
	return false
}

// EncryptedField holds one encrypted personal data value.
type EncryptedField struct {
	SubjectID     string    `json:"subjectId" bson:"subjectId"`         // Registry/retention reference
	FieldType     FieldType `json:"fieldType" bson:"fieldType"`         // Authenticated metadata
	Ciphertext    string    `json:"ciphertext" bson:"ciphertext"`       // Base64 encoded ciphertext incl. auth tag
	Nonce         string    `json:"nonce" bson:"nonce"`                 // Base64 encoded nonce
	KeyGeneration int       `json:"keyGeneration" bson:"keyGeneration"` // Generation of the key used
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// FieldStats holds statistics about field encryption operations
type FieldStats struct {
	TotalEncrypts   uint64    `json:"totalEncrypts" bson:"totalEncrypts"`
	TotalDecrypts   uint64    `json:"totalDecrypts" bson:"totalDecrypts"`
	LastEncryptTime time.Time `json:"lastEncryptTime" bson:"lastEncryptTime"`
	LastDecryptTime time.Time `json:"lastDecryptTime" bson:"lastDecryptTime"`
	LastOpTime      time.Time `json:"lastOpTime" bson:"lastOpTime"`
}
