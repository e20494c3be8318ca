package types

import (
	"time"
)

// BatchItem is one unit of work for the batch coordinator: either a field
// value or a document payload, never both.
type BatchItem struct {
	SubjectID string    `json:"subjectId" bson:"subjectId"` // Optional; assigned if empty
	FieldType FieldType `json:"fieldType" bson:"fieldType"`
	Value     string    `json:"value,omitempty" bson:"value,omitempty"`       // Field plaintext
	FileName  string    `json:"fileName,omitempty" bson:"fileName,omitempty"` // Document name
	Bytes     []byte    `json:"bytes,omitempty" bson:"bytes,omitempty"`       // Document payload
}

// IsDocument reports whether the item carries document bytes rather than a
// field value.
func (i BatchItem) IsDocument() bool {
	return i.Bytes != nil || i.FileName != ""
}

// BatchRecord is one encrypted record handed to a decrypt batch: either a
// field or a document, never both.
type BatchRecord struct {
	Field    *EncryptedField    `json:"field,omitempty" bson:"field,omitempty"`
	Document *EncryptedDocument `json:"document,omitempty" bson:"document,omitempty"`
}

// BatchResult is the per-item outcome of a batch operation. Exactly one of
// Field, Document, Value or Bytes is populated on success; Err is set on
// failure. One item failing never discards the results of the others.
type BatchResult struct {
	Index     int                `json:"index" bson:"index"`
	SubjectID string             `json:"subjectId" bson:"subjectId"`
	Field     *EncryptedField    `json:"field,omitempty" bson:"field,omitempty"`
	Document  *EncryptedDocument `json:"document,omitempty" bson:"document,omitempty"`
	Value     string             `json:"value,omitempty" bson:"value,omitempty"`
	Bytes     []byte             `json:"bytes,omitempty" bson:"bytes,omitempty"`
	Err       error              `json:"-" bson:"-"`
}

// BatchReport summarizes a finished batch.
type BatchReport struct {
	Total     int           `json:"total" bson:"total"`
	Succeeded int           `json:"succeeded" bson:"succeeded"`
	Failed    int           `json:"failed" bson:"failed"`
	Results   []BatchResult `json:"results" bson:"results"`
}

// RotationReport describes a completed or aborted key rotation.
type RotationReport struct {
	OldGeneration  int       `json:"oldGeneration" bson:"oldGeneration"`
	NewGeneration  int       `json:"newGeneration" bson:"newGeneration"`
	FieldsRotated  int       `json:"fieldsRotated" bson:"fieldsRotated"`
	DocsRotated    int       `json:"docsRotated" bson:"docsRotated"`
	FailedSubjects []string  `json:"failedSubjects,omitempty" bson:"failedSubjects,omitempty"`
	StartedAt      time.Time `json:"startedAt" bson:"startedAt"`
	CompletedAt    time.Time `json:"completedAt" bson:"completedAt"`
}
