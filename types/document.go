package types

import (
	"time"
)

// EncryptedChunk is one fixed-size slice of an encrypted document. Chunk
// indices are contiguous starting at zero; the index and the owning document
// ID are part of the AEAD associated data, so chunks cannot be reordered or
// spliced in from another document without failing authentication.
type EncryptedChunk struct {
	Index         int    `json:"index" bson:"index"`
	Ciphertext    []byte `json:"ciphertext" bson:"ciphertext"`
	Nonce         []byte `json:"nonce" bson:"nonce"`
	KeyGeneration int    `json:"keyGeneration" bson:"keyGeneration"`
}

// EncryptedDocument is an ordered sequence of encrypted chunks plus the
// metadata needed to reassemble the original file.
type EncryptedDocument struct {
	SubjectID     string           `json:"subjectId" bson:"subjectId"`
	DocumentID    string           `json:"documentId" bson:"documentId"` // Bound into every chunk's AAD
	FieldType     FieldType        `json:"fieldType" bson:"fieldType"`
	FileName      string           `json:"fileName" bson:"fileName"`
	TotalSize     int64            `json:"totalSize" bson:"totalSize"`
	ChunkCount    int              `json:"chunkCount" bson:"chunkCount"`
	Chunks        []EncryptedChunk `json:"chunks" bson:"chunks"`
	KeyGeneration int              `json:"keyGeneration" bson:"keyGeneration"`
	CreatedAt     time.Time        `json:"createdAt" bson:"createdAt"`
}

// ProgressFunc receives the completion percentage (0-100) after each chunk
// operation. Percentages are monotonically increasing; the final call always
// reports 100.
type ProgressFunc func(percent int)

// DocumentStats holds statistics about document encryption operations
type DocumentStats struct {
	TotalEncrypts   uint64    `json:"totalEncrypts" bson:"totalEncrypts"`
	TotalDecrypts   uint64    `json:"totalDecrypts" bson:"totalDecrypts"`
	TotalChunks     uint64    `json:"totalChunks" bson:"totalChunks"`
	LastEncryptTime time.Time `json:"lastEncryptTime" bson:"lastEncryptTime"`
	LastDecryptTime time.Time `json:"lastDecryptTime" bson:"lastDecryptTime"`
}
