// Package vault holds the in-memory registry of encrypted records. The
// rotation manager re-encrypts everything registered here, and the retention
// sweeper purges from here.
package vault

import (
	"fmt"
	"sync"

	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// Vault implements interfaces.RecordVault with plain maps under a mutex.
// Records never leave the process; persistence is out of scope for a
// client-side engine.
type Vault struct {
	mu     sync.RWMutex
	fields map[string]*types.EncryptedField
	docs   map[string]*types.EncryptedDocument
}

// New creates an empty vault.
func New() interfaces.RecordVault {
	return &Vault{
		fields: make(map[string]*types.EncryptedField),
		docs:   make(map[string]*types.EncryptedDocument),
	}
}

// PutField registers an encrypted field under its subject ID.
func (v *Vault) PutField(record *types.EncryptedField) error {
	if record == nil || record.SubjectID == "" {
		return fmt.Errorf("record requires a subject ID")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.fields[record.SubjectID] = record
	return nil
}

// GetField returns the encrypted field for a subject ID.
func (v *Vault) GetField(subjectID string) (*types.EncryptedField, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	record, ok := v.fields[subjectID]
	if !ok {
		return nil, types.ErrRecordNotFound
	}
	return record, nil
}

// PutDocument registers an encrypted document under its subject ID.
func (v *Vault) PutDocument(doc *types.EncryptedDocument) error {
	if doc == nil || doc.SubjectID == "" {
		return fmt.Errorf("document requires a subject ID")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.docs[doc.SubjectID] = doc
	return nil
}

// GetDocument returns the encrypted document for a subject ID.
func (v *Vault) GetDocument(subjectID string) (*types.EncryptedDocument, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	doc, ok := v.docs[subjectID]
	if !ok {
		return nil, types.ErrRecordNotFound
	}
	return doc, nil
}

// Fields returns a snapshot of all registered fields.
func (v *Vault) Fields() map[string]*types.EncryptedField {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]*types.EncryptedField, len(v.fields))
	for id, record := range v.fields {
		out[id] = record
	}
	return out
}

// Documents returns a snapshot of all registered documents.
func (v *Vault) Documents() map[string]*types.EncryptedDocument {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]*types.EncryptedDocument, len(v.docs))
	for id, doc := range v.docs {
		out[id] = doc
	}
	return out
}

// ReplaceAll swaps in re-encrypted records in one step, so readers never see
// a mix of old and new generations for the given subjects.
func (v *Vault) ReplaceAll(fields map[string]*types.EncryptedField, docs map[string]*types.EncryptedDocument) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for id, record := range fields {
		v.fields[id] = record
	}
	for id, doc := range docs {
		v.docs[id] = doc
	}
}

// Purge removes a record and zeroes its chunk ciphertexts. Returns false if
// no record existed for the subject ID.
func (v *Vault) Purge(subjectID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	_, hadField := v.fields[subjectID]
	delete(v.fields, subjectID)

	doc, hadDoc := v.docs[subjectID]
	if hadDoc {
		for i := range doc.Chunks {
			types.Zero(doc.Chunks[i].Ciphertext)
			types.Zero(doc.Chunks[i].Nonce)
		}
		delete(v.docs, subjectID)
	}

	return hadField || hadDoc
}

// Len returns the number of registered records.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.fields) + len(v.docs)
}
