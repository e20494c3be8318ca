// Package proof generates and verifies submission proofs over manifests of
// encrypted records.
package proof

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/hkdf"

	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// signingKeyInfo separates the proof signing key from the encryption key in
// the HKDF domain. The encryption key itself never signs anything.
const signingKeyInfo = "kyc-submission-proof-v1"

// service implements the interfaces.ProofService interface
type service struct {
	keyring interfaces.Keyring
	maxAge  time.Duration
}

// NewService creates a proof service. Proofs older than maxAge fail
// verification; zero or negative falls back to the default.
func NewService(keyring interfaces.Keyring, maxAge time.Duration) interfaces.ProofService {
	if maxAge <= 0 {
		maxAge = types.DefaultProofMaxAge
	}
	return &service{keyring: keyring, maxAge: maxAge}
}

// Generate seals the manifest under the active key generation.
func (s *service) Generate(ctx context.Context, manifest *types.Manifest) (*types.SubmissionProof, error) {
	if manifest == nil {
		return nil, fmt.Errorf("manifest is nil")
	}

	key, generation, err := s.keyring.ActiveKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get active key: %w", err)
	}
	defer types.Zero(key)

	hash := payloadHash(manifest)
	timestamp := time.Now().UTC()

	signature, err := sign(key, hash, timestamp, generation)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("fields", len(manifest.Fields)).
		Int("documents", len(manifest.Documents)).
		Int("keyGeneration", generation).
		Msg("Submission proof generated")

	return &types.SubmissionProof{
		PayloadHash:   hash,
		Signature:     signature,
		Timestamp:     timestamp,
		KeyGeneration: generation,
	}, nil
}

// Verify recomputes the proof over the manifest and compares in constant
// time. Any mismatch, an unknown or retired generation, a future timestamp
// or an expired proof all return false without distinguishing why.
func (s *service) Verify(ctx context.Context, manifest *types.Manifest, proof *types.SubmissionProof) bool {
	if manifest == nil || proof == nil {
		return false
	}

	now := time.Now().UTC()
	if proof.Timestamp.After(now) || now.Sub(proof.Timestamp) > s.maxAge {
		return false
	}

	key, err := s.keyring.KeyForGeneration(ctx, proof.KeyGeneration)
	if err != nil {
		return false
	}
	defer types.Zero(key)

	hash := payloadHash(manifest)
	if !hmac.Equal(hash, proof.PayloadHash) {
		return false
	}

	expected, err := sign(key, hash, proof.Timestamp, proof.KeyGeneration)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, proof.Signature)
}

// sign derives a dedicated signing key from the generation key via
// HKDF-SHA256 and tags the hash, timestamp and generation with HMAC-SHA256.
func sign(key, hash []byte, timestamp time.Time, generation int) ([]byte, error) {
	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(signingKeyInfo)), signingKey); err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer types.Zero(signingKey)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(hash)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(timestamp.UnixNano()))
	mac.Write(ts[:])

	var gen [4]byte
	binary.BigEndian.PutUint32(gen[:], uint32(generation))
	mac.Write(gen[:])

	return mac.Sum(nil), nil
}

// payloadHash computes the SHA-256 of the canonical manifest serialization.
// Records are sorted by subject ID and every variable-length part is length
// prefixed, so the encoding is unambiguous and independent of insertion
// order.
func payloadHash(manifest *types.Manifest) []byte {
	h := sha256.New()

	fields := make([]*types.EncryptedField, len(manifest.Fields))
	copy(fields, manifest.Fields)
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].SubjectID != fields[j].SubjectID {
			return fields[i].SubjectID < fields[j].SubjectID
		}
		return fields[i].FieldType < fields[j].FieldType
	})

	docs := make([]*types.EncryptedDocument, len(manifest.Documents))
	copy(docs, manifest.Documents)
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].SubjectID != docs[j].SubjectID {
			return docs[i].SubjectID < docs[j].SubjectID
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})

	writeInt(h, len(fields))
	for _, f := range fields {
		writeBytes(h, []byte(f.SubjectID))
		writeBytes(h, []byte(f.FieldType))
		writeBytes(h, []byte(f.Ciphertext))
		writeBytes(h, []byte(f.Nonce))
		writeInt(h, f.KeyGeneration)
	}

	writeInt(h, len(docs))
	for _, d := range docs {
		writeBytes(h, []byte(d.SubjectID))
		writeBytes(h, []byte(d.DocumentID))
		writeBytes(h, []byte(d.FieldType))
		writeBytes(h, []byte(d.FileName))
		writeInt(h, int(d.TotalSize))
		writeInt(h, d.KeyGeneration)
		writeInt(h, d.ChunkCount)
		for _, c := range d.Chunks {
			writeInt(h, c.Index)
			writeBytes(h, c.Ciphertext)
			writeBytes(h, c.Nonce)
		}
	}

	return h.Sum(nil)
}

func writeBytes(w io.Writer, b []byte) {
	writeInt(w, len(b))
	w.Write(b)
}

func writeInt(w io.Writer, n int) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	w.Write(buf[:])
}
