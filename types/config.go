package types

import (
	"time"
)

const (
	// DefaultChunkSize is the plaintext chunk size for document encryption.
	DefaultChunkSize = 64 * 1024

	// DefaultWorkers is the batch coordinator concurrency cap.
	DefaultWorkers = 4

	// DefaultProofMaxAge is how long a submission proof stays verifiable.
	DefaultProofMaxAge = 15 * time.Minute
)

// EngineConfig holds configuration for the encryption engine. The zero value
// is usable; GetEffective* methods apply defaults.
type EngineConfig struct {
	// Workers is the number of concurrent workers for batch operations
	Workers int `json:"workers" bson:"workers"`

	// ChunkSize is the plaintext chunk size in bytes for document encryption
	ChunkSize int `json:"chunkSize" bson:"chunkSize"`

	// ProofMaxAge is the maximum accepted age of a submission proof
	ProofMaxAge time.Duration `json:"proofMaxAge" bson:"proofMaxAge"`

	// Derivation holds the password derivation work factors
	Derivation *Argon2Params `json:"derivation" bson:"derivation"`
}

// GetEffectiveWorkers returns the configured worker count or the default.
func (c *EngineConfig) GetEffectiveWorkers() int {
	if c != nil && c.Workers > 0 {
		return c.Workers
	}
	return DefaultWorkers
}

// GetEffectiveChunkSize returns the configured chunk size or the default.
func (c *EngineConfig) GetEffectiveChunkSize() int {
	if c != nil && c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return DefaultChunkSize
}

// GetEffectiveProofMaxAge returns the configured proof max age or the default.
func (c *EngineConfig) GetEffectiveProofMaxAge() time.Duration {
	if c != nil && c.ProofMaxAge > 0 {
		return c.ProofMaxAge
	}
	return DefaultProofMaxAge
}

// GetEffectiveDerivation returns the configured derivation parameters or the
// defaults.
func (c *EngineConfig) GetEffectiveDerivation() Argon2Params {
	if c != nil && c.Derivation != nil {
		return *c.Derivation
	}
	return DefaultArgon2Params()
}
