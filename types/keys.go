package types

import (
	"crypto/subtle"
	"runtime"
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
)

// SecureBytes represents a secure byte slice that will be wiped on garbage collection
type SecureBytes struct {
	data []byte
}

// NewSecureBytes creates a new secure byte slice
func NewSecureBytes(data []byte) *SecureBytes {
	secure := &SecureBytes{
		data: make([]byte, len(data)),
	}
	// Copy data using secure copy to prevent optimizations
	subtle.ConstantTimeCopy(1, secure.data, data)

	// Register finalizer to wipe memory when garbage collected
	runtime.SetFinalizer(secure, (*SecureBytes).Clear)
	return secure
}

// Clear securely wipes the memory
func (s *SecureBytes) Clear() {
	if s.data != nil {
		for i := range s.data {
			s.data[i] = 0
		}
		// Prevent compiler optimizations
		runtime.KeepAlive(s.data)
		s.data = nil
	}
}

// Get returns a copy of the data
func (s *SecureBytes) Get() []byte {
	if s.data == nil {
		return nil
	}
	result := make([]byte, len(s.data))
	subtle.ConstantTimeCopy(1, result, s.data)
	return result
}

// Zero overwrites a byte slice with zeros to clear sensitive data from memory.
func Zero(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// KeyMaterial describes one generation of derived key material held by a
// session. The raw key bytes are never stored here: the session keyring keeps
// them wrapped and unwraps on demand.
type KeyMaterial struct {
	// Generation is a monotonically increasing identifier. Generation 1 is
	// created on session initialization; each rotation increments it.
	Generation int `json:"generation" bson:"generation"`

	// Salt is the derivation salt for this generation. Unique per generation.
	Salt []byte `json:"salt" bson:"salt"`

	// Blob holds the derived key wrapped under the session key. Never
	// serialized.
	Blob *wrapping.BlobInfo `json:"-" bson:"-"`

	// Retired marks a generation whose key bytes have been zeroed after a
	// completed rotation.
	Retired bool `json:"retired" bson:"retired"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// Argon2Params holds the work factors for password-based key derivation.
type Argon2Params struct {
	Time    uint32 `json:"time" bson:"time"`
	MemoryK uint32 `json:"memoryK" bson:"memoryK"` // KiB
	Threads uint8  `json:"threads" bson:"threads"`
	KeyLen  uint32 `json:"keyLen" bson:"keyLen"`
	SaltLen int    `json:"saltLen" bson:"saltLen"`
}

// DefaultArgon2Params returns the documented default work factors:
// Argon2id with 1 pass over 64 MiB using 4 lanes, producing a 256-bit key.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:    1,
		MemoryK: 64 * 1024,
		Threads: 4,
		KeyLen:  32,
		SaltLen: 16,
	}
}
