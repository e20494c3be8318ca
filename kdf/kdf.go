// Package kdf derives per-session symmetric key material from a user secret.
package kdf

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

const minSecretLength = 8

// Deriver turns a user secret plus a per-generation salt into symmetric key
// material using Argon2id. The same (secret, salt) pair always derives the
// same key bytes; salts are unique per generation so keys are unlinkable
// across users and generations.
type Deriver struct {
	params types.Argon2Params
}

// NewDeriver creates a deriver with the given work factors.
func NewDeriver(params types.Argon2Params) *Deriver {
	return &Deriver{params: params}
}

// CheckSecret enforces the minimum entropy policy: length of at least
// eight characters and absence from the common-password blocklist.
func (d *Deriver) CheckSecret(secret string) error {
	if len(secret) < minSecretLength {
		return fmt.Errorf("secret shorter than %d characters: %w", minSecretLength, types.ErrWeakSecret)
	}
	if _, blocked := commonSecrets[strings.ToLower(secret)]; blocked {
		return fmt.Errorf("secret appears in common-password blocklist: %w", types.ErrWeakSecret)
	}
	return nil
}

// GenerateSalt returns a fresh cryptographically random salt.
func (d *Deriver) GenerateSalt() ([]byte, error) {
	salt := make([]byte, d.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", types.ErrEncryptionFailed)
	}
	return salt, nil
}

// Derive produces key material for the given generation. When salt is nil a
// fresh random salt is generated. The returned key bytes are owned by the
// caller, who is responsible for zeroing them once wrapped or discarded.
// No network or disk I/O occurs here.
func (d *Deriver) Derive(secret string, salt []byte, generation int) (*types.KeyMaterial, []byte, error) {
	if err := d.CheckSecret(secret); err != nil {
		return nil, nil, err
	}

	if salt == nil {
		var err error
		salt, err = d.GenerateSalt()
		if err != nil {
			return nil, nil, err
		}
	}

	start := time.Now()
	key := argon2.IDKey([]byte(secret), salt, d.params.Time, d.params.MemoryK, d.params.Threads, d.params.KeyLen)

	log.Debug().
		Int("generation", generation).
		Int("saltLen", len(salt)).
		Dur("duration", time.Since(start)).
		Msg("Derived key material")

	km := &types.KeyMaterial{
		Generation: generation,
		Salt:       salt,
		CreatedAt:  time.Now().UTC(),
	}

	return km, key, nil
}
