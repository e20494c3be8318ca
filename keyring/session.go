// Package keyring holds per-session key material. Derived keys are never
// kept raw in memory between calls: each generation is wrapped under a
// random session key and unwrapped on demand, mirroring how wrapped data
// encryption keys are handled server-side.
package keyring

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	wrapping "github.com/hashicorp/go-kms-wrapping/v2"
	kmsaead "github.com/hashicorp/go-kms-wrapping/v2/aead"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// Session is the key material context for one user session. All cipher
// operations fetch keys through it; rotation takes its exclusive lock so no
// new operation can start against a retiring generation.
type Session struct {
	mu          sync.RWMutex
	rotating    atomic.Bool
	wrapper     *kmsaead.Wrapper
	sessionKey  *types.SecureBytes
	generations map[int]*types.KeyMaterial
	active      int
	cleared     bool
	logger      zerolog.Logger
}

// NewSession creates a session with a fresh random session key backing the
// in-memory wrapper.
func NewSession(ctx context.Context) (*Session, error) {
	sessionKey := make([]byte, 32)
	if _, err := rand.Read(sessionKey); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", types.ErrEncryptionFailed)
	}

	wrapper := kmsaead.NewWrapper()
	opts := []wrapping.Option{kmsaead.WithKey(sessionKey)}
	if _, err := wrapper.SetConfig(ctx, opts...); err != nil {
		types.Zero(sessionKey)
		return nil, fmt.Errorf("failed to configure session wrapper: %w", err)
	}

	s := &Session{
		wrapper:     wrapper,
		sessionKey:  types.NewSecureBytes(sessionKey),
		generations: make(map[int]*types.KeyMaterial),
		active:      -1,
		logger:      log.With().Str("component", "keyring").Logger(),
	}
	types.Zero(sessionKey)

	s.logger.Debug().Msg("Session keyring initialized")
	return s, nil
}

func wrapContext(generation int) []byte {
	return []byte(fmt.Sprintf("g%d", generation))
}

// AddGeneration wraps key bytes under the session key and registers them.
// The first generation added becomes active. The caller keeps ownership of
// key and should zero it afterwards.
func (s *Session) AddGeneration(ctx context.Context, km *types.KeyMaterial, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addGenerationLocked(ctx, km, key, s.active < 0)
}

// addGenerationLocked wraps, verifies and stores one generation. Callers
// must hold the write lock.
func (s *Session) addGenerationLocked(ctx context.Context, km *types.KeyMaterial, key []byte, activate bool) error {
	if s.cleared {
		return types.ErrSessionCleared
	}
	if km == nil || len(key) == 0 {
		return fmt.Errorf("key material is required")
	}
	if _, exists := s.generations[km.Generation]; exists {
		return fmt.Errorf("key generation %d already registered", km.Generation)
	}

	aad := wrapContext(km.Generation)

	blob, err := s.wrapper.Encrypt(ctx, key, wrapping.WithAad(aad))
	if err != nil {
		return fmt.Errorf("failed to wrap key: %w", err)
	}
	if blob == nil {
		return fmt.Errorf("wrapped key info is nil")
	}

	// Verify unwrap before trusting the blob
	unwrapped, err := s.wrapper.Decrypt(ctx, blob, wrapping.WithAad(aad))
	if err != nil {
		return fmt.Errorf("failed to verify wrapped key: %w", err)
	}
	if !bytes.Equal(unwrapped, key) {
		types.Zero(unwrapped)
		return fmt.Errorf("unwrapped key does not match original")
	}
	types.Zero(unwrapped)

	stored := &types.KeyMaterial{
		Generation: km.Generation,
		Salt:       append([]byte(nil), km.Salt...),
		Blob:       blob,
		CreatedAt:  km.CreatedAt,
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.generations[km.Generation] = stored
	if activate {
		s.active = km.Generation
	}

	s.logger.Debug().
		Int("generation", km.Generation).
		Bool("active", activate).
		Msg("Key generation registered")

	return nil
}

// ActiveGeneration returns the generation number of the active key, or -1
// if none is registered.
func (s *Session) ActiveGeneration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// ActiveKey returns a copy of the active key bytes and their generation.
func (s *Session) ActiveKey(ctx context.Context) ([]byte, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cleared {
		return nil, 0, types.ErrSessionCleared
	}
	if s.active < 0 {
		return nil, 0, fmt.Errorf("no active key generation")
	}
	key, err := s.unwrapLocked(ctx, s.active)
	if err != nil {
		return nil, 0, err
	}
	return key, s.active, nil
}

// KeyForGeneration returns a copy of the key bytes for a generation. A
// missing or retired generation is indistinguishable from an
// authentication failure.
func (s *Session) KeyForGeneration(ctx context.Context, generation int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cleared {
		return nil, types.ErrSessionCleared
	}
	return s.unwrapLocked(ctx, generation)
}

// unwrapLocked decrypts the wrapped key for a generation. Callers must hold
// at least the read lock.
func (s *Session) unwrapLocked(ctx context.Context, generation int) ([]byte, error) {
	km, ok := s.generations[generation]
	if !ok || km.Retired || km.Blob == nil {
		return nil, types.ErrDecryptionFailed
	}

	key, err := s.wrapper.Decrypt(ctx, km.Blob, wrapping.WithAad(wrapContext(generation)))
	if err != nil {
		return nil, types.ErrDecryptionFailed
	}
	return key, nil
}

// Generations lists metadata for all known generations, newest first. The
// wrapped blobs are not included.
func (s *Session) Generations() []types.KeyMaterial {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.KeyMaterial, 0, len(s.generations))
	for _, km := range s.generations {
		out = append(out, types.KeyMaterial{
			Generation: km.Generation,
			Salt:       append([]byte(nil), km.Salt...),
			Retired:    km.Retired,
			CreatedAt:  km.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Generation > out[j].Generation })
	return out
}

// Salt returns the derivation salt for a generation.
func (s *Session) Salt(generation int) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	km, ok := s.generations[generation]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), km.Salt...), true
}

// Clear zeroes the session key and drops every wrapped generation. All
// subsequent key requests fail.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cleared {
		return
	}
	s.sessionKey.Clear()
	for _, km := range s.generations {
		km.Blob = nil
		km.Retired = true
	}
	s.generations = make(map[int]*types.KeyMaterial)
	s.active = -1
	s.cleared = true

	s.logger.Debug().Msg("Session key material cleared")
}
