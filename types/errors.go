package types

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWeakSecret is returned when a secret fails the minimum entropy
	// policy. Recoverable by re-prompting the user.
	ErrWeakSecret = errors.New("secret does not meet minimum entropy policy")

	// ErrEncryptionFailed is returned when the underlying primitive fails
	// during encryption (for example the random source is unavailable).
	// The operation may be retried.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed is returned on any authentication failure: wrong
	// key, wrong generation or tampered ciphertext. The cause is deliberately
	// not distinguished.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrRotationInProgress is returned when a rotation is requested while
	// another one holds the session lock.
	ErrRotationInProgress = errors.New("key rotation already in progress")

	// ErrSessionCleared is returned when key material is requested after the
	// session was cleared.
	ErrSessionCleared = errors.New("session key material has been cleared")

	// ErrRecordNotFound is returned when a subject ID has no registered
	// record.
	ErrRecordNotFound = errors.New("record not found")
)

// RotationAbortedError reports a rotation that was rolled back because one or
// more records failed to re-encrypt. The previous key generation is left
// intact so the failed records stay readable.
type RotationAbortedError struct {
	FailedSubjects []string
	Err            error
}

func (e *RotationAbortedError) Error() string {
	return fmt.Sprintf("rotation aborted, old key preserved (failed subjects: %s): %v",
		strings.Join(e.FailedSubjects, ", "), e.Err)
}

func (e *RotationAbortedError) Unwrap() error {
	return e.Err
}
