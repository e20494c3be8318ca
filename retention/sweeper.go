// Package retention tracks record expiry and purges records past it.
package retention

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/root-sector/escrow-kyc-module-encryption/audit"
	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// Sweeper implements interfaces.Sweeper. It keeps retention deadlines per
// subject ID and purges expired records from the vault on demand. It never
// schedules itself; the caller decides when SweepExpired runs.
type Sweeper struct {
	mu      sync.Mutex
	records map[string]types.RetentionRecord
	vault   interfaces.RecordVault
	ledger  interfaces.AuditLedger
}

// NewSweeper creates a sweeper over the vault.
func NewSweeper(vault interfaces.RecordVault, ledger interfaces.AuditLedger) interfaces.Sweeper {
	return &Sweeper{
		records: make(map[string]types.RetentionRecord),
		vault:   vault,
		ledger:  ledger,
	}
}

// SetRetention attaches an expiry to a subject ID, replacing any earlier
// deadline.
func (s *Sweeper) SetRetention(subjectID string, ttl time.Duration) {
	expiresAt := time.Now().UTC().Add(ttl)

	s.mu.Lock()
	s.records[subjectID] = types.RetentionRecord{
		SubjectID: subjectID,
		ExpiresAt: expiresAt,
	}
	s.mu.Unlock()

	log.Debug().
		Str("subjectId", subjectID).
		Time("expiresAt", expiresAt).
		Msg("Retention deadline set")
}

// SweepExpired purges every record whose deadline is at or before now and
// returns the purged subject IDs in deterministic order. Purged ciphertext
// is zeroed by the vault; the audit trail of the purged subjects is kept.
func (s *Sweeper) SweepExpired(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	var expired []string
	for id, record := range s.records {
		if !record.ExpiresAt.After(now) {
			expired = append(expired, id)
			delete(s.records, id)
		}
	}
	s.mu.Unlock()

	sort.Strings(expired)

	var purged []string
	for _, id := range expired {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		if s.vault.Purge(id) {
			purged = append(purged, id)
		}
		s.logSweep(ctx, id)
	}

	if len(purged) > 0 {
		log.Info().
			Int("purged", len(purged)).
			Msg("Retention sweep completed")
	}

	return purged, nil
}

func (s *Sweeper) logSweep(ctx context.Context, subjectID string) {
	if s.ledger == nil {
		return
	}
	entry := audit.NewEntry(audit.OperationSweep, "", -1, audit.OutcomeSuccess)
	entry.Context[string(audit.KeySubjectID)] = subjectID
	if err := s.ledger.Append(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("Failed to append sweep audit entry")
	}
}
