// Package batch runs encrypt and decrypt operations concurrently with
// per-item results.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

// coordinator implements the interfaces.Coordinator interface. Concurrency
// is capped by a weighted semaphore; every submitted item always gets a
// result slot, so one failure never hides the outcome of the others.
type coordinator struct {
	fields  interfaces.FieldCipher
	docs    interfaces.DocumentCipher
	vault   interfaces.RecordVault
	workers int64
}

// NewCoordinator creates a batch coordinator over the two ciphers. Results
// of successful encryptions are registered in the vault when one is given.
func NewCoordinator(fields interfaces.FieldCipher, docs interfaces.DocumentCipher, vault interfaces.RecordVault, workers int) interfaces.Coordinator {
	if workers <= 0 {
		workers = types.DefaultWorkers
	}

	log.Debug().
		Int("workers", workers).
		Msg("Creating new batch coordinator")

	return &coordinator{
		fields:  fields,
		docs:    docs,
		vault:   vault,
		workers: int64(workers),
	}
}

// EncryptBatch encrypts items concurrently up to the worker cap. On context
// cancellation, in-flight items finish and unstarted items report the
// context error; already completed results are kept.
func (c *coordinator) EncryptBatch(ctx context.Context, items []types.BatchItem) *types.BatchReport {
	results := make([]types.BatchResult, len(items))

	sem := semaphore.NewWeighted(c.workers)
	var wg sync.WaitGroup

	for i, item := range items {
		results[i].Index = i

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, item types.BatchItem) {
			defer wg.Done()
			defer sem.Release(1)
			c.encryptItem(ctx, item, &results[i])
		}(i, item)
	}

	wg.Wait()
	return buildReport(results)
}

// DecryptBatch decrypts records concurrently with the same per-item
// semantics as EncryptBatch.
func (c *coordinator) DecryptBatch(ctx context.Context, records []types.BatchRecord) *types.BatchReport {
	results := make([]types.BatchResult, len(records))

	sem := semaphore.NewWeighted(c.workers)
	var wg sync.WaitGroup

	for i, record := range records {
		results[i].Index = i

		if err := sem.Acquire(ctx, 1); err != nil {
			results[i].Err = err
			continue
		}

		wg.Add(1)
		go func(i int, record types.BatchRecord) {
			defer wg.Done()
			defer sem.Release(1)
			c.decryptItem(ctx, record, &results[i])
		}(i, record)
	}

	wg.Wait()
	return buildReport(results)
}

func (c *coordinator) encryptItem(ctx context.Context, item types.BatchItem, result *types.BatchResult) {
	subjectID := item.SubjectID
	if subjectID == "" {
		subjectID = uuid.New().String()
	}
	result.SubjectID = subjectID

	if item.IsDocument() {
		doc, err := c.docs.Encrypt(ctx, item.FieldType, item.FileName, item.Bytes, nil)
		if err != nil {
			result.Err = err
			return
		}
		doc.SubjectID = subjectID
		result.Document = doc
		if c.vault != nil {
			result.Err = c.vault.PutDocument(doc)
		}
		return
	}

	record, err := c.fields.Encrypt(ctx, item.FieldType, item.Value)
	if err != nil {
		result.Err = err
		return
	}
	record.SubjectID = subjectID
	result.Field = record
	if c.vault != nil {
		result.Err = c.vault.PutField(record)
	}
}

func (c *coordinator) decryptItem(ctx context.Context, record types.BatchRecord, result *types.BatchResult) {
	switch {
	case record.Document != nil:
		result.SubjectID = record.Document.SubjectID
		data, err := c.docs.Decrypt(ctx, record.Document, nil)
		if err != nil {
			result.Err = err
			return
		}
		result.Bytes = data

	case record.Field != nil:
		result.SubjectID = record.Field.SubjectID
		value, err := c.fields.Decrypt(ctx, record.Field)
		if err != nil {
			result.Err = err
			return
		}
		result.Value = value

	default:
		result.Err = fmt.Errorf("batch record carries neither field nor document")
	}
}

func buildReport(results []types.BatchResult) *types.BatchReport {
	report := &types.BatchReport{
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	return report
}
