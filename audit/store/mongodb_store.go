package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/root-sector/escrow-kyc-module-encryption/interfaces"
	"github.com/root-sector/escrow-kyc-module-encryption/types"
)

const auditCollection = "kyc_audit_entries"

// MongoDBStore persists audit entries to MongoDB for deployments that need
// the ledger to survive the process. Inserts only; entries are never
// updated or deleted here.
type MongoDBStore struct {
	db *mongo.Database
}

// NewMongoDBStore creates a MongoDB-backed ledger store.
func NewMongoDBStore(db *mongo.Database) interfaces.LedgerStore {
	return &MongoDBStore{db: db}
}

// Append inserts an entry.
func (s *MongoDBStore) Append(ctx context.Context, entry *types.AuditEntry) error {
	if _, err := s.db.Collection(auditCollection).InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to store audit entry: %w", err)
	}

	log.Debug().
		Str("auditId", entry.ID).
		Str("operation", entry.Operation).
		Msg("Audit entry persisted")

	return nil
}

// Query retrieves entries matching the filter, sorted by timestamp.
func (s *MongoDBStore) Query(ctx context.Context, filter types.AuditFilter) ([]*types.AuditEntry, error) {
	query := bson.M{}

	timeRange := bson.M{}
	if !filter.From.IsZero() {
		timeRange["$gte"] = filter.From
	}
	if !filter.To.IsZero() {
		timeRange["$lte"] = filter.To
	}
	if len(timeRange) > 0 {
		query["timestamp"] = timeRange
	}
	if filter.FieldType != "" {
		query["fieldType"] = filter.FieldType
	}
	if filter.Operation != "" {
		query["operation"] = filter.Operation
	}

	cursor, err := s.db.Collection(auditCollection).Find(ctx, query,
		options.Find().SetSort(bson.M{"timestamp": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*types.AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit entries: %w", err)
	}

	return entries, nil
}
