// Package mongo stores the audit trail in MongoDB. Events arrive from the
// PostgreSQL outbox, so the store must tolerate the same event twice.
package mongo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/virtupay-ledger/internal/domain/audit"
	"github.com/virtupay-ledger/internal/domain/shared"
)

const (
	// AuditCollectionName is the name of the audit collection in MongoDB
	AuditCollectionName = "audit_events"

	defaultPageSize = 50
)

// AuditRepository implements the audit.Repository interface for MongoDB
type AuditRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

var _ audit.Repository = (*AuditRepository)(nil)

// NewAuditRepository creates a new MongoDB audit repository
func NewAuditRepository(logger *slog.Logger, db *mongo.Database) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the indexes the audit queries rely on
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.db.Collection(AuditCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "resource", Value: 1}, {Key: "resource_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "action", Value: 1}}},
	})
	if err != nil {
		r.logger.Error("Failed to create audit indexes", "error", err)
		return shared.PersistenceError("create audit indexes", err)
	}
	return nil
}

// Create stores an audit event. Returns ErrDuplicateEvent if the event id is
// already stored, which a redelivered outbox message produces.
func (r *AuditRepository) Create(ctx context.Context, event *audit.Event) error {
	_, err := r.db.Collection(AuditCollectionName).InsertOne(ctx, event)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return audit.ErrDuplicateEvent{EventID: event.ID}
		}
		r.logger.Error("Failed to create audit event",
			"event_id", event.ID.String(),
			"action", string(event.Action),
			"error", err)
		return shared.PersistenceError("create audit event", err)
	}
	return nil
}

// GetByID retrieves one audit event
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Event, error) {
	var event audit.Event
	err := r.db.Collection(AuditCollectionName).FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, audit.ErrEventNotFound{EventID: id}
		}
		r.logger.Error("Failed to get audit event", "event_id", id.String(), "error", err)
		return nil, shared.PersistenceError("get audit event", err)
	}
	return &event, nil
}

// List retrieves a page of an organization's audit events, newest first, and the total match count
func (r *AuditRepository) List(ctx context.Context, f audit.Filter) ([]*audit.Event, int64, error) {
	collection := r.db.Collection(AuditCollectionName)
	filter := buildFilter(f)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count audit events",
			"organization_id", f.OrganizationID.String(),
			"error", err)
		return nil, 0, shared.PersistenceError("count audit events", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(f.Offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list audit events",
			"organization_id", f.OrganizationID.String(),
			"error", err)
		return nil, 0, shared.PersistenceError("list audit events", err)
	}
	defer cursor.Close(ctx)

	var events []*audit.Event
	if err := cursor.All(ctx, &events); err != nil {
		r.logger.Error("Failed to decode audit events",
			"organization_id", f.OrganizationID.String(),
			"error", err)
		return nil, 0, shared.PersistenceError("decode audit events", err)
	}
	return events, total, nil
}

func buildFilter(f audit.Filter) bson.M {
	filter := bson.M{"organization_id": f.OrganizationID}
	if f.Resource != "" {
		filter["resource"] = f.Resource
	}
	if f.ResourceID != nil {
		filter["resource_id"] = *f.ResourceID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}
	if f.From != nil || f.To != nil {
		window := bson.M{}
		if f.From != nil {
			window["$gte"] = *f.From
		}
		if f.To != nil {
			window["$lte"] = *f.To
		}
		filter["created_at"] = window
	}
	return filter
}
