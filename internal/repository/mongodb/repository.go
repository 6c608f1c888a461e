package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vibework/reportbot/internal/domain/models"
	"github.com/vibework/reportbot/internal/repository/drafts"
)

// DraftStore implements drafts.Store on MongoDB. It targets always-connected
// server deployments; field devices use the SQLite backend instead.
type DraftStore struct {
	client    *mongo.Client
	dbName    string
	collName  string
	cacheName string
	now       func() time.Time
}

// NewDraftStore connects to MongoDB and verifies the connection.
func NewDraftStore(ctx context.Context, uri string, dbName string) (*DraftStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &DraftStore{
		client:    client,
		dbName:    dbName,
		collName:  "drafts",
		cacheName: "reference_cache",
		now:       time.Now,
	}, nil
}

func (r *DraftStore) coll() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

// Create allocates a new identifier, fills lifecycle defaults and persists
// the draft.
func (r *DraftStore) Create(ctx context.Context, seed drafts.Seed) (*models.Draft, error) {
	now := r.now().UTC()
	draft := &models.Draft{
		ID:          drafts.NewDraftID(now),
		Status:      models.StatusEditing,
		CreatedAt:   now,
		ProjectID:   seed.ProjectID,
		ProjectName: seed.ProjectName,
		ProductID:   seed.ProductID,
		ProductName: seed.ProductName,
		Actions:     []models.Action{},
	}

	if _, err := r.coll().InsertOne(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to insert draft: %w", err)
	}
	return draft, nil
}

// Get returns a single draft by identifier.
func (r *DraftStore) Get(ctx context.Context, id string) (*models.Draft, error) {
	draft := new(models.Draft)
	err := r.coll().FindOne(ctx, bson.M{"_id": id}).Decode(draft)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, drafts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load draft %s: %w", id, err)
	}
	return draft, nil
}

// Update merges the patch into the stored draft and returns the result.
func (r *DraftStore) Update(ctx context.Context, id string, patch models.DraftPatch) (*models.Draft, error) {
	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.DeliveredAt != nil {
		set["delivered_at"] = patch.DeliveredAt.UTC()
	}
	if patch.RetryCount != nil {
		set["retry_count"] = *patch.RetryCount
	}
	if patch.EmployeeID != nil {
		set["employee_id"] = *patch.EmployeeID
	}
	if patch.EmployeeName != nil {
		set["employee_name"] = *patch.EmployeeName
	}
	if patch.ProjectID != nil {
		set["project_id"] = *patch.ProjectID
	}
	if patch.ProjectName != nil {
		set["project_name"] = *patch.ProjectName
	}
	if patch.ProductID != nil {
		set["product_id"] = *patch.ProductID
	}
	if patch.ProductName != nil {
		set["product_name"] = *patch.ProductName
	}
	if patch.Actions != nil {
		set["actions"] = *patch.Actions
	}
	if patch.Comment != nil {
		set["comment"] = *patch.Comment
	}

	if len(set) == 0 {
		return r.Get(ctx, id)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	draft := new(models.Draft)
	err := r.coll().FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(draft)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, drafts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update draft %s: %w", id, err)
	}
	return draft, nil
}

// GetCurrent returns the most recently created draft still being edited, or
// nil when there is none.
func (r *DraftStore) GetCurrent(ctx context.Context) (*models.Draft, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	draft := new(models.Draft)
	err := r.coll().FindOne(ctx, bson.M{"status": models.StatusEditing}, opts).Decode(draft)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load current draft: %w", err)
	}
	return draft, nil
}

// ListByStatus returns matching drafts ordered by creation time ascending.
func (r *DraftStore) ListByStatus(ctx context.Context, statuses ...models.DraftStatus) ([]*models.Draft, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll().Find(ctx, bson.M{"status": bson.M{"$in": statuses}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*models.Draft
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode drafts: %w", err)
	}
	return result, nil
}

// IncrementRetry bumps the retry counter of a failed delivery in place.
func (r *DraftStore) IncrementRetry(ctx context.Context, id string) error {
	res, err := r.coll().UpdateByID(ctx, id, bson.M{"$inc": bson.M{"retry_count": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment retry for %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("increment retry for %s: %w", id, drafts.ErrNotFound)
	}
	return nil
}

type cachedSnapshot struct {
	Key       string                    `bson:"_id"`
	Snapshot  *models.ReferenceSnapshot `bson:"snapshot"`
	UpdatedAt int64                     `bson:"updated_at"`
}

// SaveSnapshot persists the reference snapshot under the well-known key.
func (r *DraftStore) SaveSnapshot(ctx context.Context, snapshot *models.ReferenceSnapshot) error {
	coll := r.client.Database(r.dbName).Collection(r.cacheName)
	doc := cachedSnapshot{Key: drafts.SnapshotKey, Snapshot: snapshot, UpdatedAt: r.now().UnixMilli()}

	opts := options.Replace().SetUpsert(true)
	if _, err := coll.ReplaceOne(ctx, bson.M{"_id": drafts.SnapshotKey}, doc, opts); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the cached reference snapshot and its updatedAt
// timestamp, or (nil, zero) when none has been saved yet.
func (r *DraftStore) LoadSnapshot(ctx context.Context) (*models.ReferenceSnapshot, time.Time, error) {
	coll := r.client.Database(r.dbName).Collection(r.cacheName)

	var doc cachedSnapshot
	err := coll.FindOne(ctx, bson.M{"_id": drafts.SnapshotKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return doc.Snapshot, time.UnixMilli(doc.UpdatedAt).UTC(), nil
}

// Close closes the MongoDB connection.
func (r *DraftStore) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
