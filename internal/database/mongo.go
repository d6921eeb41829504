package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vincentbai/webhook-activity/internal/models"
)

const (
	DefaultMongoDatabase   = "github_events"
	DefaultMongoCollection = "events"
)

type mongoDocument struct {
	ID         string    `bson:"_id"`
	DeliveryID string    `bson:"delivery_id,omitempty"`
	Author     string    `bson:"author"`
	Action     string    `bson:"action"`
	FromBranch *string   `bson:"from_branch,omitempty"`
	ToBranch   string    `bson:"to_branch"`
	Timestamp  string    `bson:"timestamp"`
	Message    string    `bson:"message"`
	CreatedAt  time.Time `bson:"created_at"`
}

func newMongoDocument(event *models.ActivityEvent) mongoDocument {
	doc := mongoDocument{
		ID:         event.ID,
		Author:     event.Author,
		Action:     string(event.Action),
		FromBranch: event.FromBranch,
		ToBranch:   event.ToBranch,
		Timestamp:  event.Timestamp,
		Message:    event.Message,
		CreatedAt:  event.CreatedAt.UTC(),
	}
	if event.DeliveryID != nil {
		doc.DeliveryID = event.DeliveryID.String()
	}
	return doc
}

func (d mongoDocument) toModel() models.ActivityEvent {
	event := models.ActivityEvent{
		ID:         d.ID,
		Author:     d.Author,
		Action:     models.Action(d.Action),
		FromBranch: d.FromBranch,
		ToBranch:   d.ToBranch,
		Timestamp:  d.Timestamp,
		Message:    d.Message,
		CreatedAt:  d.CreatedAt.UTC(),
	}
	if id, err := uuid.Parse(d.DeliveryID); err == nil {
		event.DeliveryID = &id
	}
	return event
}

// MongoStore keeps activity in a single collection indexed on created_at.
// created_at is stored as a BSON datetime, so it has millisecond precision.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection

	mu         sync.Mutex
	indexReady bool
}

var _ Store = (*MongoStore)(nil)

// NewMongo configures a client for uri. Server selection fails after
// timeout instead of hanging when the server is unreachable.
func NewMongo(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if database == "" {
		database = DefaultMongoDatabase
	}
	if collection == "" {
		collection = DefaultMongoCollection
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(timeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
	}, nil
}

func (s *MongoStore) ensureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexReady {
		return nil
	}
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("create created_at index: %w", err)
	}
	s.indexReady = true
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, event *models.ActivityEvent) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if err := s.ensureIndex(ctx); err != nil {
		return unavailable("insert", err)
	}
	if _, err := s.collection.InsertOne(ctx, newMongoDocument(event)); err != nil {
		return unavailable("insert", err)
	}
	return nil
}

func (s *MongoStore) ListRecent(ctx context.Context, since *time.Time, limit int) ([]models.ActivityEvent, error) {
	if err := s.ensureIndex(ctx); err != nil {
		return nil, unavailable("list", err)
	}

	filter := mongoSinceFilter(since)
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, unavailable("list", err)
	}
	var docs []mongoDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, unavailable("list", err)
	}

	events := make([]models.ActivityEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, doc.toModel())
	}
	return events, nil
}

func mongoSinceFilter(since *time.Time) bson.M {
	if since == nil {
		return bson.M{}
	}
	return bson.M{"created_at": bson.M{"$gt": since.UTC()}}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
