package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

// DefaultDatabase is used when neither the URI nor the options name a database.
const DefaultDatabase = "mealbuddy"

var (
	_ storage.Store        = (*Store)(nil)
	_ storage.UserStore    = (*UserStore)(nil)
	_ storage.EventStore   = (*EventStore)(nil)
	_ storage.MessageStore = (*MessageStore)(nil)
)

// Options configures NewStore.
type Options struct {
	URI      string
	Database string
	Timeout  time.Duration
	// Ping verifies the connection before returning.
	Ping bool
}

// Store implements MongoDB storage
type Store struct {
	client   *mongo.Client
	database *mongo.Database

	users    *UserStore
	events   *EventStore
	messages *MessageStore
}

// NewStore creates a new MongoDB store. mongo.Connect does not dial; unless
// opts.Ping is set, an unreachable server is only noticed on first use.
func NewStore(ctx context.Context, opts Options) (*Store, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if opts.Ping {
		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
		}
	}

	name := opts.Database
	if name == "" {
		name = DefaultDatabase
	}
	database := client.Database(name)

	return &Store{
		client:   client,
		database: database,
		users:    &UserStore{collection: database.Collection("users")},
		events:   &EventStore{collection: database.Collection("events")},
		messages: &MessageStore{collection: database.Collection("messages")},
	}, nil
}

// EnsureIndexes creates the unique and lookup indexes the stores rely on.
// Creating an index that already exists is a no-op on the server.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}

	_, err = s.events.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "starts_at", Value: 1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}

	_, err = s.messages.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}

func (s *Store) Users() storage.UserStore       { return s.users }
func (s *Store) Events() storage.EventStore     { return s.events }
func (s *Store) Messages() storage.MessageStore { return s.messages }

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database { return s.database }

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// mapError translates driver errors into storage errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", storage.ErrAlreadyExists, err)
	}
	return fmt.Errorf("%w: %v", storage.ErrDatabase, err)
}

func findPage(page storage.Page, sort bson.D) *options.FindOptions {
	page = page.Normalize()
	return options.Find().
		SetSort(sort).
		SetLimit(int64(page.Limit)).
		SetSkip(int64(page.Offset))
}
