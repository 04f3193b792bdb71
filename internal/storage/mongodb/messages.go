package mongodb

import (
	"context"
	"slices"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

// MessageStore implements storage.MessageStore
type MessageStore struct {
	collection *mongo.Collection
}

func (s *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" || msg.Room == "" {
		return storage.ErrInvalidInput
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.collection.InsertOne(ctx, msg)
	return mapError(err)
}

func (s *MessageStore) ListByRoom(ctx context.Context, room string, limit int) ([]*domain.Message, error) {
	limit = storage.Page{Limit: limit}.Normalize().Limit
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, bson.M{"room": room}, opts)
	if err != nil {
		return nil, mapError(err)
	}
	defer cursor.Close(ctx)

	msgs := []*domain.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, mapError(err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}
