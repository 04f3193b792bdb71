package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

// EventStore implements storage.EventStore
type EventStore struct {
	collection *mongo.Collection
}

func (s *EventStore) Create(ctx context.Context, event *domain.Event) error {
	if event.ID == "" || event.OwnerID == "" {
		return storage.ErrInvalidInput
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := s.collection.InsertOne(ctx, event)
	return mapError(err)
}

func (s *EventStore) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var event domain.Event
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		return nil, mapError(err)
	}
	return &event, nil
}

func (s *EventStore) List(ctx context.Context, page storage.Page) ([]*domain.Event, error) {
	cursor, err := s.collection.Find(ctx, bson.M{},
		findPage(page, bson.D{{Key: "starts_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mapError(err)
	}
	defer cursor.Close(ctx)

	events := []*domain.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, mapError(err)
	}
	return events, nil
}

func (s *EventStore) Update(ctx context.Context, event *domain.Event) error {
	event.UpdatedAt = time.Now().UTC()
	result, err := s.collection.UpdateOne(ctx, bson.M{"_id": event.ID}, bson.M{"$set": bson.M{
		"title":       event.Title,
		"description": event.Description,
		"location":    event.Location,
		"starts_at":   event.StartsAt,
		"ends_at":     event.EndsAt,
		"updated_at":  event.UpdatedAt,
	}})
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *EventStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	if result.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}
