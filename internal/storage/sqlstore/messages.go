package sqlstore

import (
	"context"
	"slices"
	"time"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

// MessageStore implements storage.MessageStore
type MessageStore struct {
	c *conn
}

// Create stores a chat message
func (s *MessageStore) Create(ctx context.Context, msg *domain.Message) error {
	if msg.ID == "" || msg.Room == "" {
		return storage.ErrInvalidInput
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.exec(ctx,
		`INSERT INTO messages (id, room, sender_id, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.Room, msg.SenderID, msg.Body, msg.CreatedAt,
	)
	return mapError(err)
}

// ListByRoom returns the most recent messages of a room, oldest first
func (s *MessageStore) ListByRoom(ctx context.Context, room string, limit int) ([]*domain.Message, error) {
	limit = storage.Page{Limit: limit}.Normalize().Limit
	msgs := []*domain.Message{}
	err := s.c.selectAll(ctx, &msgs,
		`SELECT id, room, sender_id, body, created_at FROM messages WHERE room = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		room, limit)
	if err != nil {
		return nil, mapError(err)
	}
	slices.Reverse(msgs)
	return msgs, nil
}
