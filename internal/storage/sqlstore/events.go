package sqlstore

import (
	"context"
	"time"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

const eventColumns = `id, owner_id, title, description, location, starts_at, ends_at, created_at, updated_at`

// EventStore implements storage.EventStore
type EventStore struct {
	c *conn
}

// Create creates a new event
func (s *EventStore) Create(ctx context.Context, event *domain.Event) error {
	if event.ID == "" || event.OwnerID == "" {
		return storage.ErrInvalidInput
	}
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	_, err := s.c.exec(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.OwnerID, event.Title, event.Description, event.Location,
		event.StartsAt, event.EndsAt, event.CreatedAt, event.UpdatedAt,
	)
	return mapError(err)
}

// GetByID retrieves an event by ID
func (s *EventStore) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	var event domain.Event
	if err := s.c.get(ctx, &event, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return &event, nil
}

// List returns events ordered by start time
func (s *EventStore) List(ctx context.Context, page storage.Page) ([]*domain.Event, error) {
	page = page.Normalize()
	events := []*domain.Event{}
	err := s.c.selectAll(ctx, &events,
		`SELECT `+eventColumns+` FROM events ORDER BY starts_at, id LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	return events, nil
}

// Update updates an event
func (s *EventStore) Update(ctx context.Context, event *domain.Event) error {
	event.UpdatedAt = time.Now().UTC()
	res, err := s.c.exec(ctx,
		`UPDATE events SET title = ?, description = ?, location = ?, starts_at = ?, ends_at = ?, updated_at = ? WHERE id = ?`,
		event.Title, event.Description, event.Location, event.StartsAt, event.EndsAt, event.UpdatedAt, event.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

// Delete deletes an event
func (s *EventStore) Delete(ctx context.Context, id string) error {
	res, err := s.c.exec(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}
