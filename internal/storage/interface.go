package storage

import (
	"context"
	"errors"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrDatabase      = errors.New("database error")
)

// DefaultPageSize and MaxPageSize bound list queries.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// UserStore defines the interface for user storage operations
type UserStore interface {
	// Create creates a new user. Duplicate usernames or emails return ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByLogin retrieves a user by username or email
	GetByLogin(ctx context.Context, login string) (*domain.User, error)

	// List returns users ordered by creation time
	List(ctx context.Context, page Page) ([]*domain.User, error)

	// Update updates a user's profile fields
	Update(ctx context.Context, user *domain.User) error

	// Delete deletes a user
	Delete(ctx context.Context, id string) error
}

// EventStore defines the interface for event storage operations
type EventStore interface {
	Create(ctx context.Context, event *domain.Event) error
	GetByID(ctx context.Context, id string) (*domain.Event, error)
	// List returns events ordered by start time
	List(ctx context.Context, page Page) ([]*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
	Delete(ctx context.Context, id string) error
}

// MessageStore defines the interface for chat message storage
type MessageStore interface {
	Create(ctx context.Context, msg *domain.Message) error

	// ListByRoom returns the most recent messages of a room, oldest first
	ListByRoom(ctx context.Context, room string, limit int) ([]*domain.Message, error)
}

// Store is the composite interface implemented by every persistence backend
type Store interface {
	Users() UserStore
	Events() EventStore
	Messages() MessageStore
	Ping(ctx context.Context) error
	Close() error
}
