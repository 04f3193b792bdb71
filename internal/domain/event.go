package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrTitleRequired  = errors.New("title is required")
	ErrStartRequired  = errors.New("starts_at is required")
	ErrEndBeforeStart = errors.New("ends_at must not be before starts_at")
)

// Event is a planned meal or gathering.
type Event struct {
	ID          string     `json:"id" db:"id" bson:"_id"`
	OwnerID     string     `json:"owner_id" db:"owner_id" bson:"owner_id"`
	Title       string     `json:"title" db:"title" bson:"title"`
	Description string     `json:"description" db:"description" bson:"description"`
	Location    string     `json:"location" db:"location" bson:"location"`
	StartsAt    time.Time  `json:"starts_at" db:"starts_at" bson:"starts_at"`
	EndsAt      *time.Time `json:"ends_at,omitempty" db:"ends_at" bson:"ends_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

// EventRequest is the body of create and update calls.
type EventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    time.Time  `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
}

// Validate checks the request fields.
func (r *EventRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrTitleRequired
	}
	if r.StartsAt.IsZero() {
		return ErrStartRequired
	}
	if r.EndsAt != nil && r.EndsAt.Before(r.StartsAt) {
		return ErrEndBeforeStart
	}
	return nil
}

// Apply copies the request onto an event.
func (r *EventRequest) Apply(e *Event) {
	e.Title = strings.TrimSpace(r.Title)
	e.Description = r.Description
	e.Location = r.Location
	e.StartsAt = r.StartsAt.UTC()
	if r.EndsAt != nil {
		end := r.EndsAt.UTC()
		e.EndsAt = &end
	} else {
		e.EndsAt = nil
	}
}
