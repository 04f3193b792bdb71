package sqlstore

import (
	"context"
	"time"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

const userColumns = `id, username, email, password_hash, display_name, bio, created_at, updated_at`

// UserStore implements storage.UserStore
type UserStore struct {
	c *conn
}

// Create creates a new user
func (s *UserStore) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" || user.Username == "" || user.Email == "" {
		return storage.ErrInvalidInput
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := s.c.exec(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.DisplayName, user.Bio, user.CreatedAt, user.UpdatedAt,
	)
	return mapError(err)
}

// GetByID retrieves a user by ID
func (s *UserStore) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := s.c.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// GetByLogin retrieves a user by username or email
func (s *UserStore) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	var user domain.User
	err := s.c.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username = ? OR email = ? LIMIT 1`, login, login)
	if err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

// List returns users ordered by creation time
func (s *UserStore) List(ctx context.Context, page storage.Page) ([]*domain.User, error) {
	page = page.Normalize()
	users := []*domain.User{}
	err := s.c.selectAll(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`, page.Limit, page.Offset)
	if err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

// Update updates a user's profile fields
func (s *UserStore) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := s.c.exec(ctx,
		`UPDATE users SET display_name = ?, bio = ?, updated_at = ? WHERE id = ?`,
		user.DisplayName, user.Bio, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}

// Delete deletes a user
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.c.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return mapError(err)
	}
	return requireAffected(res)
}
