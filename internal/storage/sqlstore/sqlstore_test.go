package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/schema"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage/sqlstore"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	store := sqlstore.New(db, sqlstore.DialectSQLite, zap.NewNop(), true)
	t.Cleanup(func() { _ = store.Close() })

	m, err := schema.New(store)
	require.NoError(t, err)
	require.NoError(t, m.Materialize(context.Background()))
	return store
}

func newUser(name string) *domain.User {
	return &domain.User{
		ID:           domain.NewID(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
	}
}

func TestUserStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	users := store.Users()

	alice := newUser("alice")
	require.NoError(t, users.Create(ctx, alice))
	assert.False(t, alice.CreatedAt.IsZero())

	t.Run("duplicate username", func(t *testing.T) {
		dup := newUser("alice")
		dup.Email = "another@example.com"
		assert.ErrorIs(t, users.Create(ctx, dup), storage.ErrAlreadyExists)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := newUser("bob")
		dup.Email = alice.Email
		assert.ErrorIs(t, users.Create(ctx, dup), storage.ErrAlreadyExists)
	})

	t.Run("missing fields", func(t *testing.T) {
		assert.ErrorIs(t, users.Create(ctx, &domain.User{}), storage.ErrInvalidInput)
	})

	t.Run("lookup", func(t *testing.T) {
		got, err := users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "hash", got.PasswordHash)

		got, err = users.GetByLogin(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		got, err = users.GetByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		_, err = users.GetByLogin(ctx, "nobody")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		alice.DisplayName = "Alice"
		alice.Bio = "likes soup"
		require.NoError(t, users.Update(ctx, alice))

		got, err := users.GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.DisplayName)
		assert.Equal(t, "likes soup", got.Bio)

		assert.ErrorIs(t, users.Update(ctx, &domain.User{ID: "missing"}), storage.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		require.NoError(t, users.Create(ctx, newUser("carol")))

		all, err := users.List(ctx, storage.Page{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		page, err := users.List(ctx, storage.Page{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, "carol", page[0].Username)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, users.Delete(ctx, alice.ID))
		_, err := users.GetByID(ctx, alice.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, users.Delete(ctx, alice.ID), storage.ErrNotFound)
	})
}

func TestEventStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	owner := newUser("owner")
	require.NoError(t, store.Users().Create(ctx, owner))

	start := time.Date(2030, 5, 1, 18, 0, 0, 0, time.UTC)
	later := &domain.Event{ID: domain.NewID(), OwnerID: owner.ID, Title: "Brunch", StartsAt: start.Add(48 * time.Hour)}
	sooner := &domain.Event{ID: domain.NewID(), OwnerID: owner.ID, Title: "Dinner", StartsAt: start}
	require.NoError(t, store.Events().Create(ctx, later))
	require.NoError(t, store.Events().Create(ctx, sooner))

	events, err := store.Events().List(ctx, storage.Page{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Dinner", events[0].Title)
	assert.Nil(t, events[0].EndsAt)

	end := start.Add(2 * time.Hour)
	sooner.EndsAt = &end
	sooner.Location = "Kitchen"
	require.NoError(t, store.Events().Update(ctx, sooner))

	got, err := store.Events().GetByID(ctx, sooner.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen", got.Location)
	require.NotNil(t, got.EndsAt)
	assert.True(t, end.Equal(*got.EndsAt))
	assert.True(t, start.Equal(got.StartsAt))

	require.NoError(t, store.Events().Delete(ctx, sooner.ID))
	_, err = store.Events().GetByID(ctx, sooner.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMessageStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, body := range []string{"one", "two", "three"} {
		require.NoError(t, store.Messages().Create(ctx, &domain.Message{
			ID:        domain.NewID(),
			Room:      "lobby",
			SenderID:  "u1",
			Body:      body,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Messages().Create(ctx, &domain.Message{
		ID: domain.NewID(), Room: "kitchen", SenderID: "u1", Body: "elsewhere",
	}))

	msgs, err := store.Messages().ListByRoom(ctx, "lobby", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Body)
	assert.Equal(t, "three", msgs[1].Body)

	empty, err := store.Messages().ListByRoom(ctx, "nowhere", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_Accessors(t *testing.T) {
	store := newTestStore(t)
	assert.Equal(t, sqlstore.DialectSQLite, store.Dialect())
	assert.NotNil(t, store.DB())
	assert.NoError(t, store.Ping(context.Background()))
}
