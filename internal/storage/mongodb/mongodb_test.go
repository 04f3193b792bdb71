package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/storage"
)

func getTestMongoURI() string {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	return uri
}

func skipIfNoMongo(t *testing.T) *Store {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewStore(ctx, Options{
		URI:      getTestMongoURI(),
		Database: "mealbuddy_test",
		Timeout:  2 * time.Second,
		Ping:     true,
	})
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
		return nil
	}
	require.NoError(t, store.EnsureIndexes(ctx))

	t.Cleanup(func() {
		ctx := context.Background()
		_ = store.database.Drop(ctx)
		_ = store.Close()
	})

	return store
}

func TestNewStore_LazyConnect(t *testing.T) {
	// Without Ping, constructing the store never dials.
	store, err := NewStore(context.Background(), Options{
		URI:     "mongodb://127.0.0.1:1",
		Timeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabase, store.Database().Name())
	assert.NoError(t, store.Close())
}

func TestNewStore_PingFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewStore(ctx, Options{
		URI:     "mongodb://127.0.0.1:1",
		Timeout: 100 * time.Millisecond,
		Ping:    true,
	})
	assert.Error(t, err)
}

func TestStore_SubStores(t *testing.T) {
	store := skipIfNoMongo(t)

	assert.NotNil(t, store.Users())
	assert.NotNil(t, store.Events())
	assert.NotNil(t, store.Messages())
	assert.NoError(t, store.Ping(context.Background()))
}

func TestUserStore_CRUD(t *testing.T) {
	store := skipIfNoMongo(t)
	ctx := context.Background()

	user := &domain.User{ID: domain.NewID(), Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(ctx, user))

	dup := &domain.User{ID: domain.NewID(), Username: "alice", Email: "other@example.com"}
	assert.ErrorIs(t, store.Users().Create(ctx, dup), storage.ErrAlreadyExists)

	got, err := store.Users().GetByLogin(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	user.DisplayName = "Alice"
	require.NoError(t, store.Users().Update(ctx, user))
	got, err = store.Users().GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.DisplayName)

	users, err := store.Users().List(ctx, storage.Page{})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, store.Users().Delete(ctx, user.ID))
	_, err = store.Users().GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.Users().Delete(ctx, user.ID), storage.ErrNotFound)
}

func TestEventStore_CRUD(t *testing.T) {
	store := skipIfNoMongo(t)
	ctx := context.Background()

	event := &domain.Event{
		ID:       domain.NewID(),
		OwnerID:  "owner",
		Title:    "Dinner",
		StartsAt: time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond),
	}
	require.NoError(t, store.Events().Create(ctx, event))

	event.Title = "Late dinner"
	require.NoError(t, store.Events().Update(ctx, event))

	got, err := store.Events().GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Late dinner", got.Title)

	require.NoError(t, store.Events().Delete(ctx, event.ID))
	assert.ErrorIs(t, store.Events().Update(ctx, event), storage.ErrNotFound)
}

func TestMessageStore_ListByRoom(t *testing.T) {
	store := skipIfNoMongo(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i, body := range []string{"one", "two", "three"} {
		require.NoError(t, store.Messages().Create(ctx, &domain.Message{
			ID:        domain.NewID(),
			Room:      "lobby",
			SenderID:  "u1",
			Body:      body,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	msgs, err := store.Messages().ListByRoom(ctx, "lobby", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Body)
	assert.Equal(t, "three", msgs[1].Body)
}
