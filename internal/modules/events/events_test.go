package events

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/modtest"
)

func eventBody(title string) map[string]interface{} {
	return map[string]interface{}{
		"title":       title,
		"description": "Bring a dish",
		"location":    "Community hall",
		"starts_at":   time.Date(2026, 11, 1, 18, 0, 0, 0, time.UTC),
	}
}

func create(t *testing.T, env *modtest.Env, token, title string) domain.Event {
	t.Helper()
	w := env.Do(t, http.MethodPost, "/api/events", eventBody(title), token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var e domain.Event
	modtest.Decode(t, w, &e)
	return e
}

func TestCreateListGet(t *testing.T) {
	env := modtest.New(t, Module())
	owner, token := env.CreateUser(t, "alice")

	e := create(t, env, token, "Potluck <b>dinner</b>")
	assert.Equal(t, "Potluck dinner", e.Title)
	assert.Equal(t, owner.ID, e.OwnerID)
	assert.NotEmpty(t, e.ID)

	w := env.Do(t, http.MethodGet, "/api/events", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Events []domain.Event `json:"events"`
	}
	modtest.Decode(t, w, &list)
	require.Len(t, list.Events, 1)
	assert.Equal(t, e.ID, list.Events[0].ID)

	w = env.Do(t, http.MethodGet, "/api/events/"+e.ID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusNotFound, env.Do(t, http.MethodGet, "/api/events/nope", nil, "").Code)
}

func TestEmptyList(t *testing.T) {
	env := modtest.New(t, Module())
	w := env.Do(t, http.MethodGet, "/api/events", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"events":[]}`, w.Body.String())
}

func TestCreate_Validation(t *testing.T) {
	env := modtest.New(t, Module())
	_, token := env.CreateUser(t, "alice")

	assert.Equal(t, http.StatusUnauthorized, env.Do(t, http.MethodPost, "/api/events", eventBody("x"), "").Code)

	w := env.Do(t, http.MethodPost, "/api/events", map[string]string{"title": "No start"}, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrStartRequired.Error())

	body := eventBody("Backwards")
	body["ends_at"] = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	w = env.Do(t, http.MethodPost, "/api/events", body, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrEndBeforeStart.Error())
}

func TestUpdateAndDelete_OwnerOnly(t *testing.T) {
	env := modtest.New(t, Module())
	_, owner := env.CreateUser(t, "alice")
	_, intruder := env.CreateUser(t, "mallory")
	e := create(t, env, owner, "Brunch")

	assert.Equal(t, http.StatusForbidden, env.Do(t, http.MethodPut, "/api/events/"+e.ID, eventBody("Mine now"), intruder).Code)
	assert.Equal(t, http.StatusForbidden, env.Do(t, http.MethodDelete, "/api/events/"+e.ID, nil, intruder).Code)

	w := env.Do(t, http.MethodPut, "/api/events/"+e.ID, eventBody("Late brunch"), owner)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated domain.Event
	modtest.Decode(t, w, &updated)
	assert.Equal(t, "Late brunch", updated.Title)

	assert.Equal(t, http.StatusNoContent, env.Do(t, http.MethodDelete, "/api/events/"+e.ID, nil, owner).Code)
	assert.Equal(t, http.StatusNotFound, env.Do(t, http.MethodGet, "/api/events/"+e.ID, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, env.Do(t, http.MethodDelete, "/api/events/"+e.ID, nil, owner).Code)
}

func TestChangesAreBroadcast(t *testing.T) {
	env := modtest.New(t, Module())
	_, token := env.CreateUser(t, "alice")
	ws := env.Dial(t, token, Room)

	e := create(t, env, token, "Taco Tuesday")
	f := modtest.ReadFrame(t, ws)
	assert.Equal(t, Created, f.Type)
	assert.Equal(t, Room, f.Room)
	var got domain.Event
	require.NoError(t, f.Decode(&got))
	assert.Equal(t, e.ID, got.ID)

	require.Equal(t, http.StatusOK, env.Do(t, http.MethodPut, "/api/events/"+e.ID, eventBody("Taco Wednesday"), token).Code)
	assert.Equal(t, Updated, modtest.ReadFrame(t, ws).Type)

	require.Equal(t, http.StatusNoContent, env.Do(t, http.MethodDelete, "/api/events/"+e.ID, nil, token).Code)
	f = modtest.ReadFrame(t, ws)
	assert.Equal(t, Deleted, f.Type)
	assert.JSONEq(t, `{"id":"`+e.ID+`"}`, string(f.Data))
}
