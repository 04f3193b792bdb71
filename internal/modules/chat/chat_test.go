package chat

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/mealbuddy-backend/internal/domain"
	"github.com/sirosfoundation/mealbuddy-backend/internal/modules/modtest"
	"github.com/sirosfoundation/mealbuddy-backend/internal/realtime"
)

func TestInfo(t *testing.T) {
	env := modtest.New(t, Module())
	w := env.Do(t, http.MethodGet, "/api/chat", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"realtime_path":"/ws","send_event":"chat:send","message_event":"chat:message"}`, w.Body.String())
}

func TestPostAndHistory(t *testing.T) {
	env := modtest.New(t, Module())
	alice, token := env.CreateUser(t, "alice")

	for _, body := range []string{"first", "second <script>x()</script>", "third"} {
		w := env.Do(t, http.MethodPost, "/api/chat/kitchen/messages", map[string]string{"body": body}, token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := env.Do(t, http.MethodGet, "/api/chat/kitchen/messages?limit=2", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Room     string           `json:"room"`
		Messages []domain.Message `json:"messages"`
	}
	modtest.Decode(t, w, &resp)
	assert.Equal(t, "kitchen", resp.Room)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "second", resp.Messages[0].Body)
	assert.Equal(t, "third", resp.Messages[1].Body)
	assert.Equal(t, alice.ID, resp.Messages[1].SenderID)

	w = env.Do(t, http.MethodGet, "/api/chat/empty/messages", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"room":"empty","messages":[]}`, w.Body.String())
}

func TestPost_Validation(t *testing.T) {
	env := modtest.New(t, Module())
	_, token := env.CreateUser(t, "alice")

	assert.Equal(t, http.StatusUnauthorized, env.Do(t, http.MethodPost, "/api/chat/kitchen/messages", map[string]string{"body": "hi"}, "").Code)

	tests := []struct {
		name string
		room string
		body string
	}{
		{"empty body", "kitchen", "   "},
		{"markup only", "kitchen", "<img src=x>"},
		{"too long", "kitchen", strings.Repeat("a", domain.MaxMessageLength+1)},
		{"bad room", "bad%20room", "hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.Do(t, http.MethodPost, "/api/chat/"+tt.room+"/messages", map[string]string{"body": tt.body}, token)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
	assert.Equal(t, http.StatusBadRequest, env.Do(t, http.MethodGet, "/api/chat/bad%20room/messages", nil, token).Code)
}

func TestHTTPPostIsBroadcast(t *testing.T) {
	env := modtest.New(t, Module())
	_, token := env.CreateUser(t, "alice")
	_, listener := env.CreateUser(t, "bob")
	ws := env.Dial(t, listener, "kitchen")

	w := env.Do(t, http.MethodPost, "/api/chat/kitchen/messages", map[string]string{"body": "soup is ready"}, token)
	require.Equal(t, http.StatusCreated, w.Code)

	f := modtest.ReadFrame(t, ws)
	assert.Equal(t, MessageEvent, f.Type)
	assert.Equal(t, "kitchen", f.Room)
	var msg domain.Message
	require.NoError(t, f.Decode(&msg))
	assert.Equal(t, "soup is ready", msg.Body)
}

func TestAnonymousSocketCannotJoinRoom(t *testing.T) {
	env := modtest.New(t, Module())
	ws := env.Dial(t, "", "")

	require.NoError(t, ws.WriteJSON(realtime.Frame{Type: realtime.TypeJoin, Room: "kitchen"}))
	f := modtest.ReadFrame(t, ws)
	assert.Equal(t, realtime.TypeError, f.Type)
	assert.Contains(t, string(f.Data), realtime.ErrNotAuthenticated.Error())
	assert.Equal(t, 0, env.Deps.Realtime.RoomSize("kitchen"))

	assert.Equal(t, http.StatusUnauthorized, env.Do(t, http.MethodGet, "/api/chat/kitchen/messages", nil, "").Code)
}

func TestRealtimeSend(t *testing.T) {
	env := modtest.New(t, Module())
	bob, token := env.CreateUser(t, "bob")
	ws := env.Dial(t, token, "kitchen")

	f, err := realtime.NewFrame(SendEvent, "kitchen", domain.MessageRequest{Body: "hello over the socket"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(f))

	got := modtest.ReadFrame(t, ws)
	require.Equal(t, MessageEvent, got.Type, string(got.Data))
	var msg domain.Message
	require.NoError(t, got.Decode(&msg))
	assert.Equal(t, bob.ID, msg.SenderID)

	w := env.Do(t, http.MethodGet, "/api/chat/kitchen/messages", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hello over the socket")
}

func TestRealtimeSend_Errors(t *testing.T) {
	env := modtest.New(t, Module())
	ws := env.Dial(t, "", "")

	f, err := realtime.NewFrame(SendEvent, "kitchen", domain.MessageRequest{Body: "anonymous"})
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(f))
	got := modtest.ReadFrame(t, ws)
	assert.Equal(t, realtime.TypeError, got.Type)
	assert.Contains(t, string(got.Data), realtime.ErrNotAuthenticated.Error())

	_, token := env.CreateUser(t, "carol")
	authed := env.Dial(t, token, "")
	f, err = realtime.NewFrame(SendEvent, "kitchen", domain.MessageRequest{Body: ""})
	require.NoError(t, err)
	require.NoError(t, authed.WriteJSON(f))
	got = modtest.ReadFrame(t, authed)
	assert.Equal(t, realtime.TypeError, got.Type)
	assert.Contains(t, string(got.Data), domain.ErrEmptyMessage.Error())
}
