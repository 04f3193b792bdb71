package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegisterRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr error
	}{
		{
			name: "valid",
			req:  RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "correct-horse"},
		},
		{
			name:    "missing username",
			req:     RegisterRequest{Email: "alice@example.com", Password: "correct-horse"},
			wantErr: ErrUsernameRequired,
		},
		{
			name:    "bad email",
			req:     RegisterRequest{Username: "alice", Email: "not-an-email", Password: "correct-horse"},
			wantErr: ErrInvalidEmail,
		},
		{
			name:    "short password",
			req:     RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "short"},
			wantErr: ErrPasswordTooShort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegisterRequest_Normalize(t *testing.T) {
	req := RegisterRequest{Username: "  alice ", Email: " Alice@Example.COM "}
	req.Normalize()

	assert.Equal(t, "alice", req.Username)
	assert.Equal(t, "alice@example.com", req.Email)
}

func TestLoginRequest_Login(t *testing.T) {
	assert.Equal(t, "alice", (&LoginRequest{Identifier: " alice "}).Login())
	assert.Equal(t, "bob", (&LoginRequest{Username: "bob"}).Login())
	assert.Equal(t, "carol@example.com", (&LoginRequest{Email: "Carol@Example.com"}).Login())
}

func TestUser_Public(t *testing.T) {
	u := &User{ID: "u1", Username: "alice", Email: "alice@example.com", PasswordHash: "hash", DisplayName: "Alice"}
	pub := u.Public()

	assert.Equal(t, "u1", pub.ID)
	assert.Equal(t, "Alice", pub.DisplayName)
}

func TestEventRequest_Validate(t *testing.T) {
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)
	after := start.Add(2 * time.Hour)

	assert.NoError(t, (&EventRequest{Title: "Dinner", StartsAt: start, EndsAt: &after}).Validate())
	assert.ErrorIs(t, (&EventRequest{StartsAt: start}).Validate(), ErrTitleRequired)
	assert.ErrorIs(t, (&EventRequest{Title: "Dinner"}).Validate(), ErrStartRequired)
	assert.ErrorIs(t, (&EventRequest{Title: "Dinner", StartsAt: start, EndsAt: &before}).Validate(), ErrEndBeforeStart)
}

func TestEventRequest_Apply(t *testing.T) {
	start := time.Date(2026, 5, 1, 18, 0, 0, 0, time.FixedZone("CET", 3600))
	req := EventRequest{Title: "  Potluck ", StartsAt: start}

	var e Event
	req.Apply(&e)

	assert.Equal(t, "Potluck", e.Title)
	assert.Equal(t, time.UTC, e.StartsAt.Location())
	assert.Nil(t, e.EndsAt)
}

func TestValidRoom(t *testing.T) {
	assert.True(t, ValidRoom("general"))
	assert.True(t, ValidRoom("event:42"))
	assert.False(t, ValidRoom(""))
	assert.False(t, ValidRoom("has space"))
	assert.False(t, ValidRoom("../etc"))
}

func TestValidateMessageBody(t *testing.T) {
	assert.NoError(t, ValidateMessageBody("hello"))
	assert.ErrorIs(t, ValidateMessageBody(""), ErrEmptyMessage)

	long := make([]byte, MaxMessageLength+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.ErrorIs(t, ValidateMessageBody(string(long)), ErrMessageTooLong)
}
