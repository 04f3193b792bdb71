package domain

import (
	"errors"
	"regexp"
	"time"
)

// MaxMessageLength bounds chat message bodies.
const MaxMessageLength = 4000

var (
	ErrEmptyMessage    = errors.New("message body is required")
	ErrMessageTooLong  = errors.New("message body is too long")
	ErrInvalidRoomName = errors.New("invalid room name")
)

var roomPattern = regexp.MustCompile(`^[a-zA-Z0-9_\-:.]{1,64}$`)

// ValidRoom reports whether name can be used as a chat room.
func ValidRoom(name string) bool {
	return roomPattern.MatchString(name)
}

// Message is a chat message posted to a room.
type Message struct {
	ID        string    `json:"id" db:"id" bson:"_id"`
	Room      string    `json:"room" db:"room" bson:"room"`
	SenderID  string    `json:"sender_id" db:"sender_id" bson:"sender_id"`
	Body      string    `json:"body" db:"body" bson:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at" bson:"created_at"`
}

// MessageRequest is the body of a post-message call.
type MessageRequest struct {
	Body string `json:"body"`
}

// ValidateMessageBody checks a message body after sanitizing.
func ValidateMessageBody(body string) error {
	if body == "" {
		return ErrEmptyMessage
	}
	if len(body) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}
