// Package assistant defines the conversational helper behind the ai module.
// No provider ships with the server; deployments plug one in at boot.
package assistant

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no assistant backend is configured.
var ErrUnavailable = errors.New("assistant is not available")

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Assistant answers a conversation with the next message.
type Assistant interface {
	// Available reports whether Reply can succeed.
	Available() bool
	Reply(ctx context.Context, userID string, history []Message) (Message, error)
}

// Unavailable is the default Assistant. Every call fails with ErrUnavailable.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Reply(context.Context, string, []Message) (Message, error) {
	return Message{}, ErrUnavailable
}

// Func adapts a function into an Assistant.
type Func func(ctx context.Context, userID string, history []Message) (Message, error)

func (f Func) Available() bool { return f != nil }

func (f Func) Reply(ctx context.Context, userID string, history []Message) (Message, error) {
	if f == nil {
		return Message{}, ErrUnavailable
	}
	return f(ctx, userID, history)
}
