package provider

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/ask/internal/conversation"
)

var (
	// ErrTransport means the service could not be reached. The caller may
	// retry later; the conversation keeps the user turn but no reply.
	ErrTransport = errors.New("completion service unreachable")
	// ErrMalformedResponse means the service answered with something that is
	// not a usable completion.
	ErrMalformedResponse = errors.New("malformed completion response")
	// ErrEmptyResponse means the service answered without any choices.
	ErrEmptyResponse = errors.New("completion response has no choices")
	// ErrMissingCredential means no bearer credential was available.
	ErrMissingCredential = errors.New("missing API credential")
)

// Completer performs one chat-completion turn against a conversation.
type Completer interface {
	// Complete appends content as a user turn to state, asks the service for
	// the next assistant turn given the full history, appends it and returns
	// it. On failure the user turn stays appended and no reply is added.
	Complete(ctx context.Context, state *conversation.State, content conversation.Content) (conversation.Message, error)
}

// Usage is the token accounting reported with a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Sampling defaults for non-reasoning models.
const (
	MaxTokens   = 2048
	Temperature = 0.6
)
