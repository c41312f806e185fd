package provider

import (
	"context"

	"github.com/felixgeelhaar/ask/internal/conversation"
)

// StubProvider answers from a script, for tests and offline runs.
type StubProvider struct {
	// Replies are returned in order. Once exhausted, Fallback is returned.
	Replies  []string
	Fallback string
	// Errors, when non-empty, are consumed one per call before Replies; a
	// nil entry lets that call succeed.
	Errors []error
	// Requests records the user content of every call.
	Requests []conversation.Content
}

// NewStubProvider returns a stub that replies DONE after the script runs out.
func NewStubProvider(replies ...string) *StubProvider {
	return &StubProvider{Replies: replies, Fallback: "DONE"}
}

// Complete implements Completer with the same append semantics as the real
// client: the user turn is always appended, the reply only on success.
func (m *StubProvider) Complete(ctx context.Context, state *conversation.State, content conversation.Content) (conversation.Message, error) {
	state.Append(conversation.RoleUser, content)
	m.Requests = append(m.Requests, content)

	if err := ctx.Err(); err != nil {
		return conversation.Message{}, err
	}
	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return conversation.Message{}, err
		}
	}

	reply := m.Fallback
	if len(m.Replies) > 0 {
		reply = m.Replies[0]
		m.Replies = m.Replies[1:]
	}
	if reply == "" {
		reply = "DONE"
	}
	return state.Append(conversation.RoleAssistant, conversation.Text(reply)), nil
}
