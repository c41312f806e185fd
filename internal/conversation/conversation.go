// Package conversation holds the in-memory shape of a chat session: the
// ordered message history and the model it is bound to.
package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// PrimingPrompt is the first instruction of every session.
const PrimingPrompt = "You are a terse assistant for experienced terminal users. " +
	"Unless the user overrides these rules: be concise, proactive and precise. " +
	"Say no more than needed, but do the whole job. " +
	"When an implementation is requested, answer with code only. Do not use markdown."

// reasoningPrefixes name the model families that reject sampling parameters
// and expect the priming instruction as a user turn.
var reasoningPrefixes = []string{"o1", "o3", "o4"}

// IsReasoningModel reports whether model belongs to the reasoning family.
func IsReasoningModel(model string) bool {
	m := strings.ToLower(model)
	if i := strings.LastIndex(m, "/"); i >= 0 {
		m = m[i+1:]
	}
	for _, p := range reasoningPrefixes {
		if m == p || strings.HasPrefix(m, p+"-") {
			return true
		}
	}
	return false
}

// PrimingRole returns the role the priming message takes for model.
func PrimingRole(model string) Role {
	if IsReasoningModel(model) {
		return RoleUser
	}
	return RoleSystem
}

// Message is one conversational turn.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// State is one session: a model and its chronological message history.
type State struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// New returns a fresh state holding only the priming message.
func New(model string) *State {
	return &State{
		Model: model,
		Messages: []Message{
			{Role: PrimingRole(model), Content: Text(PrimingPrompt)},
		},
	}
}

// Append adds a message at the end of the history.
func (s *State) Append(role Role, content Content) Message {
	msg := Message{Role: role, Content: content}
	s.Messages = append(s.Messages, msg)
	return msg
}

// Last returns the most recent message.
func (s *State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// Len returns the number of messages.
func (s *State) Len() int {
	return len(s.Messages)
}

var ErrInvalidState = errors.New("invalid conversation state")

// Validate checks the structural invariants of a persisted session.
func (s *State) Validate() error {
	if s.Model == "" {
		return fmt.Errorf("%w: missing model", ErrInvalidState)
	}
	if len(s.Messages) == 0 {
		return fmt.Errorf("%w: no messages", ErrInvalidState)
	}
	for i, m := range s.Messages {
		if !m.Role.Valid() {
			return fmt.Errorf("%w: message %d has unknown role %q", ErrInvalidState, i, m.Role)
		}
		if m.Content.IsEmpty() {
			return fmt.Errorf("%w: message %d has empty content", ErrInvalidState, i)
		}
	}
	return nil
}
