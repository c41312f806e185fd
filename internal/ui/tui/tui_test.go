package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/ask/internal/session"
)

func press(m Model, keys ...tea.KeyMsg) Model {
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

var (
	down  = tea.KeyMsg{Type: tea.KeyDown}
	up    = tea.KeyMsg{Type: tea.KeyUp}
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sample() []session.Summary {
	return []session.Summary{
		{Key: "100", Model: "gpt-x", Preview: "how do I grep"},
		{Key: "200", Model: "gpt-x", Preview: "list files"},
		{Key: "300", Err: errors.New("corrupt")},
	}
}

func TestModel_Choices(t *testing.T) {
	testCases := []struct {
		name string
		keys []tea.KeyMsg
		want Choice
	}{
		{"delete second", []tea.KeyMsg{down, down, enter, enter}, Choice{Action: ActionDelete, Key: "200"}},
		{"copy first", []tea.KeyMsg{down, enter, down, enter}, Choice{Action: ActionCopy, Key: "100"}},
		{"cancel action", []tea.KeyMsg{down, enter, up, enter}, Choice{Action: ActionCancel, Key: "100"}},
		{"delete all confirmed", []tea.KeyMsg{enter, runes("y")}, Choice{Action: ActionDeleteAll}},
		{"delete all declined", []tea.KeyMsg{enter, runes("n")}, Choice{Action: ActionCancel}},
		{"delete all default no", []tea.KeyMsg{enter, enter}, Choice{Action: ActionCancel}},
		{"wrap to last", []tea.KeyMsg{up, enter, enter}, Choice{Action: ActionDelete, Key: "300"}},
		{"quit", []tea.KeyMsg{down, runes("q")}, Choice{Action: ActionCancel}},
		{"esc from list", []tea.KeyMsg{esc}, Choice{Action: ActionCancel}},
		{"esc back to list", []tea.KeyMsg{down, enter, esc, down, enter, enter}, Choice{Action: ActionDelete, Key: "200"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := press(NewModel(sample(), "200"), tc.keys...)
			if !m.Done {
				t.Fatal("picker should be done")
			}
			if m.Choice != tc.want {
				t.Errorf("choice = %+v, want %+v", m.Choice, tc.want)
			}
		})
	}
}

func TestModel_View(t *testing.T) {
	m := NewModel(sample(), "200")
	v := m.View()
	for _, want := range []string{
		"Delete All Conversations",
		"gpt_transcript-100 => how do I grep",
		"(current)",
		"(unreadable)",
	} {
		if !strings.Contains(v, want) {
			t.Errorf("list view missing %q", want)
		}
	}

	m = press(m, down, enter)
	v = m.View()
	if !strings.Contains(v, "Copy to Current Conversation") {
		t.Errorf("action view missing actions: %q", v)
	}

	m = press(NewModel(sample(), ""), enter)
	if !strings.Contains(m.View(), "delete all 3 conversations") {
		t.Errorf("confirm view should count sessions: %q", m.View())
	}
}

func TestModel_IgnoresNonKeys(t *testing.T) {
	m := NewModel(sample(), "")
	next, cmd := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	if cmd != nil || next.(Model).Done {
		t.Error("window size should not change the picker")
	}
}

func TestAction_String(t *testing.T) {
	if ActionCopy.String() != "copy" || ActionCancel.String() != "cancel" {
		t.Error("unexpected action names")
	}
}
