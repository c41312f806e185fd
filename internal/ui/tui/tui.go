// Package tui is the interactive session manager: pick a stored
// conversation, then delete it or copy it into the current one.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/ask/internal/session"
)

// Action is what the user chose to do.
type Action int

const (
	ActionCancel Action = iota
	ActionDeleteAll
	ActionDelete
	ActionCopy
)

func (a Action) String() string {
	switch a {
	case ActionDeleteAll:
		return "delete_all"
	case ActionDelete:
		return "delete"
	case ActionCopy:
		return "copy"
	}
	return "cancel"
}

// Choice is the outcome of a picker run. Key names the picked session; it
// is empty when nothing was picked.
type Choice struct {
	Action Action
	Key    session.Key
}

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Select  key.Binding
	Back    key.Binding
	Quit    key.Binding
	Confirm key.Binding
}

var keys = keyMap{
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Select:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Confirm: key.NewBinding(key.WithKeys("y", "Y")),
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

type stage int

const (
	stageList stage = iota
	stageAction
	stageConfirmAll
)

var sessionActions = []string{"Delete", "Copy to Current Conversation", "Cancel"}

// Model is the bubbletea model of the picker.
type Model struct {
	Sessions []session.Summary
	Current  session.Key
	Choice   Choice
	Done     bool

	stage  stage
	cursor int
	// selected indexes Sessions once a session has been picked
	selected int
	action   int
}

// NewModel returns a picker over sessions. current marks the session of
// the invoking shell.
func NewModel(sessions []session.Summary, current session.Key) Model {
	return Model{Sessions: sessions, Current: current}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) finish(c Choice) (tea.Model, tea.Cmd) {
	m.Choice = c
	m.Done = true
	return m, tea.Quit
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if key.Matches(km, keys.Quit) {
		return m.finish(Choice{Action: ActionCancel})
	}

	switch m.stage {
	case stageList:
		// row 0 is "delete all"
		rows := len(m.Sessions) + 1
		switch {
		case key.Matches(km, keys.Up):
			m.cursor = (m.cursor + rows - 1) % rows
		case key.Matches(km, keys.Down):
			m.cursor = (m.cursor + 1) % rows
		case key.Matches(km, keys.Back):
			return m.finish(Choice{Action: ActionCancel})
		case key.Matches(km, keys.Select):
			if m.cursor == 0 {
				m.stage = stageConfirmAll
				return m, nil
			}
			m.selected = m.cursor - 1
			m.action = 0
			m.stage = stageAction
		}

	case stageAction:
		switch {
		case key.Matches(km, keys.Up):
			m.action = (m.action + len(sessionActions) - 1) % len(sessionActions)
		case key.Matches(km, keys.Down):
			m.action = (m.action + 1) % len(sessionActions)
		case key.Matches(km, keys.Back):
			m.stage = stageList
		case key.Matches(km, keys.Select):
			k := m.Sessions[m.selected].Key
			switch m.action {
			case 0:
				return m.finish(Choice{Action: ActionDelete, Key: k})
			case 1:
				return m.finish(Choice{Action: ActionCopy, Key: k})
			default:
				return m.finish(Choice{Action: ActionCancel, Key: k})
			}
		}

	case stageConfirmAll:
		// default no
		if key.Matches(km, keys.Confirm) {
			return m.finish(Choice{Action: ActionDeleteAll})
		}
		return m.finish(Choice{Action: ActionCancel})
	}
	return m, nil
}

func (m Model) label(s session.Summary) string {
	name := session.RecordPrefix + string(s.Key)
	var b strings.Builder
	b.WriteString(name)
	b.WriteString(" => ")
	if s.Err != nil {
		b.WriteString(warnStyle.Render("(unreadable)"))
	} else {
		b.WriteString(s.Preview)
	}
	if s.Key == m.Current {
		b.WriteString(helpStyle.Render("  (current)"))
	}
	return b.String()
}

func renderRows(b *strings.Builder, rows []string, cursor int) {
	for i, r := range rows {
		if i == cursor {
			b.WriteString(cursorStyle.Render("> " + r))
		} else {
			b.WriteString("  " + r)
		}
		b.WriteString("\n")
	}
}

func (m Model) View() string {
	if m.Done {
		return ""
	}
	var b strings.Builder
	switch m.stage {
	case stageList:
		b.WriteString(titleStyle.Render(" Select an option to manage "))
		b.WriteString("\n\n")
		rows := []string{">>> Delete All Conversations"}
		for _, s := range m.Sessions {
			rows = append(rows, m.label(s))
		}
		renderRows(&b, rows, m.cursor)
	case stageAction:
		b.WriteString(titleStyle.Render(" Choose an action "))
		b.WriteString("\n")
		b.WriteString(m.label(m.Sessions[m.selected]))
		b.WriteString("\n\n")
		renderRows(&b, sessionActions, m.action)
	case stageConfirmAll:
		b.WriteString(warnStyle.Render(fmt.Sprintf("Are you sure you want to delete all %d conversations? [y/N] ", len(m.Sessions))))
		b.WriteString("\n")
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(strings.Join([]string{
		keys.Up.Help().Key + " " + keys.Up.Help().Desc,
		keys.Down.Help().Key + " " + keys.Down.Help().Desc,
		keys.Select.Help().Key + " " + keys.Select.Help().Desc,
		keys.Back.Help().Key + " " + keys.Back.Help().Desc,
		keys.Quit.Help().Key + " " + keys.Quit.Help().Desc,
	}, " • ")))
	b.WriteString("\n")
	return b.String()
}

// Pick runs the picker on in/out and returns the user's choice.
func Pick(sessions []session.Summary, current session.Key, in io.Reader, out io.Writer) (Choice, error) {
	p := tea.NewProgram(NewModel(sessions, current), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return Choice{}, fmt.Errorf("session picker failed: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return Choice{}, fmt.Errorf("session picker returned %T", final)
	}
	return m.Choice, nil
}
