// Package history renders a conversation for reading: a framed transcript
// opened in the user's editor, or a structured YAML/JSON export.
package history

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/ask/internal/conversation"
)

// DefaultEditor is used when $EDITOR is unset.
const DefaultEditor = "more"

const defaultWidth = 80

// Width returns the terminal width of f, or 80 when f is not a terminal.
func Width(f *os.File) int {
	if f == nil {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Render writes every message under a banner naming its role.
func Render(w io.Writer, state *conversation.State, width int) error {
	if width <= 0 {
		width = defaultWidth
	}
	top := strings.Repeat("▃", width)
	bottom := strings.Repeat("▀", width)
	for _, m := range state.Messages {
		if _, err := fmt.Fprintf(w, "\n\n%s\n▍%s ▐\n%s\n%s", top, m.Role, bottom, text(m.Content)); err != nil {
			return err
		}
	}
	return nil
}

// text is the readable form of content; images become placeholders.
func text(c conversation.Content) string {
	if !c.IsMultipart() {
		return c.String()
	}
	var parts []string
	for _, p := range c.Parts() {
		switch p.Type {
		case conversation.PartText:
			parts = append(parts, p.Text)
		case conversation.PartImage:
			parts = append(parts, "[image]")
		}
	}
	return strings.Join(parts, "\n")
}

// Open renders state into a temporary file, runs editor on it and removes
// the file afterwards. editor may carry arguments ("code -w").
func Open(state *conversation.State, editor string, width int, stdin io.Reader, stdout, stderr io.Writer) error {
	args := strings.Fields(editor)
	if len(args) == 0 {
		args = []string{DefaultEditor}
	}

	f, err := os.CreateTemp("", "ask_hist-*")
	if err != nil {
		return fmt.Errorf("could not create history file: %w", err)
	}
	defer os.Remove(f.Name())

	if err := Render(f, state, width); err != nil {
		f.Close()
		return fmt.Errorf("could not write history file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("could not write history file: %w", err)
	}

	cmd := exec.Command(args[0], append(args[1:], f.Name())...) // #nosec G204 -- user's editor
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %s failed: %w", args[0], err)
	}
	return nil
}

// Export formats.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

type exportMessage struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
	Images  int    `yaml:"images,omitempty" json:"images,omitempty"`
}

type exportDoc struct {
	Model    string          `yaml:"model" json:"model"`
	Messages []exportMessage `yaml:"messages" json:"messages"`
}

func newExport(state *conversation.State) exportDoc {
	doc := exportDoc{Model: state.Model, Messages: make([]exportMessage, 0, len(state.Messages))}
	for _, m := range state.Messages {
		em := exportMessage{Role: string(m.Role), Content: m.Content.String()}
		for _, p := range m.Content.Parts() {
			if p.Type == conversation.PartImage {
				em.Images++
			}
		}
		doc.Messages = append(doc.Messages, em)
	}
	return doc
}

// Export writes state in format. Image data is left out; only a count of
// images per message is kept.
func Export(w io.Writer, state *conversation.State, format string) error {
	doc := newExport(state)
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unknown export format %q (want %s or %s)", format, FormatYAML, FormatJSON)
	}
}
