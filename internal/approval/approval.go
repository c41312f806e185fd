// Package approval gates every proposed command behind a human decision.
package approval

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/ask/internal/observe"
)

// Prompter asks the human operator about a proposed command.
type Prompter interface {
	// Confirm asks whether command may run. Anything but an explicit yes
	// is a no.
	Confirm(ctx context.Context, command string) (bool, error)
	// Comment collects a free-text reason after a rejection. It may be empty.
	Comment(ctx context.Context) (string, error)
}

// Terminal prompts over a line-oriented reader and writer, usually the
// controlling terminal.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	obs *observe.Observer
}

// NewTerminal returns a prompter reading answers from in and writing
// prompts to out.
func NewTerminal(in io.Reader, out io.Writer, o *observe.Observer) *Terminal {
	if o == nil {
		o = observe.Nop()
	}
	return &Terminal{in: bufio.NewReader(in), out: out, obs: o}
}

type lineResult struct {
	line string
	err  error
}

// readLine returns the next line without its terminator. io.EOF is only
// returned when nothing at all could be read.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := t.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- lineResult{strings.TrimRight(line, "\r\n"), err}
	}()
	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Confirm implements Prompter.
func (t *Terminal) Confirm(ctx context.Context, command string) (bool, error) {
	fmt.Fprintf(t.out, "Run command: %s [y/N] ", command)

	line, err := t.readLine(ctx)
	if err != nil {
		fmt.Fprintln(t.out)
		if errors.Is(err, io.EOF) {
			t.obs.Log().Warn().Str("command", command).Msg("no answer on input, rejecting")
			return false, nil
		}
		if ctx.Err() != nil {
			return false, err
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		t.obs.Log().Info().Str("command", command).Msg("command approved")
		return true, nil
	case "", "n", "no":
	default:
		fmt.Fprintf(t.out, "Unrecognized answer %q, treating as no.\n", line)
	}
	t.obs.Log().Info().Str("command", command).Msg("command rejected")
	return false, nil
}

// Comment implements Prompter.
func (t *Terminal) Comment(ctx context.Context) (string, error) {
	fmt.Fprint(t.out, "Comment: ")
	line, err := t.readLine(ctx)
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(t.out)
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Scripted answers from fixed lists and records what it was asked.
type Scripted struct {
	Answers  []bool
	Comments []string
	// Asked holds every command passed to Confirm.
	Asked []string
}

// Confirm implements Prompter. It answers no once Answers is exhausted.
func (s *Scripted) Confirm(_ context.Context, command string) (bool, error) {
	s.Asked = append(s.Asked, command)
	if len(s.Answers) == 0 {
		return false, nil
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}

// Comment implements Prompter.
func (s *Scripted) Comment(context.Context) (string, error) {
	if len(s.Comments) == 0 {
		return "", nil
	}
	c := s.Comments[0]
	s.Comments = s.Comments[1:]
	return c, nil
}
