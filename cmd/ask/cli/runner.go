package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/felixgeelhaar/ask/internal/approval"
	"github.com/felixgeelhaar/ask/internal/config"
	"github.com/felixgeelhaar/ask/internal/conversation"
	"github.com/felixgeelhaar/ask/internal/executor"
	"github.com/felixgeelhaar/ask/internal/guard"
	"github.com/felixgeelhaar/ask/internal/history"
	"github.com/felixgeelhaar/ask/internal/observe"
	"github.com/felixgeelhaar/ask/internal/provider"
	"github.com/felixgeelhaar/ask/internal/runtime"
	"github.com/felixgeelhaar/ask/internal/session"
	"github.com/felixgeelhaar/ask/internal/store"
	"github.com/felixgeelhaar/ask/internal/ui"
	"github.com/felixgeelhaar/ask/internal/ui/tui"
)

// Picker asks the user what to do with the stored sessions.
type Picker func(sessions []session.Summary, current session.Key) (tui.Choice, error)

// Runner carries out one invocation against one session.
type Runner struct {
	Observer  *observe.Observer
	Sessions  *session.Store
	Journal   store.Journal
	Completer provider.Completer
	Executor  executor.Runner
	Prompter  approval.Prompter
	Settings  config.Settings
	Key       session.Key
	UI        ui.UI
	Out       io.Writer
	Picker    Picker
}

func NewRunner(obs *observe.Observer, sessions *session.Store, c provider.Completer, s config.Settings, key session.Key, out io.Writer) *Runner {
	if obs == nil {
		obs = observe.Nop()
	}
	return &Runner{
		Observer:  obs,
		Sessions:  sessions,
		Completer: c,
		Executor:  &executor.ShellExecutor{Shell: s.Shell},
		Settings:  s,
		Key:       key,
		UI:        ui.NewConsole(out, out, false),
		Out:       out,
	}
}

func (r *Runner) load() (*conversation.State, error) {
	state, err := r.Sessions.LoadOrInitialize(r.Key, r.Settings.Model)
	if err != nil {
		return nil, fmt.Errorf("could not load conversation: %w", err)
	}
	return state, nil
}

// Ask sends one turn and prints the reply.
func (r *Runner) Ask(ctx context.Context, content conversation.Content) error {
	state, err := r.load()
	if err != nil {
		return err
	}
	reply, err := r.Completer.Complete(ctx, state, content)
	if err != nil {
		return err
	}
	if err := r.Sessions.Save(r.Key, state); err != nil {
		return fmt.Errorf("could not save conversation: %w", err)
	}
	fmt.Fprintln(r.Out, reply.Content.String())
	return nil
}

// Agent runs task through the approval loop.
func (r *Runner) Agent(ctx context.Context, task string) error {
	state, err := r.load()
	if err != nil {
		return err
	}

	loop := runtime.New(r.Key, state, r.Sessions, r.Completer, r.Executor, r.Prompter, r.Observer)
	loop.SetUI(r.UI)
	loop.SetGuard(guard.New(guard.Policy{MaxIterations: r.Settings.MaxIterations}))
	if r.Journal != nil {
		loop.SetRecorder(&runtime.JournalRecorder{Journal: r.Journal})
	}
	log := r.Observer.Log()
	loop.Bus().SubscribeAll(func(e runtime.Event) {
		log.Debug().Str("event", string(e.Type)).Str("session", e.SessionKey).Msg(fmt.Sprint(e.Data))
	})

	out, err := loop.Run(ctx, task)
	if err == nil && out.Completed && out.Iterations == 0 {
		fmt.Fprintln(r.Out, "The conversation already ended with DONE. Run ask -c to start over.")
	}
	if errors.Is(err, runtime.ErrBudgetExhausted) {
		fmt.Fprintf(r.Out, "Stopped after %d requests without completion.\n", out.Iterations)
	}
	return err
}

// Clear removes the current session record.
func (r *Runner) Clear() error {
	cleared, err := r.Sessions.Clear(r.Key)
	if err != nil {
		return fmt.Errorf("error clearing conversation: %w", err)
	}
	if cleared {
		fmt.Fprintln(r.Out, "Conversation cleared.")
	} else {
		fmt.Fprintln(r.Out, "Nothing to clear.")
	}
	return nil
}

// Last prints the latest message of the current session.
func (r *Runner) Last() error {
	state, err := r.load()
	if err != nil {
		return err
	}
	if m, ok := state.Last(); ok {
		fmt.Fprintln(r.Out, m.Content.String())
	}
	return nil
}

// History shows the transcript in editor, or exports it when format is set.
func (r *Runner) History(format, editor string, width int, stdin io.Reader, stderr io.Writer) error {
	state, err := r.load()
	if err != nil {
		return err
	}
	if format != "" {
		return history.Export(r.Out, state, format)
	}
	return history.Open(state, editor, width, stdin, r.Out, stderr)
}

// Manage lets the user delete stored sessions or copy one into the current
// session.
func (r *Runner) Manage() error {
	sessions, err := r.Sessions.List()
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(r.Out, "No conversations to manage!")
		return nil
	}

	choice, err := r.Picker(sessions, r.Key)
	if err != nil {
		return err
	}

	switch choice.Action {
	case tui.ActionDeleteAll:
		n, err := r.Sessions.DeleteAll()
		if err != nil {
			r.Observer.Log().Warn().Err(err).Msg("some conversations could not be deleted")
		}
		fmt.Fprintf(r.Out, "Deleted %d conversation(s).\n", n)
	case tui.ActionDelete:
		if err := r.Sessions.Delete(choice.Key); err != nil {
			fmt.Fprintf(r.Out, "Failed to delete conversation: %v\n", err)
			return nil
		}
		fmt.Fprintln(r.Out, "Conversation deleted successfully.")
	case tui.ActionCopy:
		state, err := r.load()
		if err != nil {
			return err
		}
		if err := r.Sessions.Merge(state, choice.Key); err != nil {
			if errors.Is(err, session.ErrModelMismatch) {
				fmt.Fprintln(r.Out, "Cannot copy conversation: Model mismatch.")
				return nil
			}
			return err
		}
		if err := r.Sessions.Save(r.Key, state); err != nil {
			return fmt.Errorf("could not save conversation: %w", err)
		}
		fmt.Fprintln(r.Out, "Conversation copied successfully.")
	default:
		if choice.Key != "" {
			fmt.Fprintln(r.Out, "Action cancelled.")
		} else {
			fmt.Fprintln(r.Out, "Operation cancelled.")
		}
	}
	return nil
}
