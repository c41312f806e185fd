package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/felixgeelhaar/ask/internal/approval"
	"github.com/felixgeelhaar/ask/internal/clipboard"
	"github.com/felixgeelhaar/ask/internal/config"
	"github.com/felixgeelhaar/ask/internal/conversation"
	"github.com/felixgeelhaar/ask/internal/credential"
	"github.com/felixgeelhaar/ask/internal/history"
	"github.com/felixgeelhaar/ask/internal/observe"
	"github.com/felixgeelhaar/ask/internal/provider"
	"github.com/felixgeelhaar/ask/internal/session"
	"github.com/felixgeelhaar/ask/internal/store"
	"github.com/felixgeelhaar/ask/internal/ui"
	"github.com/felixgeelhaar/ask/internal/ui/tui"
)

var (
	recursive     bool
	manage        bool
	clearConvo    bool
	last          bool
	image         bool
	verbose       bool
	jsonLogs      bool
	maxIterations int
	exportFormat  string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "ask [flags] [text...]",
	Short: "Terminal chat with a human-approved command loop",
	Long: `ask keeps one conversation per shell with an OpenAI-compatible chat service.
With -r it works on a task by proposing shell commands, running each one only
after you approve it.`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, args)
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	f := RootCmd.Flags()
	f.BoolVarP(&recursive, "recursive", "r", false, "Work on the text as a task, running approved commands")
	f.BoolVarP(&manage, "manage", "o", false, "Manage stored conversations")
	f.BoolVarP(&clearConvo, "clear", "c", false, "Clear the current conversation")
	f.BoolVarP(&last, "last", "l", false, "Print the last message of the conversation")
	f.BoolVarP(&image, "image", "i", false, "Attach the clipboard image")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	f.BoolVar(&jsonLogs, "json", false, "Log as JSON")
	f.IntVar(&maxIterations, "max-iterations", 0, "Stop an agent run after N requests (0 = unbounded)")
	f.StringVar(&exportFormat, "format", "", "Print the history as yaml or json instead of opening it")
	// everything after the first word is text, not flags
	f.SetInterspersed(false)
}

// readInput joins args, or reads stdin when it is not a terminal. Blank
// piped input counts as no input.
func readInput(args []string, stdin *os.File) (string, bool, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), true, nil
	}
	if term.IsTerminal(int(stdin.Fd())) {
		return "", false, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", false, fmt.Errorf("failed to read from stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", false, nil
	}
	return string(data), true, nil
}

// terminalPrompter reads answers from the controlling terminal, so a task
// can be piped in and still be supervised.
func terminalPrompter(obs *observe.Observer) (approval.Prompter, func()) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return approval.NewTerminal(os.Stdin, os.Stdout, obs), func() {}
	}
	tty, err := os.Open("/dev/tty")
	if err != nil {
		obs.Log().Warn().Err(err).Msg("no terminal for approvals, every command will be rejected")
		return approval.NewTerminal(os.Stdin, os.Stdout, obs), func() {}
	}
	return approval.NewTerminal(tty, os.Stdout, obs), func() { tty.Close() }
}

func runAsk(cmd *cobra.Command, args []string) error {
	var obs *observe.Observer
	if jsonLogs {
		obs = observe.NewJSON(os.Stderr, verbose)
	} else {
		obs = observe.New(os.Stderr, verbose)
	}
	defer obs.Close()
	ctx := context.Background()

	var journal store.Journal
	if s, err := getStore(); err != nil {
		obs.Log().Warn().Err(err).Msg("journal unavailable, using defaults")
	} else {
		journal = s
		defer s.Close()
	}

	settings, err := config.Load(journal, os.Getenv)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-iterations") {
		settings.MaxIterations = maxIterations
	}

	src := credentialSource(journal)
	if _, err := src(); err != nil {
		if errors.Is(err, credential.ErrMissing) {
			return ErrMissingKey
		}
		return err
	}

	input, hasInput, err := readInput(args, os.Stdin)
	if err != nil {
		return err
	}

	key := session.ParentKey()
	completer := provider.NewOpenAIClient(settings.BaseURL, userTag(), src, obs)
	r := NewRunner(obs, session.NewStore(sessionDir(settings)), completer, settings, key, os.Stdout)
	r.Journal = journal
	r.UI = ui.NewConsole(os.Stdout, os.Stderr, verbose)
	obs.Log().Debug().Str("session", string(key)).Str("model", settings.Model).Msg("session resolved")

	switch {
	case recursive:
		if !hasInput {
			return errors.New("-r needs a task")
		}
		p, closeTTY := terminalPrompter(obs)
		defer closeTTY()
		r.Prompter = p
		return r.Agent(ctx, input)
	case manage && !hasInput:
		r.Picker = func(sessions []session.Summary, current session.Key) (tui.Choice, error) {
			return tui.Pick(sessions, current, os.Stdin, os.Stdout)
		}
		return r.Manage()
	case clearConvo && !hasInput:
		return r.Clear()
	case last && !hasInput:
		return r.Last()
	}

	var content conversation.Content
	switch {
	case image:
		content, err = clipboard.CaptureContent(ctx, r.Executor, input)
		if err != nil {
			return fmt.Errorf("could not attach clipboard image: %w", err)
		}
	case !hasInput:
		editor := os.Getenv("EDITOR")
		return r.History(exportFormat, editor, history.Width(os.Stdout), os.Stdin, os.Stderr)
	default:
		content = conversation.Text(input)
	}

	if err := r.Ask(ctx, content); err != nil {
		if errors.Is(err, provider.ErrTransport) {
			return fmt.Errorf("HTTP request error: %w", err)
		}
		return err
	}
	return nil
}
