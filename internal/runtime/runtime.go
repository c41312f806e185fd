// Package runtime drives the agent loop: ask for a command, gate it behind
// the user, run it, report the result, until the reply says the task is done.
package runtime

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/felixgeelhaar/ask/internal/approval"
	"github.com/felixgeelhaar/ask/internal/conversation"
	"github.com/felixgeelhaar/ask/internal/executor"
	"github.com/felixgeelhaar/ask/internal/guard"
	"github.com/felixgeelhaar/ask/internal/observe"
	"github.com/felixgeelhaar/ask/internal/provider"
	"github.com/felixgeelhaar/ask/internal/session"
	"github.com/felixgeelhaar/ask/internal/store"
	"github.com/felixgeelhaar/ask/internal/ui"
)

// LoopState is the phase the loop is in.
type LoopState int

const (
	AwaitingDirective LoopState = iota
	AwaitingApproval
	Executing
	Done
)

func (s LoopState) String() string {
	switch s {
	case AwaitingDirective:
		return "awaiting_directive"
	case AwaitingApproval:
		return "awaiting_approval"
	case Executing:
		return "executing"
	case Done:
		return "done"
	}
	return fmt.Sprintf("LoopState(%d)", int(s))
}

var (
	// ErrBudgetExhausted means the iteration budget ran out before DONE.
	ErrBudgetExhausted = errors.New("iteration budget exhausted")
	// ErrPersist means the conversation could not be saved.
	ErrPersist = errors.New("failed to persist conversation")
)

// Saver persists the conversation after every completion.
type Saver interface {
	Save(key session.Key, state *conversation.State) error
}

// Outcome summarizes a finished Run.
type Outcome struct {
	// Iterations counts completion requests made during the run.
	Iterations int
	Completed  bool
}

// AgentLoop runs one task against one conversation.
type AgentLoop struct {
	key       session.Key
	state     *conversation.State
	sessions  Saver
	completer provider.Completer
	runner    executor.Runner
	prompter  approval.Prompter
	observe   *observe.Observer

	parser   Parser
	guard    *guard.Guard
	bus      *EventBus
	recorder Recorder
	ui       ui.UI
	current  LoopState
}

func New(key session.Key, state *conversation.State, s Saver, c provider.Completer, r executor.Runner, p approval.Prompter, o *observe.Observer) *AgentLoop {
	if o == nil {
		o = observe.Nop()
	}
	return &AgentLoop{
		key:       key,
		state:     state,
		sessions:  s,
		completer: c,
		runner:    r,
		prompter:  p,
		observe:   o,
		parser:    DefaultParser,
		guard:     guard.New(guard.DefaultPolicy),
		bus:       NewEventBus(),
		ui:        ui.SilentUI{},
	}
}

func (l *AgentLoop) SetUI(u ui.UI) {
	if u != nil {
		l.ui = u
	}
}

func (l *AgentLoop) SetParser(p Parser) {
	if p != nil {
		l.parser = p
	}
}

func (l *AgentLoop) SetGuard(g *guard.Guard) {
	if g != nil {
		l.guard = g
	}
}

// SetRecorder enables the run journal. Nil disables it.
func (l *AgentLoop) SetRecorder(r Recorder) {
	l.recorder = r
}

// Bus returns the event bus the loop publishes on.
func (l *AgentLoop) Bus() *EventBus {
	return l.bus
}

// State returns the phase the loop is in.
func (l *AgentLoop) State() LoopState {
	return l.current
}

func (l *AgentLoop) transition(s LoopState) {
	if l.current == s {
		return
	}
	from := l.current
	l.current = s
	l.bus.PublishWithData(EventStateChange, string(l.key), map[string]any{
		"from": from.String(),
		"to":   s.String(),
	})
}

// inspect parses the latest message when it is an assistant reply.
func (l *AgentLoop) inspect() Verdict {
	last, ok := l.state.Last()
	if !ok || last.Role != conversation.RoleAssistant {
		return Verdict{Kind: NoDirective}
	}
	return l.parser.Parse(last.Content.String())
}

// Run drives the loop until a reply carries the completion marker, the
// budget runs out, or an error stops it. Spawn failures and failing
// commands are reported to the model, never returned. A transport error
// stops the loop without persisting the unanswered user turn.
func (l *AgentLoop) Run(ctx context.Context, task string) (out Outcome, err error) {
	ctx, span := l.observe.StartSpan(ctx, "AgentLoop.Run")
	defer span.End()
	span.SetAttributes(attribute.String("session", string(l.key)), attribute.String("model", l.state.Model))

	log := l.observe.Log()
	log.Info().Str("session", string(l.key)).Str("task", task).Msg("starting agent run")

	runID := l.startRun(task)
	defer func() {
		status := store.RunCompleted
		switch {
		case errors.Is(err, ErrBudgetExhausted):
			status = store.RunHalted
			l.bus.PublishWithData(EventRunHalted, string(l.key), map[string]any{"iterations": out.Iterations})
		case err != nil:
			status = store.RunFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			l.bus.PublishWithData(EventRunError, string(l.key), map[string]any{"error": err.Error()})
		}
		span.SetAttributes(attribute.Int("iterations", out.Iterations))
		l.finishRun(runID, status, out.Iterations)
	}()

	l.current = AwaitingDirective
	for {
		verdict := l.inspect()
		if verdict.Kind == Completed {
			return l.done(out), nil
		}

		if verdict.Kind != Directive {
			l.transition(AwaitingDirective)
			if err := l.complete(ctx, &out, DirectivePrompt(task)); err != nil {
				return out, err
			}
			verdict = l.inspect()
			if verdict.Kind == Completed {
				return l.done(out), nil
			}
			if verdict.Kind != Directive {
				log.Warn().Int("iteration", out.Iterations).Msg("reply carried no command, asking again")
				l.bus.PublishSimple(EventNoDirective, string(l.key))
				continue
			}
		}

		l.bus.PublishWithData(EventDirective, string(l.key), map[string]any{"command": verdict.Command})
		l.transition(AwaitingApproval)
		approved, err := l.prompter.Confirm(ctx, verdict.Command)
		if err != nil {
			return out, fmt.Errorf("approval failed: %w", err)
		}

		var next string
		if approved {
			l.bus.PublishWithData(EventApproved, string(l.key), map[string]any{"command": verdict.Command})
			next, err = l.execute(ctx, runID, verdict.Command)
			if err != nil {
				return out, err
			}
		} else {
			comment, err := l.prompter.Comment(ctx)
			if err != nil {
				return out, fmt.Errorf("failed to read rejection comment: %w", err)
			}
			l.bus.PublishWithData(EventRejected, string(l.key), map[string]any{
				"command": verdict.Command,
				"comment": comment,
			})
			next = RejectionPrompt(comment)
		}

		l.transition(AwaitingDirective)
		if err := l.complete(ctx, &out, next); err != nil {
			return out, err
		}
	}
}

func (l *AgentLoop) done(out Outcome) Outcome {
	l.transition(Done)
	l.ui.UpdateStatus("Task completed!")
	l.bus.PublishWithData(EventRunComplete, string(l.key), map[string]any{"iterations": out.Iterations})
	out.Completed = true
	return out
}

// execute runs command and returns the feedback for the next user turn.
func (l *AgentLoop) execute(ctx context.Context, runID, command string) (string, error) {
	l.transition(Executing)
	res, err := l.runner.Run(ctx, command)

	var spawnErr *executor.SpawnError
	if errors.As(err, &spawnErr) {
		l.ui.Log(fmt.Sprintf("Failed to execute command: %v", spawnErr))
		l.bus.PublishWithData(EventSpawnFailure, string(l.key), map[string]any{
			"command": command,
			"error":   spawnErr.Error(),
		})
		return SpawnFailurePrompt(spawnErr.Err), nil
	}
	if err != nil {
		return "", fmt.Errorf("command did not run: %w", err)
	}

	feedback := ResultPrompt(res.Stdout, res.Stderr)
	l.ui.Log(feedback)
	l.bus.PublishWithData(EventCommandResult, string(l.key), map[string]any{
		"command":   command,
		"exit_code": res.ExitCode,
		"duration":  res.Duration.String(),
	})
	if l.recorder != nil && runID != "" {
		if err := l.recorder.RecordCommand(runID, command, res, feedback); err != nil {
			l.observe.Log().Warn().Err(err).Msg("journal write failed")
		}
	}
	return feedback, nil
}

// complete sends one user turn and persists the conversation once the reply
// has been appended.
func (l *AgentLoop) complete(ctx context.Context, out *Outcome, content string) error {
	if v := l.guard.CheckBudget(out.Iterations + 1); v != nil {
		l.observe.Log().Warn().Str("violation", v.Rule).Msg("guard violation, stopping")
		return fmt.Errorf("%w: %s", ErrBudgetExhausted, v.Message)
	}
	out.Iterations++
	l.ui.UpdateIteration(out.Iterations)
	l.bus.PublishWithData(EventCompletionRequest, string(l.key), map[string]any{"iteration": out.Iterations})

	iterLog := l.observe.Log().With().Int("iteration", out.Iterations).Logger()
	reply, err := l.completer.Complete(ctx, l.state, conversation.Text(content))
	if err != nil {
		iterLog.Error().Err(err).Msg("completion failed")
		return fmt.Errorf("completion failed: %w", err)
	}
	l.ui.Log(reply.Content.String())

	if err := l.sessions.Save(l.key, l.state); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	iterLog.Debug().Int("messages", l.state.Len()).Msg("conversation saved")
	l.bus.PublishWithData(EventCompletionResponse, string(l.key), map[string]any{
		"iteration": out.Iterations,
		"verdict":   l.parser.Parse(reply.Content.String()).Kind.String(),
	})
	return nil
}

func (l *AgentLoop) startRun(task string) string {
	if l.recorder == nil {
		return ""
	}
	id, err := l.recorder.StartRun(string(l.key), task, l.state.Model)
	if err != nil {
		l.observe.Log().Warn().Err(err).Msg("journal unavailable, continuing without it")
		return ""
	}
	return id
}

func (l *AgentLoop) finishRun(runID, status string, iterations int) {
	if l.recorder == nil || runID == "" {
		return
	}
	if err := l.recorder.FinishRun(runID, status, iterations); err != nil {
		l.observe.Log().Warn().Err(err).Msg("journal write failed")
	}
}
