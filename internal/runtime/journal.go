package runtime

import (
	"fmt"

	"github.com/felixgeelhaar/ask/internal/executor"
	"github.com/felixgeelhaar/ask/internal/store"
)

// Recorder keeps an audit trail of agent runs. Failures are logged by the
// loop and never stop it.
type Recorder interface {
	StartRun(sessionKey, task, model string) (runID string, err error)
	RecordCommand(runID, command string, res executor.Result, feedback string) error
	FinishRun(runID, status string, iterations int) error
}

// JournalRecorder records runs and command output into a store.Journal.
type JournalRecorder struct {
	Journal store.Journal
}

func (r *JournalRecorder) StartRun(sessionKey, task, model string) (string, error) {
	run := &store.Run{
		SessionKey: sessionKey,
		Task:       task,
		Model:      model,
		Status:     store.RunActive,
	}
	if err := r.Journal.CreateRun(run); err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return run.ID, nil
}

// RecordCommand stores feedback, the exact text returned to the model, as
// the artifact content.
func (r *JournalRecorder) RecordCommand(runID, command string, res executor.Result, feedback string) error {
	art := &store.Artifact{
		RunID:    runID,
		Command:  command,
		ExitCode: res.ExitCode,
	}
	if err := r.Journal.SaveArtifact(art, []byte(feedback)); err != nil {
		return fmt.Errorf("failed to record command output: %w", err)
	}
	return nil
}

func (r *JournalRecorder) FinishRun(runID, status string, iterations int) error {
	run, err := r.Journal.GetRun(runID)
	if err != nil {
		return err
	}
	run.Status = status
	run.Iterations = iterations
	return r.Journal.UpdateRun(run)
}
