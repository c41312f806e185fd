// Package store is the journal of agent runs: what was asked, which
// commands ran, their raw output, plus persistent configuration.
package store

import (
	"errors"
	"time"
)

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrArtifactNotFound = errors.New("artifact not found")
)

// Run statuses.
const (
	RunActive    = "active"
	RunCompleted = "completed"
	RunHalted    = "halted"
	RunFailed    = "failed"
)

// Run is one agent-mode invocation.
type Run struct {
	ID         string
	SessionKey string
	Task       string
	Model      string
	Status     string
	Iterations int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Artifact is the raw output of one executed command.
type Artifact struct {
	ID        string
	RunID     string
	Path      string // relative to the artifact directory
	Command   string
	ExitCode  int
	CreatedAt time.Time
	Digest    string // sha256 of the content
}

// Journal defines the persistence used by the agent loop and the CLI.
type Journal interface {
	CreateRun(run *Run) error
	GetRun(id string) (*Run, error)
	UpdateRun(run *Run) error
	ListRuns(sessionKey string) ([]*Run, error)

	// SaveArtifact persists the metadata and the content.
	SaveArtifact(artifact *Artifact, content []byte) error
	GetArtifact(id string) (*Artifact, []byte, error)
	ListArtifacts(runID string) ([]*Artifact, error)

	SetConfig(key, value string) error
	// GetConfig returns "" for a key that was never set.
	GetConfig(key string) (string, error)
	UnsetConfig(key string) error

	Close() error
}
