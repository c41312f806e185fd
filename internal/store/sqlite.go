package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db          *sql.DB
	artifactDir string
}

var _ Journal = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath, artifactDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}
	if err := os.MkdirAll(artifactDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; concurrent shells serialize on the busy timeout
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:          db,
		artifactDir: artifactDir,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			session_key TEXT,
			task TEXT,
			model TEXT,
			status TEXT,
			iterations INTEGER,
			created_at INTEGER,
			updated_at INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS runs_session ON runs(session_key);`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			run_id TEXT,
			path TEXT,
			command TEXT,
			exit_code INTEGER,
			created_at INTEGER,
			digest TEXT,
			FOREIGN KEY(run_id) REFERENCES runs(id)
		);`,
		`CREATE TABLE IF NOT EXISTS configuration (
			key TEXT PRIMARY KEY,
			value TEXT
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ArtifactDir returns the directory artifact contents are written under.
func (s *SQLiteStore) ArtifactDir() string {
	return s.artifactDir
}

// Configuration

func (s *SQLiteStore) SetConfig(key, value string) error {
	query := `INSERT INTO configuration (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	_, err := s.db.Exec(query, key, value)
	return err
}

func (s *SQLiteStore) GetConfig(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM configuration WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

func (s *SQLiteStore) UnsetConfig(key string) error {
	_, err := s.db.Exec(`DELETE FROM configuration WHERE key = ?`, key)
	return err
}

// Runs

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (s *SQLiteStore) CreateRun(run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = run.CreatedAt
	}
	query := `INSERT INTO runs (id, session_key, task, model, status, iterations, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, run.ID, run.SessionKey, run.Task, run.Model, run.Status, run.Iterations,
		unixNano(run.CreatedAt), unixNano(run.UpdatedAt))
	return err
}

const runColumns = `id, session_key, task, model, status, iterations, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var created, updated int64
	if err := row.Scan(&r.ID, &r.SessionKey, &r.Task, &r.Model, &r.Status, &r.Iterations, &created, &updated); err != nil {
		return nil, err
	}
	r.CreatedAt = fromUnixNano(created)
	r.UpdatedAt = fromUnixNano(updated)
	return &r, nil
}

func (s *SQLiteStore) GetRun(id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRun(run *Run) error {
	run.UpdatedAt = time.Now()
	query := `UPDATE runs SET status = ?, iterations = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.Exec(query, run.Status, run.Iterations, unixNano(run.UpdatedAt), run.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// ListRuns returns the runs of sessionKey, oldest first. An empty key lists
// every run.
func (s *SQLiteStore) ListRuns(sessionKey string) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if sessionKey != "" {
		query += ` WHERE session_key = ?`
		args = append(args, sessionKey)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Artifacts

// Digest returns the hex sha256 of content.
func Digest(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// SaveArtifact writes content under the artifact directory and records its
// metadata. Empty ID, Path, CreatedAt and Digest are filled in.
func (s *SQLiteStore) SaveArtifact(artifact *Artifact, content []byte) error {
	if artifact.ID == "" {
		artifact.ID = uuid.NewString()
	}
	if artifact.Path == "" {
		artifact.Path = filepath.Join(artifact.RunID, artifact.ID+".txt")
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}
	if artifact.Digest == "" {
		artifact.Digest = Digest(content)
	}

	fullPath := filepath.Join(s.artifactDir, artifact.Path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0750); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if err := os.WriteFile(fullPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write artifact content: %w", err)
	}

	query := `INSERT INTO artifacts (id, run_id, path, command, exit_code, created_at, digest) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, artifact.ID, artifact.RunID, artifact.Path, artifact.Command, artifact.ExitCode,
		unixNano(artifact.CreatedAt), artifact.Digest)
	return err
}

const artifactColumns = `id, run_id, path, command, exit_code, created_at, digest`

func scanArtifact(row scanner) (*Artifact, error) {
	var a Artifact
	var created int64
	if err := row.Scan(&a.ID, &a.RunID, &a.Path, &a.Command, &a.ExitCode, &created, &a.Digest); err != nil {
		return nil, err
	}
	a.CreatedAt = fromUnixNano(created)
	return &a, nil
}

func (s *SQLiteStore) GetArtifact(id string) (*Artifact, []byte, error) {
	artifact, err := scanArtifact(s.db.QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, id)
		}
		return nil, nil, err
	}

	fullPath := filepath.Join(s.artifactDir, artifact.Path)
	content, err := os.ReadFile(fullPath) // #nosec G304
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact content: %w", err)
	}
	return artifact, content, nil
}

func (s *SQLiteStore) ListArtifacts(runID string) ([]*Artifact, error) {
	rows, err := s.db.Query(`SELECT `+artifactColumns+` FROM artifacts WHERE run_id = ? ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}
