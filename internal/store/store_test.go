package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "journal.db"), filepath.Join(dir, "artifacts"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_Runs(t *testing.T) {
	s := newTestStore(t)

	run := &Run{SessionKey: "4242", Task: "list files", Model: "o1-mini", Status: RunActive}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if run.ID == "" {
		t.Fatal("expected generated run id")
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Task != "list files" || got.Model != "o1-mini" || got.Status != RunActive {
		t.Errorf("unexpected run %+v", got)
	}
	if !got.CreatedAt.Equal(run.CreatedAt) {
		t.Errorf("created_at mismatch: %v vs %v", got.CreatedAt, run.CreatedAt)
	}

	got.Status = RunCompleted
	got.Iterations = 3
	if err := s.UpdateRun(got); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}
	updated, _ := s.GetRun(run.ID)
	if updated.Status != RunCompleted || updated.Iterations != 3 {
		t.Errorf("update not persisted: %+v", updated)
	}

	if _, err := s.GetRun("non-existent"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if err := s.UpdateRun(&Run{ID: "non-existent"}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound on update, got %v", err)
	}

	other := &Run{SessionKey: "7", Task: "other", Status: RunActive}
	s.CreateRun(other)

	runs, err := s.ListRuns("4242")
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("expected only the 4242 run, got %d", len(runs))
	}
	all, _ := s.ListRuns("")
	if len(all) != 2 {
		t.Errorf("expected 2 runs in total, got %d", len(all))
	}
}

func TestSQLiteStore_Artifacts(t *testing.T) {
	s := newTestStore(t)
	run := &Run{SessionKey: "1", Task: "t", Status: RunActive}
	s.CreateRun(run)

	art := &Artifact{RunID: run.ID, Command: "echo hello", ExitCode: 0}
	content := []byte("stdout:\nhello\n")
	if err := s.SaveArtifact(art, content); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}
	if art.ID == "" || art.Path == "" {
		t.Fatalf("expected generated id and path, got %+v", art)
	}
	if art.Digest != Digest(content) {
		t.Errorf("digest not filled in")
	}

	gotArt, gotContent, err := s.GetArtifact(art.ID)
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if string(gotContent) != string(content) {
		t.Errorf("content mismatch: %q", gotContent)
	}
	if gotArt.Command != "echo hello" {
		t.Errorf("command mismatch: %q", gotArt.Command)
	}

	list, _ := s.ListArtifacts(run.ID)
	if len(list) != 1 {
		t.Errorf("expected 1 artifact, got %d", len(list))
	}

	if _, _, err := s.GetArtifact("non-existent"); !errors.Is(err, ErrArtifactNotFound) {
		t.Errorf("expected ErrArtifactNotFound, got %v", err)
	}

	s.db.Exec(`INSERT INTO artifacts (id, run_id, path, command, exit_code, created_at, digest) VALUES ('missing', ?, 'missing.txt', 'x', 0, 0, '')`, run.ID)
	if _, _, err := s.GetArtifact("missing"); err == nil {
		t.Error("expected error for missing artifact file")
	}
}

func TestSQLiteStore_Config(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetConfig("model", "gpt-4o"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	s.SetConfig("model", "o1-mini")

	val, err := s.GetConfig("model")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if val != "o1-mini" {
		t.Errorf("expected overwrite to win, got %q", val)
	}

	if v, _ := s.GetConfig("unknown"); v != "" {
		t.Errorf("expected empty string for unknown key, got %q", v)
	}

	if err := s.UnsetConfig("model"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetConfig("model"); v != "" {
		t.Errorf("expected unset key to be empty, got %q", v)
	}
}

func TestSQLiteStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "journal.db")
	s, err := NewSQLiteStore(db, filepath.Join(dir, "artifacts"))
	if err != nil {
		t.Fatal(err)
	}
	s.SetConfig("shell", "bash")
	s.Close()

	s2, err := NewSQLiteStore(db, filepath.Join(dir, "artifacts"))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	if v, _ := s2.GetConfig("shell"); v != "bash" {
		t.Errorf("config lost across reopen, got %q", v)
	}
}
