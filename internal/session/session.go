// Package session persists one conversation per session key as a JSON record
// in a single directory. Each parent shell maps to one key, so concurrent
// shells do not share history. There is no cross-process locking: two
// invocations writing the same key race and the last writer wins.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/felixgeelhaar/ask/internal/conversation"
)

// RecordPrefix is the filename prefix of every session record.
const RecordPrefix = "gpt_transcript-"

var (
	ErrNotFound      = errors.New("session not found")
	ErrCorruptState  = errors.New("corrupt session state")
	ErrModelMismatch = errors.New("session model mismatch")
	ErrInvalidKey    = errors.New("invalid session key")
)

// Key identifies one session record.
type Key string

// ParentKey derives the key of the invoking shell from the parent process id.
func ParentKey() Key {
	return Key(strconv.Itoa(os.Getppid()))
}

func (k Key) validate() error {
	s := string(k)
	switch {
	case s == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case strings.Contains(s, ".."):
		return fmt.Errorf("%w: %q contains '..'", ErrInvalidKey, s)
	case strings.ContainsAny(s, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidKey, s)
	}
	return nil
}

// Store reads and writes session records under Dir.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. An empty dir means os.TempDir().
func NewStore(dir string) *Store {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Store{dir: dir}
}

// Dir returns the directory holding the records.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the record path for key.
func (s *Store) Path(key Key) string {
	return filepath.Join(s.dir, RecordPrefix+string(key))
}

// Initialize builds a fresh state for model holding only the priming message.
func (s *Store) Initialize(model string) *conversation.State {
	return conversation.New(model)
}

// Load reads the record for key. It returns ErrNotFound when there is no
// record and ErrCorruptState when the record cannot be decoded into a valid
// conversation.
func (s *Store) Load(key Key) (*conversation.State, error) {
	if err := key.validate(); err != nil {
		return nil, err
	}
	path := s.Path(key)
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("could not read session file %s: %w", path, err)
	}
	return decode(path, data)
}

// LoadOrInitialize loads the record for key, or builds a fresh state for
// model when none exists. The fresh state is not written until Save.
func (s *Store) LoadOrInitialize(key Key, model string) (*conversation.State, error) {
	state, err := s.Load(key)
	if errors.Is(err, ErrNotFound) {
		return s.Initialize(model), nil
	}
	return state, err
}

func decode(path string, data []byte) (*conversation.State, error) {
	var state conversation.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, path, err)
	}
	return &state, nil
}

// Save overwrites the record for key with state. The new contents are written
// to a temporary file and renamed into place.
func (s *Store) Save(key Key, state *conversation.State) error {
	if err := key.validate(); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		return fmt.Errorf("refusing to save session %s: %w", key, err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return fmt.Errorf("could not create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+RecordPrefix+string(key)+"-*")
	if err != nil {
		return fmt.Errorf("could not create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("could not write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not write session file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("could not replace session file: %w", err)
	}
	return nil
}

// Clear removes the record for key. It reports false, without error, when
// there was nothing to clear.
func (s *Store) Clear(key Key) (bool, error) {
	if err := key.validate(); err != nil {
		return false, err
	}
	if err := os.Remove(s.Path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("could not remove session file: %w", err)
	}
	return true, nil
}

// Summary describes a stored session for listing.
type Summary struct {
	Key     Key
	Path    string
	Model   string
	Preview string
	// Err is set when the record could not be decoded.
	Err error
}

const previewRunes = 64

// List returns a summary of every record in the store directory, sorted by key.
func (s *Store) List() ([]Summary, error) {
	matches, err := doublestar.Glob(os.DirFS(s.dir), RecordPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	summaries := make([]Summary, 0, len(matches))
	for _, name := range matches {
		key := Key(strings.TrimPrefix(name, RecordPrefix))
		if key.validate() != nil {
			continue
		}
		sum := Summary{Key: key, Path: filepath.Join(s.dir, name)}
		state, err := s.Load(key)
		if err != nil {
			sum.Err = err
		} else {
			sum.Model = state.Model
			sum.Preview = preview(state)
		}
		summaries = append(summaries, sum)
	}
	return summaries, nil
}

// preview returns the first line of the first message after the priming one.
func preview(state *conversation.State) string {
	if len(state.Messages) < 2 {
		return ""
	}
	line, _, _ := strings.Cut(state.Messages[1].Content.String(), "\n")
	r := []rune(line)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return string(r)
}

// Delete removes the record for key. A missing record is ErrNotFound.
func (s *Store) Delete(key Key) error {
	ok, err := s.Clear(key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// DeleteAll removes every record and returns how many were deleted. It keeps
// going past individual failures and returns them joined.
func (s *Store) DeleteAll() (int, error) {
	summaries, err := s.List()
	if err != nil {
		return 0, err
	}
	var errs []error
	deleted := 0
	for _, sum := range summaries {
		if err := s.Delete(sum.Key); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sum.Key, err))
			continue
		}
		deleted++
	}
	return deleted, errors.Join(errs...)
}

// Merge appends the history of the session src, minus its priming message,
// to dst. Both sessions must target the same model. dst is not saved.
func (s *Store) Merge(dst *conversation.State, src Key) error {
	other, err := s.Load(src)
	if err != nil {
		return err
	}
	if other.Model != dst.Model {
		return fmt.Errorf("%w: %s uses %q, current session uses %q", ErrModelMismatch, src, other.Model, dst.Model)
	}
	dst.Messages = append(dst.Messages, other.Messages[1:]...)
	return nil
}
