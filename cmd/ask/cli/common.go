package cli

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"

	"github.com/felixgeelhaar/ask/internal/config"
	"github.com/felixgeelhaar/ask/internal/credential"
	"github.com/felixgeelhaar/ask/internal/store"
)

// ErrMissingKey is reported when no credential can be found at startup.
var ErrMissingKey = errors.New("Missing API key! Set the OPENAI_API_KEY environment variable and try again.")

// getStore opens the journal under config.Home.
func getStore() (*store.SQLiteStore, error) {
	home, err := config.Home()
	if err != nil {
		return nil, err
	}
	return store.NewSQLiteStore(
		filepath.Join(home, "journal.db"),
		filepath.Join(home, "artifacts"),
	)
}

// credentialSource prefers the environment over the sealed key in j.
// j may be nil.
func credentialSource(j store.Journal) credential.Source {
	lookup := func() (string, error) {
		if j == nil {
			return "", nil
		}
		return j.GetConfig(config.KeyAPIKey)
	}
	return credential.Chain(
		credential.Env(credential.EnvVar),
		credential.Stored(lookup, credential.NewVault()),
	)
}

// userTag identifies the caller to the completion service.
func userTag() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func sessionDir(s config.Settings) string {
	if s.SessionDir != "" {
		return s.SessionDir
	}
	return os.TempDir()
}
