// Package credential resolves the bearer credential used against the
// completion service. The environment always wins; a key saved with
// `ask config set api_key` is kept sealed with AES-256-GCM under a
// machine-derived key and only opened when the environment has none.
package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// EnvVar is the environment variable holding the API key.
const EnvVar = "OPENAI_API_KEY"

// SealedPrefix marks a stored value as sealed.
const SealedPrefix = "enc:v1:"

var (
	ErrMissing     = errors.New("credential not set")
	ErrOpenFailed  = errors.New("could not open sealed credential")
	ErrInvalidSeal = errors.New("invalid sealed credential")
)

// Source returns the current credential. It is called once per request.
type Source func() (string, error)

// Env reads the credential from the environment variable name.
func Env(name string) Source {
	return func() (string, error) {
		v := strings.TrimSpace(os.Getenv(name))
		if v == "" {
			return "", fmt.Errorf("%w: %s is empty", ErrMissing, name)
		}
		return v, nil
	}
}

// Static always returns key.
func Static(key string) Source {
	return func() (string, error) {
		if key == "" {
			return "", ErrMissing
		}
		return key, nil
	}
}

// Stored opens the sealed value returned by lookup. A lookup that finds
// nothing should return "".
func Stored(lookup func() (string, error), v *Vault) Source {
	return func() (string, error) {
		sealed, err := lookup()
		if err != nil {
			return "", err
		}
		if sealed == "" {
			return "", fmt.Errorf("%w: no stored api_key", ErrMissing)
		}
		return v.Open(sealed)
	}
}

// Chain tries each source in order and returns the first credential found.
// Only ErrMissing moves on to the next source; other errors are returned.
func Chain(sources ...Source) Source {
	return func() (string, error) {
		var errs []error
		for _, src := range sources {
			key, err := src()
			if err == nil {
				return key, nil
			}
			if !errors.Is(err, ErrMissing) {
				return "", err
			}
			errs = append(errs, err)
		}
		if len(errs) == 0 {
			return "", ErrMissing
		}
		return "", errors.Join(errs...)
	}
}

// Vault seals and opens credentials for storage at rest.
type Vault struct {
	key []byte
}

// NewVault returns a vault keyed to this machine and user.
func NewVault() *Vault {
	return &Vault{key: machineKey()}
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext into a storable string. Empty stays empty.
func (v *Vault) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without SealedPrefix are
// returned unchanged.
func (v *Vault) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSeal, err)
	}
	gcm, err := v.aead()
	if err != nil {
		return "", err
	}
	n := gcm.NonceSize()
	if len(raw) < n {
		return "", ErrInvalidSeal
	}
	plaintext, err := gcm.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries SealedPrefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// machineKey hashes host and user identifiers into a 32-byte key.
func machineKey() []byte {
	var b strings.Builder
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	b.WriteString(hostname)
	b.WriteString(home)
	b.WriteString(runtime.GOOS + runtime.GOARCH)
	b.WriteString("ask-credential-v1")
	fmt.Fprintf(&b, "uid:%d", os.Getuid())
	b.WriteString(os.Getenv("USER"))
	sum := sha256.Sum256([]byte(b.String()))
	return sum[:]
}

// MaskSecret hides all but the first and last four characters of secret.
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
