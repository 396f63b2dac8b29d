// Package auth persists the browser authentication state (the cookie and
// storage snapshot Playwright calls "storage state") between runs, optionally
// encrypted at rest.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound means no credentials have been saved yet; callers treat it as
// "not authenticated", not as a failure.
var ErrNotFound = errors.New("auth: no saved credentials")

// FreshnessWarnAfter is the age past which credentials are flagged as stale.
// Age is informational only: whether the cookies still work is decided
// empirically by a live auth check, never by the clock.
const FreshnessWarnAfter = 7 * 24 * time.Hour

// Credentials wraps the persisted browser state. The payload is Playwright's
// storage state document and is treated as opaque apart from cookie counting.
type Credentials struct {
	State json.RawMessage
}

// CookieCount reports how many cookies the snapshot carries; 0 for a
// malformed or empty snapshot.
func (c *Credentials) CookieCount() int {
	var doc struct {
		Cookies []json.RawMessage `json:"cookies"`
	}
	if err := json.Unmarshal(c.State, &doc); err != nil {
		return 0
	}
	return len(doc.Cookies)
}

// Store reads and writes the credential file. With a passphrase configured
// the file is AES-256-GCM encrypted under an "nbq1:" envelope; without one it
// is plain JSON. Either form loads regardless of the current setting, so
// turning encryption on migrates the file on the next save.
type Store struct {
	path string
	key  []byte
}

// NewStore creates a store for the given file. An empty passphrase disables
// encryption.
func NewStore(path, passphrase string) *Store {
	s := &Store{path: path}
	if passphrase != "" {
		s.key = deriveKey(passphrase)
	}
	return s
}

// Path returns the credential file location.
func (s *Store) Path() string { return s.path }

// Load restores saved credentials. Returns ErrNotFound when the file is
// absent.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	plaintext, err := s.open(data)
	if err != nil {
		return nil, err
	}

	if !json.Valid(plaintext) {
		return nil, fmt.Errorf("credentials file %s is not valid JSON", s.path)
	}
	return &Credentials{State: plaintext}, nil
}

// Save persists credentials with owner-only permissions, atomically.
func (s *Store) Save(creds *Credentials) error {
	if creds == nil || len(creds.State) == 0 {
		return errors.New("auth: refusing to save empty credentials")
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}

	payload, err := s.seal(creds.State)
	if err != nil {
		return err
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replace credentials file: %w", err)
	}
	return nil
}

// Clear removes the credential file. Missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// Age returns how long ago the credentials were last saved.
func (s *Store) Age() (time.Duration, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("stat credentials: %w", err)
	}
	return time.Since(info.ModTime()), nil
}

// Stale reports whether the file is old enough to warrant a warning. Missing
// credentials are not stale, just absent.
func (s *Store) Stale() bool {
	age, err := s.Age()
	if err != nil {
		return false
	}
	return age > FreshnessWarnAfter
}

// Materialize writes the decrypted storage state to a private temp file and
// returns its path, for handing to the browser as a storage-state source.
// The cleanup func removes the file and must always be called.
func (s *Store) Materialize() (string, func(), error) {
	creds, err := s.Load()
	if err != nil {
		return "", nil, err
	}

	file, err := os.CreateTemp(filepath.Dir(s.path), "state-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("create temp state file: %w", err)
	}
	path := file.Name()
	cleanup := func() { os.Remove(path) }

	if err := os.Chmod(path, 0o600); err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("restrict temp state file: %w", err)
	}
	if _, err := file.Write(creds.State); err != nil {
		file.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp state file: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp state file: %w", err)
	}
	return path, cleanup, nil
}
