// Package credstore persists the access/refresh credential pair across
// process runs. All writes are whole-pair replacements or full clears so a
// mismatched pair can never be observed.
package credstore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/promptdeck/promptdeck/internal/model"
)

// Store holds the current credential pair and the last-known username.
// Implementations normalize incomplete pairs to absent: an access token with
// no refresh counterpart cannot renew itself and must not be reported.
type Store interface {
	// Pair returns the stored credentials, or a zero pair when absent or
	// incomplete.
	Pair() model.CredentialPair
	// Save replaces the stored pair as a whole.
	Save(pair model.CredentialPair) error
	// Clear removes the stored pair entirely.
	Clear() error

	// Username returns the last persisted username ("" when unknown).
	Username() string
	// SaveUsername records the last-known username.
	SaveUsername(name string) error
	// ClearUsername forgets the last-known username.
	ClearUsername() error
}

// AccessExpiresAt reads the expiry claim out of the access token without
// validating the signature. Display/freshness hint only; the server remains
// the authority on token validity.
func AccessExpiresAt(pair model.CredentialPair) (time.Time, bool) {
	if pair.Access == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	_, _ = jwt.ParseWithClaims(pair.Access, &claims, func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ---- file-backed store ----

type credFile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// File persists credentials under the user config dir (0600 files).
type File struct {
	dir string
}

// NewFile builds a file store rooted at dir; empty dir resolves to
// $XDG_CONFIG_HOME/promptdeck or ~/.config/promptdeck.
func NewFile(dir string) *File {
	if dir == "" {
		dir = defaultDir()
	}
	return &File{dir: dir}
}

func defaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "promptdeck")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "promptdeck")
}

func (f *File) credPath() string { return filepath.Join(f.dir, "credentials.json") }
func (f *File) userPath() string { return filepath.Join(f.dir, "username") }

func (f *File) Pair() model.CredentialPair {
	b, err := os.ReadFile(f.credPath())
	if err != nil {
		return model.CredentialPair{}
	}
	var cf credFile
	if err := json.Unmarshal(b, &cf); err != nil {
		return model.CredentialPair{}
	}
	pair := model.CredentialPair{Access: cf.AccessToken, Refresh: cf.RefreshToken}
	if !pair.Complete() {
		// a partial pair from an older run is as good as none
		return model.CredentialPair{}
	}
	return pair
}

func (f *File) Save(pair model.CredentialPair) error {
	if !pair.Complete() {
		return errors.New("credstore: refusing to save incomplete pair")
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(credFile{AccessToken: pair.Access, RefreshToken: pair.Refresh}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.credPath(), b, 0o600)
}

func (f *File) Clear() error {
	err := os.Remove(f.credPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *File) Username() string {
	b, err := os.ReadFile(f.userPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (f *File) SaveUsername(name string) error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(f.userPath(), []byte(strings.TrimSpace(name)), 0o600)
}

func (f *File) ClearUsername() error {
	err := os.Remove(f.userPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ---- in-memory store ----

// Memory is a process-local store for tests and ephemeral sessions. Safe for
// concurrent use; the pipeline reads it from overlapping requests.
type Memory struct {
	mu   sync.Mutex
	pair model.CredentialPair
	name string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Pair() model.CredentialPair {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pair.Complete() {
		return model.CredentialPair{}
	}
	return m.pair
}

func (m *Memory) Save(pair model.CredentialPair) error {
	if !pair.Complete() {
		return errors.New("credstore: refusing to save incomplete pair")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = model.CredentialPair{}
	return nil
}

func (m *Memory) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.name
}

func (m *Memory) SaveUsername(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	return nil
}

func (m *Memory) ClearUsername() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = ""
	return nil
}
