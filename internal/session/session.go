// Package session persists the signed-in staff member between kiosk CLI runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kioskpos/internal/models"
)

var ErrNoSession = errors.New("no session")

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// FileStore keeps one session as a JSON file readable only by its owner.
type FileStore struct {
	path string
	now  func() time.Time

	mu     sync.Mutex
	cached *Session
	loaded bool
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// DefaultPath is ~/.kiosk/session.json, or a file in the working directory
// when no home directory is known.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "kiosk-session.json"
	}
	return filepath.Join(home, ".kiosk", "session.json")
}

func (s *FileStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	payload, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	s.cached = &sess
	s.loaded = true
	return nil
}

// Load returns the stored session. A missing or expired session is
// ErrNoSession.
func (s *FileStore) Load() (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		sess, err := s.readLocked()
		if err != nil {
			return Session{}, err
		}
		s.cached = sess
		s.loaded = true
	}
	if s.cached == nil {
		return Session{}, ErrNoSession
	}
	if !s.cached.ExpiresAt.IsZero() && !s.cached.ExpiresAt.After(s.now()) {
		return Session{}, ErrNoSession
	}
	return *s.cached, nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.loaded = true
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Token returns the bearer token, or "" when nobody is signed in.
func (s *FileStore) Token() string {
	sess, err := s.Load()
	if err != nil {
		return ""
	}
	return sess.Token
}

func (s *FileStore) readLocked() (*Session, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}
