package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"maunium.net/go/mautrix/id"
)

// Session holds the credentials and sync position for one bot login. It is
// written back to disk whenever the sync token advances, so a restart resumes
// where the previous run left off instead of replaying old messages.
type Session struct {
	Homeserver  string      `json:"homeserver"`
	UserID      id.UserID   `json:"user_id"`
	DeviceID    id.DeviceID `json:"device_id"`
	AccessToken string      `json:"access_token"`
	SyncToken   string      `json:"sync_token"`
}

func loadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file %s: %w", path, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	if s.UserID == "" || s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

func saveSession(path string, s *Session) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create session directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", path, err)
	}
	return nil
}

// sessionStore implements mautrix.SyncStore on top of the session file, so
// the sync position survives restarts. Filter IDs are kept in memory only.
type sessionStore struct {
	mu       sync.Mutex
	path     string
	session  *Session
	filterID string
}

func (s *sessionStore) SaveFilterID(ctx context.Context, userID id.UserID, filterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterID = filterID
	return nil
}

func (s *sessionStore) LoadFilterID(ctx context.Context, userID id.UserID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterID, nil
}

func (s *sessionStore) SaveNextBatch(ctx context.Context, userID id.UserID, nextBatchToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.SyncToken = nextBatchToken
	return saveSession(s.path, s.session)
}

func (s *sessionStore) LoadNextBatch(ctx context.Context, userID id.UserID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.SyncToken, nil
}
