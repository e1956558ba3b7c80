package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Session is the client state kept across restarts. Player ids are keyed by
// room code so one device can hold seats in several rooms.
type Session struct {
	LastRoomCode string            `json:"lastRoomCode,omitempty"`
	DisplayName  string            `json:"displayName,omitempty"`
	Spectator    bool              `json:"spectator,omitempty"`
	PlayerIDs    map[string]string `json:"playerIds,omitempty"`
}

// PlayerID returns the persistent id stored for roomCode
func (s Session) PlayerID(roomCode string) string {
	return s.PlayerIDs[strings.ToUpper(roomCode)]
}

// WithPlayerID returns a copy of s remembering id for roomCode
func (s Session) WithPlayerID(roomCode, id string) Session {
	ids := make(map[string]string, len(s.PlayerIDs)+1)
	for k, v := range s.PlayerIDs {
		ids[k] = v
	}
	if id == "" {
		delete(ids, strings.ToUpper(roomCode))
	} else {
		ids[strings.ToUpper(roomCode)] = id
	}
	s.PlayerIDs = ids
	return s
}

// Store persists the client Session
type Store interface {
	Load() (Session, error)
	Save(Session) error
}

// FileStore keeps the session in a JSON file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the session. A missing file is an empty session.
func (f *FileStore) Load() (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var s Session
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Save writes the session through a temp file and rename so readers never see a partial file
func (f *FileStore) Save(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// MemoryStore keeps the session in memory
type MemoryStore struct {
	session Session
	mu      sync.Mutex
}

// Load returns the stored session
func (m *MemoryStore) Load() (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

// Save replaces the stored session
func (m *MemoryStore) Save(s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}
