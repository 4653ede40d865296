package persistence

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/ovidtrivia/quizroom/internal/v1/session"
)

type sessionDocument struct {
	Sessions []session.Data `json:"sessions"`
}

// SessionStore persists session.Store snapshots to a single JSON file via
// tmp+rename, the same recovery policy as RoomStore.
type SessionStore struct {
	path string
}

// NewSessionStore targets the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Save writes sessions to disk atomically, swallowing write failures.
func (s *SessionStore) Save(sessions []session.Data) {
	if err := writeAtomic(s.path, sessionDocument{Sessions: sessions}); err != nil {
		slog.Error("failed to persist session snapshot", "path", s.path, "error", err)
	}
}

// Load reads and parses the persisted session snapshot, dropping the file
// on any parse failure.
func (s *SessionStore) Load() []session.Data {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read session snapshot, starting empty", "path", s.path, "error", err)
		}
		return nil
	}

	var doc sessionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("failed to parse session snapshot, discarding file", "path", s.path, "error", err)
		_ = os.Remove(s.path)
		return nil
	}
	return doc.Sessions
}
