// Package persistence snapshots the room registry and session store to
// disk and restores them at startup. There is no pack dependency for
// atomic file writes (the corpus's only persistence is Redis-backed), so
// this is one of the few components built directly on the standard
// library; see DESIGN.md for that justification.
package persistence

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ovidtrivia/quizroom/internal/v1/room"
)

// roomDocument is the on-disk shape of the room snapshot file.
type roomDocument struct {
	Rooms []*room.Room `json:"rooms"`
}

// RoomStore persists room.Registry snapshots to a single JSON file via
// tmp+rename.
type RoomStore struct {
	path string
}

// NewRoomStore targets the given file path (directories are not created;
// the caller's STATE_DIR must already exist).
func NewRoomStore(path string) *RoomStore {
	return &RoomStore{path: path}
}

// Save writes rooms to disk atomically. Write failures are logged and
// swallowed: persistence is best-effort durability, not a correctness
// requirement.
func (s *RoomStore) Save(rooms []*room.Room) {
	if err := writeAtomic(s.path, roomDocument{Rooms: rooms}); err != nil {
		slog.Error("failed to persist room snapshot", "path", s.path, "error", err)
	}
}

// Load reads and parses the persisted room snapshot. A missing file is not
// an error (first run); any parse failure drops the whole file and starts
// empty, per the recovery policy.
func (s *RoomStore) Load() []*room.Room {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read room snapshot, starting empty", "path", s.path, "error", err)
		}
		return nil
	}

	var doc roomDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		slog.Warn("failed to parse room snapshot, discarding file", "path", s.path, "error", err)
		_ = os.Remove(s.path)
		return nil
	}
	return doc.Rooms
}

// writeAtomic serializes v to path via a temp file in the same directory
// followed by os.Rename, so a crash mid-write never leaves a truncated or
// torn file in place.
func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
