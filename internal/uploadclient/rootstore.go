package uploadclient

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RootStore persists the agreed Merkle root for each completed session as
// a plain-hex "<id>.root" file, and lists the IDs of sessions previously
// recorded this way.
type RootStore struct {
	dir string
}

// NewRootStore builds a RootStore rooted at dir.
func NewRootStore(dir string) *RootStore {
	return &RootStore{dir: dir}
}

func (s *RootStore) pathFor(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".root")
}

// Write persists rootHex for id, creating the store directory if needed.
func (s *RootStore) Write(id uuid.UUID, rootHex string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("rootstore: create directory: %w", err)
	}
	if err := os.WriteFile(s.pathFor(id), []byte(rootHex), 0o644); err != nil {
		return fmt.Errorf("rootstore: write root file: %w", err)
	}
	return nil
}

// Load reads back the root hex previously written for id.
func (s *RootStore) Load(id uuid.UUID) (string, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		return "", fmt.Errorf("rootstore: read root file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// List returns the IDs of every session with a root file in the store.
func (s *RootStore) List() ([]uuid.UUID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("rootstore: read directory: %w", err)
	}

	var ids []uuid.UUID
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		idStr, ok := strings.CutSuffix(entry.Name(), ".root")
		if !ok {
			continue
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
