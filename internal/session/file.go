package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore keeps one JSON file per session under its root directory.
type FileStore struct {
	root string
}

// NewFileStore creates a store rooted at dir. The directory is created
// on first Save, not here.
func NewFileStore(dir string) *FileStore {
	return &FileStore{root: dir}
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.root, name+".json")
}

// Save writes the session to <root>/<name>.json.
func (s *FileStore) Save(session *Session, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write session %q: %w", name, err)
	}
	return nil
}

// Load reads <root>/<name>.json.
func (s *FileStore) Load(name string) (*Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read session %q: %w", name, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("parse session %q: %w", name, err)
	}
	return &session, nil
}

// List returns the sorted session names, stripped of the .json suffix.
func (s *FileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
