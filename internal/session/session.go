// Package session persists named conversation transcripts. The engine
// is unaware of persistence; it only appends messages to a Session and
// hands it to a Store.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/ore-agent/internal/llm"
)

// ErrNotFound is returned by Load for an unknown session name.
var ErrNotFound = errors.New("session not found")

// Session is one named conversation transcript.
type Session struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Messages  []llm.Message `json:"messages"`
}

// New creates an empty session with a fresh id.
func New() *Session {
	return &Session{
		ID:        newID(),
		CreatedAt: time.Now(),
	}
}

// Append adds a message to the transcript.
func (s *Session) Append(m llm.Message) {
	s.Messages = append(s.Messages, m)
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Store is the persistence boundary: save and load by user-facing
// name, list what exists. Nothing more.
type Store interface {
	// Save persists the session under the given name, replacing any
	// previous session of that name.
	Save(session *Session, name string) error

	// Load retrieves a session by name. Returns ErrNotFound (possibly
	// wrapped) for unknown names.
	Load(name string) (*Session, error)

	// List returns the stored session names, sorted.
	List() ([]string, error)
}

// ValidateName rejects names that would escape the store's namespace
// or collide with path syntax. Called by every Store implementation.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("session name is empty")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid session name %q", name)
	}
	return nil
}
