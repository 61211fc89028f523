// internal/wizard/draft.go
//
// Optional durable draft of a wizard session. The engine saves a snapshot
// after every successful transition; an interrupted wizard resumes from it
// at next launch. Completing the wizard discards the draft.

package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrDraftNotFound is returned when no persisted draft exists.
var ErrDraftNotFound = errors.New("wizard: draft not found")

// DraftStore persists wizard session snapshots.
type DraftStore interface {
	Save(*Session) error
	Load() (*Session, error)
	Delete() error
}

// FileDraftStore keeps the draft as a JSON document on disk.
type FileDraftStore struct {
	path string
}

// NewFileDraftStore creates a store rooted at the given state directory.
func NewFileDraftStore(stateDir string) *FileDraftStore {
	return &FileDraftStore{path: filepath.Join(stateDir, "draft.json")}
}

// Save writes the session snapshot to disk.
func (f *FileDraftStore) Save(s *Session) error {
	s.mu.Lock()
	encoded, err := json.MarshalIndent(s, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("wizard: encode draft: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("wizard: ensure state dir: %w", err)
	}
	if err := os.WriteFile(f.path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("wizard: write draft: %w", err)
	}
	return nil
}

// Load reads the persisted draft if present.
func (f *FileDraftStore) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("wizard: read draft: %w", err)
	}
	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("wizard: decode draft: %w", err)
	}
	if session.Fields.SelectedAgentIDs == nil {
		session.Fields.SelectedAgentIDs = map[string]bool{}
	}
	return session, nil
}

// Delete removes the draft. Deleting a missing draft is not an error.
func (f *FileDraftStore) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("wizard: delete draft: %w", err)
	}
	return nil
}

// Resume reloads a persisted draft session, if any.
func (e *Engine) Resume() (*Session, error) {
	if e.drafts == nil {
		return nil, ErrDraftNotFound
	}
	session, err := e.drafts.Load()
	if err != nil {
		return nil, err
	}
	e.logger.Info("wizard session resumed",
		zap.String("session", session.ID),
		zap.String("stage", session.Stage.String()))
	return session, nil
}
