// internal/wizard/session.go
//
// The wizard session is the authoritative record of onboarding progress:
// current stage, form fields, identifiers produced by remote side effects,
// and the last remote failure. It is owned exclusively by the Engine; the
// presentation layer reads snapshots and forwards intents.

package wizard

import (
	"errors"
	"sort"
	"sync"
	"time"

	"brandguard/internal/api"
)

// Status describes what the engine is currently doing with a session.
type Status int

const (
	// StatusIdle means no transition is running and the last one (if any)
	// succeeded.
	StatusIdle Status = iota

	// StatusInFlight means a side-effecting transition is running. Remote
	// extraction can take tens of seconds, so the presentation layer must
	// render this distinctly from both idle and errored.
	StatusInFlight

	// StatusErrored means the last transition failed; LastError holds why.
	StatusErrored
)

// String returns the status name for logs.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusInFlight:
		return "in-flight"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Fields holds the purely local form data accumulated across stages.
// Validation tags drive the per-stage admission guards.
type Fields struct {
	Industry            string `json:"industry" validate:"required"`
	BrandName           string `json:"brand_name" validate:"notblank"`
	BrandGuidelinesText string `json:"brand_guidelines_text"`
	ProjectName         string `json:"project_name" validate:"notblank"`
	ProjectDescription  string `json:"project_description"`

	// SelectedAgentIDs is the chosen specialist set. Required agents are
	// always members; see Engine.ToggleAgent.
	SelectedAgentIDs map[string]bool `json:"selected_agent_ids"`
}

// AgentIDs returns the selected agent ids in stable order.
func (f Fields) AgentIDs() []string {
	ids := make([]string, 0, len(f.SelectedAgentIDs))
	for id, on := range f.SelectedAgentIDs {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Document is a locally selected guideline file awaiting upload. It is
// consumed, not cleared, by the upload transition so a failed upload can
// retry without re-choosing the file.
type Document struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
}

// ErrorDescriptor is the surfaced form of a failed transition.
type ErrorDescriptor struct {
	Kind    api.ErrorKind `json:"kind"`
	Message string        `json:"message"`
	Stage   Stage         `json:"stage"`
	At      time.Time     `json:"at"`
}

// Session is one user's pass through the onboarding wizard. Create it with
// Engine.NewSession and mutate it only through Engine methods.
type Session struct {
	mu sync.Mutex

	// ID identifies the session in logs and the draft store.
	ID string `json:"id"`

	Stage  Stage  `json:"stage"`
	Fields Fields `json:"fields"`

	// WorkspaceID is set exactly once, by the workspace-creation
	// transition, and is immutable for the life of the session.
	WorkspaceID string `json:"workspace_id,omitempty"`

	// GuidelineID identifies the uploaded document once extraction
	// succeeds.
	GuidelineID string `json:"guideline_id,omitempty"`

	PendingDocument *Document  `json:"pending_document,omitempty"`
	ExtractedRules  []api.Rule `json:"extracted_rules,omitempty"`

	// RulesTruncated marks that the post-upload rule fetch stopped at the
	// page ceiling, so ExtractedRules is a prefix of the full set.
	RulesTruncated bool `json:"rules_truncated,omitempty"`

	// AvailableAgents is the roster fetched at session start; required
	// entries cannot be deselected.
	AvailableAgents []api.Agent `json:"available_agents,omitempty"`

	LastError *ErrorDescriptor `json:"last_error,omitempty"`

	status Status

	// Idempotency keys, one per logical attempt. A retry with unchanged
	// inputs reuses the key; changed inputs mint a fresh one.
	CreateKey      string `json:"create_key,omitempty"`
	createKeyInput string
	UploadKey      string `json:"upload_key,omitempty"`
	uploadKeyInput string
}

// Status reports whether a transition is idle, in flight, or errored.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the last transition failure, or nil.
func (s *Session) Err() *ErrorDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LastError == nil {
		return nil
	}
	clone := *s.LastError
	return &clone
}

// Rules returns a copy of the extracted rule sequence.
func (s *Session) Rules() []api.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Rule, len(s.ExtractedRules))
	copy(out, s.ExtractedRules)
	return out
}

// ReplaceRule splices a post-mutation rule record into the extracted set
// by id. Review-stage edits flow through the catalog synchronizer; this
// keeps the session's copy consistent with what the server returned.
func (s *Session) ReplaceRule(rule api.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ExtractedRules {
		if s.ExtractedRules[i].ID == rule.ID {
			s.ExtractedRules[i] = rule
			return
		}
	}
}

// beginTransition flips the session to in-flight if nothing else is
// running. The caller must pair it with finishTransition.
func (s *Session) beginTransition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return false
	}
	s.status = StatusInFlight
	s.LastError = nil
	return true
}

func (s *Session) finishTransition(stage Stage, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.status = StatusIdle
		s.LastError = nil
		return
	}
	s.status = StatusErrored
	var apiErr *api.APIError
	message := err.Error()
	if errors.As(err, &apiErr) {
		message = apiErr.Message()
	}
	s.LastError = &ErrorDescriptor{
		Kind:    api.KindOf(err),
		Message: message,
		Stage:   stage,
		At:      at,
	}
}
