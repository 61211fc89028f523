// internal/wizard/engine.go
//
// The onboarding orchestration engine. It advances a Session through the
// wizard stages, enforcing per-stage admission guards and executing remote
// side effects exactly once per forward transition. Two transitions touch
// the network: leaving the workspace stage creates the workspace, and
// leaving the document stage uploads the guideline and waits for rule
// extraction. Everything else is local.
//
// Failure policy: a failed forward transition leaves the stage unchanged
// and surfaces the failure in the session's last-error slot so the user can
// retry without re-entering anything. Retreat is always local and never
// undoes a remote effect; the workspace and any uploaded document already
// exist server-side.

package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"brandguard/internal/api"
)

// Gateway is the slice of the remote API the engine depends on.
// *api.Client satisfies it.
type Gateway interface {
	CreateWorkspace(ctx context.Context, name, description string, agentIDs []string, idempotencyKey string) (api.Workspace, error)
	UploadGuidelineDocument(ctx context.Context, workspaceID, filename string, content io.Reader, idempotencyKey string) (api.UploadResult, error)
	ListRules(ctx context.Context, params api.ListRulesParams) ([]api.Rule, error)
	ListAgents(ctx context.Context) ([]api.Agent, error)
}

// Sentinel errors for callers that branch on engine outcomes.
var (
	// ErrBusy means a side-effecting transition is already in flight for
	// this session. The second request is refused, not queued.
	ErrBusy = errors.New("wizard: a transition is already in flight")

	// ErrAtFirstStage is returned by Retreat from the opening stage.
	ErrAtFirstStage = errors.New("wizard: already at the first stage")

	// ErrAtFinalStage is returned by Advance from the review stage.
	ErrAtFinalStage = errors.New("wizard: already at the final stage")

	// ErrOutOfOrder indicates the engine was invoked against a session
	// whose recorded effects do not match its stage. This is a programming
	// error, not user input to correct.
	ErrOutOfOrder = errors.New("wizard: session state does not match stage")

	// ErrNotComplete is returned by Complete before the review stage.
	ErrNotComplete = errors.New("wizard: session has not reached the review stage")
)

// GuardError reports a failed admission guard. Guard failures are local:
// they never reach the network and never populate the session's last-error
// slot. The UI simply keeps the advance control disabled.
type GuardError struct {
	Stage  Stage
	Reason string
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	return fmt.Sprintf("wizard: %s guard: %s", e.Stage, e.Reason)
}

const (
	defaultListPageSize = 50
	defaultListMaxPages = 50
)

// Engine drives wizard sessions. One engine serves any number of
// independent sessions; each session carries its own busy latch.
type Engine struct {
	gateway  Gateway
	validate *validator.Validate
	drafts   DraftStore
	logger   *zap.Logger
	clock    func() time.Time
	stages   []Stage
	pageSize int
	maxPages int
}

// Option customizes the engine.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithoutAgentStage configures the five-stage wizard without the
// specialist-agents step.
func WithoutAgentStage() Option {
	return func(e *Engine) {
		stages := make([]Stage, 0, len(defaultStages)-1)
		for _, stage := range defaultStages {
			if stage != StageAgents {
				stages = append(stages, stage)
			}
		}
		e.stages = stages
	}
}

// WithDraftStore persists the session after every successful transition so
// an interrupted wizard can resume.
func WithDraftStore(store DraftStore) Option {
	return func(e *Engine) {
		e.drafts = store
	}
}

// WithLogger attaches a logger for transition telemetry.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithListPageSize overrides the page size used when fetching extracted
// rules after an upload.
func WithListPageSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.pageSize = size
		}
	}
}

// WithListMaxPages bounds the post-upload rule scan. Hitting the bound
// keeps the partial result, marked truncated, instead of looping forever
// against a server that never returns a short page.
func WithListMaxPages(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPages = n
		}
	}
}

// NewEngine wires the orchestration engine to a remote gateway.
func NewEngine(gateway Gateway, opts ...Option) (*Engine, error) {
	if gateway == nil {
		return nil, fmt.Errorf("wizard: gateway is required")
	}
	validate := validator.New()
	if err := validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		return nil, fmt.Errorf("wizard: register validation: %w", err)
	}
	engine := &Engine{
		gateway:  gateway,
		validate: validate,
		logger:   zap.NewNop(),
		clock:    time.Now,
		stages:   defaultStages,
		pageSize: defaultListPageSize,
		maxPages: defaultListMaxPages,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// Stages returns the configured stage sequence.
func (e *Engine) Stages() []Stage {
	out := make([]Stage, len(e.stages))
	copy(out, e.stages)
	return out
}

// Position returns the 1-indexed position of the session's stage and the
// total stage count.
func (e *Engine) Position(s *Session) (int, int) {
	for i, stage := range e.stages {
		if stage == s.Stage {
			return i + 1, len(e.stages)
		}
	}
	return len(e.stages), len(e.stages)
}

// NewSession opens a fresh wizard session. When the agents stage is
// enabled, the specialist roster is fetched up front and default agents
// are pre-selected.
func (e *Engine) NewSession(ctx context.Context) (*Session, error) {
	session := &Session{
		ID:    uuid.NewString(),
		Stage: e.stages[0],
		Fields: Fields{
			SelectedAgentIDs: map[string]bool{},
		},
	}
	if e.hasAgentStage() {
		agents, err := e.gateway.ListAgents(ctx)
		if err != nil {
			return nil, fmt.Errorf("wizard: load specialist roster: %w", err)
		}
		session.AvailableAgents = agents
		for _, agent := range agents {
			if agent.Default || agent.Required {
				session.Fields.SelectedAgentIDs[agent.ID] = true
			}
		}
	}
	e.logger.Info("wizard session opened", zap.String("session", session.ID))
	return session, nil
}

// --- Field setters (local data only) ---

func (e *Engine) setField(s *Session, apply func(*Fields)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return ErrBusy
	}
	apply(&s.Fields)
	return nil
}

// SetIndustry records the chosen industry.
func (e *Engine) SetIndustry(s *Session, industry string) error {
	return e.setField(s, func(f *Fields) { f.Industry = strings.TrimSpace(industry) })
}

// SetBrandName records the brand name.
func (e *Engine) SetBrandName(s *Session, name string) error {
	return e.setField(s, func(f *Fields) { f.BrandName = name })
}

// SetBrandGuidelinesText records optional free-form brand notes.
func (e *Engine) SetBrandGuidelinesText(s *Session, text string) error {
	return e.setField(s, func(f *Fields) { f.BrandGuidelinesText = text })
}

// SetProjectName records the workspace name.
func (e *Engine) SetProjectName(s *Session, name string) error {
	return e.setField(s, func(f *Fields) { f.ProjectName = name })
}

// SetProjectDescription records the workspace description.
func (e *Engine) SetProjectDescription(s *Session, description string) error {
	return e.setField(s, func(f *Fields) { f.ProjectDescription = description })
}

// ToggleAgent flips a specialist agent's selection. Required agents stay
// selected.
func (e *Engine) ToggleAgent(s *Session, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return ErrBusy
	}
	for _, agent := range s.AvailableAgents {
		if agent.ID != agentID {
			continue
		}
		if agent.Required && s.Fields.SelectedAgentIDs[agentID] {
			return fmt.Errorf("wizard: agent %s is required and cannot be deselected", agent.Name)
		}
		s.Fields.SelectedAgentIDs[agentID] = !s.Fields.SelectedAgentIDs[agentID]
		return nil
	}
	return fmt.Errorf("wizard: unknown agent %q", agentID)
}

// SetDocument records the locally selected guideline file.
func (e *Engine) SetDocument(s *Session, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("wizard: document path is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return ErrBusy
	}
	s.PendingDocument = &Document{Path: path, Filename: filepath.Base(path)}
	return nil
}

// ClearDocument removes the pending file selection.
func (e *Engine) ClearDocument(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return ErrBusy
	}
	s.PendingDocument = nil
	return nil
}

// --- Guards ---

// CanAdvance reports whether the session's stage admits a forward
// transition. It never performs I/O.
func (e *Engine) CanAdvance(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return false
	}
	return e.guard(s) == nil
}

// guard evaluates the admission guard for the session's current stage.
// Callers hold s.mu.
func (e *Engine) guard(s *Session) error {
	switch s.Stage {
	case StageIndustry:
		if err := e.validate.StructPartial(s.Fields, "Industry"); err != nil {
			return &GuardError{Stage: s.Stage, Reason: "industry is required"}
		}
	case StageBrand:
		if err := e.validate.StructPartial(s.Fields, "BrandName"); err != nil {
			return &GuardError{Stage: s.Stage, Reason: "brand name must not be blank"}
		}
	case StageWorkspace:
		if err := e.validate.StructPartial(s.Fields, "ProjectName"); err != nil {
			return &GuardError{Stage: s.Stage, Reason: "workspace name must not be blank"}
		}
	case StageAgents:
		// Always satisfied: required agents are pre-selected and cannot be
		// removed, so the selection is never invalid.
	case StageDocument:
		if s.PendingDocument == nil {
			return &GuardError{Stage: s.Stage, Reason: "choose a guideline document first"}
		}
	case StageReview:
		return ErrAtFinalStage
	default:
		return fmt.Errorf("wizard: unknown stage %d", s.Stage)
	}
	return nil
}

// --- Transitions ---

// Advance attempts the forward transition for the session's current stage.
// Guard failures return a *GuardError before any remote call. Remote
// failures leave the stage unchanged, record the failure in the session,
// and return it. A second Advance while one is in flight returns ErrBusy.
func (e *Engine) Advance(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if s.status == StatusInFlight {
		s.mu.Unlock()
		return ErrBusy
	}
	if err := e.guard(s); err != nil {
		s.mu.Unlock()
		return err
	}
	stage := s.Stage
	s.mu.Unlock()

	if !s.beginTransition() {
		return ErrBusy
	}

	var err error
	switch stage {
	case StageWorkspace:
		err = e.createWorkspace(ctx, s)
	case StageDocument:
		err = e.uploadAndExtract(ctx, s)
	default:
		// Purely local stage: nothing to do but move forward.
	}
	s.finishTransition(stage, err, e.clock())
	if err != nil {
		e.logger.Warn("wizard transition failed",
			zap.String("session", s.ID),
			zap.String("stage", stage.String()),
			zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.Stage = e.nextStage(stage)
	s.mu.Unlock()
	e.logger.Info("wizard advanced",
		zap.String("session", s.ID),
		zap.String("from", stage.String()),
		zap.String("to", e.stageName(s)))
	e.saveDraft(s)
	return nil
}

// Retreat steps back one stage. It is purely local: no network calls, and
// it deliberately keeps WorkspaceID and ExtractedRules even when stepping
// back past the stages that produced them. Those are sunk remote effects,
// not undoable ones.
func (e *Engine) Retreat(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return ErrBusy
	}
	prev, ok := e.prevStage(s.Stage)
	if !ok {
		return ErrAtFirstStage
	}
	s.Stage = prev
	s.status = StatusIdle
	s.LastError = nil
	return nil
}

// Complete finishes the wizard and hands back the workspace id for
// navigation. It performs no further side effects: review-stage rule edits
// were already applied incrementally through the catalog synchronizer.
func (e *Engine) Complete(s *Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusInFlight {
		return "", ErrBusy
	}
	if !s.Stage.IsTerminal() {
		return "", ErrNotComplete
	}
	if s.WorkspaceID == "" {
		return "", ErrOutOfOrder
	}
	if e.drafts != nil {
		if err := e.drafts.Delete(); err != nil {
			e.logger.Warn("wizard draft cleanup failed", zap.Error(err))
		}
	}
	e.logger.Info("wizard completed",
		zap.String("session", s.ID),
		zap.String("workspace", s.WorkspaceID))
	return s.WorkspaceID, nil
}

// --- Side effects ---

func (e *Engine) createWorkspace(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if s.WorkspaceID != "" {
		s.mu.Unlock()
		return ErrOutOfOrder
	}
	name := strings.TrimSpace(s.Fields.ProjectName)
	description := strings.TrimSpace(s.Fields.ProjectDescription)
	if description == "" {
		description = generatedDescription(s.Fields)
	}
	agentIDs := s.Fields.AgentIDs()
	key := e.idempotencyKey(&s.CreateKey, &s.createKeyInput,
		strings.Join(append([]string{name, description}, agentIDs...), "\x1f"))
	s.mu.Unlock()

	workspace, err := e.gateway.CreateWorkspace(ctx, name, description, agentIDs, key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.WorkspaceID = workspace.ID
	s.CreateKey = ""
	s.createKeyInput = ""
	s.mu.Unlock()
	return nil
}

func (e *Engine) uploadAndExtract(ctx context.Context, s *Session) error {
	s.mu.Lock()
	workspaceID := s.WorkspaceID
	doc := s.PendingDocument
	s.mu.Unlock()

	if workspaceID == "" {
		return ErrOutOfOrder
	}
	if doc == nil {
		return ErrOutOfOrder
	}

	file, err := os.Open(doc.Path)
	if err != nil {
		return &api.APIError{Kind: api.KindUpload, Reason: fmt.Sprintf("cannot read %s", doc.Filename)}
	}
	defer file.Close()

	s.mu.Lock()
	key := e.idempotencyKey(&s.UploadKey, &s.uploadKeyInput, workspaceID+"\x1f"+doc.Path)
	s.mu.Unlock()

	result, err := e.gateway.UploadGuidelineDocument(ctx, workspaceID, doc.Filename, file, key)
	if err != nil {
		return err
	}

	rules, truncated, err := e.fetchActiveRules(ctx, result.GuidelineID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.GuidelineID = result.GuidelineID
	s.ExtractedRules = rules
	s.RulesTruncated = truncated
	s.UploadKey = ""
	s.uploadKeyInput = ""
	s.mu.Unlock()
	return nil
}

// fetchActiveRules pages through the listing for the freshly extracted
// guideline. A short page ends the scan; the page ceiling bounds it
// against a server that never returns one, keeping the prefix fetched so
// far and reporting it as truncated.
func (e *Engine) fetchActiveRules(ctx context.Context, guidelineID string) ([]api.Rule, bool, error) {
	active := true
	var rules []api.Rule
	for page := 1; page <= e.maxPages; page++ {
		batch, err := e.gateway.ListRules(ctx, api.ListRulesParams{
			Page:              page,
			PageSize:          e.pageSize,
			ActiveOnly:        &active,
			SourceGuidelineID: guidelineID,
		})
		if err != nil {
			return nil, false, err
		}
		rules = append(rules, batch...)
		if len(batch) < e.pageSize {
			return rules, false, nil
		}
	}
	e.logger.Warn("rule fetch hit page ceiling",
		zap.String("guideline", guidelineID),
		zap.Int("pages", e.maxPages))
	return rules, true, nil
}

// idempotencyKey returns the stored key when the logical attempt's inputs
// are unchanged, and mints a fresh one otherwise. Callers hold s.mu.
func (e *Engine) idempotencyKey(key, lastInput *string, input string) string {
	if *key == "" || *lastInput != input {
		*key = uuid.NewString()
		*lastInput = input
	}
	return *key
}

// --- Navigation helpers ---

func (e *Engine) hasAgentStage() bool {
	for _, stage := range e.stages {
		if stage == StageAgents {
			return true
		}
	}
	return false
}

func (e *Engine) nextStage(current Stage) Stage {
	for i, stage := range e.stages {
		if stage == current && i+1 < len(e.stages) {
			return e.stages[i+1]
		}
	}
	return current
}

func (e *Engine) prevStage(current Stage) (Stage, bool) {
	for i, stage := range e.stages {
		if stage == current {
			if i == 0 {
				return current, false
			}
			return e.stages[i-1], true
		}
	}
	return current, false
}

func (e *Engine) stageName(s *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Stage.String()
}

func (e *Engine) saveDraft(s *Session) {
	if e.drafts == nil {
		return
	}
	if err := e.drafts.Save(s); err != nil {
		e.logger.Warn("wizard draft save failed", zap.String("session", s.ID), zap.Error(err))
	}
}

// generatedDescription composes a workspace description from the brand
// fields when the user left the description blank.
func generatedDescription(f Fields) string {
	brand := strings.TrimSpace(f.BrandName)
	industry := strings.TrimSpace(f.Industry)
	switch {
	case brand != "" && industry != "":
		return fmt.Sprintf("%s — %s compliance workspace", brand, industry)
	case brand != "":
		return fmt.Sprintf("%s compliance workspace", brand)
	default:
		return "Compliance workspace"
	}
}
