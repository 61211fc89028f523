package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brandguard/internal/api"
	"brandguard/internal/catalog"
	"brandguard/internal/config"
	"brandguard/internal/journal"
	"brandguard/internal/wizard"
)

// fakeBackend satisfies both the wizard and catalog gateways so one fake
// can power the whole app.
type fakeBackend struct {
	rules       []api.Rule
	deactivated map[string]int
}

func (f *fakeBackend) CreateWorkspace(ctx context.Context, name, description string, agentIDs []string, idempotencyKey string) (api.Workspace, error) {
	return api.Workspace{ID: "ws-1", Name: name, Description: description}, nil
}

func (f *fakeBackend) UploadGuidelineDocument(ctx context.Context, workspaceID, filename string, content io.Reader, idempotencyKey string) (api.UploadResult, error) {
	return api.UploadResult{GuidelineID: "g1", ExtractedCount: len(f.rules), Success: true}, nil
}

func (f *fakeBackend) ListAgents(ctx context.Context) ([]api.Agent, error) {
	return []api.Agent{
		{ID: "agent-brand", Name: "Brand Checker", Role: "brand", Required: true, Default: true},
		{ID: "agent-seo", Name: "SEO Checker", Role: "seo"},
	}, nil
}

func (f *fakeBackend) ListRules(ctx context.Context, params api.ListRulesParams) ([]api.Rule, error) {
	if params.Page > 1 {
		return nil, nil
	}
	return append([]api.Rule(nil), f.rules...), nil
}

func (f *fakeBackend) CreateRule(ctx context.Context, text string, category api.Category, severity api.Severity, pointsDeduction float64) (api.Rule, error) {
	rule := api.Rule{ID: fmt.Sprintf("r%d", len(f.rules)+1), Text: text, Category: category, Severity: severity, IsActive: true}
	f.rules = append(f.rules, rule)
	return rule, nil
}

func (f *fakeBackend) UpdateRule(ctx context.Context, id string, patch api.RulePatch) (api.Rule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			if patch.Text != nil {
				f.rules[i].Text = *patch.Text
			}
			return f.rules[i], nil
		}
	}
	return api.Rule{}, &api.APIError{Kind: api.KindNotFound, StatusCode: 404, Reason: "rule not found"}
}

func (f *fakeBackend) DeactivateRule(ctx context.Context, id string) error {
	if f.deactivated == nil {
		f.deactivated = map[string]int{}
	}
	f.deactivated[id]++
	for i := range f.rules {
		if f.rules[i].ID == id {
			f.rules[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeBackend) ReactivateRule(ctx context.Context, id string) (api.Rule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			f.rules[i].IsActive = true
			return f.rules[i], nil
		}
	}
	return api.Rule{}, &api.APIError{Kind: api.KindNotFound, StatusCode: 404, Reason: "rule not found"}
}

func (f *fakeBackend) RefineRule(ctx context.Context, id, instruction string) (api.Rule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			f.rules[i].Text += " (refined)"
			return f.rules[i], nil
		}
	}
	return api.Rule{}, &api.APIError{Kind: api.KindNotFound, StatusCode: 404, Reason: "rule not found"}
}

func newTestApp(t *testing.T, backend *fakeBackend) *App {
	t.Helper()
	projectDir := t.TempDir()
	require.NoError(t, config.InitBrandguardDir(projectDir))
	cfg, err := config.NewConfig(projectDir)
	require.NoError(t, err)

	engine, err := wizard.NewEngine(backend)
	require.NoError(t, err)
	sync, err := catalog.New(backend)
	require.NoError(t, err)
	jrnl, err := journal.New(filepath.Join(cfg.LogsDir(), "activity.log"))
	require.NoError(t, err)

	app := &App{
		state:   stateMainMenu,
		config:  cfg,
		engine:  engine,
		catalog: sync,
		journal: jrnl,
	}
	app.mainMenu = buildMainMenu(false)
	return app
}

// drain executes a command tree synchronously and feeds every produced
// message back into the app, the way the bubbletea runtime would. Spinner
// ticks are dropped so the loop terminates.
func drain(t *testing.T, app *App, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	msg := cmd()
	if msg == nil {
		return
	}
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, sub := range batch {
			drain(t, app, sub)
		}
		return
	}
	if _, ok := msg.(spinner.TickMsg); ok {
		return
	}
	model, next := app.Update(msg)
	require.Same(t, app, model)
	drain(t, app, next)
}

func pressKey(t *testing.T, app *App, key string) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	model, cmd := app.Update(msg)
	require.Same(t, app, model)
	drain(t, app, cmd)
}

func typeText(t *testing.T, app *App, text string) {
	t.Helper()
	for _, r := range text {
		pressKey(t, app, string(r))
	}
}

func sampleRules() []api.Rule {
	return []api.Rule{
		{ID: "r1", Text: "Every ad must carry the IRDAI registration number", Category: api.CategoryIRDAI, Severity: api.SeverityCritical, IsActive: true, SourceGuidelineID: "g1"},
		{ID: "r2", Text: "Use the approved brand palette", Category: api.CategoryBrand, Severity: api.SeverityMedium, IsActive: true, SourceGuidelineID: "g1"},
	}
}

func TestMainMenuOpensWizard(t *testing.T) {
	app := newTestApp(t, &fakeBackend{rules: sampleRules()})

	pressKey(t, app, "enter")

	require.Equal(t, stateWizard, app.state)
	require.NotNil(t, app.wizardView)
	require.NotNil(t, app.wizardView.session)
	assert.Equal(t, wizard.StageIndustry, app.wizardView.session.Stage)
}

func TestWizardRunsToCompletion(t *testing.T) {
	backend := &fakeBackend{rules: sampleRules()}
	app := newTestApp(t, backend)

	doc := filepath.Join(t.TempDir(), "guidelines.pdf")
	require.NoError(t, os.WriteFile(doc, []byte("guideline text"), 0o644))

	pressKey(t, app, "enter") // main menu -> wizard
	view := app.wizardView
	require.NotNil(t, view)

	pressKey(t, app, "enter") // industry
	require.Equal(t, wizard.StageBrand, view.session.Stage)

	typeText(t, app, "Acme Mutual")
	pressKey(t, app, "enter") // brand
	require.Equal(t, wizard.StageWorkspace, view.session.Stage)

	typeText(t, app, "Q3 Campaign")
	pressKey(t, app, "enter") // workspace creation
	require.Equal(t, wizard.StageAgents, view.session.Stage)
	assert.Equal(t, "ws-1", view.session.WorkspaceID)

	pressKey(t, app, "enter") // agents
	require.Equal(t, wizard.StageDocument, view.session.Stage)

	typeText(t, app, doc)
	pressKey(t, app, "enter") // upload and extract
	require.Equal(t, wizard.StageReview, view.session.Stage)
	require.Len(t, view.session.Rules(), 2)

	pressKey(t, app, "d") // deactivate the selected rule in review
	rules := view.session.Rules()
	assert.False(t, rules[0].IsActive)
	assert.Equal(t, 1, backend.deactivated["r1"])

	pressKey(t, app, "enter") // finish
	assert.Equal(t, stateMainMenu, app.state)
	assert.Contains(t, app.statusMsg, "ws-1")
}

func TestWizardBlankBrandNameDoesNotAdvance(t *testing.T) {
	app := newTestApp(t, &fakeBackend{rules: sampleRules()})

	pressKey(t, app, "enter") // main menu -> wizard
	view := app.wizardView
	pressKey(t, app, "enter") // industry
	require.Equal(t, wizard.StageBrand, view.session.Stage)

	typeText(t, app, "   ")
	pressKey(t, app, "enter")
	assert.Equal(t, wizard.StageBrand, view.session.Stage, "blank brand name must not pass the guard")
}

func TestCatalogViewFetchesAndMutates(t *testing.T) {
	backend := &fakeBackend{rules: sampleRules()}
	app := newTestApp(t, backend)

	// Select "Rule Catalog": second entry when no draft exists.
	pressKey(t, app, "j")
	pressKey(t, app, "enter")

	require.Equal(t, stateCatalog, app.state)
	view := app.catalogView
	require.NotNil(t, view)
	require.NotNil(t, view.view)
	require.Len(t, view.view.Rules, 2)

	pressKey(t, app, "d")
	got, ok := view.view.Get("r1")
	require.True(t, ok)
	assert.False(t, got.IsActive)

	pressKey(t, app, "u")
	got, ok = view.view.Get("r1")
	require.True(t, ok)
	assert.True(t, got.IsActive)

	pressKey(t, app, "esc")
	assert.Equal(t, stateMainMenu, app.state)
}
