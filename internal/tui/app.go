// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for brandguard.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"brandguard/internal/api"
	"brandguard/internal/catalog"
	"brandguard/internal/config"
	"brandguard/internal/journal"
	"brandguard/internal/logging"
	"brandguard/internal/wizard"
)

// appState represents which "screen" we're on
type appState int

const (
	stateMainMenu appState = iota // Main menu with "Set Up Workspace", etc.
	stateWizard                   // Running the workspace setup wizard
	stateCatalog                  // Browsing the rule catalog
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithEngine overrides the wizard engine used by the TUI.
func WithEngine(engine *wizard.Engine) AppOption {
	return func(a *App) {
		if engine != nil {
			a.engine = engine
		}
	}
}

// WithSynchronizer overrides the catalog synchronizer used by the TUI.
func WithSynchronizer(sync *catalog.Synchronizer) AppOption {
	return func(a *App) {
		if sync != nil {
			a.catalog = sync
		}
	}
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	engine  *wizard.Engine
	catalog *catalog.Synchronizer
	journal *journal.Journal
	logger  *zap.Logger

	wizardView  *wizardView
	catalogView *catalogView

	// UI components
	mainMenu  list.Model // The main menu list
	statusMsg string     // Status message to display

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// menuItem implements list.Item interface for our menu items
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// NewApp creates a new App instance wired to the compliance backend.
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	if err := config.InitBrandguardDir(projectDir); err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}

	// The TUI owns the terminal, so the structured log must stay off stdout.
	logger, err := logging.NewFileOnly(cfg.LogsDir())
	if err != nil {
		return nil, err
	}

	jrnl, err := journal.New(filepath.Join(cfg.LogsDir(), "activity.log"))
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg.BaseURL(), cfg.Token())
	if err != nil {
		return nil, err
	}

	engineOpts := []wizard.Option{
		wizard.WithLogger(logger),
		wizard.WithDraftStore(wizard.NewFileDraftStore(cfg.StateDir())),
		wizard.WithListPageSize(cfg.PageSize()),
		wizard.WithListMaxPages(cfg.MaxPages()),
	}
	if !cfg.AgentStageEnabled() {
		engineOpts = append(engineOpts, wizard.WithoutAgentStage())
	}
	engine, err := wizard.NewEngine(client, engineOpts...)
	if err != nil {
		return nil, err
	}

	sync, err := catalog.New(client,
		catalog.WithLogger(logger),
		catalog.WithPageSize(cfg.PageSize()),
		catalog.WithMaxPages(cfg.MaxPages()),
	)
	if err != nil {
		return nil, err
	}

	app := &App{
		state:   stateMainMenu,
		config:  cfg,
		engine:  engine,
		catalog: sync,
		journal: jrnl,
		logger:  logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	app.mainMenu = buildMainMenu(app.hasDraft())
	jrnl.Info("Session opened")
	return app, nil
}

// buildMainMenu creates the main menu items. A persisted wizard draft adds
// the resume entry at the top.
func buildMainMenu(hasDraft bool) list.Model {
	items := []list.Item{}
	if hasDraft {
		items = append(items, menuItem{
			title: "Resume Setup",
			desc:  "Continue the interrupted workspace wizard",
		})
	}
	items = append(items,
		menuItem{title: "Set Up Workspace", desc: "Create a workspace and extract compliance rules"},
		menuItem{title: "Rule Catalog", desc: "Browse and edit extracted rules"},
		menuItem{title: "Exit", desc: "Quit brandguard"},
	)
	menu := list.New(items, list.NewDefaultDelegate(), 0, 0)
	menu.Title = "⬡ BRANDGUARD"
	menu.SetShowStatusBar(false)
	menu.SetFilteringEnabled(false)
	return menu
}

func (a *App) hasDraft() bool {
	if a.engine == nil {
		return false
	}
	_, err := a.engine.Resume()
	return err == nil
}

func (a *App) logInfo(format string, args ...any) {
	if a.journal == nil {
		return
	}
	a.journal.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.journal == nil {
		return
	}
	a.journal.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.journal == nil {
		return
	}
	a.journal.Error(format, args...)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-10))
		return a, nil

	case wizardDoneMsg:
		a.logInfo("Workspace %s ready", msg.workspaceID)
		a.statusMsg = fmt.Sprintf("Workspace %s is ready", msg.workspaceID)
		return a.returnToMainMenu()

	case tea.KeyMsg:
		key := msg.String()
		switch key {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.state == stateMainMenu {
				return a, tea.Quit
			}
		case "esc":
			if a.state == stateCatalog {
				return a.returnToMainMenu()
			}
			if a.state == stateWizard && a.wizardView != nil && a.wizardView.atOpeningStage() {
				return a.returnToMainMenu()
			}
		case "enter":
			if a.state == stateMainMenu {
				return a.handleMainMenuSelection()
			}
		}
	}

	var cmds []tea.Cmd
	switch a.state {
	case stateMainMenu:
		var menuCmd tea.Cmd
		a.mainMenu, menuCmd = a.mainMenu.Update(msg)
		if menuCmd != nil {
			cmds = append(cmds, menuCmd)
		}
	case stateWizard:
		if a.wizardView != nil {
			if cmd := a.wizardView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	case stateCatalog:
		if a.catalogView != nil {
			if cmd := a.catalogView.Update(msg); cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}

	return a, tea.Batch(cmds...)
}

// handleMainMenuSelection processes menu item selection
func (a *App) handleMainMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}

	switch item.title {
	case "Set Up Workspace":
		a.logInfo("Menu · Set Up Workspace selected")
		return a.startWizard(false)

	case "Resume Setup":
		a.logInfo("Menu · Resume Setup selected")
		return a.startWizard(true)

	case "Rule Catalog":
		a.logInfo("Menu · Rule Catalog selected")
		a.state = stateCatalog
		a.catalogView = newCatalogView(a)
		return a, a.catalogView.Init()

	case "Exit":
		a.logInfo("Menu · Exit selected")
		return a, tea.Quit
	}

	return a, nil
}

// startWizard bootstraps the wizard view in either fresh or resume mode.
func (a *App) startWizard(resume bool) (tea.Model, tea.Cmd) {
	a.state = stateWizard
	a.wizardView = newWizardView(a)
	return a, a.wizardView.Init(resume)
}

// returnToMainMenu transitions back to the main menu
func (a *App) returnToMainMenu() (tea.Model, tea.Cmd) {
	a.state = stateMainMenu
	a.wizardView = nil
	a.catalogView = nil
	a.mainMenu = buildMainMenu(a.hasDraft())
	if a.width > 0 && a.height > 0 {
		a.mainMenu.SetSize(max(0, a.width-6), max(0, a.height-10))
	}
	return a, nil
}

// View renders the current state to a string.
func (a *App) View() string {
	var content string
	switch a.state {
	case stateMainMenu:
		content = a.mainMenu.View()
	case stateWizard:
		if a.wizardView != nil {
			content = a.wizardView.View()
		} else {
			content = "Preparing wizard…"
		}
	case stateCatalog:
		if a.catalogView != nil {
			content = a.catalogView.View()
		} else {
			content = "Loading catalog…"
		}
	}
	return a.renderFrame(content)
}

func (a *App) renderFrame(content string) string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ BRANDGUARD")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(40, width-2)).
		Render(content)
	sections := []string{header, box}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	if a.journal == nil {
		return ""
	}
	lines := a.journal.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("ACTIVITY")
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

// setStatus records a user-visible status line.
func (a *App) setStatus(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	a.statusMsg = message
}

// describeError turns an engine or API failure into user copy.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	var guard *wizard.GuardError
	if errors.As(err, &guard) {
		return guard.Reason
	}
	return err.Error()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
