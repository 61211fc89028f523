package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"brandguard/internal/api"
	"brandguard/internal/catalog"
	"brandguard/internal/wizard"
)

var (
	stageTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	stageDoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	stageTodoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errorTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	hintTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).MarginTop(1)
	ruleActiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	ruleClosedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Strikethrough(true)
)

// industryPresets are the choices offered on the opening stage.
var industryPresets = []string{
	"insurance",
	"banking",
	"healthcare",
	"retail",
	"technology",
}

type wizardSessionMsg struct {
	session *wizard.Session
	err     error
}

type advanceDoneMsg struct {
	err error
}

type reviewActionMsg struct {
	rule   api.Rule
	action string
	err    error
}

// wizardDoneMsg bubbles up to the App when the wizard completes.
type wizardDoneMsg struct {
	workspaceID string
}

type wizardField int

const (
	fieldPrimary wizardField = iota
	fieldSecondary
)

type wizardView struct {
	app     *App
	engine  *wizard.Engine
	session *wizard.Session

	industrySel int
	agentSel    int
	ruleSel     int

	nameInput  textinput.Model
	extraInput textinput.Model
	focused    wizardField

	refining    bool
	refineInput textinput.Model

	spin spinner.Model
	busy bool

	reviewView *catalog.View
	err        error
}

func newWizardView(app *App) *wizardView {
	name := textinput.New()
	name.CharLimit = 120
	extra := textinput.New()
	extra.CharLimit = 240
	refine := textinput.New()
	refine.CharLimit = 240
	refine.Placeholder = "e.g. make the wording stricter"

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	view := &wizardView{
		app:         app,
		engine:      app.engine,
		nameInput:   name,
		extraInput:  extra,
		refineInput: refine,
		spin:        spin,
	}
	for i, preset := range industryPresets {
		if preset == app.config.Industry() {
			view.industrySel = i
		}
	}
	return view
}

func (v *wizardView) Init(resume bool) tea.Cmd {
	engine := v.engine
	return func() tea.Msg {
		if resume {
			session, err := engine.Resume()
			if err == nil {
				return wizardSessionMsg{session: session}
			}
			// Fall through to a fresh session when no draft survives.
		}
		session, err := engine.NewSession(context.Background())
		return wizardSessionMsg{session: session, err: err}
	}
}

func (v *wizardView) atOpeningStage() bool {
	return v.session == nil || (!v.busy && v.session.Stage == v.engine.Stages()[0])
}

func (v *wizardView) Update(msg tea.Msg) tea.Cmd {
	switch m := msg.(type) {
	case wizardSessionMsg:
		if m.err != nil {
			v.err = m.err
			v.app.setStatus(fmt.Sprintf("Wizard unavailable: %s", describeError(m.err)))
			return nil
		}
		v.session = m.session
		v.syncInputs()
		v.app.setStatus(fmt.Sprintf("Stage %s", v.session.Stage.FriendlyName()))
		return nil

	case advanceDoneMsg:
		v.busy = false
		if m.err != nil {
			v.app.logError("Stage failed: %s", describeError(m.err))
			v.app.setStatus(describeError(m.err))
			return nil
		}
		v.syncInputs()
		if v.session.Stage.IsTerminal() {
			v.enterReview()
		}
		v.app.logInfo("Stage %s reached", v.session.Stage.FriendlyName())
		v.app.setStatus(fmt.Sprintf("Stage %s", v.session.Stage.FriendlyName()))
		return nil

	case reviewActionMsg:
		v.busy = false
		if m.err != nil {
			v.app.logError("Rule %s failed: %s", m.action, describeError(m.err))
			v.app.setStatus(describeError(m.err))
			return nil
		}
		v.session.ReplaceRule(m.rule)
		if v.reviewView != nil {
			v.reviewView.Rules = v.session.Rules()
		}
		v.app.logInfo("Rule %s: %s", m.action, m.rule.ID)
		return nil

	case spinner.TickMsg:
		if !v.busy {
			return nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(m)
		return cmd

	case tea.KeyMsg:
		return v.handleKeyMsg(m)
	}
	return nil
}

func (v *wizardView) handleKeyMsg(msg tea.KeyMsg) tea.Cmd {
	if v.session == nil || v.busy {
		return nil
	}
	if v.refining {
		return v.handleRefineKey(msg)
	}

	switch msg.String() {
	case "esc":
		if err := v.engine.Retreat(v.session); err == nil {
			v.syncInputs()
			v.app.setStatus(fmt.Sprintf("Stage %s", v.session.Stage.FriendlyName()))
		}
		return nil
	case "tab":
		if v.session.Stage == wizard.StageBrand || v.session.Stage == wizard.StageWorkspace {
			v.toggleFocus()
			return nil
		}
	case "up", "ctrl+p":
		v.moveSelection(-1)
		return nil
	case "down", "ctrl+n":
		v.moveSelection(1)
		return nil
	case " ":
		if v.session.Stage == wizard.StageAgents {
			v.toggleSelectedAgent()
			return nil
		}
	case "enter":
		return v.confirmStage()
	case "d":
		if v.session.Stage == wizard.StageReview {
			return v.deactivateSelected()
		}
	case "i":
		if v.session.Stage == wizard.StageReview {
			v.refining = true
			v.refineInput.SetValue("")
			v.refineInput.Focus()
			return textinput.Blink
		}
	}

	return v.updateFocusedInput(msg)
}

func (v *wizardView) handleRefineKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		v.refining = false
		v.refineInput.Blur()
		return nil
	case "enter":
		instruction := strings.TrimSpace(v.refineInput.Value())
		v.refining = false
		v.refineInput.Blur()
		if instruction == "" {
			return nil
		}
		return v.refineSelected(instruction)
	}
	var cmd tea.Cmd
	v.refineInput, cmd = v.refineInput.Update(msg)
	return cmd
}

func (v *wizardView) moveSelection(delta int) {
	switch v.session.Stage {
	case wizard.StageIndustry:
		v.industrySel = clamp(v.industrySel+delta, 0, len(industryPresets)-1)
	case wizard.StageAgents:
		if n := len(v.session.AvailableAgents); n > 0 {
			v.agentSel = clamp(v.agentSel+delta, 0, n-1)
		}
	case wizard.StageReview:
		if n := len(v.session.Rules()); n > 0 {
			v.ruleSel = clamp(v.ruleSel+delta, 0, n-1)
		}
	}
}

func (v *wizardView) toggleFocus() {
	if v.focused == fieldPrimary {
		v.focused = fieldSecondary
		v.nameInput.Blur()
		v.extraInput.Focus()
	} else {
		v.focused = fieldPrimary
		v.extraInput.Blur()
		v.nameInput.Focus()
	}
}

func (v *wizardView) toggleSelectedAgent() {
	agents := v.session.AvailableAgents
	if v.agentSel >= len(agents) {
		return
	}
	agent := agents[v.agentSel]
	if err := v.engine.ToggleAgent(v.session, agent.ID); err != nil {
		v.app.setStatus(describeError(err))
	}
}

func (v *wizardView) updateFocusedInput(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch v.session.Stage {
	case wizard.StageBrand:
		if v.focused == fieldPrimary {
			v.nameInput, cmd = v.nameInput.Update(msg)
			_ = v.engine.SetBrandName(v.session, v.nameInput.Value())
		} else {
			v.extraInput, cmd = v.extraInput.Update(msg)
			_ = v.engine.SetBrandGuidelinesText(v.session, v.extraInput.Value())
		}
	case wizard.StageWorkspace:
		if v.focused == fieldPrimary {
			v.nameInput, cmd = v.nameInput.Update(msg)
			_ = v.engine.SetProjectName(v.session, v.nameInput.Value())
		} else {
			v.extraInput, cmd = v.extraInput.Update(msg)
			_ = v.engine.SetProjectDescription(v.session, v.extraInput.Value())
		}
	case wizard.StageDocument:
		v.nameInput, cmd = v.nameInput.Update(msg)
	}
	return cmd
}

// confirmStage applies the current stage's input and attempts the forward
// transition. Side-effecting stages run asynchronously behind the spinner.
func (v *wizardView) confirmStage() tea.Cmd {
	session := v.session
	switch session.Stage {
	case wizard.StageIndustry:
		if err := v.engine.SetIndustry(session, industryPresets[v.industrySel]); err != nil {
			v.app.setStatus(describeError(err))
			return nil
		}
	case wizard.StageDocument:
		path := strings.TrimSpace(v.nameInput.Value())
		if path == "" {
			v.app.setStatus("Enter the path to a guideline document")
			return nil
		}
		if err := v.engine.SetDocument(session, path); err != nil {
			v.app.setStatus(describeError(err))
			return nil
		}
	case wizard.StageReview:
		return v.complete()
	}

	if !v.engine.CanAdvance(session) {
		v.app.setStatus("Fill in the required fields first")
		return nil
	}

	stage := session.Stage
	v.busy = stage.HasSideEffect()
	engine := v.engine
	advance := func() tea.Msg {
		return advanceDoneMsg{err: engine.Advance(context.Background(), session)}
	}
	if v.busy {
		v.app.setStatus(fmt.Sprintf("Working on %s…", stage.FriendlyName()))
		return tea.Batch(advance, v.spin.Tick)
	}
	return advance
}

func (v *wizardView) complete() tea.Cmd {
	workspaceID, err := v.engine.Complete(v.session)
	if err != nil {
		v.app.setStatus(describeError(err))
		return nil
	}
	return func() tea.Msg {
		return wizardDoneMsg{workspaceID: workspaceID}
	}
}

// enterReview hands the extracted rules to a catalog view so review-stage
// edits go through the same synchronizer as the standalone catalog screen.
func (v *wizardView) enterReview() {
	v.reviewView = &catalog.View{
		Scope: catalog.ScopeGuidelines(v.session.GuidelineID),
		Rules: v.session.Rules(),
	}
	v.ruleSel = 0
}

func (v *wizardView) selectedRule() (api.Rule, bool) {
	rules := v.session.Rules()
	if v.ruleSel >= len(rules) {
		return api.Rule{}, false
	}
	return rules[v.ruleSel], true
}

func (v *wizardView) deactivateSelected() tea.Cmd {
	rule, ok := v.selectedRule()
	if !ok || v.reviewView == nil {
		return nil
	}
	v.busy = true
	sync := v.app.catalog
	view := v.reviewView
	return tea.Batch(func() tea.Msg {
		if err := sync.Deactivate(context.Background(), view, rule.ID); err != nil {
			return reviewActionMsg{action: "deactivate", err: err}
		}
		updated, _ := view.Get(rule.ID)
		return reviewActionMsg{action: "deactivated", rule: updated}
	}, v.spin.Tick)
}

func (v *wizardView) refineSelected(instruction string) tea.Cmd {
	rule, ok := v.selectedRule()
	if !ok || v.reviewView == nil {
		return nil
	}
	v.busy = true
	sync := v.app.catalog
	view := v.reviewView
	return tea.Batch(func() tea.Msg {
		refined, err := sync.Refine(context.Background(), view, rule.ID, instruction)
		return reviewActionMsg{action: "refined", rule: refined, err: err}
	}, v.spin.Tick)
}

// syncInputs points the shared text inputs at the fields the new stage
// edits, so retreating shows the previously entered values.
func (v *wizardView) syncInputs() {
	v.focused = fieldPrimary
	v.extraInput.Blur()
	v.nameInput.Focus()
	switch v.session.Stage {
	case wizard.StageBrand:
		v.nameInput.Placeholder = "Brand name"
		v.nameInput.SetValue(v.session.Fields.BrandName)
		v.extraInput.Placeholder = "Brand guideline notes (optional)"
		v.extraInput.SetValue(v.session.Fields.BrandGuidelinesText)
	case wizard.StageWorkspace:
		v.nameInput.Placeholder = "Workspace name"
		v.nameInput.SetValue(v.session.Fields.ProjectName)
		v.extraInput.Placeholder = "Description (optional, generated when blank)"
		v.extraInput.SetValue(v.session.Fields.ProjectDescription)
	case wizard.StageDocument:
		v.nameInput.Placeholder = "Path to guideline document (PDF or DOCX)"
		if v.session.PendingDocument != nil {
			v.nameInput.SetValue(v.session.PendingDocument.Path)
		} else {
			v.nameInput.SetValue("")
		}
	}
}

func (v *wizardView) View() string {
	if v.err != nil {
		return errorTextStyle.Render(fmt.Sprintf("Wizard unavailable: %s", describeError(v.err)))
	}
	if v.session == nil {
		return "Opening wizard…"
	}

	sections := []string{v.renderProgress()}
	if v.busy {
		sections = append(sections, fmt.Sprintf("%s Working…", v.spin.View()))
	}
	sections = append(sections, v.renderStage())
	if lastErr := v.session.Err(); lastErr != nil && !v.busy {
		sections = append(sections, errorTextStyle.Render(fmt.Sprintf("⚠ %s · press enter to retry", lastErr.Message)))
	}
	sections = append(sections, v.renderHints())
	return strings.Join(sections, "\n\n")
}

func (v *wizardView) renderProgress() string {
	pos, total := v.engine.Position(v.session)
	var crumbs []string
	for i, stage := range v.engine.Stages() {
		name := stage.FriendlyName()
		switch {
		case i+1 < pos:
			crumbs = append(crumbs, stageDoneStyle.Render(name))
		case i+1 == pos:
			crumbs = append(crumbs, stageTitleStyle.Render(name))
		default:
			crumbs = append(crumbs, stageTodoStyle.Render(name))
		}
	}
	return fmt.Sprintf("%s  (%d/%d)", strings.Join(crumbs, " › "), pos, total)
}

func (v *wizardView) renderStage() string {
	switch v.session.Stage {
	case wizard.StageIndustry:
		var lines []string
		for i, preset := range industryPresets {
			marker := "  "
			if i == v.industrySel {
				marker = "> "
			}
			lines = append(lines, marker+preset)
		}
		return "Choose your industry:\n" + strings.Join(lines, "\n")

	case wizard.StageBrand:
		return fmt.Sprintf("Brand identity:\n%s\n%s", v.nameInput.View(), v.extraInput.View())

	case wizard.StageWorkspace:
		return fmt.Sprintf("Workspace:\n%s\n%s", v.nameInput.View(), v.extraInput.View())

	case wizard.StageAgents:
		var lines []string
		for i, agent := range v.session.AvailableAgents {
			marker := "  "
			if i == v.agentSel {
				marker = "> "
			}
			check := "[ ]"
			if v.session.Fields.SelectedAgentIDs[agent.ID] {
				check = "[x]"
			}
			label := fmt.Sprintf("%s%s %s · %s", marker, check, agent.Name, agent.Role)
			if agent.Required {
				label += " (required)"
			}
			lines = append(lines, label)
		}
		if len(lines) == 0 {
			return "No specialist agents available."
		}
		return "Select compliance agents:\n" + strings.Join(lines, "\n")

	case wizard.StageDocument:
		return fmt.Sprintf("Guideline document:\n%s", v.nameInput.View())

	case wizard.StageReview:
		return v.renderReview()
	}
	return ""
}

func (v *wizardView) renderReview() string {
	rules := v.session.Rules()
	header := fmt.Sprintf("Extracted %d rule(s):", len(rules))
	if v.session.RulesTruncated {
		header = fmt.Sprintf("Extracted %d rule(s) (list truncated, see the catalog for the rest):", len(rules))
	}
	if len(rules) == 0 {
		return header + "\n  none"
	}
	var lines []string
	for i, rule := range rules {
		marker := "  "
		if i == v.ruleSel {
			marker = "> "
		}
		line := fmt.Sprintf("%s[%s/%s] %s", marker, rule.Category, rule.Severity, truncate(rule.Text, 80))
		if rule.IsActive {
			lines = append(lines, ruleActiveStyle.Render(line))
		} else {
			lines = append(lines, ruleClosedStyle.Render(line))
		}
	}
	body := header + "\n" + strings.Join(lines, "\n")
	if v.refining {
		body += "\n\nRefine instruction:\n" + v.refineInput.View()
	}
	return body
}

func (v *wizardView) renderHints() string {
	var hint string
	switch v.session.Stage {
	case wizard.StageIndustry:
		hint = "↑/↓ choose · enter continue"
	case wizard.StageBrand, wizard.StageWorkspace:
		hint = "tab switch field · enter continue · esc back"
	case wizard.StageAgents:
		hint = "↑/↓ choose · space toggle · enter continue · esc back"
	case wizard.StageDocument:
		hint = "type a file path · enter upload · esc back"
	case wizard.StageReview:
		if v.refining {
			hint = "enter send instruction · esc cancel"
		} else {
			hint = "↑/↓ choose · d deactivate · i refine · enter finish · esc back"
		}
	}
	return hintTextStyle.Render(hint)
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}
